////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                       Area                                         //
//                                                                                    //
// One Area is one room: the unit of IC chat isolation, lock status, CM               //
// ownership, evidence, notecards, testimony, and timers. All mutable state is        //
// guarded by the area's own mutex; methods here mutate and report, while             //
// broadcasting the results (ARUP vectors, LE lists, notices) is the server's         //
// business so that mutation and broadcast can be kept atomic at that level.          //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// LockStatus is an area's admission state.
type LockStatus int

const (
	// LockFree admits anyone.
	LockFree LockStatus = iota
	// LockSpectatable admits anyone but only invited sessions may speak IC.
	LockSpectatable
	// LockLocked admits only invited sessions.
	LockLocked
)

func (l LockStatus) String() string {
	switch l {
	case LockSpectatable:
		return "SPECTATABLE"
	case LockLocked:
		return "LOCKED"
	default:
		return "FREE"
	}
}

// Evidence is one exhibit in an area's evidence list.
type Evidence struct {
	Name        string
	Description string
	Image       string
}

// wireString renders an evidence entry in the '&'-joined form the LE
// packet carries.
func (e Evidence) wireString() string {
	return e.Name + "&" + e.Description + "&" + e.Image
}

// Area holds the complete state of one room.
type Area struct {
	mu sync.Mutex

	index int
	name  string

	// protected areas never grant CM to the first claimant
	protected bool

	// session membership and character occupancy
	members map[int]bool // uids currently joined
	taken   map[int]bool // character ids in use here

	// ownership and admission
	owners  map[int]bool // CM session ids
	invited map[int]bool // session ids granted entry/IC while locked
	lock    LockStatus

	// free-form status token carried in the ARUP STATUS vector
	status string

	background string
	bgLocked   bool

	// feature toggles
	iniswapAllowed  bool
	blankpostAllowed bool
	shownamesAllowed bool
	shoutsAllowed   bool
	forceImmediate  bool
	musicAllowed    bool

	evidence  []Evidence
	notecards map[string]string

	defHP int
	proHP int

	doc          string
	currentMusic string
	musicPlayer  string

	// snapshot of the last broadcast IC message, for the additive rule
	// and the testimony recorder
	lastICMessage []string
	lastICCharID  string

	// while true, validated IC messages in this area are dropped at the
	// broadcast step
	floodguardUp bool

	testimony Testimony
	timers    [areaTimerCount]*Timer
}

func newArea(index int, cfg AreaConfig) *Area {
	a := &Area{
		index:            index,
		name:             cfg.Name,
		protected:        cfg.Protected,
		members:          make(map[int]bool),
		taken:            make(map[int]bool),
		owners:           make(map[int]bool),
		invited:          make(map[int]bool),
		status:           "IDLE",
		background:       cfg.Background,
		iniswapAllowed:   true,
		blankpostAllowed: true,
		shownamesAllowed: true,
		shoutsAllowed:    true,
		musicAllowed:     true,
		notecards:        make(map[string]string),
		defHP:            10,
		proHP:            10,
	}
	for i := range a.timers {
		a.timers[i] = newTimer()
	}
	return a
}

func (a *Area) Name() string    { return a.name }
func (a *Area) Index() int      { return a.index }
func (a *Area) Protected() bool { return a.protected }

//
// membership
//

// Join adds a session to the area. It does not admission-check; the server
// does that first via CanJoin so the rejection message can go out before
// any state changes.
func (a *Area) Join(uid int) {
	a.mu.Lock()
	a.members[uid] = true
	a.mu.Unlock()
}

// Leave removes a session and its character, invitation, and ownership
// from the area. It reports whether the ownership invariant forced the
// lock back to FREE so the caller can broadcast both changed vectors.
func (a *Area) Leave(uid, charID int) (ownerRemoved, statusReset bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.members, uid)
	delete(a.invited, uid)
	if charID >= 0 {
		delete(a.taken, charID)
	}
	if a.owners[uid] {
		delete(a.owners, uid)
		ownerRemoved = true
		statusReset = a.enforceOwnerInvariant()
	}
	return ownerRemoved, statusReset
}

// CanJoin reports whether a session may enter given the lock status.
// SPECTATABLE admits anyone; LOCKED requires an invitation. The caller is
// responsible for letting sessions with the lock-bypass permission through.
func (a *Area) CanJoin(uid int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lock != LockLocked {
		return true
	}
	return a.invited[uid]
}

func (a *Area) PlayerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.members)
}

// MemberIDs returns a snapshot of the joined session ids, sorted for
// deterministic iteration.
func (a *Area) MemberIDs() []int {
	a.mu.Lock()
	ids := make([]int, 0, len(a.members))
	for uid := range a.members {
		ids = append(ids, uid)
	}
	a.mu.Unlock()
	sort.Ints(ids)
	return ids
}

//
// character occupancy
//

// TakeCharacter claims a character slot, releasing oldID if the session
// held one. It fails if the slot is already in use by someone else.
func (a *Area) TakeCharacter(oldID, newID int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if newID >= 0 && a.taken[newID] {
		return false
	}
	if oldID >= 0 {
		delete(a.taken, oldID)
	}
	if newID >= 0 {
		a.taken[newID] = true
	}
	return true
}

func (a *Area) CharacterTaken(id int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.taken[id]
}

//
// lock / ownership state machine
//

// SetLock moves the area to the given status. Entering LOCKED or
// SPECTATABLE auto-invites every current occupant, so the people already
// in the room keep both access and the right to speak. The existing
// design permits any transition, including SPECTATABLE directly to
// LOCKED; each entry re-runs the auto-invite.
func (a *Area) SetLock(status LockStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lock = status
	if status == LockLocked || status == LockSpectatable {
		for uid := range a.members {
			a.invited[uid] = true
		}
	} else {
		a.invited = make(map[int]bool)
	}
}

func (a *Area) Lock() LockStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lock
}

func (a *Area) Invite(uid int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.invited[uid] {
		return false
	}
	a.invited[uid] = true
	return true
}

func (a *Area) Uninvite(uid int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.invited[uid] {
		return false
	}
	delete(a.invited, uid)
	return true
}

func (a *Area) Invited(uid int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invited[uid]
}

// AddOwner makes a session a CM of this area.
func (a *Area) AddOwner(uid int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owners[uid] {
		return false
	}
	a.owners[uid] = true
	a.invited[uid] = true
	return true
}

// RemoveOwner strips CM from a session. Whenever the owner set becomes
// empty the lock status must fall back to FREE; the second return value
// reports that this happened so both ARUP vectors get rebroadcast.
func (a *Area) RemoveOwner(uid int) (removed, statusReset bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.owners[uid] {
		return false, false
	}
	delete(a.owners, uid)
	return true, a.enforceOwnerInvariant()
}

// enforceOwnerInvariant resets the lock to FREE when no owners remain.
// Callers must hold a.mu.
func (a *Area) enforceOwnerInvariant() bool {
	if len(a.owners) == 0 && a.lock != LockFree {
		a.lock = LockFree
		a.invited = make(map[int]bool)
		return true
	}
	return false
}

func (a *Area) IsOwner(uid int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owners[uid]
}

func (a *Area) HasOwners() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.owners) > 0
}

// OwnerIDs returns the CM session ids in ascending order.
func (a *Area) OwnerIDs() []int {
	a.mu.Lock()
	ids := make([]int, 0, len(a.owners))
	for uid := range a.owners {
		ids = append(ids, uid)
	}
	a.mu.Unlock()
	sort.Ints(ids)
	return ids
}

//
// status / background / toggles
//

func (a *Area) SetStatus(status string) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
}

func (a *Area) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Area) SetBackground(bg string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bgLocked {
		return false
	}
	a.background = bg
	return true
}

func (a *Area) Background() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.background
}

func (a *Area) SetBackgroundLocked(locked bool) {
	a.mu.Lock()
	a.bgLocked = locked
	a.mu.Unlock()
}

func (a *Area) BackgroundLocked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bgLocked
}

//
// health bars
//

// SetHP sets one of the judge's health bars: bar 1 is defense, bar 2 is
// prosecution, values clamp to 0..10.
func (a *Area) SetHP(bar, value int) bool {
	if bar != 1 && bar != 2 {
		return false
	}
	if value < 0 || value > 10 {
		return false
	}
	a.mu.Lock()
	if bar == 1 {
		a.defHP = value
	} else {
		a.proHP = value
	}
	a.mu.Unlock()
	return true
}

func (a *Area) HP() (def, pro int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.defHP, a.proHP
}

//
// evidence
//

func (a *Area) AddEvidence(e Evidence) {
	a.mu.Lock()
	a.evidence = append(a.evidence, e)
	a.mu.Unlock()
}

func (a *Area) RemoveEvidence(i int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.evidence) {
		return false
	}
	a.evidence = append(a.evidence[:i], a.evidence[i+1:]...)
	return true
}

func (a *Area) EditEvidence(i int, e Evidence) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.evidence) {
		return false
	}
	a.evidence[i] = e
	return true
}

func (a *Area) SwapEvidence(i, j int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.evidence) || j < 0 || j >= len(a.evidence) {
		return false
	}
	a.evidence[i], a.evidence[j] = a.evidence[j], a.evidence[i]
	return true
}

func (a *Area) EvidenceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.evidence)
}

// EvidenceWire renders the whole list as LE packet fields.
func (a *Area) EvidenceWire() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.evidence))
	for i, e := range a.evidence {
		out[i] = e.wireString()
	}
	return out
}

//
// notecards
//

func (a *Area) SetNotecard(character, text string) {
	a.mu.Lock()
	a.notecards[character] = text
	a.mu.Unlock()
}

func (a *Area) ClearNotecard(character string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.notecards[character]; !ok {
		return false
	}
	delete(a.notecards, character)
	return true
}

// RevealNotecards returns every notecard as "name: text" lines and wipes
// the map, so one reveal is one round.
func (a *Area) RevealNotecards() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.notecards) == 0 {
		return ""
	}
	names := make([]string, 0, len(a.notecards))
	for n := range a.notecards {
		names = append(names, n)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString("== Notecards ==")
	for _, n := range names {
		sb.WriteString(fmt.Sprintf("\n%s: %s", n, a.notecards[n]))
	}
	a.notecards = make(map[string]string)
	return sb.String()
}

//
// IC bookkeeping
//

// RecordLastIC snapshots the most recent broadcast IC message for the
// additive rule and /testimony display.
func (a *Area) RecordLastIC(fields []string, charID string) {
	a.mu.Lock()
	a.lastICMessage = append([]string(nil), fields...)
	a.lastICCharID = charID
	a.mu.Unlock()
}

func (a *Area) LastICCharID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastICCharID
}

func (a *Area) LastICMessage() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.lastICMessage...)
}

func (a *Area) floodguardActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.floodguardUp
}

func (a *Area) setFloodguard(up bool) {
	a.mu.Lock()
	a.floodguardUp = up
	a.mu.Unlock()
}

//
// toggle accessors; each gates one IC validator rule or music/shout path
//

func (a *Area) IniswapAllowed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.iniswapAllowed
}

func (a *Area) ToggleIniswap() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.iniswapAllowed = !a.iniswapAllowed
	return a.iniswapAllowed
}

func (a *Area) BlankpostAllowed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blankpostAllowed
}

func (a *Area) ToggleBlankpost() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blankpostAllowed = !a.blankpostAllowed
	return a.blankpostAllowed
}

func (a *Area) ShownamesAllowed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shownamesAllowed
}

func (a *Area) ToggleShownames() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shownamesAllowed = !a.shownamesAllowed
	return a.shownamesAllowed
}

func (a *Area) ShoutsAllowed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shoutsAllowed
}

func (a *Area) ToggleShouts() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shoutsAllowed = !a.shoutsAllowed
	return a.shoutsAllowed
}

func (a *Area) ForceImmediate() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.forceImmediate
}

func (a *Area) ToggleForceImmediate() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.forceImmediate = !a.forceImmediate
	return a.forceImmediate
}

func (a *Area) MusicAllowed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.musicAllowed
}

func (a *Area) ToggleMusic() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.musicAllowed = !a.musicAllowed
	return a.musicAllowed
}

//
// music / document
//

func (a *Area) SetCurrentMusic(song, player string) {
	a.mu.Lock()
	a.currentMusic = song
	a.musicPlayer = player
	a.mu.Unlock()
}

func (a *Area) CurrentMusic() (song, player string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentMusic, a.musicPlayer
}

func (a *Area) SetDoc(doc string) {
	a.mu.Lock()
	a.doc = doc
	a.mu.Unlock()
}

func (a *Area) Doc() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc
}

// Timer returns the n-th area timer (0-based), or nil if out of range.
func (a *Area) Timer(n int) *Timer {
	if n < 0 || n >= areaTimerCount {
		return nil
	}
	return a.timers[n]
}
