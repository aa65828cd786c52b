////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                  MessageValidator                                  //
//                                                                                    //
// Validation and rewriting of in-character (MS) packets. The input is the raw        //
// field vector a client sent plus the session and area it arrived through;           //
// the output is either a fully rewritten vector ready to broadcast or an             //
// error meaning "drop silently". The rules run in a fixed order and almost           //
// all of them are hard gates; the few that rewrite-and-notify instead of             //
// dropping say so below.                                                             //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/AttorneyOnline/akashi-sub000/acl"
)

// errDropIC means the packet failed validation and must be dropped with
// no broadcast, no side effects, and no reply.
var errDropIC = errors.New("invalid IC message")

var allowedDeskMods = map[string]bool{
	"0": true, "1": true, "2": true, "3": true, "4": true, "5": true,
}

var allowedEmoteMods = map[string]bool{
	"0": true, "1": true, "2": true, "5": true, "6": true,
}

// maxShownameLength bounds custom shownames.
const maxShownameLength = 30

// filterGlyph replaces text matched by a configured content filter.
const filterGlyph = "✗"

// gimpLines are what a gimped session says instead of whatever it typed.
var gimpLines = []string{
	"ERP IS BAN",
	"HELP ME",
	"(((ball rolling sounds)))",
	"Anyone else a fan of MLP?",
	"私に何が起こったのか分かりません。",
}

// validateICMessage applies the full rule chain to one incoming MS field
// vector and returns the rewritten broadcast vector. The caller is
// responsible for the success side effects (floodguard arming, last-IC
// bookkeeping, testimony capture).
func (s *Server) validateICMessage(c *Client, a *Area, in []string) ([]string, error) {
	// normalize arity: accept a bare 2.6 vector, work on the extended one
	fields := make([]string, icFieldCount)
	copy(fields, icDefaults[:])
	copy(fields, in)
	if len(in) < icMinFields {
		return nil, errDropIC
	}

	c.mu.Lock()
	muted := c.muted
	joined := c.joined
	charID := c.charID
	gimped, shaken, disemvoweled := c.gimped, c.shaken, c.disemvoweled
	lastMessage := c.lastICMessage
	pos := c.pos
	c.mu.Unlock()

	// 1. the session must be able to speak at all
	if muted || !joined || charID < 0 {
		return nil, errDropIC
	}

	// 2. spectatable areas admit everyone but only the invited speak
	if a.Lock() == LockSpectatable && !a.Invited(c.uid) && !c.checkPermission(acl.BypassLocks) {
		return nil, errDropIC
	}

	// 3. desk modifier; the legacy "chat" token normalizes to "1"
	if fields[icDeskMod] == "chat" {
		fields[icDeskMod] = "1"
	}
	if !allowedDeskMods[fields[icDeskMod]] {
		return nil, errDropIC
	}

	// 4. INI-swap: a character-name field that differs from the selected
	// character's folder. Always traversal-guarded; where the area
	// forbids swapping, the name must still be a character we know.
	name := fields[icCharName]
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return nil, errDropIC
	}
	if name != c.charName() && !a.IniswapAllowed() && !s.knownCharacter(name) {
		return nil, errDropIC
	}

	// 5. message text: length cap, duplicate suppression, blankpost rule
	msg := fields[icMessage]
	if len(msg) > s.cfg.MaxMessageLength {
		return nil, errDropIC
	}
	nav, _ := parseNavigation(msg)
	if msg == lastMessage && msg != "" && nav == navNone {
		return nil, errDropIC
	}
	if strings.TrimSpace(msg) == "" && !a.BlankpostAllowed() {
		return nil, errDropIC
	}

	// 6. content filters
	for _, f := range s.textFilters() {
		msg = f.ReplaceAllString(msg, filterGlyph)
	}

	// 7. moderation rewrites compose when several are active
	if gimped {
		msg = gimpLines[rand.Intn(len(gimpLines))]
	}
	if shaken {
		msg = shakeWords(msg)
	}
	if disemvoweled {
		msg = disemvowel(msg)
	}
	fields[icMessage] = msg

	// 8. emote modifier; 4 crashes some clients, remap to 6
	if fields[icEmoteMod] == "4" {
		fields[icEmoteMod] = "6"
	}
	if !allowedEmoteMods[fields[icEmoteMod]] {
		return nil, errDropIC
	}

	// 9. the speaker field must be the session's own character
	if fields[icCharID] != strconv.Itoa(charID) {
		return nil, errDropIC
	}

	// 10. objection/shout modifier. Custom shouts carry "<n>&<name>"
	// metadata and pass through untouched; plain values must be in
	// range; areas with shouts disabled force 0 and say so.
	if !a.ShoutsAllowed() {
		if fields[icObjection] != "0" {
			fields[icObjection] = "0"
			c.sendServerMessage("Shouts are disabled in this area.")
		}
	} else if !strings.Contains(fields[icObjection], "&") {
		ob, err := strconv.Atoi(fields[icObjection])
		if err != nil || ob < 0 || ob > 5 {
			return nil, errDropIC
		}
	}

	// 11. evidence index within the area's list (0 = none)
	evi, err := strconv.Atoi(fields[icEvidence])
	if err != nil || evi < 0 || evi > a.EvidenceCount() {
		return nil, errDropIC
	}

	// 12. flip, realization, text color
	if fields[icFlip] != "0" && fields[icFlip] != "1" {
		return nil, errDropIC
	}
	if fields[icRealization] != "0" && fields[icRealization] != "1" {
		return nil, errDropIC
	}
	color, err := strconv.Atoi(fields[icColor])
	if err != nil || color < 0 || color > 11 {
		return nil, errDropIC
	}

	// 13. showname
	showname := fields[icShowname]
	if len(showname) > maxShownameLength {
		return nil, errDropIC
	}
	if showname != "" && showname != c.charName() && !a.ShownamesAllowed() {
		return nil, errDropIC
	}

	// 14. pairing: remember what this session wants, then look for a
	// mutual partner in the room
	wanted := parsePairTarget(fields[icPairID])
	c.mu.Lock()
	c.pairTarget = wanted
	c.mu.Unlock()
	pairID, pairName, pairEmote, pairOffset, pairFlip := s.resolvePair(c, a, charID, wanted, pos)

	// 15. additive continuation only holds if the same character spoke
	// last in this area
	additive := fields[icAdditive]
	if additive == "1" && a.LastICCharID() == strconv.Itoa(charID) {
		fields[icMessage] = " " + fields[icMessage]
	} else {
		additive = "0"
	}

	immediate := fields[icImmediate]
	if a.ForceImmediate() {
		immediate = "1"
	}

	out := make([]string, ocFieldCount)
	out[ocDeskMod] = fields[icDeskMod]
	out[ocPreAnim] = fields[icPreAnim]
	out[ocCharName] = fields[icCharName]
	out[ocEmote] = fields[icEmote]
	out[ocMessage] = fields[icMessage]
	out[ocSide] = fields[icSide]
	out[ocSFXName] = fields[icSFXName]
	out[ocEmoteMod] = fields[icEmoteMod]
	out[ocCharID] = fields[icCharID]
	out[ocSFXDelay] = fields[icSFXDelay]
	out[ocObjection] = fields[icObjection]
	out[ocEvidence] = fields[icEvidence]
	out[ocFlip] = fields[icFlip]
	out[ocRealization] = fields[icRealization]
	out[ocColor] = fields[icColor]
	out[ocShowname] = showname
	out[ocPairID] = pairID
	out[ocPairName] = pairName
	out[ocPairEmote] = pairEmote
	out[ocSelfOffset] = fields[icSelfOffset]
	out[ocPairOffset] = pairOffset
	out[ocPairFlip] = pairFlip
	out[ocImmediate] = immediate
	out[ocLoopingSFX] = fields[icLoopingSFX]
	out[ocScreenshake] = fields[icScreenshake]
	out[ocFramesShake] = fields[icFramesShake]
	out[ocFramesRealization] = fields[icFramesRealization]
	out[ocFramesSFX] = fields[icFramesSFX]
	out[ocAdditive] = additive
	out[ocEffects] = fields[icEffects]
	return out, nil
}

// icDefaults fills the extended fields a 2.6 client doesn't send.
var icDefaults = [icFieldCount]string{
	icPairID:     "-1",
	icSelfOffset: "0",
	icImmediate:  "0",
	icLoopingSFX: "0",
	icScreenshake: "0",
	icAdditive:   "0",
}

// recordICSideEffects applies the bookkeeping a successful broadcast
// leaves behind: dedup snapshot, pairing data for the partner's next
// message, position, and the floodguard timers.
func (s *Server) recordICSideEffects(c *Client, a *Area, out []string) {
	c.mu.Lock()
	c.lastICMessage = strings.TrimPrefix(out[ocMessage], " ")
	c.lastEmote = out[ocEmote]
	c.lastFlip = out[ocFlip]
	c.lastSelfOffset = out[ocSelfOffset]
	if out[ocSide] != "" {
		c.pos = out[ocSide]
	}
	c.mu.Unlock()
	a.RecordLastIC(out, out[ocCharID])
	s.armFloodguards(a)
}

// knownCharacter reports whether a character folder name is in the
// configured character list.
func (s *Server) knownCharacter(name string) bool {
	for _, cn := range s.cfg.Characters {
		if strings.EqualFold(cn, name) {
			return true
		}
	}
	return false
}

// parsePairTarget extracts the wanted character id from the pair field,
// which later clients send as "<charid>^<order>".
func parsePairTarget(field string) int {
	id := field
	if i := strings.IndexByte(field, '^'); i >= 0 {
		id = field[:i]
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return -1
	}
	return n
}

// resolvePair scans the sessions joined to the area for a mutual
// pairing partner: one whose selected character is the one we want,
// who wants our character back, and who stands at the same position.
// Anything short of full mutuality degrades to "no pairing".
func (s *Server) resolvePair(c *Client, a *Area, ownCharID, wanted int, pos string) (pairID, pairName, pairEmote, pairOffset, pairFlip string) {
	pairID, pairName, pairEmote, pairOffset, pairFlip = "-1", "", "", "0", "0"
	if wanted < 0 {
		return
	}
	for _, other := range s.clientsInArea(a.Index()) {
		if other == c {
			continue
		}
		other.mu.Lock()
		otherChar := other.charID
		otherWants := other.pairTarget
		otherPos := other.pos
		emote := other.lastEmote
		flip := other.lastFlip
		offset := other.lastSelfOffset
		other.mu.Unlock()
		if otherChar == wanted && otherWants == ownCharID && otherPos == pos {
			pairID = strconv.Itoa(otherChar)
			pairName = other.charName()
			pairEmote = emote
			pairOffset = offset
			pairFlip = flip
			return
		}
	}
	return
}

//
// text rewrites
//

var vowelPattern = regexp.MustCompile(`[aeiouAEIOU]`)

func disemvowel(text string) string {
	return vowelPattern.ReplaceAllString(text, "")
}

// shakeWords shuffles word order, leaving single-word messages alone.
func shakeWords(text string) string {
	words := strings.Fields(text)
	if len(words) < 2 {
		return text
	}
	rand.Shuffle(len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})
	return strings.Join(words, " ")
}

// textFilters compiles the configured content filters once.
func (s *Server) textFilters() []*regexp.Regexp {
	s.filterOnce.Do(func() {
		for _, expr := range s.cfg.TextFilters {
			re, err := regexp.Compile(expr)
			if err != nil {
				s.log.Warnf("ignoring bad text filter %q: %v", expr, err)
				continue
			}
			s.filters = append(s.filters, re)
		}
	})
	return s.filters
}
