////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                    Testimony                                       //
//                                                                                    //
// The testimony recorder is a small state machine owned by each area. While          //
// RECORDING, validated witness IC messages are appended to an ordered                //
// statement log; PLAYBACK turns the special "<", ">", and ">n" IC messages           //
// into cursor movement that rebroadcasts stored statements instead of new            //
// content. Index 0 of the log is reserved for the examination title entry            //
// (the decorated first statement), so real statements live at 1..n.                  //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/AttorneyOnline/akashi-sub000/packet"
)

// RecorderMode is the testimony recorder's state.
type RecorderMode int

const (
	RecorderStopped RecorderMode = iota
	RecorderRecording
	RecorderAdd
	RecorderUpdate
	RecorderPlayback
)

func (m RecorderMode) String() string {
	switch m {
	case RecorderRecording:
		return "recording"
	case RecorderAdd:
		return "adding"
	case RecorderUpdate:
		return "updating"
	case RecorderPlayback:
		return "playback"
	default:
		return "stopped"
	}
}

// testimonyColor is forced onto the color field of every stored statement
// so played-back lines render in the client's testimony style.
const testimonyColor = "3"

// navigation tokens recognized during playback; ">n" jumps by pattern
// match, not literal equality.
var jumpPattern = regexp.MustCompile(`^>(\d+)$`)

// Testimony is the per-area recorder. The zero value is a stopped recorder
// with an empty log.
type Testimony struct {
	mu         sync.Mutex
	mode       RecorderMode
	statements [][]string
	cursor     int
}

// Testimony returns the area's recorder.
func (a *Area) Testimony() *Testimony {
	return &a.testimony
}

func (t *Testimony) Mode() RecorderMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

func (t *Testimony) setMode(m RecorderMode) {
	t.mu.Lock()
	t.mode = m
	t.mu.Unlock()
}

// Len reports the number of stored statements, the reserved title entry
// included.
func (t *Testimony) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.statements)
}

func (t *Testimony) Cursor() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// StartRecording wipes the log and begins capture. Starting while already
// recording is rejected so a stray double /testify can't silently erase
// the log.
func (t *Testimony) StartRecording(max int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == RecorderRecording {
		return fmt.Errorf("testimony is already being recorded")
	}
	if max > 0 && len(t.statements) >= max {
		return fmt.Errorf("testimony is at its maximum of %d statements", max)
	}
	t.mode = RecorderRecording
	t.statements = nil
	t.cursor = -1
	return nil
}

// Record consumes one validated IC message according to the current mode
// and returns the fields as stored (color forced, the title entry
// decorated) plus whether the log hit the configured cap.
//
// In RECORDING the statement is appended; the very first one becomes the
// decorated title entry at index 0. In ADD it is inserted after the
// cursor and the mode falls back to PLAYBACK; in UPDATE it replaces the
// statement at the cursor, likewise falling back. Any other mode stores
// nothing.
func (t *Testimony) Record(fields []string, max int) (stored []string, full bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := append([]string(nil), fields...)
	st[icColor] = testimonyColor

	switch t.mode {
	case RecorderRecording:
		if max > 0 && len(t.statements) >= max {
			return nil, true
		}
		if len(t.statements) == 0 {
			// examination title entry
			st[icMessage] = "~~-- " + st[icMessage] + " --"
		}
		t.statements = append(t.statements, st)
		t.cursor = len(t.statements) - 1

	case RecorderAdd:
		if max > 0 && len(t.statements) >= max {
			t.mode = RecorderPlayback
			return nil, true
		}
		at := t.cursor + 1
		if at > len(t.statements) {
			at = len(t.statements)
		}
		t.statements = append(t.statements[:at], append([][]string{st}, t.statements[at:]...)...)
		t.cursor = at
		t.mode = RecorderPlayback

	case RecorderUpdate:
		// PrepareUpdate already verified the slot; re-check anyway since
		// /delete_statement may have run in between.
		if t.cursor <= 0 || t.cursor >= len(t.statements) {
			t.mode = RecorderPlayback
			return nil, false
		}
		t.statements[t.cursor] = st
		t.mode = RecorderPlayback

	default:
		return nil, false
	}
	return st, false
}

// PrepareAdd arms the recorder so the next IC message is inserted after
// the cursor.
func (t *Testimony) PrepareAdd() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.statements) == 0 {
		return fmt.Errorf("no testimony has been recorded")
	}
	t.mode = RecorderAdd
	return nil
}

// PrepareUpdate arms the recorder so the next IC message replaces the
// statement under the cursor. The title entry at index 0 is not
// updatable; attempting it fails without consuming anything.
func (t *Testimony) PrepareUpdate() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cursor <= 0 || t.cursor >= len(t.statements) {
		return fmt.Errorf("no statement to update at the current position")
	}
	t.mode = RecorderUpdate
	return nil
}

// StartPlayback moves to PLAYBACK at the title entry and returns it.
func (t *Testimony) StartPlayback() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.statements) == 0 {
		return nil, fmt.Errorf("no testimony has been recorded")
	}
	t.mode = RecorderPlayback
	t.cursor = 0
	return t.statements[0], nil
}

// Pause suspends playback/recording without touching the log.
func (t *Testimony) Pause() {
	t.mu.Lock()
	t.mode = RecorderStopped
	t.mu.Unlock()
}

// Advance moves the cursor forward and returns the statement there.
// Moving past the last statement loops back to statement 1, never past
// the end and never to the title entry.
func (t *Testimony) Advance() (st []string, looped bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.statements) < 2 {
		return nil, false, fmt.Errorf("testimony has no statements")
	}
	t.cursor++
	if t.cursor >= len(t.statements) {
		t.cursor = 1
		looped = true
	}
	return t.statements[t.cursor], looped, nil
}

// Rewind moves the cursor backward and returns the statement there.
// Moving before statement 1 clamps to 1 (not 0; the title entry is not
// part of the walk).
func (t *Testimony) Rewind() (st []string, clamped bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.statements) < 2 {
		return nil, false, fmt.Errorf("testimony has no statements")
	}
	t.cursor--
	if t.cursor < 1 {
		t.cursor = 1
		clamped = true
	}
	return t.statements[t.cursor], clamped, nil
}

// JumpTo moves the cursor to the given statement index, clamping into
// the valid 1..n range.
func (t *Testimony) JumpTo(n int) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.statements) < 2 {
		return nil, fmt.Errorf("testimony has no statements")
	}
	if n < 1 {
		n = 1
	}
	if n >= len(t.statements) {
		n = len(t.statements) - 1
	}
	t.cursor = n
	return t.statements[t.cursor], nil
}

// DeleteStatement removes the statement under the cursor. The title
// entry is never deletable and the log must keep at least one real
// statement, hence the more-than-two floor.
func (t *Testimony) DeleteStatement() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cursor <= 0 || len(t.statements) <= 2 || t.cursor >= len(t.statements) {
		return fmt.Errorf("unable to delete statement %d", t.cursor)
	}
	t.statements = append(t.statements[:t.cursor], t.statements[t.cursor+1:]...)
	if t.cursor >= len(t.statements) {
		t.cursor = len(t.statements) - 1
	}
	return nil
}

// Clear resets the recorder to its initial state.
func (t *Testimony) Clear() {
	t.mu.Lock()
	t.mode = RecorderStopped
	t.statements = nil
	t.cursor = -1
	t.mu.Unlock()
}

// Current returns the statement under the cursor.
func (t *Testimony) Current() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cursor < 0 || t.cursor >= len(t.statements) {
		return nil, fmt.Errorf("no current statement")
	}
	return t.statements[t.cursor], nil
}

// parseNavigation classifies an IC message as a testimony navigation
// token. Jump targets match by pattern, so ">003" works.
func parseNavigation(message string) (kind navKind, target int) {
	switch strings.TrimSpace(message) {
	case ">":
		return navForward, 0
	case "<":
		return navBack, 0
	}
	if m := jumpPattern.FindStringSubmatch(strings.TrimSpace(message)); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return navJump, n
		}
	}
	return navNone, 0
}

type navKind int

const (
	navNone navKind = iota
	navForward
	navBack
	navJump
)

//
// flat-record persistence
//

// sanitizeTestimonyName turns a user-supplied name into a safe storage
// key: lower-cased, with any ".." sequences stripped so the name can't
// escape the testimony directory.
func sanitizeTestimonyName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return name
}

// Save writes the statement log, one encoded line per statement, to
// <dir>/<name>.txt.
func (t *Testimony) Save(dir, name string) error {
	name = sanitizeTestimonyName(name)
	if name == "" {
		return fmt.Errorf("invalid testimony name")
	}
	t.mu.Lock()
	statements := make([][]string, len(t.statements))
	copy(statements, t.statements)
	t.mu.Unlock()
	if len(statements) == 0 {
		return fmt.Errorf("no testimony to save")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, name+".txt"))
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, st := range statements {
		fmt.Fprintln(w, packet.New("MS", st...).String())
	}
	return w.Flush()
}

// Load replaces the statement log with the contents of a saved record
// and leaves the recorder ready for playback.
func (t *Testimony) Load(dir, name string) error {
	name = sanitizeTestimonyName(name)
	if name == "" {
		return fmt.Errorf("invalid testimony name")
	}
	f, err := os.Open(filepath.Join(dir, name + ".txt"))
	if err != nil {
		return fmt.Errorf("no testimony saved under that name")
	}
	defer f.Close()

	var statements [][]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p, err := packet.Decode(line)
		if err != nil || p.Header != "MS" {
			return fmt.Errorf("saved testimony is corrupt")
		}
		statements = append(statements, p.Fields)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(statements) == 0 {
		return fmt.Errorf("saved testimony is empty")
	}

	t.mu.Lock()
	t.statements = statements
	t.cursor = 0
	t.mode = RecorderPlayback
	t.mu.Unlock()
	return nil
}
