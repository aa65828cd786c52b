package courtroom

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// record pushes one witness statement through the recorder.
func record(t *testing.T, tm *Testimony, message string) []string {
	t.Helper()
	fields := make([]string, ocFieldCount)
	copy(fields, icFields(0, "Phoenix", message))
	stored, full := tm.Record(fields, 10)
	if full {
		t.Fatalf("recorder reported full while recording %q", message)
	}
	return stored
}

func TestRecordingDecoratesTitle(t *testing.T) {
	var tm Testimony
	if err := tm.StartRecording(10); err != nil {
		t.Fatal(err)
	}
	title := record(t, &tm, "The Witness's Account")
	if got, want := title[ocMessage], "~~-- The Witness's Account --"; got != want {
		t.Errorf("title message = %q, want %q", got, want)
	}
	if got := title[ocColor]; got != testimonyColor {
		t.Errorf("stored color = %q, want %q", got, testimonyColor)
	}
}

func TestDoubleTestifyRejected(t *testing.T) {
	var tm Testimony
	if err := tm.StartRecording(10); err != nil {
		t.Fatal(err)
	}
	if err := tm.StartRecording(10); err == nil {
		t.Error("second StartRecording succeeded; the log would have been wiped")
	}
}

// buildTestimony records a title plus three statements and switches to
// playback.
func buildTestimony(t *testing.T) *Testimony {
	t.Helper()
	var tm Testimony
	if err := tm.StartRecording(10); err != nil {
		t.Fatal(err)
	}
	record(t, &tm, "Title")
	for i := 1; i <= 3; i++ {
		record(t, &tm, "statement "+strconv.Itoa(i))
	}
	if _, err := tm.StartPlayback(); err != nil {
		t.Fatal(err)
	}
	return &tm
}

func TestPlaybackNavigation(t *testing.T) {
	tm := buildTestimony(t)

	if got := tm.Cursor(); got != 0 {
		t.Fatalf("playback starts at cursor %d, want 0 (the title)", got)
	}

	st, looped, err := tm.Advance()
	if err != nil || looped {
		t.Fatalf("Advance: %v (looped=%v)", err, looped)
	}
	if got := st[ocMessage]; got != "statement 1" {
		t.Errorf("first advance plays %q, want statement 1", got)
	}

	// advancing past the end loops to statement 1, not the title
	tm.Advance()
	tm.Advance()
	st, looped, err = tm.Advance()
	if err != nil {
		t.Fatal(err)
	}
	if !looped || st[ocMessage] != "statement 1" {
		t.Errorf("advance past end: looped=%v message=%q, want loop to statement 1", looped, st[ocMessage])
	}

	// rewinding from statement 1 clamps there; it never replays the title
	st, clamped, err := tm.Rewind()
	if err != nil {
		t.Fatal(err)
	}
	if !clamped || st[ocMessage] != "statement 1" {
		t.Errorf("rewind at start: clamped=%v message=%q, want clamp at statement 1", clamped, st[ocMessage])
	}

	st, err = tm.JumpTo(99)
	if err != nil {
		t.Fatal(err)
	}
	if st[ocMessage] != "statement 3" {
		t.Errorf("jump beyond the end plays %q, want the last statement", st[ocMessage])
	}
}

func TestParseNavigation(t *testing.T) {
	cases := []struct {
		message string
		kind    navKind
		target  int
	}{
		{">", navForward, 0},
		{"<", navBack, 0},
		{">3", navJump, 3},
		{">12", navJump, 12},
		{"> 3", navNone, 0},
		{"hello", navNone, 0},
		{"<3", navNone, 0},
		{"", navNone, 0},
	}
	for _, tc := range cases {
		kind, target := parseNavigation(tc.message)
		if kind != tc.kind || target != tc.target {
			t.Errorf("parseNavigation(%q) = (%v, %d), want (%v, %d)",
				tc.message, kind, target, tc.kind, tc.target)
		}
	}
}

func TestAddStatementSplices(t *testing.T) {
	tm := buildTestimony(t)
	tm.Advance() // at statement 1

	if err := tm.PrepareAdd(); err != nil {
		t.Fatal(err)
	}
	fields := make([]string, ocFieldCount)
	copy(fields, icFields(0, "Phoenix", "inserted"))
	tm.Record(fields, 10)

	if got := tm.Mode(); got != RecorderPlayback {
		t.Errorf("mode after one-shot add = %v, want playback", got)
	}
	st, err := tm.Current()
	if err != nil {
		t.Fatal(err)
	}
	if st[ocMessage] != "inserted" {
		t.Errorf("cursor statement = %q, want the inserted one", st[ocMessage])
	}
	st, _, _ = tm.Advance()
	if st[ocMessage] != "statement 2" {
		t.Errorf("statement after the insert = %q, want statement 2", st[ocMessage])
	}
}

func TestUpdateStatementReplaces(t *testing.T) {
	tm := buildTestimony(t)
	tm.Advance()

	if err := tm.PrepareUpdate(); err != nil {
		t.Fatal(err)
	}
	fields := make([]string, ocFieldCount)
	copy(fields, icFields(0, "Phoenix", "corrected"))
	tm.Record(fields, 10)

	st, err := tm.Current()
	if err != nil {
		t.Fatal(err)
	}
	if st[ocMessage] != "corrected" {
		t.Errorf("cursor statement = %q, want the correction", st[ocMessage])
	}
	if got := tm.Len(); got != 4 {
		t.Errorf("length changed by an update: %d, want 4", got)
	}
}

func TestUpdateAtTitleRejected(t *testing.T) {
	tm := buildTestimony(t)
	// cursor is 0, the title entry
	if err := tm.PrepareUpdate(); err == nil {
		t.Error("PrepareUpdate at the title entry succeeded")
	}
	if err := tm.DeleteStatement(); err == nil {
		t.Error("DeleteStatement at the title entry succeeded")
	}
}

func TestDeleteNeedsTwoStatements(t *testing.T) {
	var tm Testimony
	tm.StartRecording(10)
	record(t, &tm, "Title")
	record(t, &tm, "only statement")
	tm.StartPlayback()
	tm.Advance()

	if err := tm.DeleteStatement(); err == nil {
		t.Error("deleted the only statement; the testimony would be just a title")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tm := buildTestimony(t)
	if err := tm.Save(dir, "My Case"); err != nil {
		t.Fatal(err)
	}
	// the filename is lowercased
	if _, err := os.Stat(filepath.Join(dir, "my case.txt")); err != nil {
		t.Fatalf("saved file not where expected: %v", err)
	}

	var loaded Testimony
	if err := loaded.Load(dir, "My Case"); err != nil {
		t.Fatal(err)
	}
	if got, want := loaded.Len(), tm.Len(); got != want {
		t.Fatalf("loaded %d statements, want %d", got, want)
	}
	a, _ := tm.JumpTo(2)
	b, err := loaded.JumpTo(2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a[ocMessage], b[ocMessage]); diff != "" {
		t.Errorf("statement 2 mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsTraversal(t *testing.T) {
	var tm Testimony
	if err := tm.Load(t.TempDir(), "../../etc/passwd"); err == nil {
		t.Error("loading a traversal name succeeded")
	}
}
