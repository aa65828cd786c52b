//
// Unit tests for the wire codec and stream reassembly.
//

package packet

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"plain text",
		"pound # sign",
		"percent % sign",
		"dollar $ sign",
		"ampersand & sign",
		"#%$&",
		"a#b%c$d&e",
		"<num> already looks escaped",
		"",
	}
	for _, c := range cases {
		if got := Unescape(Escape(c)); got != c {
			t.Errorf("round trip of %q yielded %q", c, got)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := New("MS", "1", "pre", "Phoenix", "normal", "message with # and % and $ and &", "def")
	wire := in.String()
	if strings.Count(wire, "#") != len(in.Fields)+1 {
		t.Errorf("delimiter characters leaked into encoded fields: %q", wire)
	}
	if !strings.HasSuffix(wire, "#%") {
		t.Errorf("encoded packet missing terminator: %q", wire)
	}

	out, err := Decode(wire)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("decode(encode(p)) != p: %s", diff)
	}
}

func TestEncodeNoFields(t *testing.T) {
	if got := New("askchaa").String(); got != "askchaa#%" {
		t.Errorf("zero-field packet encoded as %q", got)
	}
}

func TestEvidenceAmpersandExempt(t *testing.T) {
	p := New("LE", "name&desc&pic #1")
	wire := p.String()
	if !strings.Contains(wire, "name&desc&pic") {
		t.Errorf("LE fields must keep literal '&': %q", wire)
	}
	if strings.Contains(wire, "pic #1") {
		t.Errorf("LE fields must still escape '#': %q", wire)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, raw := range []string{"", "%", "#encrypted#data#", "#%"} {
		if _, err := Decode(raw); err == nil {
			t.Errorf("Decode(%q) should have failed", raw)
		}
	}
}

func TestSplitterSingle(t *testing.T) {
	var s Splitter
	segs, err := s.Feed([]byte("HI#1234#%"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"HI#1234#"}
	if diff := cmp.Diff(want, segs); diff != "" {
		t.Errorf("unexpected segments: %s", diff)
	}
	if s.Pending() != 0 {
		t.Errorf("expected no pending bytes, have %d", s.Pending())
	}
}

func TestSplitterMultipleInOneRead(t *testing.T) {
	var s Splitter
	segs, err := s.Feed([]byte("CH#1#%HP#1#5#%RT#testimony1#%"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"CH#1#", "HP#1#5#", "RT#testimony1#"}
	if diff := cmp.Diff(want, segs); diff != "" {
		t.Errorf("segments out of order or missing: %s", diff)
	}
}

func TestSplitterPartialAcrossReads(t *testing.T) {
	var s Splitter
	segs, err := s.Feed([]byte("MS#1#pre#Phoe"))
	if err != nil {
		t.Fatal(err)
	}
	if segs != nil {
		t.Errorf("partial read produced segments: %v", segs)
	}
	if s.Pending() == 0 {
		t.Error("partial bytes were not retained")
	}

	segs, err = s.Feed([]byte("nix#normal#%CH#1#%"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"MS#1#pre#Phoenix#normal#", "CH#1#"}
	if diff := cmp.Diff(want, segs); diff != "" {
		t.Errorf("reassembly across reads failed: %s", diff)
	}
}

func TestSplitterOverflow(t *testing.T) {
	var s Splitter
	junk := make([]byte, MaxBufferedBytes+1)
	for i := range junk {
		junk[i] = 'A'
	}
	if _, err := s.Feed(junk); err != ErrOverflow {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	// the splitter must be usable for a fresh connection after overflow
	if s.Pending() != 0 {
		t.Errorf("overflowed splitter retained %d bytes", s.Pending())
	}
}
