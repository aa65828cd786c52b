package courtroom

import (
	"io"
	"strconv"
	"sync"
	"testing"
)

// testConn is a Conn that never delivers input and remembers writes.
type testConn struct {
	mu     sync.Mutex
	out    []string
	closed bool
}

func (t *testConn) Read() ([]byte, error) { return nil, io.EOF }

func (t *testConn) Write(data string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.out = append(t.out, data)
	return nil
}

func (t *testConn) PeerAddr() string { return "198.51.100.7" }

func (t *testConn) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := Config{
		Name:       "testserver",
		MaxPlayers: 10,
		Characters: []string{"Phoenix", "Edgeworth", "Maya"},
		Music:      []string{"objection.opus", "trial.opus"},
		Areas: []AreaConfig{
			{Name: "Courtroom 1", Background: "default"},
			{Name: "Courtroom 2", Background: "default"},
		},
	}
	return NewServer(cfg, nil, Options{})
}

// addTestClient registers a joined session directly, bypassing the
// network handshake. charID -1 joins as a spectator.
func addTestClient(t *testing.T, s *Server, areaID, charID int) *Client {
	t.Helper()
	c := newClient(s, &testConn{})
	uid, ok := s.takeUID()
	if !ok {
		t.Fatal("session id pool exhausted")
	}
	c.uid = uid
	s.mu.Lock()
	s.clients[c] = true
	s.byUID[uid] = c
	s.mu.Unlock()

	c.joined = true
	c.areaID = areaID
	c.charID = charID
	c.oocName = "tester" + strconv.Itoa(uid)

	a := s.area(areaID)
	a.Join(uid)
	if charID >= 0 && !a.TakeCharacter(-1, charID) {
		t.Fatalf("character %d already taken in area %d", charID, areaID)
	}
	return c
}

// queuedMessages drains everything queued for a client's socket feeder.
func queuedMessages(c *Client) []string {
	var out []string
	for {
		select {
		case m := <-c.comm:
			out = append(out, m)
		default:
			return out
		}
	}
}

// icFields builds a minimal valid 2.6-style MS vector.
func icFields(charID int, name, message string) []string {
	f := make([]string, icMinFields)
	f[icDeskMod] = "0"
	f[icCharName] = name
	f[icEmote] = "normal"
	f[icMessage] = message
	f[icSide] = "wit"
	f[icEmoteMod] = "0"
	f[icCharID] = strconv.Itoa(charID)
	f[icSFXDelay] = "0"
	f[icObjection] = "0"
	f[icEvidence] = "0"
	f[icFlip] = "0"
	f[icRealization] = "0"
	f[icColor] = "0"
	return f
}
