package courtroom

import (
	"strings"
	"testing"

	"github.com/AttorneyOnline/akashi-sub000/acl"
	"github.com/AttorneyOnline/akashi-sub000/packet"
)

func TestUnknownHeaderIgnored(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	queuedMessages(c)

	s.dispatch(c, packet.New("NOPE", "whatever"))
	if got := queuedMessages(c); len(got) != 0 {
		t.Errorf("unknown header produced output: %v", got)
	}
}

func TestUnderArityDropped(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	listener := addTestClient(t, s, 0, 1)
	queuedMessages(listener)

	// a 3-field MS is far under the floor
	s.dispatch(c, packet.New("MS", "0", "", "Phoenix"))
	if got := queuedMessages(listener); len(got) != 0 {
		t.Errorf("under-arity MS reached the area: %v", got)
	}
}

func TestJoinGate(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	c.mu.Lock()
	c.joined = false
	c.mu.Unlock()
	listener := addTestClient(t, s, 0, 1)
	queuedMessages(listener)

	s.dispatch(c, packet.New("MS", icFields(0, "Phoenix", "too early")...))
	if got := queuedMessages(listener); len(got) != 0 {
		t.Errorf("pre-handshake MS reached the area: %v", got)
	}
}

func TestPermissionGateSilent(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	queuedMessages(c)

	// HP needs CM; c is neither owner nor authenticated
	s.dispatch(c, packet.New("HP", "1", "5"))
	if def, _ := s.area(0).HP(); def != 10 {
		t.Errorf("health bar changed to %d by an unprivileged session", def)
	}
	if got := queuedMessages(c); len(got) != 0 {
		t.Errorf("packet rejection produced a reply: %v", got)
	}
}

func TestICMessageBroadcast(t *testing.T) {
	s := newTestServer(t)
	speaker := addTestClient(t, s, 0, 0)
	listener := addTestClient(t, s, 0, 1)
	bystander := addTestClient(t, s, 1, 2)
	queuedMessages(speaker)
	queuedMessages(listener)
	queuedMessages(bystander)

	s.dispatch(speaker, packet.New("MS", icFields(0, "Phoenix", "Take that!")...))

	got := queuedMessages(listener)
	if len(got) != 1 || !strings.HasPrefix(got[0], "MS#") {
		t.Fatalf("area peer received %v, want one MS broadcast", got)
	}
	if !strings.Contains(got[0], "Take that!") {
		t.Errorf("broadcast %q does not carry the message", got[0])
	}
	if spoken := queuedMessages(speaker); len(spoken) != 1 {
		t.Errorf("speaker received %d packets, want their own message echoed", len(spoken))
	}
	if leaked := queuedMessages(bystander); len(leaked) != 0 {
		t.Errorf("IC message leaked into another area: %v", leaked)
	}
}

func TestOOCCommandRouting(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	queuedMessages(c)

	s.dispatch(c, packet.New("CT", "tester", "/unknowncommand"))
	got := queuedMessages(c)
	if len(got) != 1 || !strings.Contains(got[0], "Unknown command") {
		t.Errorf("unknown command reply = %v, want an Unknown command notice", got)
	}
}

func TestCommandPermissionDenied(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	queuedMessages(c)

	s.dispatch(c, packet.New("CT", "tester", "/ban 12345 perma spam"))
	got := queuedMessages(c)
	if len(got) != 1 || !strings.Contains(got[0], "permission") {
		t.Errorf("unprivileged /ban reply = %v, want a permission notice", got)
	}
}

func TestSimpleAuthLogin(t *testing.T) {
	s := newTestServer(t)
	s.cfg.ModPass = "hunter2"
	c := addTestClient(t, s, 0, 0)
	queuedMessages(c)

	s.dispatch(c, packet.New("CT", "tester", "/login wrongpass"))
	if c.isAuthenticated() {
		t.Fatal("wrong password authenticated")
	}
	queuedMessages(c)

	s.dispatch(c, packet.New("CT", "tester", "/login hunter2"))
	if !c.isAuthenticated() {
		t.Fatal("correct password did not authenticate")
	}
	// simple mode satisfies every permission check
	if !c.checkPermission(acl.Ban) {
		t.Error("authenticated simple-mode session failed a permission check")
	}
}

func TestKeepalive(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	queuedMessages(c)

	s.dispatch(c, packet.New("CH", "0"))
	got := queuedMessages(c)
	if len(got) != 1 || got[0] != "CHECK#%" {
		t.Errorf("CH reply = %v, want CHECK#%%", got)
	}
}

func TestMusicAreaMove(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	queuedMessages(c)

	s.dispatch(c, packet.New("MC", "Courtroom 2", "0"))
	if c.currentAreaID() != 1 {
		t.Errorf("session is in area %d after playing an area name, want 1", c.currentAreaID())
	}
}

func TestMusicSpoofDropped(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	listener := addTestClient(t, s, 0, 1)
	queuedMessages(listener)

	s.dispatch(c, packet.New("MC", "objection.opus", "1")) // not our char id
	if got := queuedMessages(listener); len(got) != 0 {
		t.Errorf("music change with a spoofed speaker went through: %v", got)
	}
}

func TestMusicAreaMoveBypassesLock(t *testing.T) {
	s := newTestServer(t)
	s.cfg.AuthMode = "advanced"
	c := addTestClient(t, s, 0, 0)
	s.area(1).SetLock(LockLocked)

	// uninvited and unprivileged: refused
	s.dispatch(c, packet.New("MC", "Courtroom 2", "0"))
	if c.currentAreaID() != 0 {
		t.Fatalf("unprivileged session entered a locked area")
	}

	c.mu.Lock()
	c.authenticated = true
	c.aclMask = acl.BypassLocks
	c.mu.Unlock()
	s.dispatch(c, packet.New("MC", "Courtroom 2", "0"))
	if c.currentAreaID() != 1 {
		t.Errorf("session with the lock-bypass bit is in area %d, want 1", c.currentAreaID())
	}
}

func TestMusicStopAlwaysKnown(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	listener := addTestClient(t, s, 0, 1)
	queuedMessages(listener)

	// not on the configured list, but every client ships it
	s.dispatch(c, packet.New("MC", "~stop.mp3", "0"))
	got := queuedMessages(listener)
	if len(got) != 1 || !strings.HasPrefix(got[0], "MC#~stop.mp3#") {
		t.Errorf("stop entry was not broadcast: %v", got)
	}
}

func TestMusicChangeRateLimited(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	listener := addTestClient(t, s, 0, 1)
	queuedMessages(c)
	queuedMessages(listener)

	const attempts = 20
	for i := 0; i < attempts; i++ {
		s.dispatch(c, packet.New("MC", "objection.opus", "0"))
	}
	if got := queuedMessages(listener); len(got) >= attempts {
		t.Errorf("all %d rapid music changes were broadcast", len(got))
	}
	throttled := false
	for _, msg := range queuedMessages(c) {
		if strings.Contains(msg, "changing the music too fast") {
			throttled = true
		}
	}
	if !throttled {
		t.Error("throttled session never heard why its changes stopped")
	}
}

func TestOOCMuteCoversGlobalChat(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	listener := addTestClient(t, s, 1, 1)
	queuedMessages(c)
	queuedMessages(listener)

	c.mu.Lock()
	c.oocMuted = true
	c.mu.Unlock()

	s.dispatch(c, packet.New("CT", "tester", "/g you can still hear me"))
	if got := queuedMessages(listener); len(got) != 0 {
		t.Errorf("OOC-muted session reached global chat: %v", got)
	}
	got := queuedMessages(c)
	if len(got) != 1 || !strings.Contains(got[0], "muted in OOC chat") {
		t.Errorf("muted sender received %v, want the mute notice", got)
	}
}

func TestCharPasswordEnforced(t *testing.T) {
	s := newTestServer(t)
	s.cfg.CharPasswords = map[string]string{"Edgeworth": "steel samurai"}
	c := addTestClient(t, s, 0, -1)
	queuedMessages(c)

	s.dispatch(c, packet.New("CC", "0", "1", ""))
	if c.currentCharID() != -1 {
		t.Fatal("password-protected character claimed without the password")
	}

	s.dispatch(c, packet.New("CC", "0", "1", "steel samurai"))
	if c.currentCharID() != 1 {
		t.Fatal("correct password in the claim packet was refused")
	}

	// the PW handshake packet works too
	other := addTestClient(t, s, 1, -1)
	s.dispatch(other, packet.New("PW", "steel samurai"))
	s.dispatch(other, packet.New("CC", "0", "1", ""))
	if other.currentCharID() != 1 {
		t.Error("password sent ahead via PW was not honored at claim time")
	}
}

func TestRecordingAcceptsWitnessSideVariants(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, 0)
	a := s.area(0)
	if err := a.Testimony().StartRecording(10); err != nil {
		t.Fatal(err)
	}

	fields := icFields(0, "Phoenix", "I saw everything.")
	fields[icSide] = "witness"
	s.dispatch(c, packet.New("MS", fields...))
	if got := a.Testimony().Len(); got != 1 {
		t.Errorf("witness-prefixed side produced %d recorded entries, want 1", got)
	}

	fields = icFields(0, "Phoenix", "Objection sustained.")
	fields[icSide] = "jud"
	s.dispatch(c, packet.New("MS", fields...))
	if got := a.Testimony().Len(); got != 1 {
		t.Errorf("non-witness side was recorded; log has %d entries", got)
	}
}
