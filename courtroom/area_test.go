package courtroom

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLockAutoInvitesOccupants(t *testing.T) {
	a := newArea(0, AreaConfig{Name: "Courtroom", Background: "default"})
	a.Join(3)
	a.Join(7)

	a.SetLock(LockLocked)

	for _, uid := range []int{3, 7} {
		if !a.Invited(uid) {
			t.Errorf("occupant %d was not auto-invited on lock", uid)
		}
	}
	if a.CanJoin(12) {
		t.Error("uninvited session can join a locked area")
	}
	if !a.CanJoin(3) {
		t.Error("invited session cannot join a locked area")
	}
}

func TestSpectatableAdmitsUninvited(t *testing.T) {
	a := newArea(0, AreaConfig{Name: "Courtroom", Background: "default"})
	a.Join(1)
	a.SetLock(LockSpectatable)
	if !a.CanJoin(9) {
		t.Error("spectate-only area refused entry; it should admit everyone")
	}
}

func TestUnlockClearsInvitations(t *testing.T) {
	a := newArea(0, AreaConfig{Name: "Courtroom", Background: "default"})
	a.Join(1)
	a.SetLock(LockLocked)
	a.SetLock(LockFree)
	if a.Invited(1) {
		t.Error("invitation survived an unlock")
	}
}

func TestLastOwnerRemovalResetsLock(t *testing.T) {
	a := newArea(0, AreaConfig{Name: "Courtroom", Background: "default"})
	a.Join(1)
	a.Join(2)
	a.AddOwner(1)
	a.AddOwner(2)
	a.SetLock(LockLocked)

	if _, statusReset := a.RemoveOwner(1); statusReset {
		t.Error("lock reset while a co-owner remained")
	}
	removed, statusReset := a.RemoveOwner(2)
	if !removed || !statusReset {
		t.Errorf("last owner removal: removed=%v statusReset=%v, want true/true", removed, statusReset)
	}
	if got := a.Lock(); got != LockFree {
		t.Errorf("lock after losing all owners = %v, want %v", got, LockFree)
	}
}

func TestLeaveReleasesEverything(t *testing.T) {
	a := newArea(0, AreaConfig{Name: "Courtroom", Background: "default"})
	a.Join(5)
	a.TakeCharacter(-1, 2)
	a.AddOwner(5)
	a.SetLock(LockLocked)

	ownerRemoved, statusReset := a.Leave(5, 2)
	if !ownerRemoved || !statusReset {
		t.Errorf("Leave of sole CM: ownerRemoved=%v statusReset=%v, want true/true", ownerRemoved, statusReset)
	}
	if a.CharacterTaken(2) {
		t.Error("character slot not released on leave")
	}
	if a.PlayerCount() != 0 {
		t.Errorf("player count after leave = %d, want 0", a.PlayerCount())
	}
}

func TestTakeCharacterConflict(t *testing.T) {
	a := newArea(0, AreaConfig{Name: "Courtroom", Background: "default"})
	if !a.TakeCharacter(-1, 1) {
		t.Fatal("claiming a free character failed")
	}
	if a.TakeCharacter(-1, 1) {
		t.Error("claiming a taken character succeeded")
	}
	// switching releases the old slot
	if !a.TakeCharacter(1, 0) {
		t.Fatal("switching characters failed")
	}
	if a.CharacterTaken(1) {
		t.Error("old slot still held after a switch")
	}
}

func TestCMClaimAndReset(t *testing.T) {
	s := newTestServer(t)
	cm := addTestClient(t, s, 0, 0)
	other := addTestClient(t, s, 0, 1)

	s.cmdCM(cm, nil)
	a := s.area(0)
	if !a.IsOwner(cm.uid) {
		t.Fatal("claimant did not become an owner")
	}

	// second claimant is refused while the area is owned
	s.cmdCM(other, nil)
	if a.IsOwner(other.uid) {
		t.Error("second claimant became an owner of an owned area")
	}

	s.cmdLock(cm, nil)
	if a.Lock() != LockLocked {
		t.Fatal("owner could not lock the area")
	}

	s.cmdUnCM(cm, nil)
	if a.HasOwners() {
		t.Error("owner set not empty after the only CM left")
	}
	if a.Lock() != LockFree {
		t.Error("lock survived the last owner leaving")
	}
}

func TestARUPCMVector(t *testing.T) {
	s := newTestServer(t)
	cm := addTestClient(t, s, 1, 2)
	s.area(1).AddOwner(cm.uid)

	p := s.arupVector(arupCM)
	want := []string{"2", "FREE", "[" + strconv.Itoa(cm.uid) + "] Maya"}
	if diff := cmp.Diff(want, p.Fields); diff != "" {
		t.Errorf("CM vector mismatch (-want +got):\n%s", diff)
	}
}

func TestMoveClientSpectatorFallback(t *testing.T) {
	s := newTestServer(t)
	mover := addTestClient(t, s, 0, 1)
	addTestClient(t, s, 1, 1) // same character taken at destination

	s.moveClient(mover, s.area(1))
	if got := mover.currentCharID(); got != -1 {
		t.Errorf("mover kept character %d; want spectator fallback", got)
	}
	if mover.currentAreaID() != 1 {
		t.Errorf("mover is in area %d, want 1", mover.currentAreaID())
	}
	if s.area(0).PlayerCount() != 0 {
		t.Error("source area still counts the mover")
	}
}

func TestCharsCheckMasking(t *testing.T) {
	s := newTestServer(t)
	c := addTestClient(t, s, 0, -1)
	c.mu.Lock()
	c.charcursed = true
	c.charcurse = []int{2}
	c.mu.Unlock()

	base := s.charsCheckFields(s.area(0))
	masked := s.maskCharsFor(c, base)
	want := []string{"-1", "-1", "0"}
	if diff := cmp.Diff(want, masked); diff != "" {
		t.Errorf("masked vector mismatch (-want +got):\n%s", diff)
	}
}

func TestServerFullTurnsAway(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < s.cfg.MaxPlayers; i++ {
		addTestClient(t, s, 0, -1)
	}
	if _, ok := s.takeUID(); ok {
		t.Error("session id granted beyond the player cap")
	}
}

func TestUIDReuseLowestFirst(t *testing.T) {
	s := newTestServer(t)
	var clients []*Client
	for i := 0; i < 4; i++ {
		clients = append(clients, addTestClient(t, s, 0, -1))
	}
	s.releaseUID(clients[1].uid)
	s.releaseUID(clients[0].uid)
	uid, ok := s.takeUID()
	if !ok || uid != 0 {
		t.Errorf("takeUID after releases = %d, want the lowest freed id 0", uid)
	}
}
