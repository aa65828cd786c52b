//
// Unit tests for the permission bitmask model.
//

package acl

import "testing"

func TestCheckNoneAlwaysSatisfied(t *testing.T) {
	for _, mask := range []Permission{None, Kick, Kick | Ban, Super} {
		if !Check(mask, None) {
			t.Errorf("Check(%b, None) = false", mask)
		}
	}
}

func TestCheckSuperByEqualityOnly(t *testing.T) {
	if !Check(Super, Super) {
		t.Error("Super must satisfy Super")
	}
	almost := Super &^ Kick
	if Check(almost, Super) {
		t.Error("Super-minus-one-bit must not satisfy Super")
	}
	if Check(Kick|Ban|Mute, Super) {
		t.Error("ordinary masks must not satisfy Super")
	}
}

func TestCheckSuperSatisfiesEverything(t *testing.T) {
	for _, req := range []Permission{Kick, Ban, CM, ModifyUsers, Jukebox} {
		if !Check(Super, req) {
			t.Errorf("Super failed to satisfy %v", Names(req))
		}
	}
}

func TestCheckOverlap(t *testing.T) {
	mask := Kick | Mute
	if !Check(mask, Kick) {
		t.Error("mask with KICK bit must satisfy KICK")
	}
	if !Check(mask, Kick|Ban) {
		t.Error("any overlapping bit satisfies a multi-bit requirement")
	}
	if Check(mask, Ban) {
		t.Error("mask without BAN bit must not satisfy BAN")
	}
	if Check(None, Kick) {
		t.Error("empty mask satisfies nothing but None")
	}
}

func TestFromName(t *testing.T) {
	p, ok := FromName("modify_users")
	if !ok || p != ModifyUsers {
		t.Errorf("FromName(modify_users) = %v, %v", p, ok)
	}
	if _, ok := FromName("NO_SUCH_FLAG"); ok {
		t.Error("unknown permission name resolved")
	}
	if p, _ := FromName("SUPER"); p != Super {
		t.Error("SUPER did not resolve to the all-bits mask")
	}
}

func TestNames(t *testing.T) {
	got := Names(Kick | Mute)
	if len(got) != 2 || got[0] != "KICK" || got[1] != "MUTE" {
		t.Errorf("Names(KICK|MUTE) = %v", got)
	}
	if got := Names(Super); len(got) != 1 || got[0] != "SUPER" {
		t.Errorf("Names(Super) = %v", got)
	}
	if got := Names(None); got != nil {
		t.Errorf("Names(None) = %v", got)
	}
}
