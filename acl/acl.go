////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                   Permissions                                      //
//                                                                                    //
// Bitmask role model for moderator permissions. Each named permission occupies       //
// one bit of a 64-bit mask; a user's stored mask is tested against the mask a        //
// packet handler or OOC command requires. The name<->bit mapping is exposed as       //
// pure functions for use by config and command parsing only; the checks              //
// themselves never go through strings.                                               //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package acl

import "strings"

// Permission is a set of permission bits.
type Permission uint64

const (
	Kick Permission = 1 << iota
	Ban
	BGLock
	ModifyUsers
	CM
	GlobalTimer
	EviMod
	MOTD
	Announce
	ModChat
	Mute
	UnCM
	SaveTest
	ForceCharSelect
	BypassLocks
	IgnoreBGList
	SendNotice
	Jukebox
)

// None is the empty mask; an operation requiring None is public.
const None Permission = 0

// Super is every bit set. Super must always be compared by equality, never
// by bitwise AND: a mask ANDed against all-ones is nonzero for any nonempty
// mask, which would make every moderator a super-user.
const Super Permission = ^Permission(0)

var byName = map[string]Permission{
	"NONE":            None,
	"KICK":            Kick,
	"BAN":             Ban,
	"BGLOCK":          BGLock,
	"MODIFY_USERS":    ModifyUsers,
	"CM":              CM,
	"GLOBAL_TIMER":    GlobalTimer,
	"EVI_MOD":         EviMod,
	"MOTD":            MOTD,
	"ANNOUNCE":        Announce,
	"MODCHAT":         ModChat,
	"MUTE":            Mute,
	"UNCM":            UnCM,
	"SAVETEST":        SaveTest,
	"FORCE_CHARSELECT": ForceCharSelect,
	"BYPASS_LOCKS":    BypassLocks,
	"IGNORE_BGLIST":   IgnoreBGList,
	"SEND_NOTICE":     SendNotice,
	"JUKEBOX":         Jukebox,
	"SUPER":           Super,
}

var ordered = []string{
	"KICK", "BAN", "BGLOCK", "MODIFY_USERS", "CM", "GLOBAL_TIMER",
	"EVI_MOD", "MOTD", "ANNOUNCE", "MODCHAT", "MUTE", "UNCM", "SAVETEST",
	"FORCE_CHARSELECT", "BYPASS_LOCKS", "IGNORE_BGLIST", "SEND_NOTICE",
	"JUKEBOX",
}

// FromName resolves a permission name (case-insensitive) to its bit.
func FromName(name string) (Permission, bool) {
	p, ok := byName[strings.ToUpper(name)]
	return p, ok
}

// Names expands a mask into the names of the individual bits it carries.
// Super reports as just "SUPER"; None as an empty list.
func Names(mask Permission) []string {
	if mask == Super {
		return []string{"SUPER"}
	}
	var names []string
	for _, n := range ordered {
		if mask&byName[n] != 0 {
			names = append(names, n)
		}
	}
	return names
}

// Check reports whether a role mask satisfies a required mask. This is the
// pure-mask half of the permission test; area-local CM ownership and the
// authenticated/simple-auth gates live with the session, which consults its
// area before falling through to here.
//
//   - a requirement of None is always satisfied,
//   - a mask of Super satisfies everything,
//   - a requirement of Super is satisfied by nothing else (equality, per
//     the note on Super above),
//   - otherwise any overlapping bit satisfies.
func Check(mask, required Permission) bool {
	if required == None {
		return true
	}
	if mask == Super {
		return true
	}
	if required == Super {
		return false
	}
	return mask&required != 0
}
