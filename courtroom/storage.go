////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                              Collaborator interfaces                               //
//                                                                                    //
// The service core does not know how bans, moderator accounts, or audit logs         //
// are persisted. It consumes all three through the narrow interfaces below;          //
// cmd/akashi wires in the sqlite-backed implementations. Every store is              //
// treated as fallible: a storage error degrades to "not banned" / "no role"          //
// rather than blocking or crashing the server (the failure is logged, the            //
// client is served).                                                                 //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"time"

	"github.com/AttorneyOnline/akashi-sub000/acl"
)

// Ban is one ban record as the core hands it to the store.
type Ban struct {
	IPID      string
	HWID      string
	Reason    string
	Moderator string
	Until     time.Time // zero means permanent
}

// BanStore answers "is this identity banned" and records new bans.
type BanStore interface {
	// IsBanned checks both identifiers; either one matching an active ban
	// is sufficient. The reason string is shown to the rejected client.
	IsBanned(ipid, hwid string) (bool, string, error)

	RecordBan(b Ban) error
}

// UserStore holds moderator accounts for advanced auth mode.
type UserStore interface {
	// Authenticate verifies a username/password pair.
	Authenticate(username, password string) (bool, error)

	// RoleMask returns the stored permission mask for a username.
	RoleMask(username string) (acl.Permission, error)

	// SetRoleMask replaces a user's permission mask (MODIFY_USERS gated
	// at the command layer).
	SetRoleMask(username string, mask acl.Permission) error
}

// AuditLogger is the fire-and-forget sink for the server's audit trail.
// Implementations must never block the calling handler.
type AuditLogger interface {
	IC(area, character, message string)
	OOC(area, name, message string)
	Command(area, name, command string, args []string)
	ModCall(id, area, name, reason string)
	BanAction(moderator, ipid, reason string)
	Connect(ipid, addr string)
	Disconnect(ipid string)
}

// nopAudit is used when no sink is wired in (tests, mostly).
type nopAudit struct{}

func (nopAudit) IC(string, string, string)               {}
func (nopAudit) OOC(string, string, string)              {}
func (nopAudit) Command(string, string, string, []string) {}
func (nopAudit) ModCall(string, string, string, string)  {}
func (nopAudit) BanAction(string, string, string)        {}
func (nopAudit) Connect(string, string)                  {}
func (nopAudit) Disconnect(string)                       {}
