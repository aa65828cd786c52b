////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                Moderation Commands                                 //
//                                                                                    //
// Commands gated behind moderator permissions: the mute family, client               //
// blocks, kicks and bans, the MOTD, announcements, and account roles.                //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AttorneyOnline/akashi-sub000/acl"
	"github.com/AttorneyOnline/akashi-sub000/packet"
)

// setClientFlag is the shared body of the mute-family commands: resolve
// the target, flip one flag, tell both parties.
func (s *Server) setClientFlag(c *Client, arg string, set func(*Client), targetMsg, senderVerb string) {
	target := s.targetByUID(c, arg)
	if target == nil {
		return
	}
	target.mu.Lock()
	set(target)
	target.mu.Unlock()
	if targetMsg != "" {
		target.sendServerMessage(targetMsg)
	}
	c.sendServerMessage(senderVerb + " " + target.displayName() + ".")
}

func (s *Server) cmdMute(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.muted = true },
		"You have been muted in IC chat.", "Muted")
}

func (s *Server) cmdUnmute(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.muted = false },
		"You are no longer muted in IC chat.", "Unmuted")
}

func (s *Server) cmdOOCMute(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.oocMuted = true },
		"", "OOC-muted")
}

func (s *Server) cmdOOCUnmute(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.oocMuted = false },
		"You are no longer muted in OOC chat.", "OOC-unmuted")
}

func (s *Server) cmdGimp(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.gimped = true }, "", "Gimped")
}

func (s *Server) cmdUngimp(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.gimped = false }, "", "Ungimped")
}

func (s *Server) cmdShake(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.shaken = true }, "", "Shook")
}

func (s *Server) cmdUnshake(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.shaken = false }, "", "Unshook")
}

func (s *Server) cmdDisemvowel(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.disemvoweled = true }, "", "Disemvoweled")
}

func (s *Server) cmdUndisemvowel(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.disemvoweled = false }, "", "Undisemvoweled")
}

func (s *Server) cmdBlockDJ(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.djBlocked = true },
		"You have been blocked from changing the music.", "DJ-blocked")
}

func (s *Server) cmdUnblockDJ(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.djBlocked = false },
		"You may change the music again.", "Unblocked")
}

func (s *Server) cmdBlockWTCE(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.wtceBlocked = true },
		"You have been blocked from using the judge controls.", "WTCE-blocked")
}

func (s *Server) cmdUnblockWTCE(c *Client, args []string) {
	s.setClientFlag(c, args[0], func(t *Client) { t.wtceBlocked = false },
		"You may use the judge controls again.", "Unblocked")
}

// cmdCharcurse restricts a session to a list of character ids; with no
// list it locks the target to their current character. The target is
// sent back to character selection so the masked availability vector
// takes effect immediately.
func (s *Server) cmdCharcurse(c *Client, args []string) {
	target := s.targetByUID(c, args[0])
	if target == nil {
		return
	}

	var allowed []int
	for _, arg := range args[1:] {
		id, err := strconv.Atoi(arg)
		if err != nil || id < 0 || id >= len(s.cfg.Characters) {
			c.sendServerMessage("Invalid character id: " + arg)
			return
		}
		allowed = append(allowed, id)
	}
	if len(allowed) == 0 {
		if cur := target.currentCharID(); cur >= 0 {
			allowed = []int{cur}
		}
	}

	target.mu.Lock()
	target.charcursed = true
	target.charcurse = allowed
	target.mu.Unlock()

	target.sendServerMessage("You have been charcursed.")
	c.sendServerMessage("Charcursed " + target.displayName() + ".")
	s.broadcastCharsCheck(target.Area())
}

func (s *Server) cmdUncharcurse(c *Client, args []string) {
	target := s.targetByUID(c, args[0])
	if target == nil {
		return
	}
	target.mu.Lock()
	target.charcursed = false
	target.charcurse = nil
	target.mu.Unlock()
	target.sendServerMessage("You are no longer charcursed.")
	c.sendServerMessage("Uncharcursed " + target.displayName() + ".")
	s.broadcastCharsCheck(target.Area())
}

func (s *Server) cmdKick(c *Client, args []string) {
	target := s.targetByUID(c, args[0])
	if target == nil {
		return
	}
	reason := "No reason given."
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}
	target.Send(packet.New("KK", reason))
	target.Close()
	c.sendServerMessage("Kicked " + target.displayName() + ".")
	c.log.WithField("target", target.ipid).Infof("kicked: %s", reason)
}

// cmdBan records a ban and disconnects every session matching the
// identity. Duration is minutes, or "perma".
func (s *Server) cmdBan(c *Client, args []string) {
	ipid := args[0]
	reason := strings.Join(args[2:], " ")

	var until time.Time
	if !strings.EqualFold(args[1], "perma") {
		minutes, err := strconv.Atoi(args[1])
		if err != nil || minutes <= 0 {
			c.sendServerMessage("Invalid duration; give minutes or \"perma\".")
			return
		}
		until = time.Now().Add(time.Duration(minutes) * time.Minute)
	}

	if s.bans == nil {
		c.sendServerMessage("No ban store is configured.")
		return
	}
	ban := Ban{IPID: ipid, Reason: reason, Moderator: c.displayName(), Until: until}
	for _, cl := range s.allClients() {
		if cl.ipid == ipid {
			cl.mu.Lock()
			ban.HWID = cl.hwid
			cl.mu.Unlock()
			break
		}
	}
	if err := s.bans.RecordBan(ban); err != nil {
		c.sendServerMessage("Could not record the ban: " + err.Error())
		return
	}
	s.audit.BanAction(c.displayName(), ipid, reason)

	kicked := 0
	for _, cl := range s.allClients() {
		if cl.ipid == ipid {
			cl.Send(packet.New("KB", reason))
			cl.Close()
			kicked++
		}
	}
	c.sendServerMessage(fmt.Sprintf("Banned %s (%d session(s) disconnected).", ipid, kicked))
}

func (s *Server) cmdSetMOTD(c *Client, args []string) {
	motd := strings.Join(args, " ")
	s.mu.Lock()
	s.motd = motd
	s.mu.Unlock()
	c.sendServerMessage("MOTD updated.")
}

func (s *Server) cmdAnnounce(c *Client, args []string) {
	message := strings.Join(args, " ")
	s.broadcastAll(packet.New("CT", s.cfg.Name,
		"=== Announcement ===\n"+message+"\n====================", "1"))
}

func (s *Server) cmdModChat(c *Client, args []string) {
	if c.isOOCMuted() {
		c.sendServerMessage("You are muted in OOC chat.")
		return
	}
	message := strings.Join(args, " ")
	s.broadcastToModerators(packet.New("CT", "[M] "+c.displayName(), message, "0"))
}

// cmdSetRole replaces a stored account's permission mask with the named
// permissions, comma-separated; "none" clears it.
func (s *Server) cmdSetRole(c *Client, args []string) {
	if s.users == nil {
		c.sendServerMessage("No user store is configured.")
		return
	}
	mask := acl.None
	if !strings.EqualFold(args[1], "none") {
		for _, name := range strings.Split(args[1], ",") {
			perm, ok := acl.FromName(name)
			if !ok {
				c.sendServerMessage("Unknown permission: " + name)
				return
			}
			mask |= perm
		}
	}
	if err := s.users.SetRoleMask(args[0], mask); err != nil {
		c.sendServerMessage("Could not update the role: " + err.Error())
		return
	}
	c.sendServerMessage("Updated permissions for " + args[0] + ".")
}
