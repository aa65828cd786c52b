////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                              Area Management Commands                              //
//                                                                                    //
// Case-manager commands: ownership, invitations, the lock machine, area              //
// toggles, backgrounds, and timers. Everything that mutates ownership or             //
// lock state runs under arupMu together with its broadcast.                          //
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

// cmdCM claims case-manager ownership of the current area. With no
// arguments the sender claims it for themselves, which only works in an
// unowned area; an existing CM can add co-owners by session id.
func (s *Server) cmdCM(c *Client, args []string) {
	a := c.Area()

	if len(args) == 0 {
		if a.Protected() && !c.checkPermission(acl.CM) {
			c.sendServerMessage("This area's case manager can only be assigned by a moderator.")
			return
		}
		s.arupMu.Lock()
		defer s.arupMu.Unlock()
		if a.HasOwners() && !a.IsOwner(c.uid) {
			c.sendServerMessage("This area already has a case manager.")
			return
		}
		if !a.AddOwner(c.uid) {
			c.sendServerMessage("You are already a case manager here.")
			return
		}
		s.broadcastARUP(arupCM)
		s.sendServerMessageToArea(a.Index(), c.displayName()+" is now a case manager.")
		return
	}

	if !c.checkPermission(acl.CM) {
		c.sendServerMessage("You do not have permission to use that command.")
		return
	}
	for _, arg := range args {
		target := s.targetByUID(c, arg)
		if target == nil {
			continue
		}
		if !target.joinedTo(a.Index()) {
			c.sendServerMessage("Session " + arg + " is not in this area.")
			continue
		}
		s.arupMu.Lock()
		added := a.AddOwner(target.uid)
		if added {
			s.broadcastARUP(arupCM)
		}
		s.arupMu.Unlock()
		if added {
			s.sendServerMessageToArea(a.Index(), target.displayName()+" is now a case manager.")
		}
	}
}

// cmdUnCM drops ownership. Removing the last owner resets the lock to
// FREE, and both vectors go out while no other mutation can interleave.
func (s *Server) cmdUnCM(c *Client, args []string) {
	a := c.Area()
	target := c
	if len(args) > 0 {
		if !c.checkPermission(acl.UnCM) {
			c.sendServerMessage("You do not have permission to use that command.")
			return
		}
		if target = s.targetByUID(c, args[0]); target == nil {
			return
		}
	}

	s.arupMu.Lock()
	removed, statusReset := a.RemoveOwner(target.uid)
	if removed {
		s.broadcastARUP(arupCM)
	}
	if statusReset {
		s.broadcastARUP(arupLock)
	}
	s.arupMu.Unlock()

	if !removed {
		c.sendServerMessage("That session is not a case manager here.")
		return
	}
	s.sendServerMessageToArea(a.Index(), target.displayName()+" is no longer a case manager.")
}

func (s *Server) cmdInvite(c *Client, args []string) {
	target := s.targetByUID(c, args[0])
	if target == nil {
		return
	}
	if !c.Area().Invite(target.uid) {
		c.sendServerMessage("That session is already invited.")
		return
	}
	target.sendServerMessage("You have been invited to " + c.Area().Name() + ".")
	c.sendServerMessage("Invited " + target.displayName() + ".")
}

func (s *Server) cmdUninvite(c *Client, args []string) {
	target := s.targetByUID(c, args[0])
	if target == nil {
		return
	}
	if !c.Area().Uninvite(target.uid) {
		c.sendServerMessage("That session is not invited.")
		return
	}
	c.sendServerMessage("Uninvited " + target.displayName() + ".")
}

// setLock changes the lock state and announces it. Entering LOCKED or
// SPECTATABLE auto-invites current occupants inside Area.SetLock, so
// the transition never strands anyone already present.
func (s *Server) setLock(c *Client, status LockStatus, notice string) {
	a := c.Area()
	s.arupMu.Lock()
	a.SetLock(status)
	s.broadcastARUP(arupLock)
	s.arupMu.Unlock()
	s.sendServerMessageToArea(a.Index(), notice)
}

func (s *Server) cmdLock(c *Client, args []string) {
	s.setLock(c, LockLocked, "This area is now locked.")
}

func (s *Server) cmdSpectatable(c *Client, args []string) {
	s.setLock(c, LockSpectatable, "This area is now spectate-only.")
}

func (s *Server) cmdUnlock(c *Client, args []string) {
	s.setLock(c, LockFree, "This area is now open.")
}

var validStatuses = map[string]string{
	"idle":                "IDLE",
	"rp":                  "RP",
	"casing":              "CASING",
	"looking-for-players": "LOOKING-FOR-PLAYERS",
	"lfp":                 "LOOKING-FOR-PLAYERS",
	"recess":              "RECESS",
	"gaming":              "GAMING",
}

func (s *Server) cmdStatus(c *Client, args []string) {
	status, ok := validStatuses[strings.ToLower(args[0])]
	if !ok {
		c.sendServerMessage("Invalid status. Allowed: idle, rp, casing, looking-for-players, recess, gaming.")
		return
	}
	a := c.Area()
	s.arupMu.Lock()
	a.SetStatus(status)
	s.broadcastARUP(arupStatus)
	s.arupMu.Unlock()
	s.sendServerMessageToArea(a.Index(), c.displayName()+" set the status to "+status+".")
}

// cmdBackground changes the area background. The configured background
// list is advisory for sessions holding IGNORE_BGLIST; everyone else is
// held to it.
func (s *Server) cmdBackground(c *Client, args []string) {
	bg := strings.Join(args, " ")
	if len(s.cfg.Backgrounds) > 0 && !c.checkPermission(acl.IgnoreBGList) {
		known := false
		for _, b := range s.cfg.Backgrounds {
			if strings.EqualFold(b, bg) {
				known = true
				break
			}
		}
		if !known {
			c.sendServerMessage("Unknown background: " + bg)
			return
		}
	}
	a := c.Area()
	if !a.SetBackground(bg) {
		c.sendServerMessage("The background is locked in this area.")
		return
	}
	s.broadcastToArea(a.Index(), packet.New("BN", bg))
	s.sendServerMessageToArea(a.Index(), c.displayName()+" changed the background to "+bg+".")
}

func (s *Server) cmdBGLock(c *Client, args []string) {
	c.Area().SetBackgroundLocked(true)
	s.sendServerMessageToArea(c.currentAreaID(), "The background is now locked.")
}

func (s *Server) cmdBGUnlock(c *Client, args []string) {
	c.Area().SetBackgroundLocked(false)
	s.sendServerMessageToArea(c.currentAreaID(), "The background is now unlocked.")
}

func (s *Server) cmdForcePos(c *Client, args []string) {
	pos := strings.ToLower(args[0])
	if !validPositions[pos] {
		c.sendServerMessage("Invalid position.")
		return
	}
	target := s.targetByUID(c, args[1])
	if target == nil {
		return
	}
	target.mu.Lock()
	target.pos = pos
	target.mu.Unlock()
	target.sendServerMessage("You have been moved to " + pos + ".")
	c.sendServerMessage("Moved " + target.displayName() + " to " + pos + ".")
}

//
// toggles
//

func (s *Server) announceToggle(c *Client, what string, on bool) {
	state := "disabled"
	if on {
		state = "enabled"
	}
	s.sendServerMessageToArea(c.currentAreaID(), what+" is now "+state+" in this area.")
}

func (s *Server) cmdToggleMusic(c *Client, args []string) {
	s.announceToggle(c, "Free music", c.Area().ToggleMusic())
}

func (s *Server) cmdToggleIniswap(c *Client, args []string) {
	s.announceToggle(c, "INI-swapping", c.Area().ToggleIniswap())
}

func (s *Server) cmdToggleBlankpost(c *Client, args []string) {
	s.announceToggle(c, "Blank posting", c.Area().ToggleBlankpost())
}

func (s *Server) cmdToggleShownames(c *Client, args []string) {
	s.announceToggle(c, "Custom shownames", c.Area().ToggleShownames())
}

func (s *Server) cmdToggleImmediate(c *Client, args []string) {
	s.announceToggle(c, "Forced immediate text", c.Area().ToggleForceImmediate())
}

func (s *Server) cmdToggleShouts(c *Client, args []string) {
	s.announceToggle(c, "Shouting", c.Area().ToggleShouts())
}

func (s *Server) cmdEvidenceSwap(c *Client, args []string) {
	i, err1 := strconv.Atoi(args[0])
	j, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		c.sendServerMessage("Invalid syntax: evidence positions must be numbers.")
		return
	}
	a := c.Area()
	if !a.SwapEvidence(i, j) {
		c.sendServerMessage("No such evidence positions.")
		return
	}
	s.broadcastEvidence(a)
}

func (s *Server) cmdNotecardReveal(c *Client, args []string) {
	cards := c.Area().RevealNotecards()
	if cards == "" {
		c.sendServerMessage("There are no notecards to reveal.")
		return
	}
	s.sendServerMessageToArea(c.currentAreaID(), "Notecards revealed:\n"+cards)
}

func (s *Server) cmdPlay(c *Client, args []string) {
	track := strings.Join(args, " ")
	a := c.Area()
	s.broadcastToArea(a.Index(), packet.New("MC", track, strconv.Itoa(c.currentCharID())))
	a.SetCurrentMusic(track, c.displayName())
}

//
// timers
//

// cmdTimer drives the shared countdown clocks. Timer 0 is server-wide
// and gated behind GLOBAL_TIMER; 1 through 4 belong to the area and its
// case managers. With only an id, reports the remaining time.
func (s *Server) cmdTimer(c *Client, args []string) {
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 0 || id > areaTimerCount {
		c.sendServerMessage("Invalid timer id; use 0 (global) or 1-4.")
		return
	}

	var t *Timer
	var required acl.Permission
	if id == globalTimerID {
		t = s.globalTimer
		required = acl.GlobalTimer
	} else {
		t = c.Area().Timer(id - 1)
		required = acl.CM
	}

	if len(args) == 1 {
		if !t.Running() {
			c.sendServerMessage(fmt.Sprintf("Timer %d is not running.", id))
			return
		}
		c.sendServerMessage(fmt.Sprintf("Timer %d has %s remaining.", id, t.Remaining().Round(time.Second)))
		return
	}

	if !c.checkPermission(required) {
		c.sendServerMessage("You do not have permission to use that command.")
		return
	}

	timerID := strconv.Itoa(id)
	areaID := c.currentAreaID()
	switch args[1] {
	case "start":
		if len(args) < 3 {
			c.sendServerMessage("Invalid syntax. Usage: /timer <id> start <seconds>")
			return
		}
		secs, err := strconv.Atoi(args[2])
		if err != nil || secs <= 0 {
			c.sendServerMessage("Invalid duration.")
			return
		}
		d := time.Duration(secs) * time.Second
		t.Start(d, func() { s.timerExpired(id, areaID) })
		s.sendTimerUpdate(id, areaID, packet.New("TI", timerID, tiShow))
		s.sendTimerUpdate(id, areaID, packet.New("TI", timerID, tiStart, strconv.FormatInt(d.Milliseconds(), 10)))
	case "stop":
		t.Stop()
		s.sendTimerUpdate(id, areaID, packet.New("TI", timerID, tiStop))
		s.sendTimerUpdate(id, areaID, packet.New("TI", timerID, tiHide))
	default:
		c.sendServerMessage("Invalid syntax. Usage: /timer <id> [start <seconds>|stop]")
	}
}

// sendTimerUpdate fans a TI packet out to the timer's audience: the
// whole server for the global clock, one area otherwise.
func (s *Server) sendTimerUpdate(id, areaID int, p *packet.Packet) {
	if id == globalTimerID {
		s.broadcastAll(p)
		return
	}
	s.broadcastToArea(areaID, p)
}

func (s *Server) timerExpired(id, areaID int) {
	timerID := strconv.Itoa(id)
	s.sendTimerUpdate(id, areaID, packet.New("TI", timerID, tiStop))
	s.sendTimerUpdate(id, areaID, packet.New("TI", timerID, tiHide))
	if id == globalTimerID {
		s.broadcastAll(packet.New("CT", s.cfg.Name, "The global timer has expired.", "1"))
		return
	}
	s.sendServerMessageToArea(areaID, fmt.Sprintf("Timer %d has expired.", id))
}
