////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                  Packet Handlers                                   //
//                                                                                    //
// One handler per wire header, in handshake order. The handshake runs               //
// HI → ID → askchaa → RC → RM → RD; everything after RD is live play.                //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AttorneyOnline/akashi-sub000/acl"
	"github.com/AttorneyOnline/akashi-sub000/packet"
)

//
// handshake
//

// handleHardwareID opens the handshake. The hardware id is the second
// ban dimension besides the address-derived ipid.
func (s *Server) handleHardwareID(c *Client, p *packet.Packet) {
	c.mu.Lock()
	c.hwid = p.Fields[0]
	c.mu.Unlock()

	if s.bans != nil {
		banned, reason, err := s.bans.IsBanned(c.ipid, p.Fields[0])
		if err != nil {
			c.log.Warnf("ban store unavailable: %v", err)
		} else if banned {
			c.Send(packet.New("BD", reason))
			c.Close()
			return
		}
	}
	c.Send(packet.New("ID", "0", SoftwareName, SoftwareVersion))
}

func (s *Server) handleSoftwareID(c *Client, p *packet.Packet) {
	c.mu.Lock()
	c.version = p.Fields[0] + " " + p.Fields[1]
	c.mu.Unlock()

	s.mu.RLock()
	players := len(s.byUID)
	s.mu.RUnlock()
	c.Send(packet.New("PN", strconv.Itoa(players), strconv.Itoa(s.cfg.MaxPlayers)))
	c.Send(packet.New("FL", featureList...))
}

// handleResourceCounts answers askchaa with the list sizes the client
// should expect, so it can show a loading bar.
func (s *Server) handleResourceCounts(c *Client, p *packet.Packet) {
	music := len(s.cfg.Areas) + len(s.cfg.Music)
	c.Send(packet.New("SI",
		strconv.Itoa(len(s.cfg.Characters)),
		"0",
		strconv.Itoa(music)))
}

func (s *Server) handleRequestChars(c *Client, p *packet.Packet) {
	c.Send(packet.New("SC", s.cfg.Characters...))
}

// handleRequestMusic sends the combined music list. Area names come
// first; clients render them as categories and double-clicking one is
// how players move between areas.
func (s *Server) handleRequestMusic(c *Client, p *packet.Packet) {
	list := append(s.areaNames(), s.cfg.Music...)
	c.Send(packet.New("SM", list...))
}

// handleDone finishes the handshake and drops the session into the
// first area as a spectator.
func (s *Server) handleDone(c *Client, p *packet.Packet) {
	if c.hasJoined() {
		return
	}
	c.mu.Lock()
	c.joined = true
	c.areaID = 0
	c.mu.Unlock()

	a := s.area(0)
	s.arupMu.Lock()
	a.Join(c.uid)
	s.broadcastARUP(arupPlayerCount)
	s.arupMu.Unlock()

	c.Send(packet.New("LE", a.EvidenceWire()...))
	def, pro := a.HP()
	c.Send(packet.New("HP", "1", strconv.Itoa(def)))
	c.Send(packet.New("HP", "2", strconv.Itoa(pro)))
	c.Send(packet.New("BN", a.Background()))
	c.Send(packet.New("DONE"))
	s.sendAllARUP(c)
	s.broadcastCharsCheck(a)

	s.mu.RLock()
	motd := s.motd
	s.mu.RUnlock()
	if motd != "" {
		c.sendServerMessage(motd)
	}
}

//
// characters
//

func (s *Server) handleCharPassword(c *Client, p *packet.Packet) {
	c.mu.Lock()
	c.charPassword = p.Fields[0]
	c.mu.Unlock()
}

// handleSelectChar claims a character slot in the session's area. A
// failed claim (out of range, taken, or forbidden by a charcurse) is
// dropped without a reply; the availability vector the client already
// has tells it why.
func (s *Server) handleSelectChar(c *Client, p *packet.Packet) {
	id, err := strconv.Atoi(p.Fields[1])
	if err != nil || id < -1 || id >= len(s.cfg.Characters) {
		return
	}
	if !c.mayUseCharacter(id) {
		return
	}
	if id >= 0 {
		if want := s.cfg.CharPasswords[s.cfg.Characters[id]]; want != "" {
			c.mu.Lock()
			supplied := c.charPassword
			c.mu.Unlock()
			if supplied != want && p.Fields[2] != want {
				return
			}
		}
	}

	a := c.Area()
	old := c.currentCharID()
	if id >= 0 && !a.TakeCharacter(old, id) {
		return
	}
	if id < 0 && old >= 0 {
		a.TakeCharacter(old, -1)
	}

	c.mu.Lock()
	c.charID = id
	c.mu.Unlock()
	c.Send(packet.New("PV", "0", "CID", strconv.Itoa(id)))
	s.broadcastCharsCheck(a)
}

// mayUseCharacter applies the charcurse restriction; a spectator slot
// is always permitted.
func (c *Client) mayUseCharacter(id int) bool {
	if id < 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.charcursed {
		return true
	}
	for _, allowed := range c.charcurse {
		if allowed == id {
			return true
		}
	}
	return false
}

//
// in-character chat
//

func (s *Server) handleICMessage(c *Client, p *packet.Packet) {
	a := c.Area()
	if a.floodguardActive() || s.globalFloodguardActive() {
		return
	}

	out, err := s.validateICMessage(c, a, p.Fields)
	if err != nil {
		return
	}

	t := a.Testimony()
	switch t.Mode() {
	case RecorderPlayback:
		if st, ok := s.navigateTestimony(c, a, out[ocMessage]); ok {
			s.broadcastToArea(a.Index(), packet.New("MS", st...))
			return
		}
	case RecorderRecording, RecorderAdd, RecorderUpdate:
		// only what the witness says goes on the record
		if strings.HasPrefix(out[ocSide], "wit") {
			stored, full := t.Record(out, s.cfg.MaxStatements)
			if full {
				c.sendServerMessage("The testimony is full; the statement was not recorded.")
			}
			if stored != nil {
				out = stored
			}
		}
	}

	s.broadcastToArea(a.Index(), packet.New("MS", out...))
	s.audit.IC(a.Name(), out[ocCharName], out[ocMessage])
	s.recordICSideEffects(c, a, out)
}

// navigateTestimony interprets playback navigation tokens typed into
// the IC box and returns the statement to replay.
func (s *Server) navigateTestimony(c *Client, a *Area, msg string) ([]string, bool) {
	t := a.Testimony()
	switch kind, target := parseNavigation(msg); kind {
	case navForward:
		st, looped, err := t.Advance()
		if err != nil {
			return nil, false
		}
		if looped {
			s.sendServerMessageToArea(a.Index(), "Looped back to the first statement.")
		}
		return st, true
	case navBack:
		st, _, err := t.Rewind()
		if err != nil {
			return nil, false
		}
		return st, true
	case navJump:
		st, err := t.JumpTo(target)
		if err != nil {
			return nil, false
		}
		return st, true
	}
	return nil, false
}

//
// out-of-character chat
//

func (s *Server) handleOOCMessage(c *Client, p *packet.Packet) {
	name := strings.TrimSpace(p.Fields[0])
	message := p.Fields[1]
	if name == "" || strings.TrimSpace(message) == "" {
		return
	}

	c.mu.Lock()
	c.oocName = name
	limiter := c.oocLimiter
	muted := c.oocMuted
	c.mu.Unlock()

	if strings.HasPrefix(message, "/") {
		s.dispatchCommand(c, message)
		return
	}
	if muted {
		c.sendServerMessage("You are muted in OOC chat.")
		return
	}
	if !limiter.Allow() {
		c.sendServerMessage("You are sending messages too fast; slow down.")
		return
	}

	a := c.Area()
	s.broadcastToArea(a.Index(), packet.New("CT", name, message, "0"))
	s.audit.OOC(a.Name(), name, message)
}

func (s *Server) handleKeepalive(c *Client, p *packet.Packet) {
	c.Send(packet.New("CHECK"))
}

//
// music and area movement
//

// handleMusic serves double duty: the track argument is either a song
// from the music list or an area name, because clients express area
// movement by "playing" the area's entry in the list.
func (s *Server) handleMusic(c *Client, p *packet.Packet) {
	track := p.Fields[0]

	if dest := s.areaByName(track); dest != nil {
		if !dest.CanJoin(c.uid) && !c.checkPermission(acl.BypassLocks) {
			c.sendServerMessage("That area is locked.")
			return
		}
		s.moveClient(c, dest)
		return
	}

	if p.Fields[1] != strconv.Itoa(c.currentCharID()) {
		return
	}
	c.mu.Lock()
	blocked := c.djBlocked
	c.mu.Unlock()
	if blocked {
		c.sendServerMessage("You are blocked from changing the music.")
		return
	}

	a := c.Area()
	if !a.MusicAllowed() && !c.checkPermission(acl.CM) {
		c.sendServerMessage("Free music is disabled in this area.")
		return
	}
	if !s.knownSong(track) {
		return
	}
	if !c.musicLimiter.Allow() {
		c.sendServerMessage("You are changing the music too fast; slow down.")
		return
	}

	fields := append([]string(nil), p.Fields...)
	s.broadcastToArea(a.Index(), packet.New("MC", fields...))
	a.SetCurrentMusic(track, c.displayName())
}

func (s *Server) knownSong(track string) bool {
	// the client's universal "stop the music" entry, playable even when
	// an operator leaves it off the list
	if track == "~stop.mp3" {
		return true
	}
	for _, song := range s.cfg.Music {
		if song == track {
			return true
		}
	}
	return false
}

//
// courtroom effects
//

// handleCourtroomSplash rebroadcasts witness-testimony / cross-
// examination banners and judge rulings, behind a shared cooldown so
// the judge buttons can't be spammed.
func (s *Server) handleCourtroomSplash(c *Client, p *packet.Packet) {
	c.mu.Lock()
	blocked := c.wtceBlocked
	last := c.lastWTCE
	c.mu.Unlock()
	if blocked {
		c.sendServerMessage("You are blocked from using the judge controls.")
		return
	}
	if s.cfg.WTCEFloodguard > 0 && time.Since(last) < s.cfg.WTCEFloodguard {
		return
	}
	c.mu.Lock()
	c.lastWTCE = time.Now()
	c.mu.Unlock()

	a := c.Area()
	s.broadcastToArea(a.Index(), packet.New("RT", p.Fields...))
}

func (s *Server) handleHealthBar(c *Client, p *packet.Packet) {
	bar, err1 := strconv.Atoi(p.Fields[0])
	value, err2 := strconv.Atoi(p.Fields[1])
	if err1 != nil || err2 != nil {
		return
	}
	a := c.Area()
	if !a.SetHP(bar, value) {
		return
	}
	s.broadcastToArea(a.Index(), packet.New("HP", p.Fields[0], p.Fields[1]))
}

// handleModCall pages every authenticated moderator, tagging the call
// with an id they can quote when acting on it.
func (s *Server) handleModCall(c *Client, p *packet.Packet) {
	reason := ""
	if len(p.Fields) > 0 {
		reason = p.Fields[0]
	}
	a := c.Area()
	callID := uuid.NewString()
	notice := fmt.Sprintf("[%s] %s (%s) in %s needs a moderator: %s",
		callID, c.displayName(), c.ipid, a.Name(), reason)
	s.broadcastToModerators(packet.New("ZZ", notice))
	s.audit.ModCall(callID, a.Name(), c.displayName(), reason)
	c.sendServerMessage("A moderator has been called.")
}

//
// evidence
//

func (s *Server) handleEvidenceAdd(c *Client, p *packet.Packet) {
	a := c.Area()
	a.AddEvidence(Evidence{Name: p.Fields[0], Description: p.Fields[1], Image: p.Fields[2]})
	s.broadcastEvidence(a)
}

func (s *Server) handleEvidenceDelete(c *Client, p *packet.Packet) {
	i, err := strconv.Atoi(p.Fields[0])
	if err != nil || !c.Area().RemoveEvidence(i) {
		return
	}
	s.broadcastEvidence(c.Area())
}

func (s *Server) handleEvidenceEdit(c *Client, p *packet.Packet) {
	i, err := strconv.Atoi(p.Fields[0])
	if err != nil {
		return
	}
	e := Evidence{Name: p.Fields[1], Description: p.Fields[2], Image: p.Fields[3]}
	if !c.Area().EditEvidence(i, e) {
		return
	}
	s.broadcastEvidence(c.Area())
}

func (s *Server) broadcastEvidence(a *Area) {
	s.broadcastToArea(a.Index(), packet.New("LE", a.EvidenceWire()...))
}
