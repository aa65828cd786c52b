////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                             Testimony Recorder Commands                            //
//                                                                                    //
// The recorder is driven from OOC while the statements themselves arrive             //
// through IC chat: /testify arms recording, the witness speaks, /examine             //
// replays from the title, and the one-shot ADD/UPDATE modes splice in                //
// corrections mid-playback.                                                          //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"fmt"

	"github.com/AttorneyOnline/akashi-sub000/acl"
	"github.com/AttorneyOnline/akashi-sub000/packet"
)

func (s *Server) cmdTestify(c *Client, args []string) {
	a := c.Area()
	if err := a.Testimony().StartRecording(s.cfg.MaxStatements); err != nil {
		c.sendServerMessage("The recorder is already running.")
		return
	}
	s.broadcastToArea(a.Index(), packet.New("RT", "testimony1"))
	s.sendServerMessageToArea(a.Index(), "Recording testimony; the next statement becomes its title.")
}

// cmdExamine rewinds to the title statement and replays it, switching
// the area into playback where IC navigation tokens page through the
// record.
func (s *Server) cmdExamine(c *Client, args []string) {
	a := c.Area()
	title, err := a.Testimony().StartPlayback()
	if err != nil {
		c.sendServerMessage("There is no testimony to examine.")
		return
	}
	s.broadcastToArea(a.Index(), packet.New("RT", "testimony2"))
	s.broadcastToArea(a.Index(), packet.New("MS", title...))
}

func (s *Server) cmdTestimonyInfo(c *Client, args []string) {
	t := c.Area().Testimony()
	n := t.Len()
	if n == 0 {
		c.sendServerMessage("There is no recorded testimony.")
		return
	}
	// the title entry doesn't count as a statement
	c.sendServerMessage(fmt.Sprintf("Testimony: %d statement(s), recorder %s, at statement %d.",
		n-1, t.Mode(), t.Cursor()))
}

func (s *Server) cmdPauseTestimony(c *Client, args []string) {
	c.Area().Testimony().Pause()
	s.sendServerMessageToArea(c.currentAreaID(), "Testimony paused.")
}

// cmdAddStatement arms a one-shot insert after the current statement;
// the next witness IC line is spliced in and playback resumes.
func (s *Server) cmdAddStatement(c *Client, args []string) {
	if err := c.Area().Testimony().PrepareAdd(); err != nil {
		c.sendServerMessage("You can only add a statement during playback.")
		return
	}
	c.sendServerMessage("The next statement will be inserted after the current one.")
}

func (s *Server) cmdUpdateStatement(c *Client, args []string) {
	if err := c.Area().Testimony().PrepareUpdate(); err != nil {
		c.sendServerMessage("You can only update a statement during playback.")
		return
	}
	c.sendServerMessage("The next statement will replace the current one.")
}

func (s *Server) cmdDeleteStatement(c *Client, args []string) {
	if err := c.Area().Testimony().DeleteStatement(); err != nil {
		c.sendServerMessage("There is no statement to delete here.")
		return
	}
	c.sendServerMessage("Statement deleted.")
}

func (s *Server) cmdClearTestimony(c *Client, args []string) {
	c.Area().Testimony().Clear()
	s.sendServerMessageToArea(c.currentAreaID(), "The testimony has been cleared.")
}

// cmdSaveTestimony writes the record to disk. Non-moderators need a
// one-shot grant from /permitsaving, which this consumes.
func (s *Server) cmdSaveTestimony(c *Client, args []string) {
	c.mu.Lock()
	permitted := c.permitSave
	c.permitSave = false
	c.mu.Unlock()
	if !permitted && !c.checkPermission(acl.SaveTest) {
		c.sendServerMessage("You do not have permission to save testimony; ask a moderator for /permitsaving.")
		return
	}

	if err := c.Area().Testimony().Save(s.cfg.TestimonyDir, args[0]); err != nil {
		c.sendServerMessage("Could not save the testimony: " + err.Error())
		return
	}
	c.sendServerMessage("Testimony saved as " + sanitizeTestimonyName(args[0]) + ".")
}

func (s *Server) cmdLoadTestimony(c *Client, args []string) {
	a := c.Area()
	if err := a.Testimony().Load(s.cfg.TestimonyDir, args[0]); err != nil {
		c.sendServerMessage("Could not load the testimony: " + err.Error())
		return
	}
	s.sendServerMessageToArea(a.Index(), "Loaded testimony "+sanitizeTestimonyName(args[0])+"; use /examine to play it back.")
}

func (s *Server) cmdPermitSaving(c *Client, args []string) {
	target := s.targetByUID(c, args[0])
	if target == nil {
		return
	}
	target.mu.Lock()
	target.permitSave = true
	target.mu.Unlock()
	target.sendServerMessage("You may now use /save_testimony once.")
	c.sendServerMessage("Granted a testimony save to " + target.displayName() + ".")
}
