////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                   OOC Commands                                     //
//                                                                                    //
// The slash-command surface reachable through OOC chat. Unlike packets,              //
// which fail closed and silent, commands talk back: a missing permission,            //
// bad arity, or malformed argument earns the sender a message saying so.             //
// This file holds the table and dispatch plus the commands any player can            //
// use; area management lives in commands_area.go, testimony in                       //
// commands_testimony.go, and moderation in commands_mod.go.                          //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AttorneyOnline/akashi-sub000/acl"
	"github.com/AttorneyOnline/akashi-sub000/packet"
)

type commandFunc func(s *Server, c *Client, args []string)

type command struct {
	required acl.Permission
	minArgs  int
	usage    string
	fn       commandFunc
}

var commands = map[string]command{
	// general
	"login":      {acl.None, 1, "/login [username] <password>", (*Server).cmdLogin},
	"logout":     {acl.None, 0, "/logout", (*Server).cmdLogout},
	"getarea":    {acl.None, 0, "/getarea", (*Server).cmdGetArea},
	"getareas":   {acl.None, 0, "/getareas", (*Server).cmdGetAreas},
	"pos":        {acl.None, 1, "/pos <def|pro|wit|jud|hld|hlp>", (*Server).cmdPos},
	"roll":       {acl.None, 0, "/roll [XdY+Z]", (*Server).cmdRoll},
	"rollp":      {acl.None, 0, "/rollp [XdY+Z]", (*Server).cmdRollPrivate},
	"coinflip":   {acl.None, 0, "/coinflip", (*Server).cmdCoinFlip},
	"doc":        {acl.None, 0, "/doc [link]", (*Server).cmdDoc},
	"cleardoc":   {acl.None, 0, "/cleardoc", (*Server).cmdClearDoc},
	"currentmusic": {acl.None, 0, "/currentmusic", (*Server).cmdCurrentMusic},
	"motd":       {acl.None, 0, "/motd", (*Server).cmdMOTD},
	"g":          {acl.None, 1, "/g <message>", (*Server).cmdGlobalChat},
	"afk":        {acl.None, 0, "/afk", (*Server).cmdAFK},
	"charselect": {acl.None, 0, "/charselect [uid]", (*Server).cmdCharSelect},
	"notecard":   {acl.None, 1, "/notecard <text>", (*Server).cmdNotecard},
	"notecard_clear": {acl.None, 0, "/notecard_clear", (*Server).cmdNotecardClear},

	// area management (case manager)
	"cm":             {acl.None, 0, "/cm [uid...]", (*Server).cmdCM},
	"uncm":           {acl.CM, 0, "/uncm [uid]", (*Server).cmdUnCM},
	"invite":         {acl.CM, 1, "/invite <uid>", (*Server).cmdInvite},
	"uninvite":       {acl.CM, 1, "/uninvite <uid>", (*Server).cmdUninvite},
	"lock":           {acl.CM, 0, "/lock", (*Server).cmdLock},
	"spectatable":    {acl.CM, 0, "/spectatable", (*Server).cmdSpectatable},
	"unlock":         {acl.CM, 0, "/unlock", (*Server).cmdUnlock},
	"status":         {acl.None, 1, "/status <status>", (*Server).cmdStatus},
	"bg":             {acl.None, 1, "/bg <background>", (*Server).cmdBackground},
	"bglock":         {acl.BGLock, 0, "/bglock", (*Server).cmdBGLock},
	"bgunlock":       {acl.BGLock, 0, "/bgunlock", (*Server).cmdBGUnlock},
	"forcepos":       {acl.CM, 2, "/forcepos <pos> <uid>", (*Server).cmdForcePos},
	"togglemusic":    {acl.CM, 0, "/togglemusic", (*Server).cmdToggleMusic},
	"iniswap":        {acl.CM, 0, "/iniswap", (*Server).cmdToggleIniswap},
	"blankposting":   {acl.CM, 0, "/blankposting", (*Server).cmdToggleBlankpost},
	"shownames":      {acl.CM, 0, "/shownames", (*Server).cmdToggleShownames},
	"forceimmediate": {acl.CM, 0, "/forceimmediate", (*Server).cmdToggleImmediate},
	"toggleshouts":   {acl.CM, 0, "/toggleshouts", (*Server).cmdToggleShouts},
	"evidence_swap":  {acl.CM, 2, "/evidence_swap <i> <j>", (*Server).cmdEvidenceSwap},
	"notecard_reveal": {acl.CM, 0, "/notecard_reveal", (*Server).cmdNotecardReveal},
	"play":           {acl.CM, 1, "/play <song>", (*Server).cmdPlay},
	"timer":          {acl.None, 1, "/timer <id> [start <seconds>|stop]", (*Server).cmdTimer},

	// testimony recorder
	"testify":          {acl.CM, 0, "/testify", (*Server).cmdTestify},
	"examine":          {acl.CM, 0, "/examine", (*Server).cmdExamine},
	"testimony":        {acl.None, 0, "/testimony", (*Server).cmdTestimonyInfo},
	"pause":            {acl.CM, 0, "/pause", (*Server).cmdPauseTestimony},
	"add_statement":    {acl.CM, 0, "/add_statement", (*Server).cmdAddStatement},
	"update_statement": {acl.CM, 0, "/update_statement", (*Server).cmdUpdateStatement},
	"delete_statement": {acl.CM, 0, "/delete_statement", (*Server).cmdDeleteStatement},
	"clear_testimony":  {acl.CM, 0, "/clear_testimony", (*Server).cmdClearTestimony},
	"save_testimony":   {acl.None, 1, "/save_testimony <name>", (*Server).cmdSaveTestimony},
	"load_testimony":   {acl.CM, 1, "/load_testimony <name>", (*Server).cmdLoadTestimony},
	"permitsaving":     {acl.SaveTest, 1, "/permitsaving <uid>", (*Server).cmdPermitSaving},

	// moderation
	"mute":           {acl.Mute, 1, "/mute <uid>", (*Server).cmdMute},
	"unmute":         {acl.Mute, 1, "/unmute <uid>", (*Server).cmdUnmute},
	"ooc_mute":       {acl.Mute, 1, "/ooc_mute <uid>", (*Server).cmdOOCMute},
	"ooc_unmute":     {acl.Mute, 1, "/ooc_unmute <uid>", (*Server).cmdOOCUnmute},
	"gimp":           {acl.Mute, 1, "/gimp <uid>", (*Server).cmdGimp},
	"ungimp":         {acl.Mute, 1, "/ungimp <uid>", (*Server).cmdUngimp},
	"shake":          {acl.Mute, 1, "/shake <uid>", (*Server).cmdShake},
	"unshake":        {acl.Mute, 1, "/unshake <uid>", (*Server).cmdUnshake},
	"disemvowel":     {acl.Mute, 1, "/disemvowel <uid>", (*Server).cmdDisemvowel},
	"undisemvowel":   {acl.Mute, 1, "/undisemvowel <uid>", (*Server).cmdUndisemvowel},
	"charcurse":      {acl.Mute, 1, "/charcurse <uid> [charid...]", (*Server).cmdCharcurse},
	"uncharcurse":    {acl.Mute, 1, "/uncharcurse <uid>", (*Server).cmdUncharcurse},
	"blockdj":        {acl.Mute, 1, "/blockdj <uid>", (*Server).cmdBlockDJ},
	"unblockdj":      {acl.Mute, 1, "/unblockdj <uid>", (*Server).cmdUnblockDJ},
	"blockwtce":      {acl.Mute, 1, "/blockwtce <uid>", (*Server).cmdBlockWTCE},
	"unblockwtce":    {acl.Mute, 1, "/unblockwtce <uid>", (*Server).cmdUnblockWTCE},
	"kick":           {acl.Kick, 1, "/kick <uid> [reason]", (*Server).cmdKick},
	"ban":            {acl.Ban, 3, "/ban <ipid> <duration> <reason>", (*Server).cmdBan},
	"setmotd":        {acl.MOTD, 1, "/setmotd <message>", (*Server).cmdSetMOTD},
	"announce":       {acl.Announce, 1, "/announce <message>", (*Server).cmdAnnounce},
	"m":              {acl.ModChat, 1, "/m <message>", (*Server).cmdModChat},
	"setrole":        {acl.ModifyUsers, 2, "/setrole <username> <perm,perm,...>", (*Server).cmdSetRole},
}

// dispatchCommand parses and routes one slash command. Permission and
// arity failures answer the sender rather than drop, which is the big
// behavioral difference from the packet path.
func (s *Server) dispatchCommand(c *Client, message string) {
	parts := strings.Fields(strings.TrimPrefix(message, "/"))
	if len(parts) == 0 {
		return
	}
	name := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := commands[name]
	if !ok {
		c.sendServerMessage("Unknown command: /" + name)
		return
	}
	if !c.checkPermission(cmd.required) {
		c.sendServerMessage("You do not have permission to use that command.")
		return
	}
	if len(args) < cmd.minArgs {
		c.sendServerMessage("Invalid syntax. Usage: " + cmd.usage)
		return
	}
	s.audit.Command(c.Area().Name(), c.displayName(), name, args)
	cmd.fn(s, c, args)
}

// targetByUID resolves a uid argument, answering the sender when it
// doesn't name a connected session.
func (s *Server) targetByUID(c *Client, arg string) *Client {
	uid, err := strconv.Atoi(arg)
	if err != nil {
		c.sendServerMessage("Invalid syntax: " + arg + " is not a session id.")
		return nil
	}
	target := s.clientByUID(uid)
	if target == nil {
		c.sendServerMessage("No session with id " + arg + ".")
		return nil
	}
	return target
}

//
// general commands
//

// cmdLogin authenticates a moderator. Simple mode takes the shared
// password; advanced mode takes username plus password and loads the
// stored role mask.
func (s *Server) cmdLogin(c *Client, args []string) {
	if c.isAuthenticated() {
		c.sendServerMessage("You are already logged in.")
		return
	}

	switch s.cfg.AuthMode {
	case "advanced":
		if len(args) < 2 {
			c.sendServerMessage("Invalid syntax. Usage: /login <username> <password>")
			return
		}
		username := args[0]
		if s.users == nil {
			c.sendServerMessage("Login failed.")
			return
		}
		ok, err := s.users.Authenticate(username, args[1])
		if err != nil {
			c.log.Warnf("user store unavailable: %v", err)
			c.sendServerMessage("Login failed.")
			return
		}
		if !ok {
			c.sendServerMessage("Login failed.")
			return
		}
		mask, err := s.users.RoleMask(username)
		if err != nil {
			c.log.Warnf("role lookup failed for %q: %v", username, err)
			mask = acl.None
		}
		c.mu.Lock()
		c.authenticated = true
		c.moderatorName = username
		c.aclMask = mask
		c.mu.Unlock()
	default:
		if args[len(args)-1] != s.cfg.ModPass {
			c.sendServerMessage("Login failed.")
			return
		}
		c.mu.Lock()
		c.authenticated = true
		c.moderatorName = c.oocName
		c.aclMask = acl.Super
		c.mu.Unlock()
	}

	c.Send(packet.New("AUTH", "1"))
	c.sendServerMessage("Logged in as a moderator.")
	c.log.Info("logged in as moderator")
}

func (s *Server) cmdLogout(c *Client, args []string) {
	if !c.isAuthenticated() {
		c.sendServerMessage("You are not logged in.")
		return
	}
	c.mu.Lock()
	c.authenticated = false
	c.moderatorName = ""
	c.aclMask = acl.None
	c.mu.Unlock()
	c.Send(packet.New("AUTH", "-1"))
	c.sendServerMessage("Logged out.")
}

func (c *Client) isAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// areaRoster renders one area's occupant list.
func (s *Server) areaRoster(a *Area) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s (%d) [%s][%s] ===", a.Name(), a.PlayerCount(), a.Status(), a.Lock())
	for _, cl := range s.clientsInArea(a.Index()) {
		cl.mu.Lock()
		afk := cl.afk
		cl.mu.Unlock()
		line := fmt.Sprintf("\n[%d] %s", cl.UID(), cl.displayName())
		if a.IsOwner(cl.UID()) {
			line += " (CM)"
		}
		if afk {
			line += " (AFK)"
		}
		b.WriteString(line)
	}
	return b.String()
}

func (s *Server) cmdGetArea(c *Client, args []string) {
	c.sendServerMessage(s.areaRoster(c.Area()))
}

func (s *Server) cmdGetAreas(c *Client, args []string) {
	rosters := make([]string, 0, len(s.areas))
	for _, a := range s.areas {
		rosters = append(rosters, s.areaRoster(a))
	}
	c.sendServerMessage(strings.Join(rosters, "\n"))
}

var validPositions = map[string]bool{
	"def": true, "pro": true, "wit": true, "jud": true, "hld": true, "hlp": true, "jur": true, "sea": true,
}

func (s *Server) cmdPos(c *Client, args []string) {
	pos := strings.ToLower(args[0])
	if !validPositions[pos] {
		c.sendServerMessage("Invalid position.")
		return
	}
	c.mu.Lock()
	c.pos = pos
	c.mu.Unlock()
	c.sendServerMessage("Position set to " + pos + ".")
}

func (s *Server) cmdRoll(c *Client, args []string) {
	spec := ""
	if len(args) > 0 {
		spec = args[0]
	}
	roll, err := RollDice(spec, s.cfg.DiceMaxCount, s.cfg.DiceMaxValue)
	if err != nil {
		c.sendServerMessage("Invalid roll: " + err.Error())
		return
	}
	s.sendServerMessageToArea(c.currentAreaID(),
		fmt.Sprintf("%s rolled %s", c.displayName(), roll.Description()))
}

func (s *Server) cmdRollPrivate(c *Client, args []string) {
	spec := ""
	if len(args) > 0 {
		spec = args[0]
	}
	roll, err := RollDice(spec, s.cfg.DiceMaxCount, s.cfg.DiceMaxValue)
	if err != nil {
		c.sendServerMessage("Invalid roll: " + err.Error())
		return
	}
	c.sendServerMessage("You rolled " + roll.Description())
}

func (s *Server) cmdCoinFlip(c *Client, args []string) {
	s.sendServerMessageToArea(c.currentAreaID(),
		fmt.Sprintf("%s flipped a coin and got %s.", c.displayName(), CoinFlip()))
}

func (s *Server) cmdDoc(c *Client, args []string) {
	a := c.Area()
	if len(args) == 0 {
		doc := a.Doc()
		if doc == "" {
			c.sendServerMessage("No document set.")
			return
		}
		c.sendServerMessage("Document: " + doc)
		return
	}
	a.SetDoc(strings.Join(args, " "))
	s.sendServerMessageToArea(a.Index(), c.displayName()+" changed the document.")
}

func (s *Server) cmdClearDoc(c *Client, args []string) {
	c.Area().SetDoc("")
	s.sendServerMessageToArea(c.currentAreaID(), c.displayName()+" cleared the document.")
}

func (s *Server) cmdCurrentMusic(c *Client, args []string) {
	song, player := c.Area().CurrentMusic()
	if song == "" {
		c.sendServerMessage("Nothing is playing.")
		return
	}
	c.sendServerMessage(fmt.Sprintf("Now playing: %s (queued by %s)", song, player))
}

func (s *Server) cmdMOTD(c *Client, args []string) {
	s.mu.RLock()
	motd := s.motd
	s.mu.RUnlock()
	if motd == "" {
		c.sendServerMessage("No message of the day is set.")
		return
	}
	c.sendServerMessage("MOTD: " + motd)
}

func (s *Server) cmdGlobalChat(c *Client, args []string) {
	if c.isOOCMuted() {
		c.sendServerMessage("You are muted in OOC chat.")
		return
	}
	message := strings.Join(args, " ")
	a := c.Area()
	s.broadcastAll(packet.New("CT",
		fmt.Sprintf("[G][%s] %s", a.Name(), c.displayName()), message, "0"))
	s.audit.OOC("(global)", c.displayName(), message)
}

func (s *Server) cmdAFK(c *Client, args []string) {
	c.mu.Lock()
	c.afk = !c.afk
	afk := c.afk
	c.mu.Unlock()
	if afk {
		c.sendServerMessage("You are now AFK.")
	} else {
		c.sendServerMessage("You are no longer AFK.")
	}
}

// cmdCharSelect sends the session (or, for moderators, a target) back
// to character selection.
func (s *Server) cmdCharSelect(c *Client, args []string) {
	target := c
	if len(args) > 0 {
		if !c.checkPermission(acl.ForceCharSelect) {
			c.sendServerMessage("You do not have permission to use that command.")
			return
		}
		if target = s.targetByUID(c, args[0]); target == nil {
			return
		}
	}

	a := target.Area()
	if old := target.currentCharID(); old >= 0 {
		a.TakeCharacter(old, -1)
	}
	target.mu.Lock()
	target.charID = -1
	target.mu.Unlock()
	target.Send(packet.New("DONE"))
	s.broadcastCharsCheck(a)
}

func (s *Server) cmdNotecard(c *Client, args []string) {
	who := c.charName()
	if who == "" {
		c.sendServerMessage("Spectators cannot write notecards.")
		return
	}
	c.Area().SetNotecard(who, strings.Join(args, " "))
	c.sendServerMessage("Notecard written.")
}

func (s *Server) cmdNotecardClear(c *Client, args []string) {
	who := c.charName()
	if who == "" || !c.Area().ClearNotecard(who) {
		c.sendServerMessage("You have no notecard to clear.")
		return
	}
	c.sendServerMessage("Notecard cleared.")
}
