////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                      Server                                        //
//                                                                                    //
// Server owns every Area, the collection of connected Clients, the session id        //
// pool, and the fan-out paths (one area, the whole server, the moderators).          //
// One goroutine is spawned per connection to read and dispatch its packets;          //
// shared structures are guarded here and in Area so the handlers behave as if        //
// they were serialized the way the original cooperative event loop serialized        //
// them. Ownership and lock-status mutations run under a dedicated mutex              //
// together with their ARUP broadcast, so no second mutation can interleave           //
// between a state change and the vector that announces it.                           //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/AttorneyOnline/akashi-sub000/packet"
)

// SoftwareName and SoftwareVersion identify this server in the ID
// handshake reply.
const (
	SoftwareName    = "akashi"
	SoftwareVersion = "1.7.0"
)

// featureList is the FL packet payload: the protocol extensions this
// server implements, which the client uses to switch on UI affordances.
var featureList = []string{
	"noencryption", "yellowtext", "prezoom", "flipping", "customobjections",
	"fastloading", "deskmod", "evidence", "cccc_ic_support", "arup",
	"casing_alerts", "modcall_reason", "looping_sfx", "additive", "effects",
	"y_offset", "expanded_desk_mods", "auth_packet",
}

// ARUP vector kinds.
const (
	arupPlayerCount = 0
	arupStatus      = 1
	arupCM          = 2
	arupLock        = 3
)

// Options carries the collaborators the server consumes. Nil stores are
// replaced with inert defaults, so a bare test server needs none of them.
type Options struct {
	Bans  BanStore
	Users UserStore
	Audit AuditLogger
}

// Server runs a single courtroom server instance.
type Server struct {
	mu  sync.RWMutex
	cfg Config
	log *logrus.Logger

	audit AuditLogger
	bans  BanStore
	users UserStore

	areas []*Area

	clients map[*Client]bool // every live connection, uid assigned or not
	byUID   map[int]*Client
	uidFree []int // free-list of session ids, lowest first

	// arupMu serializes ownership/lock mutations with their broadcast
	arupMu sync.Mutex

	// server-wide IC floodguard flag (the per-area flag lives in Area)
	floodMu     sync.Mutex
	globalFlood bool

	globalTimer *Timer

	// compiled content filters, built lazily from cfg.TextFilters
	filterOnce sync.Once
	filters    []*regexp.Regexp

	motd string

	upgrader websocket.Upgrader

	running  bool
	accept   bool
	clientWG sync.WaitGroup
}

// NewServer builds a Server from configuration and collaborators.
func NewServer(cfg Config, log *logrus.Logger, opts Options) *Server {
	cfg.applyDefaults()
	if log == nil {
		log = logrus.New()
	}
	s := &Server{
		cfg:         cfg,
		log:         log,
		audit:       opts.Audit,
		bans:        opts.Bans,
		users:       opts.Users,
		clients:     make(map[*Client]bool),
		byUID:       make(map[int]*Client),
		globalTimer: newTimer(),
		motd:        cfg.MOTD,
		upgrader: websocket.Upgrader{
			// the AO2 master list embeds servers cross-origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if s.audit == nil {
		s.audit = nopAudit{}
	}
	for i, ac := range cfg.Areas {
		s.areas = append(s.areas, newArea(i, ac))
	}
	for i := 0; i < cfg.MaxPlayers; i++ {
		s.uidFree = append(s.uidFree, i)
	}
	s.running = true
	s.accept = true
	return s
}

func (s *Server) area(i int) *Area {
	if i < 0 || i >= len(s.areas) {
		return s.areas[0]
	}
	return s.areas[i]
}

func (s *Server) areaByName(name string) *Area {
	for _, a := range s.areas {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// areaNames returns the area names in index order (the SM packet wants
// them ahead of the music list).
func (s *Server) areaNames() []string {
	names := make([]string, len(s.areas))
	for i, a := range s.areas {
		names[i] = a.Name()
	}
	return names
}

//
// listeners
//

// Serve accepts TCP connections until the listener closes, one goroutine
// per conversation, counted so that Shutdown can wait for stragglers.
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return nil
			}
			s.log.Errorf("error accepting incoming connection: %v", err)
			continue
		}
		s.clientWG.Add(1)
		go func() {
			defer s.clientWG.Done()
			s.handleConnection(newTCPConn(conn))
		}()
	}
}

// WSHandler returns the http handler that upgrades WebAO connections and
// feeds them into the same session path as TCP ones.
func (s *Server) WSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debugf("websocket upgrade failed: %v", err)
			return
		}
		s.clientWG.Add(1)
		go func() {
			defer s.clientWG.Done()
			s.handleConnection(newWSConn(ws))
		}()
	})
}

// Shutdown stops accepting work and waits for the per-connection
// goroutines to drain.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.running = false
	s.accept = false
	s.mu.Unlock()

	for _, c := range s.allClients() {
		c.Send(packet.New("BD", "Server is shutting down."))
		c.Close()
	}
	s.clientWG.Wait()
}

//
// identity
//

// ipidFor derives the pseudonymous network identity from a peer address:
// an irreversible hash, truncated, so bans can match an address without
// the server ever storing it.
func ipidFor(addr string) string {
	sum := sha256.Sum256([]byte(addr))
	return base64.StdEncoding.EncodeToString(sum[:])[:8]
}

//
// session id pool
//

// takeUID allocates the lowest free session id. The pool has exactly one
// id per configured player slot; an empty pool means the server is full.
func (s *Server) takeUID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.uidFree) == 0 {
		return -1, false
	}
	uid := s.uidFree[0]
	s.uidFree = s.uidFree[1:]
	return uid, true
}

func (s *Server) releaseUID(uid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// keep the free-list sorted so ids are reused lowest-first
	at := 0
	for at < len(s.uidFree) && s.uidFree[at] < uid {
		at++
	}
	s.uidFree = append(s.uidFree, 0)
	copy(s.uidFree[at+1:], s.uidFree[at:])
	s.uidFree[at] = uid
}

//
// client registry and fan-out
//

func (s *Server) allClients() []*Client {
	// lock the registry for as little time as possible; callers then
	// work from their own snapshot
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	return clients
}

func (s *Server) clientsInArea(areaID int) []*Client {
	var out []*Client
	for _, c := range s.allClients() {
		if c.joinedTo(areaID) {
			out = append(out, c)
		}
	}
	return out
}

func (c *Client) joinedTo(areaID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined && c.areaID == areaID
}

func (s *Server) clientByUID(uid int) *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byUID[uid]
}

// broadcastToArea sends a packet to every session joined to the area.
func (s *Server) broadcastToArea(areaID int, p *packet.Packet) {
	wire := p.String()
	for _, c := range s.clientsInArea(areaID) {
		c.SendRaw(wire)
	}
}

// broadcastAll sends a packet to every joined session on the server.
func (s *Server) broadcastAll(p *packet.Packet) {
	wire := p.String()
	for _, c := range s.allClients() {
		c.mu.Lock()
		joined := c.joined
		c.mu.Unlock()
		if joined {
			c.SendRaw(wire)
		}
	}
}

// broadcastToModerators sends a packet to every authenticated session.
func (s *Server) broadcastToModerators(p *packet.Packet) {
	wire := p.String()
	for _, c := range s.allClients() {
		c.mu.Lock()
		authed := c.authenticated
		c.mu.Unlock()
		if authed {
			c.SendRaw(wire)
		}
	}
}

// sendServerMessageToArea drops an OOC line from the server into an area.
func (s *Server) sendServerMessageToArea(areaID int, message string) {
	s.broadcastToArea(areaID, packet.New("CT", s.cfg.Name, message, "1"))
}

//
// ARUP
//

// arupVector builds one ARUP packet: the kind tag followed by one value
// per area, in index order.
func (s *Server) arupVector(kind int) *packet.Packet {
	fields := []string{strconv.Itoa(kind)}
	for _, a := range s.areas {
		switch kind {
		case arupPlayerCount:
			fields = append(fields, strconv.Itoa(a.PlayerCount()))
		case arupStatus:
			fields = append(fields, a.Status())
		case arupCM:
			fields = append(fields, s.cmVectorEntry(a))
		case arupLock:
			fields = append(fields, a.Lock().String())
		}
	}
	return packet.New("ARUP", fields...)
}

// cmVectorEntry renders one area's CM list: the literal FREE when
// unowned, otherwise "[id] charname" per owner, comma-joined.
func (s *Server) cmVectorEntry(a *Area) string {
	owners := a.OwnerIDs()
	if len(owners) == 0 {
		return "FREE"
	}
	entries := make([]string, 0, len(owners))
	for _, uid := range owners {
		name := "unknown"
		if c := s.clientByUID(uid); c != nil {
			if cn := c.charName(); cn != "" {
				name = cn
			}
		}
		entries = append(entries, fmt.Sprintf("[%d] %s", uid, name))
	}
	return strings.Join(entries, ", ")
}

// broadcastARUP rebroadcasts one vector to everyone.
func (s *Server) broadcastARUP(kind int) {
	s.broadcastAll(s.arupVector(kind))
}

// sendAllARUP delivers all four vectors to one (joining) session.
func (s *Server) sendAllARUP(c *Client) {
	for _, kind := range []int{arupPlayerCount, arupStatus, arupCM, arupLock} {
		c.Send(s.arupVector(kind))
	}
}

//
// IC floodguard
//

func (s *Server) globalFloodguardActive() bool {
	s.floodMu.Lock()
	defer s.floodMu.Unlock()
	return s.globalFlood
}

// armFloodguards flips the per-area and server-wide sending flags off and
// schedules the one-shot timers that flip them back.
func (s *Server) armFloodguards(a *Area) {
	if d := s.cfg.ICFloodguard; d > 0 {
		a.setFloodguard(true)
		time.AfterFunc(d, func() { a.setFloodguard(false) })
	}
	if d := s.cfg.GlobalICFloodguard; d > 0 {
		s.floodMu.Lock()
		s.globalFlood = true
		s.floodMu.Unlock()
		time.AfterFunc(d, func() {
			s.floodMu.Lock()
			s.globalFlood = false
			s.floodMu.Unlock()
		})
	}
}

//
// connection lifecycle
//

// handleConnection runs the whole conversation with one peer.
func (s *Server) handleConnection(conn Conn) {
	c := newClient(s, conn)
	go c.backgroundSender()
	s.audit.Connect(c.ipid, conn.PeerAddr())

	defer s.finishConnection(c)

	s.mu.RLock()
	accepting := s.accept
	s.mu.RUnlock()
	if !accepting {
		c.Send(packet.New("BD", "Server is not accepting connections right now."))
		c.Close()
		return
	}

	// The ban store is fallible; on error we log and let the client in
	// rather than take the whole server down with it.
	if s.bans != nil {
		banned, reason, err := s.bans.IsBanned(c.ipid, "")
		if err != nil {
			c.log.Warnf("ban store unavailable: %v", err)
		} else if banned {
			c.Send(packet.New("BD", reason))
			c.Close()
			return
		}
	}

	// One session id per player slot; a full pool turns the connection
	// away before any session state is allocated for it.
	uid, ok := s.takeUID()
	if !ok {
		c.Send(packet.New("BD", "This server is full."))
		c.Close()
		return
	}
	c.uid = uid
	c.log = c.log.WithField("uid", uid)

	s.mu.Lock()
	s.clients[c] = true
	s.byUID[uid] = c
	s.mu.Unlock()

	for !c.eof() {
		chunk, err := conn.Read()
		if err != nil {
			break
		}
		segs, err := c.splitter.Feed(chunk)
		if err != nil {
			// byte-volume abuse guard
			c.log.Warnf("dropping connection: %v", err)
			break
		}
		for _, seg := range segs {
			p, err := packet.Decode(seg)
			if err != nil {
				c.log.Debugf("undecodable packet skipped: %v", err)
				continue
			}
			s.dispatch(c, p)
		}
	}
	c.Close()
}

// finishConnection runs the cleanup path exactly once, whether we got
// here from a socket error, the rx guard, or an explicit kick.
func (s *Server) finishConnection(c *Client) {
	s.mu.Lock()
	_, tracked := s.clients[c]
	delete(s.clients, c)
	if c.uid >= 0 {
		delete(s.byUID, c.uid)
	}
	s.mu.Unlock()

	if tracked {
		s.detachFromArea(c)
		s.releaseUID(c.uid)
	}
	c.Close()
	s.audit.Disconnect(c.ipid)

	// give the feeder a moment to flush the farewell, then make sure the
	// socket really is gone
	for i := 0; i < 100; i++ {
		c.mu.Lock()
		done := c.readyToClose
		c.mu.Unlock()
		if done {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.conn.Close()
}

// detachFromArea removes a session from its area, releasing character,
// invitation, and ownership, and rebroadcasts whatever vectors changed.
func (s *Server) detachFromArea(c *Client) {
	s.arupMu.Lock()
	defer s.arupMu.Unlock()

	a := c.Area()
	ownerRemoved, statusReset := a.Leave(c.uid, c.currentCharID())
	s.broadcastARUP(arupPlayerCount)
	if ownerRemoved {
		s.broadcastARUP(arupCM)
	}
	if statusReset {
		s.broadcastARUP(arupLock)
	}
	s.broadcastCharsCheck(a)
}

// moveClient moves a joined session from its current area to dest,
// handling both ends' bookkeeping and the vectors that change. The
// character slot travels with the session unless the destination already
// has that character taken, in which case the session arrives a
// spectator.
func (s *Server) moveClient(c *Client, dest *Area) {
	s.arupMu.Lock()
	defer s.arupMu.Unlock()

	src := c.Area()
	if src == dest {
		return
	}
	charID := c.currentCharID()

	ownerRemoved, statusReset := src.Leave(c.uid, charID)

	if charID >= 0 && !dest.TakeCharacter(-1, charID) {
		charID = -1
		c.mu.Lock()
		c.charID = -1
		c.mu.Unlock()
		c.sendServerMessage("Your character was taken in the area you moved to; you are now a spectator.")
	}
	dest.Join(c.uid)
	c.mu.Lock()
	c.areaID = dest.Index()
	c.mu.Unlock()

	s.broadcastARUP(arupPlayerCount)
	if ownerRemoved {
		s.broadcastARUP(arupCM)
	}
	if statusReset {
		s.broadcastARUP(arupLock)
	}

	// the mover needs the destination's surroundings
	c.Send(packet.New("LE", dest.EvidenceWire()...))
	c.Send(packet.New("BN", dest.Background()))
	def, pro := dest.HP()
	c.Send(packet.New("HP", "1", strconv.Itoa(def)))
	c.Send(packet.New("HP", "2", strconv.Itoa(pro)))
	s.broadcastCharsCheck(src)
	s.broadcastCharsCheck(dest)
}

//
// CharsCheck
//

// charsCheckFields renders per-character availability for an area: "0"
// free, "-1" taken. A charcursed session gets a masked copy later.
func (s *Server) charsCheckFields(a *Area) []string {
	fields := make([]string, len(s.cfg.Characters))
	for i := range s.cfg.Characters {
		if a.CharacterTaken(i) {
			fields[i] = "-1"
		} else {
			fields[i] = "0"
		}
	}
	return fields
}

// broadcastCharsCheck sends the availability vector to an area, masked
// per-session for charcursed clients so they only see their permitted
// characters as free.
func (s *Server) broadcastCharsCheck(a *Area) {
	base := s.charsCheckFields(a)
	for _, c := range s.clientsInArea(a.Index()) {
		c.Send(packet.New("CharsCheck", s.maskCharsFor(c, base)...))
	}
}

func (s *Server) maskCharsFor(c *Client, base []string) []string {
	c.mu.Lock()
	cursed := c.charcursed
	allowed := append([]int(nil), c.charcurse...)
	c.mu.Unlock()
	if !cursed {
		return base
	}
	masked := make([]string, len(base))
	for i := range masked {
		masked[i] = "-1"
	}
	for _, id := range allowed {
		if id >= 0 && id < len(masked) {
			masked[id] = base[id]
		}
	}
	return masked
}
