////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                      Client                                        //
//                                                                                    //
// Client keeps the context around one connected session: its transport, its          //
// identity (uid, IPID, HWID), its place in the world (area, character), its          //
// moderation flags, and the plumbing that feeds outgoing packets to the              //
// socket. Output is decoupled from the handlers through a buffered channel           //
// with an overflow backlog, so one stalled client can never block a handler          //
// that is fanning a broadcast out to the room.                                       //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/AttorneyOnline/akashi-sub000/acl"
	"github.com/AttorneyOnline/akashi-sub000/packet"
)

// commChannelBufferSize is how many outgoing packets can sit in a client's
// channel before the more expensive backlog queue kicks in.
const commChannelBufferSize = 256

// stopSignal is sent on the comm channel to tell the feeder goroutine the
// conversation is over. It can never collide with real traffic because
// encoded packets are pure ASCII.
const stopSignal = "■■■"

// Client is one connected session.
type Client struct {
	mu     sync.Mutex
	server *Server
	conn   Conn
	log    *logrus.Entry

	// identity
	uid  int // pool-allocated session id, -1 until assigned
	ipid string
	hwid string

	version string

	// place in the world
	areaID int
	charID int // -1 = spectator
	pos    string

	oocName string

	// handshake progress
	joined bool // completed the RD load sequence

	// authentication
	authenticated bool
	moderatorName string
	aclMask       acl.Permission

	// moderation flags
	muted        bool
	oocMuted     bool
	djBlocked    bool
	wtceBlocked  bool
	gimped       bool
	disemvoweled bool
	shaken       bool
	charcursed   bool
	charcurse    []int // permitted character ids while charcursed
	afk          bool

	// pairing state; pairTarget is the character id this session wants
	// to pair with, the rest is the bookkeeping rule 14 reads from the
	// partner's previous message
	pairTarget     int
	lastEmote      string
	lastFlip       string
	lastSelfOffset string

	lastICMessage string    // dedup
	lastWTCE      time.Time // judge-button rate limit

	charPassword string // from PW, checked at CC

	// one-shot grant to /save_testimony for non-moderators
	permitSave bool

	oocLimiter   *rate.Limiter
	musicLimiter *rate.Limiter

	splitter packet.Splitter

	// output plumbing (see backgroundSender)
	comm         chan string
	backlog      []string
	reachedEOF   bool
	readyToClose bool
	closeOnce    sync.Once
}

func newClient(s *Server, conn Conn) *Client {
	c := &Client{
		server:     s,
		conn:       conn,
		uid:        -1,
		charID:     -1,
		pairTarget: -1,
		pos:        "wit",
		comm:       make(chan string, commChannelBufferSize),
		oocLimiter:   rate.NewLimiter(rate.Limit(s.cfg.OOCPerSecond), s.cfg.OOCBurst),
		musicLimiter: rate.NewLimiter(rate.Limit(s.cfg.OOCPerSecond), s.cfg.OOCBurst),
	}
	c.ipid = ipidFor(conn.PeerAddr())
	c.log = s.log.WithFields(logrus.Fields{"ipid": c.ipid, "addr": conn.PeerAddr()})
	return c
}

func (c *Client) UID() int { return c.uid }

// Area returns the area this session is currently joined to.
func (c *Client) Area() *Area {
	return c.server.area(c.currentAreaID())
}

func (c *Client) currentAreaID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.areaID
}

// isOOCMuted reports whether a moderator has silenced this session's
// out-of-character chat. The mute covers the chat-relaying commands too.
func (c *Client) isOOCMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oocMuted
}

// hasJoined reports whether the session completed the RD handshake.
func (c *Client) hasJoined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (c *Client) currentCharID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.charID
}

// charName resolves the session's selected character name, or "" for a
// spectator.
func (c *Client) charName() string {
	id := c.currentCharID()
	if id < 0 || id >= len(c.server.cfg.Characters) {
		return ""
	}
	return c.server.cfg.Characters[id]
}

// displayName is what moderation output calls this session: OOC name if
// set, character name otherwise.
func (c *Client) displayName() string {
	c.mu.Lock()
	name := c.oocName
	c.mu.Unlock()
	if name != "" {
		return name
	}
	if cn := c.charName(); cn != "" {
		return cn
	}
	return "spectator"
}

//
// permission checks
//

// checkPermission implements the permission model: NONE is public; CM is
// an area-local grant satisfied by ownership of the current area with or
// without authentication; everything else requires an authenticated
// session, after which simple auth mode accepts anything and advanced
// mode tests the stored role mask. CM falls through to the mask test as
// well, so a global CM bit also satisfies it (local-or-global).
func (c *Client) checkPermission(required acl.Permission) bool {
	if required == acl.None {
		return true
	}
	if required == acl.CM && c.Area().IsOwner(c.uid) {
		return true
	}

	c.mu.Lock()
	authed := c.authenticated
	mask := c.aclMask
	c.mu.Unlock()

	if !authed {
		return false
	}
	if c.server.cfg.AuthMode == "simple" {
		return true
	}
	return acl.Check(mask, required)
}

//
// output
//

// Send encodes and queues one packet for this client.
func (c *Client) Send(p *packet.Packet) {
	c.sendToClientChannel(p.String())
}

// SendRaw queues an already-encoded wire string.
func (c *Client) SendRaw(data string) {
	c.sendToClientChannel(data)
}

// sendServerMessage delivers an OOC line from the server itself.
func (c *Client) sendServerMessage(message string) {
	c.Send(packet.New("CT", c.server.cfg.Name, message, "1"))
}

// For efficiency every client has a buffered channel feeding its socket.
// If the channel fills because a client stopped reading, we fall back to
// queueing in a local backlog rather than block the goroutine serving
// some other client's request; the feeder drains the backlog into the
// channel as room appears. A client that stays wedged is eventually
// closed by the keepalive sweep rather than here.
func (c *Client) sendToClientChannel(data string) {
	c.mu.Lock()
	queueing := c.backlog != nil
	c.mu.Unlock()

	if queueing {
		c.queueMessage(data)
		return
	}

	select {
	case c.comm <- data:
	default:
		c.queueMessage(data)
	}
}

func (c *Client) queueMessage(data string) {
	c.mu.Lock()
	c.backlog = append(c.backlog, data)
	c.mu.Unlock()
}

// backgroundSender feeds queued packets out to the transport until it
// sees the stop signal, then closes the socket and reports itself done.
func (c *Client) backgroundSender() {
	checkForBacklog := false

FeedClient:
	for {
		message, more := <-c.comm
		if !more || message == stopSignal {
			c.conn.Close()
			c.mu.Lock()
			c.reachedEOF = true
			c.mu.Unlock()
			break FeedClient
		}
		if err := c.conn.Write(message); err != nil {
			c.log.Debugf("write error, dropping connection: %v", err)
			c.conn.Close()
			c.mu.Lock()
			c.reachedEOF = true
			c.mu.Unlock()
			break FeedClient
		}
		if len(c.comm) == 0 {
			checkForBacklog = true
		}

		if checkForBacklog {
			// Only look at the backlog right after draining the channel;
			// nothing else refills the channel while a backlog exists,
			// so this is the one place refill can happen.
			checkForBacklog = false
			c.mu.Lock()
		drainBacklog:
			for len(c.backlog) > 0 {
				select {
				case c.comm <- c.backlog[0]:
					c.backlog = c.backlog[1:]
				default:
					break drainBacklog
				}
			}
			if len(c.backlog) == 0 {
				c.backlog = nil
			}
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	c.readyToClose = true
	c.mu.Unlock()
}

// Close signals that we are done with this client. The channel and socket
// stay open until the feeder has flushed whatever is already queued --
// which presumably includes the notice telling the client why it is being
// dropped.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reachedEOF = true
		c.mu.Unlock()
		select {
		case c.comm <- stopSignal:
		default:
			// channel jammed; shut the socket down as a last resort
			c.conn.Close()
		}
	})
}

func (c *Client) eof() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reachedEOF
}
