////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                     Dispatch                                       //
//                                                                                    //
// Routing of decoded packets to their handlers. Each table entry declares the        //
// permission the sender needs, the minimum field count, and whether the              //
// session must have completed the join handshake; a packet that fails any of         //
// those gates is dropped without a reply. Unknown headers are ignored, which         //
// is what lets old servers and new clients coexist.                                  //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"github.com/AttorneyOnline/akashi-sub000/acl"
	"github.com/AttorneyOnline/akashi-sub000/packet"
)

type packetHandlerFunc func(s *Server, c *Client, p *packet.Packet)

type packetHandler struct {
	required   acl.Permission
	minArgs    int
	needJoined bool
	fn         packetHandlerFunc
}

// packetHandlers maps wire headers to their handlers. Arity is a floor,
// not an exact count; clients of different vintages pad differently.
var packetHandlers = map[string]packetHandler{
	"HI":      {acl.None, 1, false, (*Server).handleHardwareID},
	"ID":      {acl.None, 2, false, (*Server).handleSoftwareID},
	"askchaa": {acl.None, 0, false, (*Server).handleResourceCounts},
	"RC":      {acl.None, 0, false, (*Server).handleRequestChars},
	"RM":      {acl.None, 0, false, (*Server).handleRequestMusic},
	"RD":      {acl.None, 0, false, (*Server).handleDone},
	"PW":      {acl.None, 1, false, (*Server).handleCharPassword},
	"CC":      {acl.None, 3, false, (*Server).handleSelectChar},
	"MS":      {acl.None, icMinFields, true, (*Server).handleICMessage},
	"CT":      {acl.None, 2, true, (*Server).handleOOCMessage},
	"CH":      {acl.None, 1, false, (*Server).handleKeepalive},
	"MC":      {acl.None, 2, true, (*Server).handleMusic},
	"RT":      {acl.None, 1, true, (*Server).handleCourtroomSplash},
	"HP":      {acl.CM, 2, true, (*Server).handleHealthBar},
	"ZZ":      {acl.None, 0, true, (*Server).handleModCall},
	"PE":      {acl.None, 3, true, (*Server).handleEvidenceAdd},
	"DE":      {acl.None, 1, true, (*Server).handleEvidenceDelete},
	"EE":      {acl.None, 4, true, (*Server).handleEvidenceEdit},
	"SETCASE": {acl.None, 0, true, (*Server).handleIgnored},
	"CASEA":   {acl.None, 0, true, (*Server).handleIgnored},
}

// dispatch routes one decoded packet. Gate failures are logged at debug
// level and otherwise invisible to the sender.
func (s *Server) dispatch(c *Client, p *packet.Packet) {
	h, ok := packetHandlers[p.Header]
	if !ok {
		c.log.Debugf("ignoring unknown packet header %q", p.Header)
		return
	}
	if len(p.Fields) < h.minArgs {
		c.log.Debugf("dropping %s packet with %d of %d fields", p.Header, len(p.Fields), h.minArgs)
		return
	}
	if h.needJoined && !c.hasJoined() {
		c.log.Debugf("dropping %s packet from session outside the join handshake", p.Header)
		return
	}
	if !c.checkPermission(h.required) {
		c.log.Debugf("dropping %s packet: missing permission", p.Header)
		return
	}
	h.fn(s, c, p)
}

// handleIgnored accepts headers we recognize but deliberately do nothing
// with, so they don't show up as unknown-header noise in the logs.
func (s *Server) handleIgnored(c *Client, p *packet.Packet) {}
