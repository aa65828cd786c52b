////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                     Transport                                      //
//                                                                                    //
// The protocol is carried over raw TCP and over WebSocket (the WebAO client).        //
// Both are wrapped behind the Conn interface so nothing above this file cares        //
// which one a session arrived on.                                                    //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import (
	"net"

	"github.com/gorilla/websocket"
)

// Conn is one client connection as the session layer sees it: chunked
// reads of raw protocol bytes, whole-string writes of encoded packets.
type Conn interface {
	// Read returns the next chunk of bytes from the peer. The chunk has
	// no alignment with packet boundaries; the caller reassembles.
	Read() ([]byte, error)

	// Write sends one already-encoded wire string to the peer.
	Write(data string) error

	PeerAddr() string
	Close() error
}

//
// TCP transport
//

type tcpConn struct {
	c   net.Conn
	buf [4096]byte
}

func newTCPConn(c net.Conn) *tcpConn {
	return &tcpConn{c: c}
}

func (t *tcpConn) Read() ([]byte, error) {
	n, err := t.c.Read(t.buf[:])
	if err != nil {
		return nil, err
	}
	return t.buf[:n], nil
}

func (t *tcpConn) Write(data string) error {
	_, err := t.c.Write([]byte(data))
	return err
}

func (t *tcpConn) PeerAddr() string {
	host, _, err := net.SplitHostPort(t.c.RemoteAddr().String())
	if err != nil {
		return t.c.RemoteAddr().String()
	}
	return host
}

func (t *tcpConn) Close() error {
	return t.c.Close()
}

//
// WebSocket transport
//

type wsConn struct {
	c *websocket.Conn
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{c: c}
}

func (w *wsConn) Read() ([]byte, error) {
	// WebAO frames one or more packets per text message; the splitter
	// downstream doesn't care either way.
	_, data, err := w.c.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (w *wsConn) Write(data string) error {
	return w.c.WriteMessage(websocket.TextMessage, []byte(data))
}

func (w *wsConn) PeerAddr() string {
	host, _, err := net.SplitHostPort(w.c.RemoteAddr().String())
	if err != nil {
		return w.c.RemoteAddr().String()
	}
	return host
}

func (w *wsConn) Close() error {
	return w.c.Close()
}
