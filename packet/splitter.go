////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                     Splitter                                       //
//                                                                                    //
// Stream reassembly for the packet grammar. A transport read may deliver any         //
// number of complete packets plus a trailing partial one, or only part of a          //
// single packet; the Splitter buffers the leftover bytes of each read as the         //
// prefix of the next and emits complete '%'-terminated segments in order.            //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package packet

import (
	"fmt"
	"strings"
)

// MaxBufferedBytes caps the total undecoded bytes a single connection may
// have pending in its Splitter. A peer that streams data with no '%'
// terminator is either broken or hostile; once the cap trips the connection
// is closed regardless of packet semantics.
const MaxBufferedBytes = 30720

// Splitter accumulates raw transport reads for one connection and slices
// them into complete wire segments. A zero Splitter is ready to use.
type Splitter struct {
	partial string
}

// ErrOverflow is returned by Feed when the buffered partial data exceeds
// MaxBufferedBytes. The caller must close the connection.
var ErrOverflow = fmt.Errorf("packet buffer exceeds %d bytes", MaxBufferedBytes)

// Feed appends one transport read and returns the complete segments now
// available, in arrival order, each without its trailing '%'. Bytes after
// the final '%' are retained as the partial prefix of the next read.
func (s *Splitter) Feed(data []byte) ([]string, error) {
	chunk := s.partial + string(data)
	if !strings.Contains(chunk, "%") {
		// no terminator yet; the whole read is a continuation
		s.partial = chunk
		if len(s.partial) > MaxBufferedBytes {
			s.partial = ""
			return nil, ErrOverflow
		}
		return nil, nil
	}

	segs := strings.Split(chunk, "%")
	s.partial = segs[len(segs)-1]
	if len(s.partial) > MaxBufferedBytes {
		s.partial = ""
		return nil, ErrOverflow
	}

	var complete []string
	for _, seg := range segs[:len(segs)-1] {
		if seg == "" {
			continue
		}
		complete = append(complete, seg)
	}
	return complete, nil
}

// Pending reports how many bytes are buffered waiting for a terminator.
func (s *Splitter) Pending() int {
	return len(s.partial)
}
