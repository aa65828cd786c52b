////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                      Packet                                        //
//                                                                                    //
// Wire codec for the AO2 network protocol. A packet on the wire looks like           //
//     HEADER#field1#field2#...#fieldN#%                                              //
// with '#' delimiting fields and a literal '%' terminating the packet. Field         //
// values are escaped before transmission so that they can never contain the          //
// delimiter characters; this package owns that substitution table and its            //
// inverse, plus the encode/decode functions built on top of it.                      //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package packet

import (
	"fmt"
	"strings"
)

// Packet is one decoded protocol message: a short uppercase header token
// and an ordered list of string fields whose count and meaning depend on
// the header.
type Packet struct {
	Header string
	Fields []string
}

//
// The escape table. Every guarded character has a unique replacement token
// so that the substitution is a bijection on field values. '&' is special:
// the LE (evidence list) header uses it as a sub-delimiter between the
// name, description, and image of each evidence entry, so fields of an LE
// packet are escaped without the '&' rule.
//
var (
	escaper    = strings.NewReplacer("#", "<num>", "%", "<percent>", "$", "<dollar>", "&", "<and>")
	escaperEvi = strings.NewReplacer("#", "<num>", "%", "<percent>", "$", "<dollar>")
	unescaper  = strings.NewReplacer("<num>", "#", "<percent>", "%", "<dollar>", "$", "<and>", "&")
)

// Escape substitutes the guarded characters in a single field value.
func Escape(field string) string {
	return escaper.Replace(field)
}

// EscapeEvidence is Escape without the '&' rule, for fields of LE packets.
func EscapeEvidence(field string) string {
	return escaperEvi.Replace(field)
}

// Unescape performs the inverse substitution of Escape.
func Unescape(field string) string {
	return unescaper.Replace(field)
}

// New builds a Packet from a header and its (unescaped) field values.
func New(header string, fields ...string) *Packet {
	return &Packet{Header: header, Fields: fields}
}

// String renders the packet in wire form, escaping each field. The result
// includes the trailing '%' terminator and is ready to hand to a transport.
func (p *Packet) String() string {
	var sb strings.Builder
	sb.WriteString(p.Header)
	esc := Escape
	if p.Header == "LE" {
		esc = EscapeEvidence
	}
	for _, f := range p.Fields {
		sb.WriteByte('#')
		sb.WriteString(esc(f))
	}
	sb.WriteString("#%")
	return sb.String()
}

// Decode parses one '%'-terminated wire segment, with or without the
// terminator itself, back into a Packet. A segment whose first byte is
// '#' is a relic of the legacy "fantacrypt" encryption scheme, which this
// server does not speak; it decodes to an error, as does an empty header.
// Callers are expected to log and skip bad segments, never to treat them
// as fatal.
func Decode(raw string) (*Packet, error) {
	raw = strings.TrimSuffix(raw, "%")
	if raw == "" {
		return nil, fmt.Errorf("empty packet")
	}
	if raw[0] == '#' {
		return nil, fmt.Errorf("legacy encrypted packet rejected")
	}
	raw = strings.TrimSuffix(raw, "#")
	tokens := strings.Split(raw, "#")
	if tokens[0] == "" {
		return nil, fmt.Errorf("packet has no header")
	}
	p := &Packet{Header: tokens[0]}
	for _, tok := range tokens[1:] {
		p.Fields = append(p.Fields, Unescape(tok))
	}
	return p, nil
}
