// Package zserv implements the length-prefixed, versioned binary
// framing used to talk to the routing daemon (zebra) over a local
// stream socket, plus encode/decode for the four message types this
// core needs: IPv4/IPv6 nexthop lookup, IPv4 import lookup, and the
// batched IPv4 recursive-gateway verify exchange.
//
// All multi-byte integers are big-endian. IPv4 addresses are 4 bytes,
// IPv6 addresses are 16 bytes, both in network order.
package zserv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/netip"

	"github.com/bgpscand/bgpscand/internal/nexthop"
)

const (
	// HeaderMarker is the fixed marker byte every message carries; a
	// mismatch means the peer isn't speaking this protocol at all.
	HeaderMarker byte = 0xFF

	// ProtocolVersion is part of the wire ABI. A mismatch aborts the
	// exchange rather than attempting to interpret a message framed
	// under a different version.
	ProtocolVersion byte = 3

	// headerSize is total_length(2) + marker(1) + version(1) + command(2).
	headerSize = 6

	// MaxMessageSize bounds a single framed message, mirroring zebra's
	// fixed packet size; VerifyBatchCapacity is derived from this.
	MaxMessageSize = 4096
)

// Command identifies the message types this core exchanges with zebra.
type Command uint16

const (
	CmdIPv4NexthopLookup Command = iota + 1
	CmdIPv6NexthopLookup
	CmdIPv4ImportLookup
	CmdIPv4RGateVerify
)

var (
	ErrShortRead       = errors.New("zserv: short read")
	ErrShortWrite      = errors.New("zserv: short write")
	ErrMarkerMismatch  = errors.New("zserv: marker byte mismatch")
	ErrVersionMismatch = errors.New("zserv: protocol version mismatch")
)

// wire tag bytes for the nexthop kinds. Any tag outside this set
// decodes as nexthop.KindUnknown with a zero-length payload: the
// source tolerates unrecognized nexthop types silently, and dropping
// the entry (rather than preserving its position with an empty
// payload) would desynchronize the rest of the frame.
const (
	tagIPv4Gate        byte = 1
	tagIPv4IfIndex     byte = 2
	tagIPv4IfName      byte = 3
	tagIPv6Gate        byte = 4
	tagIPv6GateIfIndex byte = 5
	tagIPv6GateIfName  byte = 6
	tagIPv6IfIndex     byte = 7
	tagIPv6IfName      byte = 8
)

// ReadMessage reads one complete framed message from r: it first reads
// the 2-byte total length, then the remainder of the message, then
// validates marker and version before returning the command and the
// body (the bytes after the 6-byte header). Any short read or
// ABI mismatch returns an error; no partial result is returned.
func ReadMessage(r io.Reader) (Command, []byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("%w: reading length: %v", ErrShortRead, err)
	}
	total := binary.BigEndian.Uint16(lenBuf[:])
	if int(total) < headerSize {
		return 0, nil, fmt.Errorf("%w: total length %d smaller than header", ErrShortRead, total)
	}
	rest := make([]byte, int(total)-2)
	if _, err := io.ReadFull(r, rest); err != nil {
		return 0, nil, fmt.Errorf("%w: reading body: %v", ErrShortRead, err)
	}
	marker := rest[0]
	version := rest[1]
	if marker != HeaderMarker {
		return 0, nil, ErrMarkerMismatch
	}
	if version != ProtocolVersion {
		return 0, nil, ErrVersionMismatch
	}
	cmd := Command(binary.BigEndian.Uint16(rest[2:4]))
	return cmd, rest[4:], nil
}

// WriteMessage frames and writes one message: it builds the full
// buffer with a placeholder length, back-patches the length once the
// body is known, and writes it in a single call.
func WriteMessage(w io.Writer, cmd Command, body []byte) error {
	buf := make([]byte, headerSize+len(body))
	buf[2] = HeaderMarker
	buf[3] = ProtocolVersion
	binary.BigEndian.PutUint16(buf[4:6], uint16(cmd))
	copy(buf[headerSize:], body)
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(buf)))

	n, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrShortWrite, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(buf))
	}
	return nil
}

// LookupResponse is the decoded body of an IPv4/IPv6 nexthop lookup
// response.
type LookupResponse struct {
	Addr     netip.Addr
	Metric   uint32
	Nexthops []nexthop.NextHop
}

// ImportResponse is the decoded body of an IPv4 import-lookup
// response. Active mirrors n>0 exactly as received; it is not forced
// by the absence of an IPv4 gate among the nexthops (see
// internal/zclient's open-question handling).
type ImportResponse struct {
	Addr    netip.Addr
	Metric  uint32
	Active  bool
	Count   uint8
	Nexthop *nexthop.NextHop // first decoded nexthop, if any; may be any kind
}

// EncodeIPv4NexthopQuery builds the body for CmdIPv4NexthopLookup.
func EncodeIPv4NexthopQuery(addr netip.Addr) []byte {
	a := addr.As4()
	return a[:]
}

// DecodeIPv4NexthopResponse decodes the body of a CmdIPv4NexthopLookup response.
func DecodeIPv4NexthopResponse(body []byte) (LookupResponse, error) {
	if len(body) < 4+4+1 {
		return LookupResponse{}, fmt.Errorf("%w: ipv4 nexthop response truncated", ErrShortRead)
	}
	var a4 [4]byte
	copy(a4[:], body[0:4])
	resp := LookupResponse{
		Addr:   netip.AddrFrom4(a4),
		Metric: binary.BigEndian.Uint32(body[4:8]),
	}
	n := int(body[8])
	off := 9
	for i := 0; i < n; i++ {
		nh, consumed, err := decodeNextHopV4(body[off:])
		if err != nil {
			return LookupResponse{}, err
		}
		resp.Nexthops = append(resp.Nexthops, nh)
		off += consumed
	}
	return resp, nil
}

// EncodeIPv6NexthopQuery builds the body for CmdIPv6NexthopLookup.
func EncodeIPv6NexthopQuery(addr netip.Addr) []byte {
	a := addr.As16()
	return a[:]
}

// DecodeIPv6NexthopResponse decodes the body of a CmdIPv6NexthopLookup response.
func DecodeIPv6NexthopResponse(body []byte) (LookupResponse, error) {
	if len(body) < 16+4+1 {
		return LookupResponse{}, fmt.Errorf("%w: ipv6 nexthop response truncated", ErrShortRead)
	}
	var a16 [16]byte
	copy(a16[:], body[0:16])
	resp := LookupResponse{
		Addr:   netip.AddrFrom16(a16),
		Metric: binary.BigEndian.Uint32(body[16:20]),
	}
	n := int(body[20])
	off := 21
	for i := 0; i < n; i++ {
		nh, consumed, err := decodeNextHopV6(body[off:])
		if err != nil {
			return LookupResponse{}, err
		}
		resp.Nexthops = append(resp.Nexthops, nh)
		off += consumed
	}
	return resp, nil
}

// EncodeIPv4ImportQuery builds the body for CmdIPv4ImportLookup.
func EncodeIPv4ImportQuery(prefixLen uint8, addr netip.Addr) []byte {
	a := addr.As4()
	buf := make([]byte, 1+4)
	buf[0] = prefixLen
	copy(buf[1:], a[:])
	return buf
}

// DecodeIPv4ImportResponse decodes the body of a CmdIPv4ImportLookup response.
func DecodeIPv4ImportResponse(body []byte) (ImportResponse, error) {
	if len(body) < 4+4+1 {
		return ImportResponse{}, fmt.Errorf("%w: ipv4 import response truncated", ErrShortRead)
	}
	var a4 [4]byte
	copy(a4[:], body[0:4])
	resp := ImportResponse{
		Addr:   netip.AddrFrom4(a4),
		Metric: binary.BigEndian.Uint32(body[4:8]),
		Count:  body[8],
	}
	resp.Active = resp.Count > 0
	if resp.Count > 0 {
		nh, _, err := decodeNextHopV4(body[9:])
		if err != nil {
			return ImportResponse{}, err
		}
		resp.Nexthop = &nh
	}
	return resp, nil
}

func decodeNextHopV4(b []byte) (nexthop.NextHop, int, error) {
	if len(b) < 1 {
		return nexthop.NextHop{}, 0, fmt.Errorf("%w: missing nexthop tag", ErrShortRead)
	}
	tag := b[0]
	switch tag {
	case tagIPv4Gate:
		if len(b) < 5 {
			return nexthop.NextHop{}, 0, fmt.Errorf("%w: truncated ipv4 gate nexthop", ErrShortRead)
		}
		var a4 [4]byte
		copy(a4[:], b[1:5])
		return nexthop.NextHop{Kind: nexthop.KindIPv4Gate, Gate: netip.AddrFrom4(a4)}, 5, nil
	case tagIPv4IfIndex, tagIPv4IfName:
		if len(b) < 5 {
			return nexthop.NextHop{}, 0, fmt.Errorf("%w: truncated ipv4 ifindex nexthop", ErrShortRead)
		}
		kind := nexthop.KindIPv4IfIndex
		if tag == tagIPv4IfName {
			kind = nexthop.KindIPv4IfName
		}
		return nexthop.NextHop{Kind: kind, IfIndex: binary.BigEndian.Uint32(b[1:5])}, 5, nil
	default:
		return nexthop.NextHop{Kind: nexthop.KindUnknown}, 1, nil
	}
}

func decodeNextHopV6(b []byte) (nexthop.NextHop, int, error) {
	if len(b) < 1 {
		return nexthop.NextHop{}, 0, fmt.Errorf("%w: missing nexthop tag", ErrShortRead)
	}
	tag := b[0]
	switch tag {
	case tagIPv6Gate:
		if len(b) < 17 {
			return nexthop.NextHop{}, 0, fmt.Errorf("%w: truncated ipv6 gate nexthop", ErrShortRead)
		}
		var a16 [16]byte
		copy(a16[:], b[1:17])
		return nexthop.NextHop{Kind: nexthop.KindIPv6Gate, Gate: netip.AddrFrom16(a16)}, 17, nil
	case tagIPv6GateIfIndex, tagIPv6GateIfName:
		if len(b) < 21 {
			return nexthop.NextHop{}, 0, fmt.Errorf("%w: truncated ipv6 gate+ifindex nexthop", ErrShortRead)
		}
		var a16 [16]byte
		copy(a16[:], b[1:17])
		kind := nexthop.KindIPv6GateIfIndex
		if tag == tagIPv6GateIfName {
			kind = nexthop.KindIPv6GateIfName
		}
		return nexthop.NextHop{Kind: kind, Gate: netip.AddrFrom16(a16), IfIndex: binary.BigEndian.Uint32(b[17:21])}, 21, nil
	case tagIPv6IfIndex, tagIPv6IfName:
		if len(b) < 5 {
			return nexthop.NextHop{}, 0, fmt.Errorf("%w: truncated ipv6 ifindex nexthop", ErrShortRead)
		}
		kind := nexthop.KindIPv6IfIndex
		if tag == tagIPv6IfName {
			kind = nexthop.KindIPv6IfName
		}
		return nexthop.NextHop{Kind: kind, IfIndex: binary.BigEndian.Uint32(b[1:5])}, 5, nil
	default:
		return nexthop.NextHop{Kind: nexthop.KindUnknown}, 1, nil
	}
}

// RGatePair is one (bgp nexthop, recursive gateway) record exchanged
// in the rgate-verify query.
type RGatePair struct {
	Gate  netip.Addr // the BGP nexthop address (trie key in the previous BNCT generation)
	RGate netip.Addr // the recursive gateway the cache currently believes resolves it
}

// VerifyBatchCapacity is the maximum number of RGatePair records that
// fit in one CmdIPv4RGateVerify message: allocated message size minus
// the common header minus the 3 fixed query-body bytes
// (more_follows + count), divided by 8 bytes per record (4+4).
const VerifyBatchCapacity = (MaxMessageSize - headerSize - 3) / 8

// EncodeRGateVerifyQuery builds the body for one batch of CmdIPv4RGateVerify.
func EncodeRGateVerifyQuery(moreFollows bool, pairs []RGatePair) []byte {
	buf := make([]byte, 0, 3+len(pairs)*8)
	if moreFollows {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(pairs)))
	buf = append(buf, countBuf[:]...)
	for _, p := range pairs {
		g := p.Gate.As4()
		rg := p.RGate.As4()
		buf = append(buf, g[:]...)
		buf = append(buf, rg[:]...)
	}
	return buf
}

// RGateVerifyResponse is one decoded CmdIPv4RGateVerify response batch.
type RGateVerifyResponse struct {
	MoreFollows bool
	Prefixes    []netip.Prefix
}

// DecodeRGateVerifyResponse decodes one batch of CmdIPv4RGateVerify response.
func DecodeRGateVerifyResponse(body []byte) (RGateVerifyResponse, error) {
	if len(body) < 3 {
		return RGateVerifyResponse{}, fmt.Errorf("%w: rgate verify response truncated", ErrShortRead)
	}
	resp := RGateVerifyResponse{MoreFollows: body[0] != 0}
	count := int(binary.BigEndian.Uint16(body[1:3]))
	off := 3
	for i := 0; i < count; i++ {
		if len(body) < off+5 {
			return RGateVerifyResponse{}, fmt.Errorf("%w: rgate verify response truncated mid-record", ErrShortRead)
		}
		var a4 [4]byte
		copy(a4[:], body[off:off+4])
		prefixLen := body[off+4]
		p, err := netip.AddrFrom4(a4).Prefix(int(prefixLen))
		if err != nil {
			return RGateVerifyResponse{}, fmt.Errorf("zserv: invalid prefix length %d: %w", prefixLen, err)
		}
		resp.Prefixes = append(resp.Prefixes, p)
		off += 5
	}
	return resp, nil
}
