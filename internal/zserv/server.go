package zserv

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/bgpscand/bgpscand/internal/nexthop"
)

// The functions in this file are the mirror image of wire.go's
// client-side encode/decode: they let a zebra-side implementation (or
// internal/zservstub, standing in for one in tests) decode queries and
// encode responses. Production code never needs these; only a zserv
// server does.

// DecodeIPv4NexthopQuery decodes the body of a CmdIPv4NexthopLookup query.
func DecodeIPv4NexthopQuery(body []byte) (netip.Addr, error) {
	if len(body) < 4 {
		return netip.Addr{}, fmt.Errorf("%w: ipv4 nexthop query truncated", ErrShortRead)
	}
	var a4 [4]byte
	copy(a4[:], body[0:4])
	return netip.AddrFrom4(a4), nil
}

// DecodeIPv6NexthopQuery decodes the body of a CmdIPv6NexthopLookup query.
func DecodeIPv6NexthopQuery(body []byte) (netip.Addr, error) {
	if len(body) < 16 {
		return netip.Addr{}, fmt.Errorf("%w: ipv6 nexthop query truncated", ErrShortRead)
	}
	var a16 [16]byte
	copy(a16[:], body[0:16])
	return netip.AddrFrom16(a16), nil
}

// DecodeIPv4ImportQuery decodes the body of a CmdIPv4ImportLookup query.
func DecodeIPv4ImportQuery(body []byte) (prefixLen uint8, addr netip.Addr, err error) {
	if len(body) < 1+4 {
		return 0, netip.Addr{}, fmt.Errorf("%w: ipv4 import query truncated", ErrShortRead)
	}
	var a4 [4]byte
	copy(a4[:], body[1:5])
	return body[0], netip.AddrFrom4(a4), nil
}

// DecodeRGateVerifyQuery decodes one batch of a CmdIPv4RGateVerify query.
func DecodeRGateVerifyQuery(body []byte) (moreFollows bool, pairs []RGatePair, err error) {
	if len(body) < 3 {
		return false, nil, fmt.Errorf("%w: rgate verify query truncated", ErrShortRead)
	}
	moreFollows = body[0] != 0
	count := int(binary.BigEndian.Uint16(body[1:3]))
	off := 3
	for i := 0; i < count; i++ {
		if len(body) < off+8 {
			return false, nil, fmt.Errorf("%w: rgate verify query truncated mid-record", ErrShortRead)
		}
		var g, rg [4]byte
		copy(g[:], body[off:off+4])
		copy(rg[:], body[off+4:off+8])
		pairs = append(pairs, RGatePair{Gate: netip.AddrFrom4(g), RGate: netip.AddrFrom4(rg)})
		off += 8
	}
	return moreFollows, pairs, nil
}

// EncodeIPv4NexthopResponse builds the body of a CmdIPv4NexthopLookup response.
func EncodeIPv4NexthopResponse(addr netip.Addr, metric uint32, nexthops []nexthop.NextHop) []byte {
	a4 := addr.As4()
	buf := make([]byte, 0, 9+len(nexthops)*5)
	buf = append(buf, a4[:]...)
	var metricBuf [4]byte
	binary.BigEndian.PutUint32(metricBuf[:], metric)
	buf = append(buf, metricBuf[:]...)
	buf = append(buf, byte(len(nexthops)))
	for _, nh := range nexthops {
		buf = append(buf, encodeNextHopV4(nh)...)
	}
	return buf
}

// EncodeIPv6NexthopResponse builds the body of a CmdIPv6NexthopLookup response.
func EncodeIPv6NexthopResponse(addr netip.Addr, metric uint32, nexthops []nexthop.NextHop) []byte {
	a16 := addr.As16()
	buf := make([]byte, 0, 21+len(nexthops)*21)
	buf = append(buf, a16[:]...)
	var metricBuf [4]byte
	binary.BigEndian.PutUint32(metricBuf[:], metric)
	buf = append(buf, metricBuf[:]...)
	buf = append(buf, byte(len(nexthops)))
	for _, nh := range nexthops {
		buf = append(buf, encodeNextHopV6(nh)...)
	}
	return buf
}

// EncodeIPv4ImportResponse builds the body of a CmdIPv4ImportLookup response.
// nh may be nil, meaning zero nexthops (not present in the IGP RIB).
func EncodeIPv4ImportResponse(addr netip.Addr, metric uint32, nh *nexthop.NextHop) []byte {
	a4 := addr.As4()
	buf := make([]byte, 0, 9+5)
	buf = append(buf, a4[:]...)
	var metricBuf [4]byte
	binary.BigEndian.PutUint32(metricBuf[:], metric)
	buf = append(buf, metricBuf[:]...)
	if nh == nil {
		buf = append(buf, 0)
		return buf
	}
	buf = append(buf, 1)
	buf = append(buf, encodeNextHopV4(*nh)...)
	return buf
}

// EncodeRGateVerifyResponse builds the body of one CmdIPv4RGateVerify
// response batch.
func EncodeRGateVerifyResponse(moreFollows bool, prefixes []netip.Prefix) []byte {
	buf := make([]byte, 0, 3+len(prefixes)*5)
	if moreFollows {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(prefixes)))
	buf = append(buf, countBuf[:]...)
	for _, p := range prefixes {
		a4 := p.Addr().As4()
		buf = append(buf, a4[:]...)
		buf = append(buf, byte(p.Bits()))
	}
	return buf
}

func encodeNextHopV4(nh nexthop.NextHop) []byte {
	switch nh.Kind {
	case nexthop.KindIPv4Gate:
		g := nh.Gate.As4()
		return append([]byte{tagIPv4Gate}, g[:]...)
	case nexthop.KindIPv4IfIndex:
		return append([]byte{tagIPv4IfIndex}, ifIndexBytes(nh.IfIndex)...)
	case nexthop.KindIPv4IfName:
		return append([]byte{tagIPv4IfName}, ifIndexBytes(nh.IfIndex)...)
	default:
		return []byte{0} // unrecognized tag byte, zero-length payload
	}
}

func encodeNextHopV6(nh nexthop.NextHop) []byte {
	switch nh.Kind {
	case nexthop.KindIPv6Gate:
		g := nh.Gate.As16()
		return append([]byte{tagIPv6Gate}, g[:]...)
	case nexthop.KindIPv6GateIfIndex, nexthop.KindIPv6GateIfName:
		g := nh.Gate.As16()
		buf := append([]byte{tagForGateKind(nh.Kind)}, g[:]...)
		return append(buf, ifIndexBytes(nh.IfIndex)...)
	case nexthop.KindIPv6IfIndex:
		return append([]byte{tagIPv6IfIndex}, ifIndexBytes(nh.IfIndex)...)
	case nexthop.KindIPv6IfName:
		return append([]byte{tagIPv6IfName}, ifIndexBytes(nh.IfIndex)...)
	default:
		return []byte{0}
	}
}

func tagForGateKind(k nexthop.Kind) byte {
	if k == nexthop.KindIPv6GateIfName {
		return tagIPv6GateIfName
	}
	return tagIPv6GateIfIndex
}

func ifIndexBytes(idx uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], idx)
	return b[:]
}
