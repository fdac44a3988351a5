// Package zservstub is an in-process fake zebra peer: it listens on a
// unix socket, answers with scripted responses, and is used by
// internal/zclient, internal/scanner, and internal/importer tests so
// they exercise the real wire codec instead of a mocked client
// interface.
package zservstub

import (
	"net"
	"net/netip"
	"sync"

	"github.com/bgpscand/bgpscand/internal/nexthop"
	"github.com/bgpscand/bgpscand/internal/zserv"
)

// Responder answers one decoded request with a raw response body (the
// bytes after the common header). Returning ok=false closes the
// connection, simulating a misbehaving or crashed zebra.
type Responder func(body []byte) (respBody []byte, ok bool)

// Server accepts connections and dispatches each incoming message to
// a registered Responder. It serves one connection at a time, which
// is all ZLookup ever opens.
type Server struct {
	mu       sync.Mutex
	listener net.Listener
	handlers map[zserv.Command]Responder
}

// Listen starts a listener (network is typically "unix"; address ""
// lets the test use net.Pipe-style dialing via Dial instead) and
// returns the Server.
func Listen(network, address string) (*Server, error) {
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: l,
		handlers: make(map[zserv.Command]Responder),
	}
	go s.acceptLoop()
	return s, nil
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Handle registers the responder for a command, replacing any previous one.
func (s *Server) Handle(cmd zserv.Command, fn Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[cmd] = fn
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	for {
		cmd, body, err := zserv.ReadMessage(conn)
		if err != nil {
			return
		}
		s.mu.Lock()
		fn := s.handlers[cmd]
		s.mu.Unlock()
		if fn == nil {
			return
		}
		respBody, ok := fn(body)
		if !ok {
			return
		}
		if err := zserv.WriteMessage(conn, cmd, respBody); err != nil {
			return
		}
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

// StaticIPv4Resolver answers every IPv4 nexthop lookup with the same
// metric and nexthop list, regardless of the address queried.
func (s *Server) StaticIPv4Resolver(metric uint32, nexthops []nexthop.NextHop) {
	s.Handle(zserv.CmdIPv4NexthopLookup, func(body []byte) ([]byte, bool) {
		addr, err := zserv.DecodeIPv4NexthopQuery(body)
		if err != nil {
			return nil, false
		}
		return zserv.EncodeIPv4NexthopResponse(addr, metric, nexthops), true
	})
}

// StaticIPv6Resolver is the IPv6 counterpart of StaticIPv4Resolver.
func (s *Server) StaticIPv6Resolver(metric uint32, nexthops []nexthop.NextHop) {
	s.Handle(zserv.CmdIPv6NexthopLookup, func(body []byte) ([]byte, bool) {
		addr, err := zserv.DecodeIPv6NexthopQuery(body)
		if err != nil {
			return nil, false
		}
		return zserv.EncodeIPv6NexthopResponse(addr, metric, nexthops), true
	})
}

// StaticImportResult answers every IPv4 import-check query the same way.
func (s *Server) StaticImportResult(metric uint32, nh *nexthop.NextHop) {
	s.Handle(zserv.CmdIPv4ImportLookup, func(body []byte) ([]byte, bool) {
		_, addr, err := zserv.DecodeIPv4ImportQuery(body)
		if err != nil {
			return nil, false
		}
		return zserv.EncodeIPv4ImportResponse(addr, metric, nh), true
	})
}

// DesyncResponder answers rgate-verify batches by reporting desynced
// exactly the prefixes whose gate appears in the given set, ignoring
// batch boundaries: it buffers pairs across query batches and emits
// the full response in a single (more_follows=0) reply once it sees
// the query batch marked more_follows=0.
func (s *Server) DesyncResponder(isDesynced func(gate netip.Addr, rgate netip.Addr) bool) {
	var buffered []zserv.RGatePair
	s.Handle(zserv.CmdIPv4RGateVerify, func(body []byte) ([]byte, bool) {
		more, pairs, err := zserv.DecodeRGateVerifyQuery(body)
		if err != nil {
			return nil, false
		}
		buffered = append(buffered, pairs...)
		if more {
			// Query batching continues; nothing to report yet. Ack
			// with an empty more_follows=1 response so the exchange
			// (were it strictly request/response) would not stall;
			// real clients in this module pipeline writes instead.
			return zserv.EncodeRGateVerifyResponse(true, nil), true
		}
		var desynced []netip.Prefix
		for _, p := range buffered {
			if isDesynced(p.Gate, p.RGate) {
				if pfx, err := p.Gate.Prefix(32); err == nil {
					desynced = append(desynced, pfx)
				}
			}
		}
		buffered = nil
		return zserv.EncodeRGateVerifyResponse(false, desynced), true
	})
}
