// Package zclient owns the connection to zebra and exposes the four
// synchronous lookups the oracle needs: IPv4/IPv6 nexthop resolution,
// IPv4 import-check, and batched IPv4 recursive-gateway verification.
//
// The socket is reconnected in the background with exponential
// backoff; while it is down every lookup degrades to the documented
// "no information" answer instead of blocking or erroring, so callers
// never need to special-case a disconnected zebra.
package zclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bgpscand/bgpscand/internal/metrics"
	"github.com/bgpscand/bgpscand/internal/nexthop"
	"github.com/bgpscand/bgpscand/internal/zserv"
)

var ErrSocketDown = errors.New("zclient: not connected")

// Dialer opens the connection to zebra. Tests substitute a dialer that
// connects to an in-process internal/zservstub listener.
type Dialer func(ctx context.Context) (net.Conn, error)

// Client is a single-threaded caller onto one zebra connection. All
// exported methods take a lock around the connection so a single
// Client is safe to share between the scanner and the importer, which
// never run concurrently in this design but may in a future one.
type Client struct {
	log    *slog.Logger
	dial   Dialer
	initBk time.Duration
	maxBk  time.Duration

	mu     sync.Mutex
	conn   net.Conn
	broken chan struct{} // closed by a failed roundTrip to wake Run's reconnect loop

	closed chan struct{}
	closeO sync.Once
}

type Option func(*Client)

func WithBackoff(initial, max time.Duration) Option {
	return func(c *Client) { c.initBk, c.maxBk = initial, max }
}

func New(log *slog.Logger, dial Dialer, opts ...Option) *Client {
	c := &Client{
		log:    log.With("component", "zclient"),
		dial:   dial,
		initBk: time.Second,
		maxBk:  30 * time.Second,
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run maintains the connection until ctx is cancelled, reconnecting
// with exponential backoff whenever the socket drops.
func (c *Client) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initBk
	bo.MaxInterval = c.maxBk
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		default:
		}

		conn, err := c.dial(ctx)
		if err != nil {
			wait := bo.NextBackOff()
			c.log.Warn("zebra connect failed", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}

		bo.Reset()
		c.log.Info("connected to zebra")
		broken := c.setConn(conn)
		metrics.ZebraConnected.Set(1)

		select {
		case <-ctx.Done():
			c.setConn(nil)
			metrics.ZebraConnected.Set(0)
			return nil
		case <-c.closed:
			metrics.ZebraConnected.Set(0)
			return nil
		case <-broken:
			c.log.Warn("zebra connection lost")
			metrics.ZebraConnected.Set(0)
		}
	}
}

// setConn installs conn as the current connection, replacing and
// closing whatever was there before, and returns the channel that
// breakConnLocked will close the next time a round trip over this
// connection fails. There is no background probe for a dropped
// connection: on this request/response-only protocol, the only
// reliable signal that the socket is gone is an actual operation
// failing, so detection is purely reactive (see roundTrip).
func (c *Client) setConn(conn net.Conn) <-chan struct{} {
	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.broken = make(chan struct{})
	broken := c.broken
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return broken
}

func (c *Client) getConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Close stops Run and closes the current connection, if any.
func (c *Client) Close() {
	c.closeO.Do(func() { close(c.closed) })
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// roundTrip serializes one request/response exchange over the current
// connection. Held under c.mu for the duration so concurrent callers
// don't interleave writes and reads on the same socket. Any I/O error
// breaks the connection so Run reconnects instead of every subsequent
// call failing the same way.
func (c *Client) roundTrip(cmd zserv.Command, body []byte) (zserv.Command, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return 0, nil, ErrSocketDown
	}
	conn := c.conn
	if err := zserv.WriteMessage(conn, cmd, body); err != nil {
		c.breakConnLocked(conn)
		return 0, nil, err
	}
	cmd2, resp, err := zserv.ReadMessage(conn)
	if err != nil {
		c.breakConnLocked(conn)
		return 0, nil, err
	}
	return cmd2, resp, nil
}

// breakConnLocked closes and nulls conn if it is still the current
// connection, and signals Run's reconnect loop. Caller must hold c.mu.
// A no-op if conn was already replaced by a concurrent reconnect.
func (c *Client) breakConnLocked(conn net.Conn) {
	if c.conn != conn {
		return
	}
	c.conn.Close()
	c.conn = nil
	close(c.broken)
}

// ResolveV4 resolves an IPv4 BGP nexthop via zebra. It returns nil,
// nil both when the socket is down and when zebra reports zero
// nexthops: both cases mean "no reachability information", and the
// caller installs the same invalid sentinel either way.
func (c *Client) ResolveV4(addr netip.Addr) (*zserv.LookupResponse, error) {
	if c.getConn() == nil {
		return nil, nil
	}
	_, body, err := c.roundTrip(zserv.CmdIPv4NexthopLookup, zserv.EncodeIPv4NexthopQuery(addr))
	if err != nil {
		if errors.Is(err, ErrSocketDown) {
			return nil, nil
		}
		return nil, fmt.Errorf("zclient: resolve v4 %s: %w", addr, err)
	}
	resp, err := zserv.DecodeIPv4NexthopResponse(body)
	if err != nil {
		return nil, fmt.Errorf("zclient: decode v4 nexthop response: %w", err)
	}
	if len(resp.Nexthops) == 0 {
		return nil, nil
	}
	return &resp, nil
}

// ResolveV6 is the IPv6 counterpart of ResolveV4.
func (c *Client) ResolveV6(addr netip.Addr) (*zserv.LookupResponse, error) {
	if c.getConn() == nil {
		return nil, nil
	}
	_, body, err := c.roundTrip(zserv.CmdIPv6NexthopLookup, zserv.EncodeIPv6NexthopQuery(addr))
	if err != nil {
		if errors.Is(err, ErrSocketDown) {
			return nil, nil
		}
		return nil, fmt.Errorf("zclient: resolve v6 %s: %w", addr, err)
	}
	resp, err := zserv.DecodeIPv6NexthopResponse(body)
	if err != nil {
		return nil, fmt.Errorf("zclient: decode v6 nexthop response: %w", err)
	}
	if len(resp.Nexthops) == 0 {
		return nil, nil
	}
	return &resp, nil
}

// ImportResult is the degraded-but-well-formed answer ImportCheckV4
// always returns, socket up or down.
type ImportResult struct {
	Active  bool
	Metric  uint32
	Nexthop netip.Addr
}

// ImportCheckV4 asks zebra whether prefix/len is present in the IGP
// RIB. With the socket down it returns the documented safe default:
// active=true, metric=0, nexthop=0.0.0.0 — the importer treats that as
// "assume reachable, don't churn static routes while zebra is gone".
//
// When zebra answers with a first nexthop that isn't an IPv4 gate
// (unusual, but not disallowed by the wire format), Active is still
// taken from the reported nexthop count and Nexthop is left the
// unspecified address rather than rejecting the response.
func (c *Client) ImportCheckV4(prefixLen uint8, addr netip.Addr) (ImportResult, error) {
	if c.getConn() == nil {
		return ImportResult{Active: true, Nexthop: netip.IPv4Unspecified()}, nil
	}
	_, body, err := c.roundTrip(zserv.CmdIPv4ImportLookup, zserv.EncodeIPv4ImportQuery(prefixLen, addr))
	if err != nil {
		if errors.Is(err, ErrSocketDown) {
			return ImportResult{Active: true, Nexthop: netip.IPv4Unspecified()}, nil
		}
		return ImportResult{}, fmt.Errorf("zclient: import check %s/%d: %w", addr, prefixLen, err)
	}
	resp, err := zserv.DecodeIPv4ImportResponse(body)
	if err != nil {
		return ImportResult{}, fmt.Errorf("zclient: decode import response: %w", err)
	}
	res := ImportResult{Active: resp.Active, Metric: resp.Metric, Nexthop: netip.IPv4Unspecified()}
	if resp.Nexthop != nil && resp.Nexthop.Kind == nexthop.KindIPv4Gate {
		res.Nexthop = resp.Nexthop.Gate
	}
	return res, nil
}

// VerifyRGatesV4 drives the batched desync-verification exchange for
// one full round. It writes every query batch first — more_follows=1
// on all but the last, which carries 0 even if empty — then drains
// response messages in a second pass, accumulating every reported
// prefix until a response arrives with more_follows=0. Query and
// response batch counts need not match: the protocol only guarantees
// the final response batch is the one marked more_follows=0.
//
// With the socket down it returns no desynchronized prefixes: a scan
// running while zebra is unreachable cannot detect desync and should
// not fabricate any.
func (c *Client) VerifyRGatesV4(pairs []zserv.RGatePair) ([]netip.Prefix, error) {
	if c.getConn() == nil {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, nil
	}
	conn := c.conn

	sent := 0
	for len(pairs)-sent >= zserv.VerifyBatchCapacity {
		batch := pairs[sent : sent+zserv.VerifyBatchCapacity]
		if err := zserv.WriteMessage(conn, zserv.CmdIPv4RGateVerify, zserv.EncodeRGateVerifyQuery(true, batch)); err != nil {
			c.breakConnLocked(conn)
			return nil, fmt.Errorf("zclient: verify rgates batch: %w", err)
		}
		sent += zserv.VerifyBatchCapacity
	}
	if err := zserv.WriteMessage(conn, zserv.CmdIPv4RGateVerify, zserv.EncodeRGateVerifyQuery(false, pairs[sent:])); err != nil {
		c.breakConnLocked(conn)
		return nil, fmt.Errorf("zclient: verify rgates final batch: %w", err)
	}

	var desynced []netip.Prefix
	for {
		_, body, err := zserv.ReadMessage(conn)
		if err != nil {
			c.breakConnLocked(conn)
			return desynced, fmt.Errorf("zclient: verify rgates response: %w", err)
		}
		resp, err := zserv.DecodeRGateVerifyResponse(body)
		if err != nil {
			c.breakConnLocked(conn)
			return desynced, fmt.Errorf("zclient: decode verify response: %w", err)
		}
		desynced = append(desynced, resp.Prefixes...)
		if !resp.MoreFollows {
			break
		}
	}
	return desynced, nil
}
