//go:build linux

package ifwatch

import (
	"context"
	"net"
	"net/netip"

	nl "github.com/vishvananda/netlink"
)

// LinuxNetlinker is the production Netlinker backed by vishvananda/netlink.
type LinuxNetlinker struct{}

func NewLinuxNetlinker() *LinuxNetlinker { return &LinuxNetlinker{} }

func (LinuxNetlinker) AddrList() ([]AddrUpdate, error) {
	addrs, err := nl.AddrList(nil, nl.FAMILY_ALL)
	if err != nil {
		return nil, err
	}

	var out []AddrUpdate
	for _, a := range addrs {
		p, ok := toPrefix(a.IPNet)
		if !ok {
			continue
		}
		out = append(out, AddrUpdate{LinkIndex: a.LinkIndex, NewAddr: true, Prefix: p})
	}
	return out, nil
}

func (LinuxNetlinker) AddrSubscribe(ctx context.Context) (<-chan AddrUpdate, error) {
	ch := make(chan nl.AddrUpdate)
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(done)
	}()
	if err := nl.AddrSubscribe(ch, done); err != nil {
		return nil, err
	}

	out := make(chan AddrUpdate)
	go func() {
		defer close(out)
		for u := range ch {
			p, ok := toPrefix(&u.LinkAddress)
			if !ok {
				continue
			}
			select {
			case out <- AddrUpdate{LinkIndex: u.LinkIndex, NewAddr: u.NewAddr, Prefix: p}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (LinuxNetlinker) IsLoopback(linkIndex int) bool {
	link, err := nl.LinkByIndex(linkIndex)
	if err != nil {
		return false
	}
	return link.Attrs().Flags&net.FlagLoopback != 0
}

func toPrefix(n *net.IPNet) (netip.Prefix, bool) {
	if n == nil {
		return netip.Prefix{}, false
	}
	addr, ok := netip.AddrFromSlice(n.IP)
	if !ok {
		return netip.Prefix{}, false
	}
	addr = addr.Unmap()
	ones, _ := n.Mask.Size()
	return netip.PrefixFrom(addr, ones), true
}
