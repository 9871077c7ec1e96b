package discovery

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// Domain is the mDNS browse domain.
const Domain = "local."

// ZeroconfBrowser browses mDNS with github.com/enbility/zeroconf.
type ZeroconfBrowser struct {
	iface  string
	logger Logger
}

// NewZeroconfBrowser creates a browser. iface limits browsing to one
// network interface; empty browses all of them.
func NewZeroconfBrowser(iface string) *ZeroconfBrowser {
	return &ZeroconfBrowser{iface: iface, logger: noopLogger{}}
}

// SetLogger sets the logger for the browser.
func (b *ZeroconfBrowser) SetLogger(logger Logger) {
	b.logger = logger
}

// Listen starts browsing service and calls fn once per instance.
func (b *ZeroconfBrowser) Listen(ctx context.Context, service string, fn func(Candidate)) (func(), error) {
	browseCtx, cancel := context.WithCancel(ctx)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := zeroconf.Browse(browseCtx, service, Domain, entries, removed, b.options()...); err != nil {
			b.logger.Warn("mdns browse failed", "service", service, "error", err)
		}
	}()

	go func() {
		defer wg.Done()
		seen := make(map[string]bool)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				c := toCandidate(entry)
				if seen[c.Instance] || c.Host() == "" {
					continue
				}
				seen[c.Instance] = true
				fn(c)
			case entry, ok := <-removed:
				if ok {
					b.logger.Debug("mdns service removed", "instance", entry.Instance)
				}
			case <-browseCtx.Done():
				return
			}
		}
	}()

	stop := func() {
		cancel()
		wg.Wait()
	}
	return stop, nil
}

func (b *ZeroconfBrowser) options() []zeroconf.ClientOption {
	if b.iface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(b.iface)
	if err != nil {
		b.logger.Warn("mdns interface not found, browsing all", "interface", b.iface, "error", err)
		return nil
	}
	return []zeroconf.ClientOption{zeroconf.SelectIfaces([]net.Interface{*iface})}
}

func toCandidate(e *zeroconf.ServiceEntry) Candidate {
	c := Candidate{
		Instance: e.Instance,
		HostName: strings.TrimSuffix(e.HostName, "."),
		Port:     e.Port,
		Text:     e.Text,
	}
	for _, ip := range e.AddrIPv4 {
		c.Addrs = append(c.Addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		c.Addrs = append(c.Addrs, ip.String())
	}
	return c
}
