package device

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// resolveTimeout bounds a single hostname lookup.
const resolveTimeout = 3 * time.Second

// Destination returns the resolved IP address of the device.
//
// IP literals resolve immediately. For host names, if no address has been
// resolved yet a background resolution is scheduled and ok is false.
func (d *Device) Destination() (dest string, ok bool) {
	return d.destinationFor(d.host())
}

// destinationFor is Destination with the host supplied, for callers
// already holding mu.
func (d *Device) destinationFor(host string) (dest string, ok bool) {
	d.destMu.Lock()
	dest = d.dest
	d.destMu.Unlock()
	if dest != "" {
		return dest, true
	}

	if ip := net.ParseIP(host); ip != nil {
		d.setDestination(ip.String())
		return ip.String(), true
	}

	d.scheduleResolve()
	return "", false
}

// ResolveAddress resolves ip_address to an IP. Failures are logged and
// leave the device unresolved; the error is returned only to this caller.
func (d *Device) ResolveAddress(ctx context.Context) error {
	host := d.host()
	if host == "" {
		return fmt.Errorf("resolving %s: no ip_address: %w", d.id, ErrResolveFailed)
	}
	if ip := net.ParseIP(host); ip != nil {
		d.setDestination(ip.String())
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	addrs, err := d.resolver.LookupHost(ctx, host)
	if err == nil && len(addrs) == 0 {
		err = fmt.Errorf("no addresses for %s", host)
	}
	if err != nil {
		d.logger.Warn("failed to resolve device destination", "device_id", d.id, "host", host, "error", err)
		return fmt.Errorf("resolving %s: %w: %v", host, ErrResolveFailed, err)
	}

	d.setDestination(addrs[0])
	d.logger.Debug("device destination resolved", "device_id", d.id, "host", host, "address", addrs[0])
	return nil
}

// host returns the configured address with any trailing dot removed.
func (d *Device) host() string {
	return trimHost(d.Config().IPAddress)
}

func trimHost(addr string) string {
	return strings.TrimSuffix(addr, ".")
}

func (d *Device) setDestination(dest string) {
	d.destMu.Lock()
	d.dest = dest
	d.destMu.Unlock()
}

func (d *Device) scheduleResolve() {
	if !d.resolving.CompareAndSwap(false, true) {
		return
	}
	d.spawner.Go("resolve "+d.id, func(ctx context.Context) error {
		defer d.resolving.Store(false)
		return d.ResolveAddress(ctx)
	}, func(error) {
		// ResolveAddress already logged the failure.
	})
}
