package discovery

// Candidate is one device advertisement seen during a scan.
type Candidate struct {
	// Instance is the advertised service instance name.
	Instance string

	// HostName is the advertised host name, usually ending in ".local.".
	HostName string

	// Addrs holds the advertised IP addresses, IPv4 first.
	Addrs []string

	Port int
	Text []string
}

// Host returns the address a device should be created with: the first
// advertised IP, falling back to the host name.
func (c Candidate) Host() string {
	if len(c.Addrs) > 0 {
		return c.Addrs[0]
	}
	return c.HostName
}
