package discovery

import "errors"

// Domain errors for the discovery package.
var (
	// ErrScanInProgress is returned when Scan is called while another scan
	// is running.
	ErrScanInProgress = errors.New("discovery: scan already in progress")
)
