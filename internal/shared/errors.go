package shared

import "errors"

// errors shared across the listeners
// 1st: bind failure of the UDP or the TLS listener, fatal at startup

// ErrBindFailed wraps every listener bind failure so callers can tell a
// startup-fatal error apart from runtime errors.
var ErrBindFailed = errors.New("listen: bind failed")
