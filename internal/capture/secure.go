package capture

import (
	"net"
	"strings"
)

// IsSecureOrigin reports whether a page served from scheme and host may use
// the camera: encrypted transport, a local file, or the local machine.
func IsSecureOrigin(scheme, host string) bool {
	switch strings.ToLower(strings.TrimSuffix(scheme, ":")) {
	case "https", "file":
		return true
	}

	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	hostname = strings.Trim(strings.ToLower(hostname), "[]")

	switch hostname {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
