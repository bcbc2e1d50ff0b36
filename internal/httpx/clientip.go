package httpx

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClientIP is reported when no address can be derived.
const UnknownClientIP = "Unknown"

// ClientIP returns the first X-Forwarded-For entry, else the host part of
// RemoteAddr, else UnknownClientIP.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr == "" {
		return UnknownClientIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	if host == "" {
		return UnknownClientIP
	}
	return host
}
