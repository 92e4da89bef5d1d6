package observability

import (
	"net"
	"net/http"
	"strings"
)

// DeviceIDFromRequest returns the client-supplied device identifier, if any.
func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

// RequestIDFromRequest returns the inbound correlation id, if any.
func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// IPFromRequest prefers the first X-Forwarded-For hop over the socket peer.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
