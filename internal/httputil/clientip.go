// Package httputil holds request and response helpers shared by the HTTP packages.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address used to key per-client limits and access logs.
// Forwarding headers are honoured only when trustProxy is set; a header that does
// not parse as an address is ignored and the next source is tried.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, candidate := range proxyCandidates(r.Header) {
			if addr, err := netip.ParseAddr(candidate); err == nil {
				return addr.Unmap().String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}
	return host
}

// proxyCandidates lists the client hint from each forwarding header, most
// authoritative first: the leftmost X-Forwarded-For hop, then X-Real-IP.
func proxyCandidates(h http.Header) []string {
	var out []string
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		out = append(out, strings.TrimSpace(first))
	}
	if xri := h.Get("X-Real-IP"); xri != "" {
		out = append(out, strings.TrimSpace(xri))
	}
	return out
}
