package main

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// extractMyIPs resolves the address list a request binds, first matching rule
// wins. Literals are returned in canonical form so that equal addresses
// compare equal as strings.
func extractMyIPs(req updateRequest) []string {
	if req.hasMyIP && req.hasMyIP6 {
		v4, err4 := netip.ParseAddr(req.myIP)
		v6, err6 := netip.ParseAddr(req.myIP6)
		if err4 != nil || err6 != nil || !v4.Is4() || !v6.Is6() {
			// Fail closed: a half-valid pair must not fall back to
			// the single-address rules.
			return nil
		}
		return []string{v4.String(), v6.String()}
	}

	if req.hasMyIP {
		if a, err := netip.ParseAddr(req.myIP); err == nil {
			return []string{a.String()}
		}
	}

	if req.headerIP != "" {
		if a, err := netip.ParseAddr(req.headerIP); err == nil {
			return []string{a.String()}
		}
	}

	if a, err := netip.ParseAddr(req.peerIP); err == nil {
		return []string{a.String()}
	}

	return nil
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
