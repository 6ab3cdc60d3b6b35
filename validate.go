package main

import (
	"crypto/subtle"
	"net/netip"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// One label directly under the managed domain, trailing dot included.
var hostLabelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.$`)

func hostnameValid(hostname, domain string) bool {
	if len(hostname) < len(domain)+2 {
		return false
	}
	if !strings.HasSuffix(hostname, domain) {
		return false
	}
	return hostLabelPattern.MatchString(strings.TrimSuffix(hostname, domain))
}

func ipLiteralValid(v string) bool {
	_, err := netip.ParseAddr(v)
	return err == nil
}

func userAllowed(username, password string, users map[string]userConfig) bool {
	u, ok := users[username]
	if !ok {
		return false
	}
	if u.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
	}
	return constantTimeEqual(u.Password, password)
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (u userConfig) allowsHost(hostname string) bool {
	for _, h := range u.Hosts {
		if h == hostname {
			return true
		}
	}
	return false
}
