// Package ipchecker decides whether a request comes from the trusted subnet
// that may read the server's internal statistics.
package ipchecker

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPChecker matches client addresses against an optional trusted subnet.
// Without a subnet nothing is trusted.
type IPChecker struct {
	trustedSubnet *net.IPNet
}

// New parses trustedSubnet in CIDR notation. An empty string yields a checker
// that trusts nobody.
func New(trustedSubnet string) (*IPChecker, error) {
	if trustedSubnet == "" {
		return &IPChecker{}, nil
	}
	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
	}

	return &IPChecker{trustedSubnet: allowedNet}, nil
}

// IsTrusted extracts the client address from the request and reports whether
// it falls inside the trusted subnet.
func (checker *IPChecker) IsTrusted(request *http.Request) (bool, error) {
	if checker.trustedSubnet == nil {
		return false, nil
	}

	clientIP, err := clientIP(request)
	if err != nil {
		return false, err
	}

	return clientIP != nil && checker.trustedSubnet.Contains(clientIP), nil
}

// clientIP prefers X-Real-IP, then the first X-Forwarded-For entry, then the
// connection's remote address.
func clientIP(request *http.Request) (net.IP, error) {
	if ip := net.ParseIP(strings.TrimSpace(request.Header.Get("X-Real-IP"))); ip != nil {
		return ip, nil
	}
	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return net.ParseIP(strings.TrimSpace(first)), nil
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/clientIP(): error while `net.SplitHostPort()` calling: %w", err)
	}

	return net.ParseIP(host), nil
}
