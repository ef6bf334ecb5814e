package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// RealIP rewrites r.RemoteAddr from X-Forwarded-For or X-Real-IP, but only
// when the connecting peer sits inside one of the trusted proxy networks.
// Requests from anywhere else keep their socket address, so a client cannot
// choose the IP that rate limits and audit records see.
type RealIP struct {
	trusted []*net.IPNet
}

// NewRealIP parses cidrs (plain addresses are accepted as /32 or /128). An
// empty list trusts nobody and leaves every RemoteAddr untouched.
func NewRealIP(cidrs []string) (*RealIP, error) {
	nets, err := ParseTrustedProxies(cidrs)
	if err != nil {
		return nil, err
	}
	return &RealIP{trusted: nets}, nil
}

// ParseTrustedProxies turns a list of CIDRs or bare IPs into networks.
func ParseTrustedProxies(cidrs []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, raw := range cidrs {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			ip := net.ParseIP(s)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q: invalid address", s)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Handler is the middleware form.
func (ri *RealIP) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := ri.resolve(r); ip != "" {
			r.RemoteAddr = net.JoinHostPort(ip, "0")
		}
		next.ServeHTTP(w, r)
	})
}

// resolve returns the forwarded client address, or "" when the socket
// address must stand.
func (ri *RealIP) resolve(r *http.Request) string {
	if !ri.isTrusted(clientIP(r)) {
		return ""
	}

	// Walk X-Forwarded-For right to left; the first hop we do not trust is
	// the client. Entries left of it were written by the client itself.
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		var last string
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			last = hop
			if !ri.isTrusted(hop) {
				return hop
			}
		}
		if last != "" {
			return last
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return ""
}

func (ri *RealIP) isTrusted(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	for _, n := range ri.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
