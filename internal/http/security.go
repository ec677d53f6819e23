package http

import (
	"net"
	"net/http"
	"strings"
)

// trustedProxies may set X-Forwarded-For and X-Real-IP.
var trustedProxies = mustCIDRs("127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128")

func mustCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("bad trusted proxy CIDR " + c + ": " + err.Error())
		}
		out = append(out, n)
	}
	return out
}

func trusted(ip net.IP) bool {
	for _, n := range trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func extractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil || !trusted(ip) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

// probePatterns are matched against the lowercased path and raw query.
var probePatterns = []string{
	"../", "..\\", ".env", ".git", ".ssh", "etc/passwd",
	"wp-admin", "wp-login", "phpmyadmin", "admin.php", "config.php", "cmd.exe",
	"<script", "javascript:", "eval(", "union select",
}

var scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "scanner"}

// suspiciousReason names the first probing pattern found in r, or "" for an
// ordinary request. Matches are logged and counted, never rejected.
func suspiciousReason(r *http.Request) string {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, p := range probePatterns {
		if strings.Contains(target, p) {
			return "pattern " + p
		}
	}

	agent := strings.ToLower(r.UserAgent())
	for _, a := range scannerAgents {
		if strings.Contains(agent, a) {
			return "agent " + a
		}
	}

	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", http.MethodConnect:
		return "method " + r.Method
	}
	if len(r.URL.String()) > 2048 {
		return "long url"
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return "forwarded chain"
	}
	return ""
}
