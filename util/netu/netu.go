package netu

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ResolveAddr turns a listen-style address (e.g. ":8000" or "host:8000") into
// a base URL. URLs are returned as they are after checking the scheme.
func ResolveAddr(addr string) (string, error) {
	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return "", fmt.Errorf("invalid URL %q: %w", addr, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("URL must have 'http://' or 'https://' (scheme is %s)", u.Scheme)
		}
		if u.Host == "" {
			return "", fmt.Errorf("URL %q has no host", addr)
		}
		return strings.TrimSuffix(addr, "/"), nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	if host == "" {
		host = "localhost"
	}

	switch port {
	case "443":
		return "https://" + host, nil
	case "80":
		return "http://" + host, nil
	default:
		return "http://" + net.JoinHostPort(host, port), nil
	}
}
