package wifi

import "errors"

// splitHostPort splits at the last colon so IPv6 literals keep theirs.
func splitHostPort(addr string) (host, port string, err error) {
	i := len(addr) - 1
	for i >= 0 && addr[i] != ':' {
		i--
	}
	if i < 0 {
		return "", "", errors.New("missing port in address")
	}
	host, port = addr[:i], addr[i+1:]
	if host == "" {
		return "", "", errors.New("empty host")
	}
	if port == "" {
		return "", "", errors.New("empty port")
	}
	return host, port, nil
}

// parsePort returns 0 for anything but a decimal number.
func parsePort(s string) uint16 {
	var port uint16
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0
		}
		port = port*10 + uint16(s[i]-'0')
	}
	return port
}
