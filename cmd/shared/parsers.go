package shared

import (
	"fmt"
	"regexp"
	"strconv"

	"dominicbreuker/pollcat/pkg/format"
)

var listenRe = regexp.MustCompile(`^(\[[0-9a-fA-F:.]+\]|[^:\[\]]*):(\d+)$`)

// ParseListenAddr parses a listen address in the format "host:port". The
// host can be empty or "*" to bind to all interfaces. Returns the address in
// the form accepted by net.Listen.
func ParseListenAddr(s string) (string, error) {
	matches := listenRe.FindStringSubmatch(s)
	if len(matches) != 3 {
		return "", parsingError(s)
	}

	host := matches[1]
	if host == "*" { // also counts as all interfaces
		host = ""
	}
	if len(host) > 1 && host[0] == '[' {
		host = host[1 : len(host)-1]
	}

	port, err := strconv.Atoi(matches[2])
	if err != nil || port < 0 || port > 65535 {
		return "", parsingError(s)
	}

	return format.Addr(host, port), nil
}

func parsingError(s string) error {
	return fmt.Errorf("parsing %s: format should be 'host:port', where host may be empty or * for all interfaces", s)
}
