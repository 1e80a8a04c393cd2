package config

import (
	"errors"
	"fmt"
	"strings"

	"dominicbreuker/pollcat/pkg/format"
)

// ProxyType is the tunnel protocol spoken with a proxy.
type ProxyType int

// Supported proxy types.
const (
	ProxySOCKS4 ProxyType = iota + 1
	ProxySOCKS5
	ProxyHTTP
)

func (t ProxyType) String() string {
	switch t {
	case ProxySOCKS4:
		return "SOCKS4"
	case ProxySOCKS5:
		return "SOCKS5"
	case ProxyHTTP:
		return "HTTP"
	default:
		return fmt.Sprintf("ProxyType(%d)", int(t))
	}
}

var (
	// ErrInvalidProxy is returned for proxy specs that do not follow "host:port|TYPE[:user:pass]".
	ErrInvalidProxy = errors.New("not a valid proxy")
	// ErrUnsupportedProxyType is returned when TYPE is not SOCKS4, SOCKS5 or HTTP.
	ErrUnsupportedProxyType = errors.New("unsupported proxy type")
)

// Proxy describes the proxy a connection is tunneled through.
type Proxy struct {
	Type     ProxyType
	Host     string
	Port     int
	Username string
	Password string
}

// Addr returns the proxy address as host:port.
func (p *Proxy) Addr() string {
	return format.Addr(p.Host, p.Port)
}

// HasAuth reports whether credentials were given.
func (p *Proxy) HasAuth() bool {
	return p.Username != "" || p.Password != ""
}

// String returns the spec form of the proxy without the password.
func (p *Proxy) String() string {
	if p.HasAuth() {
		return fmt.Sprintf("%s|%s:%s:***", p.Addr(), p.Type, p.Username)
	}
	return fmt.Sprintf("%s|%s", p.Addr(), p.Type)
}

// IsDirect reports whether a proxy spec means "no proxy".
func IsDirect(spec string) bool {
	spec = strings.TrimSpace(spec)
	return spec == "" || spec == ":"
}

// ParseProxy parses a proxy spec of the form "host:port|TYPE[:user:pass]",
// TYPE being one of SOCKS4, SOCKS5 or HTTP. An empty spec or ":" yields nil.
// Only the syntax is checked; the proxy host is resolved when dialing.
func ParseProxy(spec string) (*Proxy, error) {
	if IsDirect(spec) {
		return nil, nil
	}

	parts := strings.Split(strings.TrimSpace(spec), "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: expected host:port|TYPE[:user:pass]", ErrInvalidProxy)
	}

	host, port, err := format.SplitAddr(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: address: %s", ErrInvalidProxy, err)
	}

	out := Proxy{Host: host, Port: port}

	tokens := strings.Split(parts[1], ":")
	switch tokens[0] {
	case "SOCKS4":
		out.Type = ProxySOCKS4
	case "SOCKS5":
		out.Type = ProxySOCKS5
	case "HTTP":
		out.Type = ProxyHTTP
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProxyType, tokens[0])
	}

	switch len(tokens) {
	case 1:
	case 3:
		out.Username = tokens[1]
		out.Password = tokens[2]
	default:
		return nil, fmt.Errorf("%w: credentials must be given as TYPE:user:pass", ErrInvalidProxy)
	}

	return &out, nil
}
