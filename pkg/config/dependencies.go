package config

import (
	"context"
	"net"
)

// Dependencies contains injectable dependencies for testing and customization.
// All fields are optional and will use default implementations if nil.
type Dependencies struct {
	DialContext DialContextFunc
	LookupIP    LookupIPFunc
}

// DialContextFunc opens a stream connection, like net.Dialer.DialContext.
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// LookupIPFunc resolves a host name to its IP addresses.
type LookupIPFunc func(ctx context.Context, host string) ([]net.IP, error)

// GetDialContextFunc returns the dial function from dependencies, or a default implementation.
// If deps is nil or deps.DialContext is nil, returns a function that uses a zero net.Dialer.
func GetDialContextFunc(deps *Dependencies) DialContextFunc {
	if deps != nil && deps.DialContext != nil {
		return deps.DialContext
	}
	var d net.Dialer
	return d.DialContext
}

// GetLookupIPFunc returns the lookup function from dependencies, or a default implementation.
// If deps is nil or deps.LookupIP is nil, returns a function that uses net.DefaultResolver.
func GetLookupIPFunc(deps *Dependencies) LookupIPFunc {
	if deps != nil && deps.LookupIP != nil {
		return deps.LookupIP
	}
	return func(ctx context.Context, host string) ([]net.IP, error) {
		return net.DefaultResolver.LookupIP(ctx, "ip", host)
	}
}
