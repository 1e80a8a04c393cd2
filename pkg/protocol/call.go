package protocol

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownOperation is returned by Call for unknown operation names.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrArguments is returned by Call when the argument count does not match.
	ErrArguments = errors.New("wrong number of arguments")
)

// operation describes one entry point callable by name. Arguments beyond
// required up to len(params) are optional and default to "".
type operation struct {
	params   []string
	required int
	call     func(p *Protocol, args []string) string
}

var operations = map[string]operation{
	"connect": {
		params:   []string{"target", "proxy", "timeout_ms", "proxy_resolve", "use_tls"},
		required: 3,
		call: func(p *Protocol, a []string) string {
			return p.Connect(a[0], a[1], a[2], a[3], a[4])
		},
	},
	"connect_ws": {
		params:   []string{"url", "proxy", "timeout_ms", "proxy_resolve"},
		required: 3,
		call: func(p *Protocol, a []string) string {
			return p.ConnectWS(a[0], a[1], a[2], a[3])
		},
	},
	"send_data": {
		params:   []string{"handle", "base64_payload"},
		required: 2,
		call:     func(p *Protocol, a []string) string { return p.SendData(a[0], a[1]) },
	},
	"recv_exact": {
		params:   []string{"handle", "length"},
		required: 2,
		call:     func(p *Protocol, a []string) string { return p.RecvExact(a[0], a[1]) },
	},
	"recv_until": {
		params:   []string{"handle", "base64_delimiter"},
		required: 2,
		call:     func(p *Protocol, a []string) string { return p.RecvUntil(a[0], a[1]) },
	},
	"recv_end": {
		params:   []string{"handle"},
		required: 1,
		call:     func(p *Protocol, a []string) string { return p.RecvEnd(a[0]) },
	},
	"send_message": {
		params:   []string{"handle", "type", "payload"},
		required: 3,
		call:     func(p *Protocol, a []string) string { return p.SendMessage(a[0], a[1], a[2]) },
	},
	"read_message": {
		params:   []string{"handle"},
		required: 1,
		call:     func(p *Protocol, a []string) string { return p.ReadMessage(a[0]) },
	},
	"task_status": {
		params:   []string{"handle"},
		required: 1,
		call:     func(p *Protocol, a []string) string { return p.TaskStatus(a[0]) },
	},
	"set_read_timeout": {
		params:   []string{"handle", "timeout_ms"},
		required: 2,
		call:     func(p *Protocol, a []string) string { return p.SetReadTimeout(a[0], a[1]) },
	},
	"set_write_timeout": {
		params:   []string{"handle", "timeout_ms"},
		required: 2,
		call:     func(p *Protocol, a []string) string { return p.SetWriteTimeout(a[0], a[1]) },
	},
	"disconnect": {
		params:   []string{"handle"},
		required: 1,
		call:     func(p *Protocol, a []string) string { return p.Disconnect(a[0]) },
	},
	"disconnect_ws": {
		params:   []string{"handle", "code", "reason"},
		required: 1,
		call:     func(p *Protocol, a []string) string { return p.DisconnectWS(a[0], a[1], a[2]) },
	},
	"handles": {
		call: func(p *Protocol, _ []string) string { return p.Handles() },
	},
}

// Call runs the entry point named op with args.
func (p *Protocol) Call(op string, args ...string) string {
	o, ok := operations[op]
	if !ok {
		return Fail(fmt.Errorf("%w: %q", ErrUnknownOperation, op))
	}
	if len(args) < o.required || len(args) > len(o.params) {
		return Fail(fmt.Errorf("%w: %s expects %s", ErrArguments, op, usage(o)))
	}

	padded := make([]string, len(o.params))
	copy(padded, args)
	return o.call(p, padded)
}

// Operations returns the names of all entry points callable with Call.
func Operations() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func usage(o operation) string {
	if len(o.params) == 0 {
		return "no arguments"
	}
	out := ""
	for i, name := range o.params {
		if i > 0 {
			out += " "
		}
		if i >= o.required {
			out += "[" + name + "]"
		} else {
			out += name
		}
	}
	return out
}

// HasOperation reports whether op can be called with Call.
func HasOperation(op string) bool {
	_, ok := operations[op]
	return ok
}
