// Package bridge exposes the protocol entry points to host processes that
// cannot link against Go: line based over standard I/O, or over HTTP.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/cancelreader"

	"dominicbreuker/pollcat/pkg/log"
	"dominicbreuker/pollcat/pkg/protocol"
)

// maxLine bounds a single request line.
const maxLine = 16 << 20

// Stdio provides a ReadWriteCloser over standard I/O streams. Reads are
// canceled by Close when the platform supports it.
type Stdio struct {
	in     io.Reader
	cancel cancelreader.CancelReader

	out io.Writer
}

// NewStdio wraps os.Stdin and os.Stdout.
func NewStdio() *Stdio {
	return NewStdioFrom(os.Stdin, os.Stdout)
}

// NewStdioFrom wraps in and out, making reads from in cancelable if possible.
func NewStdioFrom(in io.Reader, out io.Writer) *Stdio {
	s := Stdio{in: in, out: out}

	cr, err := cancelreader.NewReader(in)
	if err != nil {
		return &s
	}
	s.cancel = cr
	return &s
}

// Read reads from stdin, using the cancelable reader if available.
func (s *Stdio) Read(p []byte) (int, error) {
	if s.cancel != nil {
		return s.cancel.Read(p)
	}
	return s.in.Read(p)
}

// Write writes to stdout.
func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// Close cancels pending reads.
func (s *Stdio) Close() error {
	if s.cancel != nil {
		s.cancel.Cancel()
	}
	return nil
}

// ServeLines answers one request per line read from rwc until it reaches
// EOF or ctx is canceled. A request is an operation name followed by its
// arguments, separated by tabs. Each request yields one response line.
// Backslash, tab, CR and LF are escaped in arguments and responses.
func ServeLines(ctx context.Context, p *protocol.Protocol, rwc io.ReadWriteCloser, logger *log.Logger) error {
	stop := context.AfterFunc(ctx, func() { rwc.Close() })
	defer stop()

	scanner := bufio.NewScanner(rwc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	w := bufio.NewWriter(rwc)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		resp := handleLine(p, line)
		logger.VerboseMsg("%s -> %s", abbreviate(line), abbreviate(resp))

		if _, err := fmt.Fprintln(w, escape(resp)); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}

	err := scanner.Err()
	if err == nil || errors.Is(err, cancelreader.ErrCanceled) || ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("reading requests: %w", err)
}

func handleLine(p *protocol.Protocol, line string) string {
	fields := strings.Split(line, "\t")
	args := make([]string, 0, len(fields)-1)
	for _, f := range fields[1:] {
		a, err := unescape(f)
		if err != nil {
			return protocol.Fail(err)
		}
		args = append(args, a)
	}
	return p.Call(fields[0], args...)
}

func abbreviate(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:limit], len(s))
}
