// Package log provides colored console logging and an optional traffic log
// for connections.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var red = color.New(color.FgRed).FprintfFunc()
var blue = color.New(color.FgBlue).FprintfFunc()
var faint = color.New(color.Faint).FprintfFunc()

// ErrorMsg prints an error message to stderr in red color.
func ErrorMsg(format string, a ...interface{}) {
	red(os.Stderr, "[!] Error: "+format, a...)
}

// InfoMsg prints an informational message to stderr in blue color.
func InfoMsg(format string, a ...interface{}) {
	blue(os.Stderr, "[+] "+format, a...)
}

// Logger writes colored messages to a writer. Verbose messages are only
// written when the logger was created with verbose enabled.
// A nil *Logger discards everything.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewLogger returns a logger writing to stderr.
func NewLogger(verbose bool) *Logger {
	return NewLoggerTo(os.Stderr, verbose)
}

// NewLoggerTo returns a logger writing to w.
func NewLoggerTo(w io.Writer, verbose bool) *Logger {
	return &Logger{out: w, verbose: verbose}
}

// ErrorMsg writes an error message in red.
func (l *Logger) ErrorMsg(format string, a ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	red(l.out, "[!] Error: "+format+"\n", a...)
}

// InfoMsg writes an informational message in blue.
func (l *Logger) InfoMsg(format string, a ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	blue(l.out, "[+] "+format+"\n", a...)
}

// VerboseMsg writes a debug message if verbose logging is enabled.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	faint(l.out, "[v] "+format+"\n", a...)
}

// Verbose reports whether verbose messages are written.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}
