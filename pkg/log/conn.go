package log

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// TrafficLog appends every byte read from or written to wrapped connections
// to a single file. Each chunk is preceded by a header line naming the
// connection and the direction.
type TrafficLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenTrafficLog creates or appends to the file at path.
func OpenTrafficLog(path string) (*TrafficLog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening traffic log: %w", err)
	}
	return &TrafficLog{file: f}, nil
}

// Close closes the log file.
func (tl *TrafficLog) Close() error {
	if tl == nil {
		return nil
	}
	return tl.file.Close()
}

// Wrap returns conn with its traffic recorded under the given label.
// Wrap on a nil *TrafficLog returns conn unchanged.
func (tl *TrafficLog) Wrap(conn net.Conn, label string) net.Conn {
	if tl == nil {
		return conn
	}
	return &loggedConn{Conn: conn, log: tl, label: label}
}

func (tl *TrafficLog) record(label, dir string, b []byte) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	header := fmt.Sprintf("\n--- %s %s %s %d bytes ---\n", time.Now().UTC().Format(time.RFC3339Nano), label, dir, len(b))
	if _, err := tl.file.WriteString(header); err != nil {
		return err
	}
	_, err := tl.file.Write(b)
	return err
}

type loggedConn struct {
	net.Conn
	log   *TrafficLog
	label string
}

func (lc *loggedConn) Read(b []byte) (int, error) {
	n, err := lc.Conn.Read(b)
	if n > 0 {
		if lerr := lc.log.record(lc.label, "<<", b[:n]); lerr != nil {
			return n, fmt.Errorf("recording read: %w", lerr)
		}
	}
	return n, err
}

func (lc *loggedConn) Write(b []byte) (int, error) {
	n, err := lc.Conn.Write(b)
	if n > 0 {
		if lerr := lc.log.record(lc.label, ">>", b[:n]); lerr != nil {
			return n, fmt.Errorf("recording write: %w", lerr)
		}
	}
	return n, err
}
