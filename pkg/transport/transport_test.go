package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"testing"
	"time"
)

func pipeTransport(t *testing.T) (*Transport, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	tr := NewTCP(client)
	t.Cleanup(func() {
		tr.Close()
		server.Close()
	})
	return tr, server
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want string
	}{
		{KindTCP, "tcp"},
		{KindTLS, "tls"},
		{KindWebSocket, "websocket"},
		{Kind(42), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.kind.String(); got != tc.want {
			t.Errorf("Kind(%d).String() = %q; want %q", int(tc.kind), got, tc.want)
		}
	}
}

func TestTransport_WriteAllReadExact(t *testing.T) {
	t.Parallel()
	tr, server := pipeTransport(t)

	go func() {
		buf := make([]byte, 4)
		io.ReadFull(server, buf)
		server.Write(bytes.ToUpper(buf))
	}()

	if err := tr.WriteAll([]byte("ping")); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	got, err := tr.ReadExact(4)
	if err != nil {
		t.Fatalf("ReadExact() error = %v", err)
	}
	if string(got) != "PING" {
		t.Errorf("ReadExact() = %q; want %q", got, "PING")
	}
}

func TestTransport_ReadExact_EOF(t *testing.T) {
	t.Parallel()
	tr, server := pipeTransport(t)

	go func() {
		server.Write([]byte("ab"))
		server.Close()
	}()

	if _, err := tr.ReadExact(4); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadExact() error = %v; want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestTransport_ReadUntil(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		delim string
		close bool
		want  []string
	}{
		{"single byte delimiter", "line1\nline2\n", "\n", false, []string{"line1\n", "line2\n"}},
		{"multi byte delimiter", "a\r\nb\r\n", "\r\n", false, []string{"a\r\n", "b\r\n"}},
		{"delimiter split across writes", "head\r\n\r\nbody", "\r\n\r\n", true, []string{"head\r\n\r\n", "body"}},
		{"peer closes before delimiter", "partial", "\n", true, []string{"partial"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tr, server := pipeTransport(t)

			go func() {
				for i := 0; i < len(tc.input); i++ {
					server.Write([]byte{tc.input[i]})
				}
				if tc.close {
					server.Close()
				}
			}()

			for _, want := range tc.want {
				got, err := tr.ReadUntil([]byte(tc.delim))
				if err != nil {
					t.Fatalf("ReadUntil() error = %v", err)
				}
				if string(got) != want {
					t.Errorf("ReadUntil() = %q; want %q", got, want)
				}
			}
		})
	}
}

func TestTransport_ReadUntil_EmptyDelimiter(t *testing.T) {
	t.Parallel()
	tr, _ := pipeTransport(t)

	if _, err := tr.ReadUntil(nil); err == nil {
		t.Error("ReadUntil(nil) error = nil; want error")
	}
}

func TestTransport_ReadToEnd(t *testing.T) {
	t.Parallel()

	t.Run("peer closes", func(t *testing.T) {
		t.Parallel()
		tr, server := pipeTransport(t)
		go func() {
			server.Write([]byte("all of it"))
			server.Close()
		}()

		got, err := tr.ReadToEnd()
		if err != nil {
			t.Fatalf("ReadToEnd() error = %v", err)
		}
		if string(got) != "all of it" {
			t.Errorf("ReadToEnd() = %q; want %q", got, "all of it")
		}
	})

	t.Run("timeout ends read", func(t *testing.T) {
		t.Parallel()
		tr, server := pipeTransport(t)
		tr.SetReadTimeout(50 * time.Millisecond)
		go server.Write([]byte("some"))

		got, err := tr.ReadToEnd()
		if err != nil {
			t.Fatalf("ReadToEnd() error = %v", err)
		}
		if string(got) != "some" {
			t.Errorf("ReadToEnd() = %q; want %q", got, "some")
		}
	})
}

func TestTransport_ReadTimeout(t *testing.T) {
	t.Parallel()
	tr, _ := pipeTransport(t)

	if err := tr.SetReadTimeout(50 * time.Millisecond); err != nil {
		t.Fatalf("SetReadTimeout() error = %v", err)
	}

	start := time.Now()
	_, err := tr.ReadExact(1)
	if !IsTimeout(err) {
		t.Fatalf("ReadExact() error = %v; want timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("ReadExact() returned after %s; want about 50ms", elapsed)
	}
}

func TestTransport_IdleTimeout(t *testing.T) {
	t.Parallel()

	payload := "abcdefghijklmno"
	tests := []struct {
		name string
		read func(tr *Transport) ([]byte, error)
	}{
		{"read exact", func(tr *Transport) ([]byte, error) { return tr.ReadExact(len(payload)) }},
		{"read until", func(tr *Transport) ([]byte, error) { return tr.ReadUntil([]byte("no")) }},
		{"read to end", func(tr *Transport) ([]byte, error) { return tr.ReadToEnd() }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tr, server := pipeTransport(t)
			tr.SetReadTimeout(100 * time.Millisecond)

			// the whole transfer takes longer than the timeout, no gap does
			go func() {
				for i := 0; i < len(payload); i++ {
					time.Sleep(20 * time.Millisecond)
					server.Write([]byte{payload[i]})
				}
				server.Close()
			}()

			got, err := tc.read(tr)
			if err != nil {
				t.Fatalf("read error = %v", err)
			}
			if string(got) != payload {
				t.Errorf("read = %q; want %q", got, payload)
			}
		})
	}
}

func TestTransport_ClearTimeout(t *testing.T) {
	t.Parallel()
	tr, server := pipeTransport(t)

	tr.SetReadTimeout(10 * time.Millisecond)
	tr.SetReadTimeout(0)
	if got := tr.ReadTimeout(); got != 0 {
		t.Errorf("ReadTimeout() = %s; want 0", got)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		server.Write([]byte("x"))
	}()
	if _, err := tr.ReadExact(1); err != nil {
		t.Errorf("ReadExact() error = %v; want nil with no timeout", err)
	}
}

func TestTransport_NegativeTimeout(t *testing.T) {
	t.Parallel()
	tr, _ := pipeTransport(t)

	if err := tr.SetReadTimeout(-time.Second); err == nil {
		t.Error("SetReadTimeout(-1s) error = nil; want error")
	}
	if err := tr.SetWriteTimeout(-time.Second); err == nil {
		t.Error("SetWriteTimeout(-1s) error = nil; want error")
	}
}

func TestTransport_WriteTimeout(t *testing.T) {
	t.Parallel()
	tr, _ := pipeTransport(t)

	tr.SetWriteTimeout(50 * time.Millisecond)
	if err := tr.WriteAll([]byte("nobody reads this")); !IsTimeout(err) {
		t.Errorf("WriteAll() error = %v; want timeout", err)
	}
}

func TestTransport_CloseIdempotent(t *testing.T) {
	t.Parallel()
	tr, _ := pipeTransport(t)

	if err := tr.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := tr.CloseWithReason(1000, "bye"); err != nil {
		t.Errorf("CloseWithReason() after Close() error = %v", err)
	}
}

func TestTransport_MessageOnStream(t *testing.T) {
	t.Parallel()
	tr, _ := pipeTransport(t)

	if tr.IsWebSocket() {
		t.Error("IsWebSocket() = true; want false")
	}
	if err := tr.SendMessage(Message{Type: MessageText, Data: []byte("x")}); !errors.Is(err, ErrNotWebSocket) {
		t.Errorf("SendMessage() error = %v; want %v", err, ErrNotWebSocket)
	}
	if _, err := tr.ReadMessage(); !errors.Is(err, ErrNotWebSocket) {
		t.Errorf("ReadMessage() error = %v; want %v", err, ErrNotWebSocket)
	}
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, false},
		{"deadline", os.ErrDeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("read: %w", os.ErrDeadlineExceeded), true},
		{"context deadline", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTimeout(tc.err); got != tc.want {
				t.Errorf("IsTimeout(%v) = %v; want %v", tc.err, got, tc.want)
			}
		})
	}
}
