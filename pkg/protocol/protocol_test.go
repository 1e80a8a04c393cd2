package protocol_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"dominicbreuker/pollcat/pkg/config"
	"dominicbreuker/pollcat/pkg/engine"
	"dominicbreuker/pollcat/pkg/protocol"
	"dominicbreuker/pollcat/test/helpers"
)

func newProtocol(t *testing.T) *protocol.Protocol {
	t.Helper()
	cfg := config.NewEngine()
	cfg.Workers = 8
	e, err := engine.New(cfg, nil)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return protocol.New(e, nil)
}

// poll calls TaskStatus until it no longer returns WAIT.
func poll(t *testing.T, p *protocol.Protocol, handle string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if resp := p.TaskStatus(handle); resp != protocol.StatusWait {
			return resp
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("TaskStatus(%s) still WAIT after 5s", handle)
	return ""
}

func mustEqual(t *testing.T, call, got, want string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = %q; want %q", call, got, want)
	}
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestProtocol_EchoScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	t.Parallel()

	p := newProtocol(t)
	addr := helpers.StartEchoServer(t)

	h := p.Connect(addr, ":", "1000", "", "")
	if protocol.IsError(h) {
		t.Fatalf("Connect() = %q; want handle", h)
	}
	mustEqual(t, "TaskStatus() after connect", poll(t, p, h), protocol.LabelConnected)
	mustEqual(t, "TaskStatus() when idle", p.TaskStatus(h), "ERR|no active task")

	mustEqual(t, "SendData()", p.SendData(h, b64("ping")), protocol.StatusSpawned)
	mustEqual(t, "TaskStatus() after send", poll(t, p, h), protocol.LabelSent)

	mustEqual(t, "RecvExact()", p.RecvExact(h, "4"), protocol.StatusSpawned)
	got, err := base64.StdEncoding.DecodeString(poll(t, p, h))
	if err != nil || string(got) != "ping" {
		t.Fatalf("RecvExact result = (%q, %v); want \"ping\"", got, err)
	}

	mustEqual(t, "SendData()", p.SendData(h, b64("line\nrest")), protocol.StatusSpawned)
	poll(t, p, h)
	mustEqual(t, "RecvUntil()", p.RecvUntil(h, b64("\n")), protocol.StatusSpawned)
	mustEqual(t, "TaskStatus() after recv_until", poll(t, p, h), b64("line\n"))

	mustEqual(t, "Handles()", p.Handles(), "1")
	mustEqual(t, "Disconnect()", p.Disconnect(h), protocol.StatusOK)
	mustEqual(t, "second Disconnect()", p.Disconnect(h), "ERR|connection not found")
	mustEqual(t, "SendData() after disconnect", p.SendData(h, b64("x")), "ERR|connection not found")
}

func TestProtocol_ExclusiveOwnership(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	t.Parallel()

	p := newProtocol(t)
	h := p.Connect(helpers.StartSilentServer(t), "", "0", "", "")
	poll(t, p, h)

	mustEqual(t, "RecvExact()", p.RecvExact(h, "4"), protocol.StatusSpawned)
	want := protocol.Fail(engine.ErrNoStreamAvailable)
	mustEqual(t, "SendData() while receiving", p.SendData(h, b64("x")), want)
	mustEqual(t, "SetReadTimeout() while receiving", p.SetReadTimeout(h, "10"), want)
	mustEqual(t, "TaskStatus() while receiving", p.TaskStatus(h), protocol.StatusWait)
}

func TestProtocol_ReadTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	t.Parallel()

	p := newProtocol(t)
	h := p.Connect(helpers.StartSilentServer(t), ":", "1000", "", "")
	poll(t, p, h)

	mustEqual(t, "SetReadTimeout()", p.SetReadTimeout(h, "50"), protocol.StatusOK)
	start := time.Now()
	mustEqual(t, "RecvExact()", p.RecvExact(h, "8"), protocol.StatusSpawned)
	if resp := poll(t, p, h); !protocol.IsError(resp) {
		t.Errorf("TaskStatus() = %q; want timeout error", resp)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s; want about 50ms", elapsed)
	}
}

func TestProtocol_SOCKS5Equivalence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	t.Parallel()

	p := newProtocol(t)
	addr := helpers.StartEchoServer(t)
	socks := helpers.StartSOCKS5Proxy(t, "user", "secret")

	for _, spec := range []string{":", socks + "|SOCKS5:user:secret"} {
		h := p.Connect(addr, spec, "1000", "true", "")
		mustEqual(t, "TaskStatus() after connect via "+spec, poll(t, p, h), protocol.LabelConnected)
		mustEqual(t, "SendData()", p.SendData(h, b64("hello")), protocol.StatusSpawned)
		poll(t, p, h)
		mustEqual(t, "RecvExact()", p.RecvExact(h, "5"), protocol.StatusSpawned)
		mustEqual(t, "TaskStatus() via "+spec, poll(t, p, h), b64("hello"))
	}

	h := p.Connect(addr, socks+"|SOCKS5:user:wrong", "1000", "", "")
	if resp := poll(t, p, h); !strings.Contains(resp, "credentials") {
		t.Errorf("TaskStatus() with wrong credentials = %q; want credentials error", resp)
	}
	mustEqual(t, "TaskStatus() after failed connect", p.TaskStatus(h), "ERR|connection not found")
}

func TestProtocol_WebSocket(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	t.Parallel()

	p := newProtocol(t)
	u := helpers.StartWSEchoServer(t, false)

	h := p.ConnectWS(u.String(), ":", "1000", "")
	mustEqual(t, "TaskStatus() after connect", poll(t, p, h), protocol.LabelConnected)

	mustEqual(t, "SendMessage(text)", p.SendMessage(h, "text", "hi"), protocol.StatusSpawned)
	mustEqual(t, "TaskStatus() after send", poll(t, p, h), protocol.LabelSent)
	mustEqual(t, "ReadMessage()", p.ReadMessage(h), protocol.StatusSpawned)
	mustEqual(t, "TaskStatus() after read", poll(t, p, h), "TEXT|hi")

	mustEqual(t, "SendMessage(binary)", p.SendMessage(h, "binary", "AAEC"), protocol.StatusSpawned)
	poll(t, p, h)
	mustEqual(t, "ReadMessage()", p.ReadMessage(h), protocol.StatusSpawned)
	mustEqual(t, "TaskStatus() after read", poll(t, p, h), "BINARY|AAEC")

	mustEqual(t, "SendMessage(ping)", p.SendMessage(h, "ping", ""), "ERR|unsupported message type: ping")
	mustEqual(t, "DisconnectWS()", p.DisconnectWS(h, "1000", "bye"), protocol.StatusOK)
}

func TestProtocol_SynchronousErrors(t *testing.T) {
	t.Parallel()
	p := newProtocol(t)

	tests := []struct {
		name string
		resp string
		want string
	}{
		{"bad proxy", p.Connect("127.0.0.1:1", "nonsense", "1000", "", ""), "ERR|not a valid proxy"},
		{"unsupported proxy type", p.Connect("127.0.0.1:1", "127.0.0.1:1080|SOCKS6", "1000", "", ""), "ERR|unsupported proxy type"},
		{"bad timeout", p.Connect("127.0.0.1:1", ":", "soon", "", ""), "ERR|invalid timeout"},
		{"target without port", p.Connect("example.com", ":", "1000", "", ""), "ERR|not a valid target"},
		{"target without host", p.Connect(":80", ":", "1000", "", ""), "ERR|not a valid target"},
		{"target port out of range", p.Connect("127.0.0.1:70000", ":", "1000", "", ""), "ERR|not a valid target"},
		{"bad ws url", p.ConnectWS("http://example.com", ":", "1000", ""), "ERR|not a valid target"},
		{"bad payload", p.SendData("h", "!!"), "ERR|invalid base64 payload"},
		{"bad length", p.RecvExact("h", "-1"), "ERR|invalid length"},
		{"bad delimiter", p.RecvUntil("h", "!!"), "ERR|invalid base64 delimiter"},
		{"unknown handle", p.RecvEnd("h"), "ERR|connection not found"},
		{"unknown handle status", p.TaskStatus("h"), "ERR|connection not found"},
		{"unknown handle disconnect", p.DisconnectWS("h", "x", ""), "ERR|connection not found"},
	}

	for _, tc := range tests {
		if !strings.HasPrefix(tc.resp, tc.want) {
			t.Errorf("%s: response = %q; want prefix %q", tc.name, tc.resp, tc.want)
		}
	}
	if got := p.Handles(); got != "0" {
		t.Errorf("Handles() = %q; want 0 after rejected requests", got)
	}
}

func TestProtocol_Call(t *testing.T) {
	t.Parallel()
	p := newProtocol(t)

	tests := []struct {
		op   string
		args []string
		want string
	}{
		{"handles", nil, "0"},
		{"task_status", []string{"nope"}, "ERR|connection not found"},
		{"disconnect_ws", []string{"nope"}, "ERR|connection not found"},
		{"bogus", nil, "ERR|unknown operation"},
		{"task_status", nil, "ERR|wrong number of arguments: task_status expects handle"},
		{"connect", []string{"a"}, "ERR|wrong number of arguments"},
		{"handles", []string{"x"}, "ERR|wrong number of arguments: handles expects no arguments"},
	}

	for _, tc := range tests {
		if got := p.Call(tc.op, tc.args...); !strings.HasPrefix(got, tc.want) {
			t.Errorf("Call(%q, %q) = %q; want prefix %q", tc.op, tc.args, got, tc.want)
		}
	}
}

func TestOperations(t *testing.T) {
	t.Parallel()

	ops := protocol.Operations()
	for _, want := range []string{"connect", "connect_ws", "send_data", "task_status", "disconnect"} {
		found := false
		for _, op := range ops {
			found = found || op == want
		}
		if !found {
			t.Errorf("Operations() = %v; missing %q", ops, want)
		}
	}
}
