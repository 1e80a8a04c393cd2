package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func post(t *testing.T, url, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, string(data)
}

func TestServer_Call(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(NewServer(newProtocol(t), 0, nil).Handler())
	defer ts.Close()

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"no body", "/v1/handles", "", http.StatusOK, "0"},
		{"empty args", "/v1/handles", `{"args": []}`, http.StatusOK, "0"},
		{"protocol error", "/v1/task_status", `{"args": ["nope"]}`, http.StatusOK, "ERR|connection not found"},
		{"argument count", "/v1/task_status", `{}`, http.StatusOK, "ERR|wrong number of arguments"},
		{"unknown operation", "/v1/bogus", `{}`, http.StatusNotFound, "unknown operation"},
		{"bad json", "/v1/handles", `{"args": [1]}`, http.StatusBadRequest, "invalid request body"},
	}

	for _, tc := range tests {
		status, body := post(t, ts.URL+tc.path, tc.body)
		if status != tc.wantStatus {
			t.Errorf("%s: status = %d; want %d", tc.name, status, tc.wantStatus)
		}
		if !strings.HasPrefix(body, tc.wantBody) {
			t.Errorf("%s: body = %q; want prefix %q", tc.name, body, tc.wantBody)
		}
	}
}

func TestServer_Saturated(t *testing.T) {
	t.Parallel()

	s := NewServer(newProtocol(t), 1, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	if !s.sem.TryAcquire(1) {
		t.Fatal("TryAcquire() failed on idle server")
	}
	status, _ := post(t, ts.URL+"/v1/handles", "")
	s.sem.Release(1)

	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want %d", status, http.StatusServiceUnavailable)
	}
	if status, _ := post(t, ts.URL+"/v1/handles", ""); status != http.StatusOK {
		t.Errorf("status after release = %d; want %d", status, http.StatusOK)
	}
}

func TestServer_HealthzAndMetrics(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(NewServer(newProtocol(t), 0, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	resp.Body.Close()
	if health["status"] != "ok" {
		t.Errorf("healthz status = %q; want ok", health["status"])
	}

	post(t, ts.URL+"/v1/handles", "")

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"pollcat_http_requests_total", "pollcat_handles"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServer_Operations(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(NewServer(newProtocol(t), 0, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1")
	if err != nil {
		t.Fatalf("GET /v1: %v", err)
	}
	defer resp.Body.Close()

	var body map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body["operations"]) == 0 {
		t.Error("GET /v1 returned no operations")
	}
}

func TestServer_Serve(t *testing.T) {
	t.Parallel()

	nl, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}

	s := NewServer(newProtocol(t), 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, nl) }()

	status, body := post(t, "http://"+nl.Addr().String()+"/v1/handles", "")
	if status != http.StatusOK || body != "0" {
		t.Errorf("POST /v1/handles = (%d, %q); want (200, \"0\")", status, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
