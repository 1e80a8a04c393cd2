package engine

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTask_Lifecycle(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	task := newTask(KindSend, nil, func() (Outcome, error) {
		close(started)
		<-release
		return Outcome{Data: []byte("x")}, nil
	})

	if task.Running() || task.Done() {
		t.Fatal("new task is running or done; want pending")
	}
	if _, ok := task.take(); ok {
		t.Fatal("take() on pending task = true; want false")
	}

	go task.run()
	<-started
	if !task.Running() {
		t.Error("Running() = false while job blocks; want true")
	}
	close(release)

	var res result
	for {
		var ok bool
		if res, ok = task.take(); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if res.err != nil || string(res.outcome.Data) != "x" {
		t.Errorf("take() = (%q, %v); want (\"x\", nil)", res.outcome.Data, res.err)
	}
	if res.outcome.Kind != KindSend {
		t.Errorf("outcome Kind = %s; want %s", res.outcome.Kind, KindSend)
	}
	if _, ok := task.take(); ok {
		t.Error("second take() = true; want result delivered once")
	}
}

func TestTask_PanicRecovered(t *testing.T) {
	t.Parallel()

	task := newTask(KindRecvEnd, nil, func() (Outcome, error) {
		panic("boom")
	})
	task.run()

	res, ok := task.take()
	if !ok {
		t.Fatal("take() = false after run; want true")
	}
	if res.err == nil || !strings.Contains(res.err.Error(), "boom") {
		t.Errorf("take() error = %v; want panic message", res.err)
	}
	if !task.Done() {
		t.Error("Done() = false after run; want true")
	}
}

func TestTask_Fail(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("never ran")
	task := newTask(KindSend, nil, func() (Outcome, error) { return Outcome{}, nil })
	task.fail(wantErr)

	if !task.Done() {
		t.Error("Done() = false after fail; want true")
	}
	res, ok := task.take()
	if !ok || !errors.Is(res.err, wantErr) {
		t.Errorf("take() = (%v, %v); want (%v, true)", res.err, ok, wantErr)
	}
}

func TestTaskKind_String(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, k := range taskKinds {
		s := k.String()
		if strings.HasPrefix(s, "TaskKind(") || seen[s] {
			t.Errorf("TaskKind(%d).String() = %q; want unique name", int(k), s)
		}
		seen[s] = true
	}
}
