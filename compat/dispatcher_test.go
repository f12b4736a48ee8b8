package compat

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat/extcmd"
	"github.com/pkg/errors"
)

type execCall struct {
	Timestamp float64
	Name      string
	Arguments []string
}

// mockExecutor records executed commands and answers with fn.
type mockExecutor struct {
	calls chan execCall
	fn    func(name string) error
}

func newMockExecutor(fn func(name string) error) *mockExecutor {
	return &mockExecutor{
		calls: make(chan execCall, 128),
		fn:    fn,
	}
}

func (m *mockExecutor) Execute(ts float64, name string, args []string) error {
	m.calls <- execCall{ts, name, args}
	if m.fn != nil {
		return m.fn(name)
	}
	return nil
}

func (m *mockExecutor) Next(t *testing.T) execCall {
	t.Helper()

	select {
	case call := <-m.calls:
		return call
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for execution")
		return execCall{}
	}
}

func TestDispatcher(t *testing.T) {
	t.Run("execute", func(t *testing.T) {
		j := mockJournal{}
		exec := newMockExecutor(nil)

		d := NewDispatcher(context.Background(), exec, &j, WithWorkerCount(1))
		defer d.Stop()

		d.Submit(extcmd.Command{
			Timestamp: 1700000000,
			Name:      "SCHEDULE_SVC_CHECK",
			Arguments: []string{"myhost", "myservice", "1700000100"},
		})

		call := exec.Next(t)
		expect := execCall{1700000000, "SCHEDULE_SVC_CHECK", []string{"myhost", "myservice", "1700000100"}}
		if !reflect.DeepEqual(call, expect) {
			t.Errorf("got %#v, expected %#v", call, expect)
		}

		ev := j.WaitFor(t, eventCommandExecuting, 1)[0].(*EventCommandExecuting)
		if ev.Command != "[1700000000] SCHEDULE_SVC_CHECK;myhost;myservice;1700000100" {
			t.Errorf("unexpected journaled command %q", ev.Command)
		}
		if ev.ID == "" {
			t.Error("missing command ID")
		}
	})

	t.Run("errors", func(t *testing.T) {
		j := mockJournal{}
		exec := newMockExecutor(func(name string) error {
			switch name {
			case "FAIL":
				return errors.New("no such thing")
			case "PANIC":
				panic("oh no")
			}
			return nil
		})

		d := NewDispatcher(context.Background(), exec, &j, WithWorkerCount(2))
		defer d.Stop()

		d.Submit(extcmd.Command{Timestamp: 1, Name: "FAIL"})
		d.Submit(extcmd.Command{Timestamp: 1, Name: "PANIC"})
		d.Submit(extcmd.Command{Timestamp: 1, Name: "OK"})

		for i := 0; i < 3; i++ {
			exec.Next(t)
		}

		failed := j.WaitFor(t, eventCommandFailed, 2)

		reasons := map[string]string{}
		for _, ev := range failed {
			ev := ev.(*EventCommandFailed)
			reasons[ev.Command] = ev.Error
		}

		expect := map[string]string{
			"[1] FAIL":  "no such thing",
			"[1] PANIC": "panic: oh no",
		}
		if !reflect.DeepEqual(reasons, expect) {
			t.Errorf("got failures %v, expected %v", reasons, expect)
		}
	})

	t.Run("never blocks", func(t *testing.T) {
		j := mockJournal{}

		gate := make(chan struct{})
		exec := newMockExecutor(func(string) error {
			<-gate
			return nil
		})

		d := NewDispatcher(context.Background(), exec, &j, WithWorkerCount(1))

		done := make(chan struct{})
		go func() {
			for i := 0; i < 100; i++ {
				d.Submit(extcmd.Command{Timestamp: 1, Name: "SLOW"})
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Submit blocked on a busy executor")
		}

		// One command is stuck in the executor; the rest are queued.
		exec.Next(t)
		if n := d.Pending(); n != 99 {
			t.Errorf("got %d pending commands, expected 99", n)
		}

		close(gate)

		for i := 0; i < 99; i++ {
			exec.Next(t)
		}

		d.Stop()
	})

	t.Run("stop drops queue", func(t *testing.T) {
		j := mockJournal{}

		gate := make(chan struct{})
		exec := newMockExecutor(func(string) error {
			<-gate
			return nil
		})

		d := NewDispatcher(context.Background(), exec, &j, WithWorkerCount(1))

		for i := 0; i < 5; i++ {
			d.Submit(extcmd.Command{Timestamp: 1, Name: "SLOW"})
		}
		exec.Next(t)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Stop()
		}()

		// Let Stop cancel the workers before releasing the running command.
		time.Sleep(10 * time.Millisecond)
		close(gate)
		wg.Wait()

		warnings := j.OfType(eventWarning)
		if len(warnings) != 1 {
			t.Fatalf("got %d warnings, expected 1", len(warnings))
		}

		expect := &EventWarning{
			Component: "dispatcher",
			Error:     "dropped 4 queued commands on shutdown",
		}
		if !reflect.DeepEqual(warnings[0], expect) {
			t.Errorf("got %#v, expected %#v", warnings[0], expect)
		}
	})

	t.Run("rate limit", func(t *testing.T) {
		j := mockJournal{}
		exec := newMockExecutor(nil)

		d := NewDispatcher(context.Background(), exec, &j,
			WithWorkerCount(4),
			WithRateLimit(20, 1),
		)
		defer d.Stop()

		start := time.Now()
		for i := 0; i < 5; i++ {
			d.Submit(extcmd.Command{Timestamp: 1, Name: "X"})
		}
		for i := 0; i < 5; i++ {
			exec.Next(t)
		}

		// Five commands at 20/s with a burst of one take at least 200ms.
		if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
			t.Errorf("rate limit not applied, took %v", elapsed)
		}
	})
}
