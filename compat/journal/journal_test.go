package journal

import (
	"bytes"
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func TestFileLockJournaler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "journal.json")

	j, err := NewFileLockJournaler(path)
	if err != nil {
		t.Fatal("failed to create journaler:", err)
	}

	if _, err := NewFileLockJournaler(path); !errors.Is(err, ErrLockedElsewhere) {
		t.Fatalf("second journaler got %v, expected ErrLockedElsewhere", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := NewFileLockJournalerWait(ctx, path); !errors.Is(err, ErrLockedElsewhere) {
		t.Fatalf("waiting journaler got %v, expected ErrLockedElsewhere", err)
	}

	events := []compat.Event{
		&compat.EventAcquired{PID: 42},
		&compat.EventChannelReady{Path: "/run/icinga.cmd", Created: true},
		&compat.EventCommandRejected{Line: "garbage", Reason: "missing timestamp in command: garbage"},
	}

	for _, ev := range events {
		if err := j.Write(ev); err != nil {
			t.Fatal("failed to write:", err)
		}
	}

	if err := j.Close(); err != nil {
		t.Fatal("failed to close:", err)
	}

	entries, err := TailFile(path, 10)
	if err != nil {
		t.Fatal("failed to read journal:", err)
	}

	if len(entries) != len(events) {
		t.Fatalf("got %d entries, expected %d", len(entries), len(events))
	}

	for i, entry := range entries {
		if !reflect.DeepEqual(entry.Event, events[i]) {
			t.Errorf("entry %d: got %#v, expected %#v", i, entry.Event, events[i])
		}
		if entry.Time.IsZero() {
			t.Errorf("entry %d has no time", i)
		}
	}

	// The lock is released on Close.
	j, err = NewFileLockJournaler(path)
	if err != nil {
		t.Fatal("failed to reacquire journaler:", err)
	}
	j.Close()
}

func TestTail(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	for i := 0; i < 5; i++ {
		w.Write(&compat.EventChannelClosed{Path: "icinga.cmd", Lines: i})
	}

	// A truncated line and an unknown event are skipped.
	buf.WriteString(`{"time":"2024-01-01T00:00:00Z","type":"from the future","data":{}}` + "\n")
	buf.WriteString(`{"time":"2024-01-01T00:00:00Z","ty` + "\n")

	entries, err := Tail(bytes.NewReader(buf.Bytes()), 3)
	if err != nil {
		t.Fatal("failed to tail:", err)
	}

	var lines []int
	for _, entry := range entries {
		lines = append(lines, entry.Event.(*compat.EventChannelClosed).Lines)
	}

	if !reflect.DeepEqual(lines, []int{2, 3, 4}) {
		t.Errorf("got entries %v, expected [2 3 4]", lines)
	}

	entries, err = Tail(bytes.NewReader(nil), 3)
	if err != nil {
		t.Fatal("failed to tail empty journal:", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries from an empty journal", len(entries))
	}
}

type failJournaler struct{ err error }

func (f failJournaler) Write(compat.Event) error { return f.err }

func TestMultiWriter(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	fail := errors.New("disk on fire")

	w := MultiWriter(failJournaler{fail}, NewWriter(&buf1), failJournaler{errors.New("later")}, NewWriter(&buf2))

	if err := w.Write(&compat.EventAcquired{PID: 1}); err != fail {
		t.Errorf("got error %v, expected the first one", err)
	}

	if buf1.Len() == 0 || buf1.String() != buf2.String() {
		t.Errorf("writers got %q and %q", buf1.String(), buf2.String())
	}
}

func TestHumanWriter(t *testing.T) {
	var buf bytes.Buffer
	h := NewHumanWriter(&buf, zerolog.InfoLevel)

	h.Write(&compat.EventWarning{Component: "channel", Error: "broken"})
	h.Write(&compat.EventPublished{StatusPath: "status.dat", Objects: 3})
	h.Write(&compat.EventPublishError{Error: "disk"})

	out := buf.String()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	if len(lines) != 2 {
		t.Fatalf("got %d lines, expected the debug event to be dropped:\n%s", len(lines), out)
	}

	for _, want := range []string{"WRN", "warning", "component=channel", "error=broken"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("warning line %q missing %q", lines[0], want)
		}
	}

	if !strings.Contains(lines[1], "ERR") || !strings.Contains(lines[1], "publish error") {
		t.Errorf("unexpected error line %q", lines[1])
	}
}

func TestEventLevel(t *testing.T) {
	tests := map[compat.Event]zerolog.Level{
		&compat.EventChannelFatal{}:     zerolog.ErrorLevel,
		&compat.EventCommandFailed{}:    zerolog.WarnLevel,
		&compat.EventCommandExecuting{}: zerolog.DebugLevel,
		&compat.EventObjectsReloaded{}:  zerolog.InfoLevel,
	}

	for ev, level := range tests {
		if got := EventLevel(ev); got != level {
			t.Errorf("EventLevel(%s) = %v, expected %v", ev.Type(), got, level)
		}
	}
}

func TestHumanWriterAt(t *testing.T) {
	var buf bytes.Buffer
	h := NewHumanWriter(&buf, zerolog.TraceLevel)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	h.WriteAt(at, &compat.EventObjectsReloaded{File: "objects.yml"})

	out := buf.String()
	if !strings.HasPrefix(out, "2024-01-02 03:04:05 INF objects reloaded") {
		t.Errorf("unexpected line %q", out)
	}
	if !strings.Contains(out, "file=objects.yml") {
		t.Errorf("line %q is missing the file field", out)
	}
}
