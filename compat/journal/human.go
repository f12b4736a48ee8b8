package journal

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// HumanWriter writes events as human-readable log lines. Each event type is
// logged at a fixed level; events below the writer's level are dropped.
type HumanWriter struct {
	log zerolog.Logger
}

var _ compat.Journaler = (*HumanWriter)(nil)

// NewHumanWriter creates a new human writer. Colors are used if w is a
// terminal.
func NewHumanWriter(w io.Writer, level zerolog.Level) *HumanWriter {
	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
	}

	return &HumanWriter{
		log: zerolog.New(console).Level(level),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// EventLevel returns the level that the event type is logged at.
func EventLevel(ev compat.Event) zerolog.Level {
	switch ev.(type) {
	case *compat.EventChannelFatal, *compat.EventPublishError:
		return zerolog.ErrorLevel
	case *compat.EventWarning, *compat.EventCommandRejected, *compat.EventCommandFailed:
		return zerolog.WarnLevel
	case *compat.EventChannelClosed, *compat.EventCommandExecuting, *compat.EventPublished:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Write logs the event with its fields.
func (h *HumanWriter) Write(ev compat.Event) error {
	return h.WriteAt(time.Now(), ev)
}

// WriteAt logs the event as if it happened at the given time. It is used to
// print events read back from a journal file.
func (h *HumanWriter) WriteAt(t time.Time, ev compat.Event) error {
	e := h.log.WithLevel(EventLevel(ev))
	if e == nil {
		return nil
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return errors.Wrap(err, "failed to unmarshal event fields")
	}

	e.Time(zerolog.TimestampFieldName, t).Fields(fields).Msg(ev.Type())
	return nil
}
