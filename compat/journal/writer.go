package journal

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat"
	"github.com/pkg/errors"
)

// Event describes the JSON structure of an event to be written.
type Event struct {
	Time time.Time    `json:"time"`
	Type string       `json:"type"`
	Data compat.Event `json:"data"`
}

// Writer is a simple journaler that writes line-delimited JSON events into the
// writer.
type Writer struct{ w io.Writer }

var _ compat.Journaler = (*Writer)(nil)

// NewWriter creates a new journal writer.
func NewWriter(w io.Writer) Writer {
	return Writer{w}
}

// Write writes the given event into the writer. Each event is written with a
// single Write call, so writes are atomic as long as the underlying writer's
// are.
func (l Writer) Write(ev compat.Event) error {
	evJSON := Event{
		Time: time.Now(),
		Type: ev.Type(),
		Data: ev,
	}

	buf := bytes.Buffer{}
	buf.Grow(512)

	// Encode appends the new line.
	if err := json.NewEncoder(&buf).Encode(evJSON); err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	_, err := l.w.Write(buf.Bytes())
	if err != nil {
		return errors.Wrap(err, "failed to write event")
	}

	return nil
}
