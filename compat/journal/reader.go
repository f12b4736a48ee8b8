package journal

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat"
	"git.unix.lgbt/diamondburned/compatd/compat/journal/backwardio"
	"github.com/pkg/errors"
)

// ErrMalformed is returned by Reader for entries that cannot be decoded.
var ErrMalformed = errors.New("malformed journal entry")

// Reader reads journals written by Writer from the newest entry to the oldest.
type Reader struct {
	b *backwardio.BackwardsReader
}

// NewReader creates a new journal reader.
func NewReader(r io.ReadSeeker) *Reader {
	return &Reader{backwardio.NewBackwardsReader(r)}
}

// Read reads a single entry, starting from the bottom of the file. An EOF
// error is returned if the file has been fully consumed.
func (r *Reader) Read() (compat.Event, time.Time, error) {
	line, err := r.b.ReadLine()
	if err != nil {
		return nil, time.Time{}, err
	}

	var rawEvent struct {
		Time time.Time       `json:"time"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(line, &rawEvent); err != nil {
		return nil, time.Time{}, errors.Wrapf(ErrMalformed, "failed to decode JSON: %v", err)
	}

	event := compat.NewEvent(rawEvent.Type)
	if event == nil {
		return nil, time.Time{}, errors.Wrapf(ErrMalformed, "unknown event %q", rawEvent.Type)
	}

	if err := json.Unmarshal(rawEvent.Data, event); err != nil {
		return nil, time.Time{}, errors.Wrapf(ErrMalformed, "failed to decode event data: %v", err)
	}

	return event, rawEvent.Time, nil
}

// Entry is a single decoded journal entry.
type Entry struct {
	Time  time.Time
	Event compat.Event
}

// Tail returns the last n entries, oldest first. Fewer are returned if the
// journal is shorter. Entries that cannot be decoded, such as events from a
// newer version, are skipped.
func Tail(r io.ReadSeeker, n int) ([]Entry, error) {
	reader := NewReader(r)
	entries := make([]Entry, 0, n)

	for len(entries) < n {
		ev, t, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, ErrMalformed) {
				continue
			}
			return nil, err
		}

		entries = append(entries, Entry{Time: t, Event: ev})
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}

// TailFile calls Tail on the file at the given path.
func TailFile(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Tail(f, n)
}
