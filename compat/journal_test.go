package compat

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

// mockJournal is an in-memory storage of journals, primarily used for testing.
// A zero-value instance is a valid instance.
type mockJournal struct {
	mutex    sync.Mutex
	finalize bool
	journals []Event
}

var _ Journaler = (*mockJournal)(nil)

// Finalize locks the memory store. Future writes will cause a panic.
func (m *mockJournal) Finalize() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.finalize = true
}

// Write appends a journal event into the internal store.
func (m *mockJournal) Write(ev Event) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.finalize {
		panic("log write when finalized")
	}

	m.journals = append(m.journals, ev)
	return nil
}

// Journals returns a copy of the journal slice.
func (m *mockJournal) Journals() []Event {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return append([]Event(nil), m.journals...)
}

// OfType returns the stored events with the given type, in order.
func (m *mockJournal) OfType(eventType string) []Event {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var events []Event
	for _, ev := range m.journals {
		if ev.Type() == eventType {
			events = append(events, ev)
		}
	}
	return events
}

// WaitFor polls until at least n events of the given type are stored or the
// timeout is reached, in which case the test fails.
func (m *mockJournal) WaitFor(t *testing.T, eventType string, n int) []Event {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		events := m.OfType(eventType)
		if len(events) >= n {
			return events
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d %q events, got %d", n, eventType, len(events))
		}

		time.Sleep(5 * time.Millisecond)
	}
}

// Verify verifies that the given journals slice is equal to the one stored
// internally. If strict is true, then a length check is performed, otherwise,
// the unmatched events are returned.
//
// Consecutive calls to Verify will match the remaining unmatched events.
func (m *mockJournal) Verify(t *testing.T, strict bool, journals []Event) []Event {
	t.Helper()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if strict && len(journals) != len(m.journals) {
		t.Errorf("mismatch journal length, got %d, expected %d", len(m.journals), len(journals))
		return nil
	}

	if len(journals) > len(m.journals) {
		t.Errorf("journal too short, got %d, expected at least %d", len(m.journals), len(journals))
		return nil
	}

	for i, ev := range journals {
		if !reflect.DeepEqual(m.journals[i], ev) {
			t.Errorf("journal %d mismatch, got %#v, expected %#v", i, m.journals[i], ev)
		}
	}

	m.journals = m.journals[len(journals):]
	return m.journals
}

func TestNewEvent(t *testing.T) {
	events := []Event{
		&EventWarning{},
		&EventAcquired{},
		&EventChannelReady{},
		&EventChannelClosed{},
		&EventChannelFatal{},
		&EventCommandRejected{},
		&EventCommandExecuting{},
		&EventCommandFailed{},
		&EventPublished{},
		&EventPublishError{},
		&EventObjectsReloaded{},
	}

	for _, ev := range events {
		got := NewEvent(ev.Type())
		if !reflect.DeepEqual(got, ev) {
			t.Errorf("NewEvent(%q) = %#v, expected %#v", ev.Type(), got, ev)
		}
	}

	if ev := NewEvent("nope"); ev != nil {
		t.Errorf("unknown type gave %#v", ev)
	}
}
