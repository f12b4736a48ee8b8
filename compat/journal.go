package compat

// Journaler describes an event logger. Implementations must be safe for
// concurrent use, since the channel, the dispatcher workers and the publisher
// all write to the same journal.
type Journaler interface {
	Write(Event) error
}

// Discard is a journaler that drops every event.
var Discard Journaler = discardJournaler{}

type discardJournaler struct{}

func (discardJournaler) Write(Event) error { return nil }
