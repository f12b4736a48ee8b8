package compat

// eventType describes an event type.
type eventType = string

const (
	eventWarning          eventType = "warning"
	eventAcquired         eventType = "acquired lock"
	eventChannelReady     eventType = "channel ready"
	eventChannelClosed    eventType = "channel closed"
	eventChannelFatal     eventType = "channel fatal"
	eventCommandRejected  eventType = "command rejected"
	eventCommandExecuting eventType = "command executing"
	eventCommandFailed    eventType = "command failed"
	eventPublished        eventType = "published"
	eventPublishError     eventType = "publish error"
	eventObjectsReloaded  eventType = "objects reloaded"
)

// Event is an interface describing known events.
type Event interface {
	Type() string
	event()
}

// NewEvent creates a new event from the given event type. It is used primarily
// for decoding events from its type. Nil is returned if the event type is
// unknown.
func NewEvent(eventType string) Event {
	switch eventType {
	case eventWarning:
		return &EventWarning{}
	case eventAcquired:
		return &EventAcquired{}
	case eventChannelReady:
		return &EventChannelReady{}
	case eventChannelClosed:
		return &EventChannelClosed{}
	case eventChannelFatal:
		return &EventChannelFatal{}
	case eventCommandRejected:
		return &EventCommandRejected{}
	case eventCommandExecuting:
		return &EventCommandExecuting{}
	case eventCommandFailed:
		return &EventCommandFailed{}
	case eventPublished:
		return &EventPublished{}
	case eventPublishError:
		return &EventPublishError{}
	case eventObjectsReloaded:
		return &EventObjectsReloaded{}
	default:
		return nil
	}
}

// EventWarning is emitted when a non-fatal error occurs.
type EventWarning struct {
	Component string `json:"component"`
	Error     string `json:"error"`
}

func (ev *EventWarning) Type() string { return eventWarning }
func (ev *EventWarning) event()       {}

// EventAcquired is emitted when the flock (i.e. write lock on the journal) is
// acquired, which is on startup.
type EventAcquired struct {
	PID int `json:"pid"`
}

func (ev *EventAcquired) Type() string { return eventAcquired }
func (ev *EventAcquired) event()       {}

// EventChannelReady is emitted once the command pipe exists and the channel
// starts waiting for writers.
type EventChannelReady struct {
	Path string `json:"path"`
	// Created is true if the pipe had to be created, false if an existing one
	// is reused.
	Created bool `json:"created"`
}

func (ev *EventChannelReady) Type() string { return eventChannelReady }
func (ev *EventChannelReady) event()       {}

// EventChannelClosed is emitted when a writer closes its end of the command
// pipe. The channel reopens the pipe afterwards.
type EventChannelClosed struct {
	Path  string `json:"path"`
	Lines int    `json:"lines"`
}

func (ev *EventChannelClosed) Type() string { return eventChannelClosed }
func (ev *EventChannelClosed) event()       {}

// EventChannelFatal is emitted when the command channel stops because the
// pipe cannot be created or opened.
type EventChannelFatal struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func (ev *EventChannelFatal) Type() string { return eventChannelFatal }
func (ev *EventChannelFatal) event()       {}

// EventCommandRejected is emitted when a line read from the command pipe
// cannot be decoded.
type EventCommandRejected struct {
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

func (ev *EventCommandRejected) Type() string { return eventCommandRejected }
func (ev *EventCommandRejected) event()       {}

// EventCommandExecuting is emitted right before a command is handed to the
// executor.
type EventCommandExecuting struct {
	ID      string `json:"id"`
	Command string `json:"command"`
}

func (ev *EventCommandExecuting) Type() string { return eventCommandExecuting }
func (ev *EventCommandExecuting) event()       {}

// EventCommandFailed is emitted when the executor returns an error or panics.
type EventCommandFailed struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Error   string `json:"error"`
}

func (ev *EventCommandFailed) Type() string { return eventCommandFailed }
func (ev *EventCommandFailed) event()       {}

// EventPublished is emitted after both snapshot files have been replaced.
type EventPublished struct {
	StatusPath  string  `json:"status_path"`
	ObjectsPath string  `json:"objects_path"`
	Objects     int     `json:"objects"`
	Seconds     float64 `json:"seconds"`
}

func (ev *EventPublished) Type() string { return eventPublished }
func (ev *EventPublished) event()       {}

// EventPublishError is emitted when a publish cycle fails. The previously
// published files are left as they were.
type EventPublishError struct {
	Error string `json:"error"`
}

func (ev *EventPublishError) Type() string { return eventPublishError }
func (ev *EventPublishError) event()       {}

// EventObjectsReloaded is emitted when the object definitions are reloaded
// from the objects file.
type EventObjectsReloaded struct {
	File string `json:"file"`
}

func (ev *EventObjectsReloaded) Type() string { return eventObjectsReloaded }
func (ev *EventObjectsReloaded) event()       {}
