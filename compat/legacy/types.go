// Package legacy describes the monitored objects as the legacy status and
// objects cache files see them, and renders them into those formats.
//
// The entity types here are plain values. Whoever hands them to the encoders
// is expected to have copied them out of the live registry, so an encoder
// never observes an object halfway through an update.
package legacy

// Kind is the kind of a monitored entity. The set of kinds is closed.
type Kind int

const (
	KindHost Kind = iota
	KindHostGroup
	KindService
	KindServiceGroup
)

// Kinds lists every kind in the order that the snapshot files are written.
// Readers of the legacy files may assume that hosts come before the groups
// referencing them.
var Kinds = [...]Kind{KindHost, KindHostGroup, KindService, KindServiceGroup}

func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindHostGroup:
		return "hostgroup"
	case KindService:
		return "service"
	case KindServiceGroup:
		return "servicegroup"
	default:
		return "unknown"
	}
}

// Entity is one of Host, HostGroup, Service or ServiceGroup.
type Entity interface {
	Kind() Kind
	entity()
}

// ServiceState is the state of a service check.
type ServiceState int

const (
	StateOK ServiceState = iota
	StateWarning
	StateCritical
	StateUnknown
)

// Clamp coerces states that the legacy format cannot express into
// StateUnknown.
func (s ServiceState) Clamp() ServiceState {
	if s > StateUnknown {
		return StateUnknown
	}
	return s
}

// StateType is either soft or hard.
type StateType int

const (
	StateTypeSoft StateType = iota
	StateTypeHard
)

// AcknowledgementType describes whether and how a problem was acknowledged.
type AcknowledgementType int

const (
	AcknowledgementNone AcknowledgementType = iota
	AcknowledgementNormal
	AcknowledgementSticky
)

// CheckResult is the last result of a service check. All times are Unix
// seconds.
type CheckResult struct {
	Output   string
	PerfData string

	ScheduleStart  float64
	ScheduleEnd    float64
	ExecutionStart float64
	ExecutionEnd   float64
}

// ExecutionTime returns how long the check took to execute.
func (cr *CheckResult) ExecutionTime() float64 {
	if cr == nil {
		return 0
	}
	return cr.ExecutionEnd - cr.ExecutionStart
}

// Latency returns how long the check waited beyond its execution time.
func (cr *CheckResult) Latency() float64 {
	if cr == nil {
		return 0
	}
	return (cr.ScheduleEnd - cr.ScheduleStart) - cr.ExecutionTime()
}

// Host is a monitored host.
type Host struct {
	Name      string
	Alias     string
	Parents   []string
	Reachable bool
	Up        bool
}

func (Host) Kind() Kind { return KindHost }
func (Host) entity()    {}

// State returns the legacy host state: 0 up, 1 down, 2 unreachable.
func (h Host) State() int {
	switch {
	case !h.Reachable:
		return 2
	case !h.Up:
		return 1
	default:
		return 0
	}
}

// Service is a monitored service bound to a host.
type Service struct {
	HostName    string
	Description string

	// CheckInterval and RetryInterval are in seconds.
	CheckInterval float64
	RetryInterval float64

	LastCheckResult *CheckResult

	State               ServiceState
	StateType           StateType
	NextCheck           float64
	CurrentAttempt      int
	MaxAttempts         int
	LastStateChange     float64
	LastHardStateChange float64

	ActiveChecks  bool
	PassiveChecks bool

	Acknowledgement       AcknowledgementType
	AcknowledgementExpiry float64
}

func (Service) Kind() Kind { return KindService }
func (Service) entity()    {}

// HostGroup is a named set of hosts.
type HostGroup struct {
	Name      string
	Alias     string
	NotesURL  string
	ActionURL string
	Members   []string
}

func (HostGroup) Kind() Kind { return KindHostGroup }
func (HostGroup) entity()    {}

// ServiceRef names a service by its host and description.
type ServiceRef struct {
	Host        string
	Description string
}

// ServiceGroup is a named set of services.
type ServiceGroup struct {
	Name      string
	Alias     string
	NotesURL  string
	ActionURL string
	Members   []ServiceRef
}

func (ServiceGroup) Kind() Kind { return KindServiceGroup }
func (ServiceGroup) entity()    {}

// ProgramStatus is the daemon-wide section of the status file.
type ProgramStatus struct {
	PID       int
	StartTime float64
	// CheckStats is the number of check results processed within the last
	// 1, 5 and 15 minutes.
	CheckStats [3]int
}
