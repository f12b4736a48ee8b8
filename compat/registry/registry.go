// Package registry provides the in-memory object registry: the hosts,
// services and groups that are being monitored along with their live check
// state.
//
// The Store is safe for concurrent use. Readers never get pointers into the
// store; every object handed out is a copy taken under the read lock, so one
// object is always seen in a coherent state even while commands are being
// applied concurrently.
package registry

import (
	"os"
	"sort"
	"sync"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat/legacy"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a command references an unknown object.
var ErrNotFound = errors.New("object not found")

// statsWindows are the windows of the check statistics in the program status.
var statsWindows = [3]time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}

type serviceKey struct {
	host        string
	description string
}

// Store is the object registry.
type Store struct {
	now   func() time.Time
	pid   int
	start time.Time

	mu            sync.RWMutex
	hosts         map[string]*legacy.Host
	services      map[serviceKey]*legacy.Service
	hostGroups    map[string]legacy.HostGroup
	serviceGroups map[string]legacy.ServiceGroup

	// results holds the times of processed check results within the largest
	// statistics window, oldest first.
	results []time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock of the store.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:           time.Now,
		pid:           os.Getpid(),
		hosts:         map[string]*legacy.Host{},
		services:      map[serviceKey]*legacy.Service{},
		hostGroups:    map[string]legacy.HostGroup{},
		serviceGroups: map[string]legacy.ServiceGroup{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.start = s.now()
	return s
}

// Load replaces all object definitions. The runtime state of hosts and
// services that survive the reload is kept, except for the active and
// passive check flags that the new definition sets explicitly.
func (s *Store) Load(objs Objects) error {
	if err := objs.Validate(); err != nil {
		return errors.Wrap(err, "invalid objects")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := unixTime(s.now())

	hosts := make(map[string]*legacy.Host, len(objs.Hosts))
	for _, def := range objs.Hosts {
		h, ok := s.hosts[def.Name]
		if !ok {
			h = &legacy.Host{Name: def.Name, Reachable: true, Up: true}
		}
		h.Alias = orDefault(def.Alias, def.Name)
		h.Parents = append([]string(nil), def.Parents...)
		hosts[def.Name] = h
	}

	services := make(map[serviceKey]*legacy.Service, len(objs.Services))
	for _, def := range objs.Services {
		key := serviceKey{def.Host, def.Description}

		svc, ok := s.services[key]
		if !ok {
			svc = &legacy.Service{
				HostName:       def.Host,
				Description:    def.Description,
				State:          legacy.StateUnknown,
				StateType:      legacy.StateTypeSoft,
				CurrentAttempt: 1,
				ActiveChecks:   true,
				PassiveChecks:  true,
			}
		}

		// Flags set in the definition win over runtime commands; unset ones
		// keep whatever the service has now.
		svc.ActiveChecks = boolOr(def.ActiveChecks, svc.ActiveChecks)
		svc.PassiveChecks = boolOr(def.PassiveChecks, svc.PassiveChecks)

		svc.CheckInterval = durationOr(def.CheckInterval, defaultCheckInterval).Seconds()
		svc.RetryInterval = durationOr(def.RetryInterval, defaultRetryInterval).Seconds()
		svc.MaxAttempts = def.MaxAttempts
		if svc.MaxAttempts == 0 {
			svc.MaxAttempts = defaultMaxAttempts
		}
		if svc.NextCheck == 0 {
			svc.NextCheck = now + svc.CheckInterval
		}

		services[key] = svc
	}

	hostGroups := make(map[string]legacy.HostGroup, len(objs.HostGroups))
	for _, def := range objs.HostGroups {
		hostGroups[def.Name] = legacy.HostGroup{
			Name:      def.Name,
			Alias:     orDefault(def.Alias, def.Name),
			NotesURL:  def.NotesURL,
			ActionURL: def.ActionURL,
			Members:   append([]string(nil), def.Members...),
		}
	}

	serviceGroups := make(map[string]legacy.ServiceGroup, len(objs.ServiceGroups))
	for _, def := range objs.ServiceGroups {
		members := make([]legacy.ServiceRef, len(def.Members))
		for i, m := range def.Members {
			members[i] = legacy.ServiceRef{Host: m.Host, Description: m.Description}
		}

		serviceGroups[def.Name] = legacy.ServiceGroup{
			Name:      def.Name,
			Alias:     orDefault(def.Alias, def.Name),
			NotesURL:  def.NotesURL,
			ActionURL: def.ActionURL,
			Members:   members,
		}
	}

	s.hosts = hosts
	s.services = services
	s.hostGroups = hostGroups
	s.serviceGroups = serviceGroups
	s.updateReachability()

	return nil
}

// Objects returns a copy of every object of the given kind, sorted by name.
func (s *Store) Objects(kind legacy.Kind) []legacy.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entities []legacy.Entity

	switch kind {
	case legacy.KindHost:
		entities = make([]legacy.Entity, 0, len(s.hosts))
		for _, name := range sortedKeys(s.hosts) {
			entities = append(entities, copyHost(s.hosts[name]))
		}

	case legacy.KindHostGroup:
		entities = make([]legacy.Entity, 0, len(s.hostGroups))
		for _, name := range sortedKeys(s.hostGroups) {
			g := s.hostGroups[name]
			g.Members = append([]string(nil), g.Members...)
			entities = append(entities, g)
		}

	case legacy.KindService:
		keys := make([]serviceKey, 0, len(s.services))
		for key := range s.services {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].host != keys[j].host {
				return keys[i].host < keys[j].host
			}
			return keys[i].description < keys[j].description
		})

		now := unixTime(s.now())

		entities = make([]legacy.Entity, 0, len(keys))
		for _, key := range keys {
			entities = append(entities, copyService(s.services[key], now))
		}

	case legacy.KindServiceGroup:
		entities = make([]legacy.Entity, 0, len(s.serviceGroups))
		for _, name := range sortedKeys(s.serviceGroups) {
			g := s.serviceGroups[name]
			g.Members = append([]legacy.ServiceRef(nil), g.Members...)
			entities = append(entities, g)
		}
	}

	return entities
}

// Host returns a copy of the named host.
func (s *Store) Host(name string) (legacy.Host, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.hosts[name]
	if !ok {
		return legacy.Host{}, false
	}
	return copyHost(h), true
}

// Service returns a copy of the service.
func (s *Store) Service(host, description string) (legacy.Service, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[serviceKey{host, description}]
	if !ok {
		return legacy.Service{}, false
	}
	return copyService(svc, unixTime(s.now())), true
}

// ServicesOf returns the descriptions of all services on the host, sorted.
func (s *Store) ServicesOf(host string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.hosts[host]; !ok {
		return nil, errors.Wrapf(ErrNotFound, "host %q", host)
	}

	var descriptions []string
	for key := range s.services {
		if key.host == host {
			descriptions = append(descriptions, key.description)
		}
	}
	sort.Strings(descriptions)

	return descriptions, nil
}

// ProgramStatus returns the daemon-wide status.
func (s *Store) ProgramStatus() legacy.ProgramStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps := legacy.ProgramStatus{
		PID:       s.pid,
		StartTime: unixTime(s.start),
	}

	now := s.now()
	for i, window := range statsWindows {
		since := now.Add(-window)
		for _, t := range s.results {
			if !t.Before(since) {
				ps.CheckStats[i]++
			}
		}
	}

	return ps
}

// UpdateService applies fn to the service under the write lock.
func (s *Store) UpdateService(host, description string, fn func(*legacy.Service)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[serviceKey{host, description}]
	if !ok {
		return errors.Wrapf(ErrNotFound, "service %s!%s", host, description)
	}

	fn(svc)
	return nil
}

func copyHost(h *legacy.Host) legacy.Host {
	c := *h
	c.Parents = append([]string(nil), h.Parents...)
	return c
}

func copyService(svc *legacy.Service, now float64) legacy.Service {
	c := *svc
	if svc.LastCheckResult != nil {
		cr := *svc.LastCheckResult
		c.LastCheckResult = &cr
	}
	if c.AcknowledgementExpiry > 0 && c.AcknowledgementExpiry <= now {
		c.Acknowledgement = legacy.AcknowledgementNone
		c.AcknowledgementExpiry = 0
	}
	return c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unixTime(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
