package registry

import (
	"git.unix.lgbt/diamondburned/compatd/compat/legacy"
	"github.com/pkg/errors"
)

// ProcessServiceCheckResult applies a check result to the service and moves
// it through its soft and hard states.
func (s *Store) ProcessServiceCheckResult(
	host, description string, state legacy.ServiceState, cr legacy.CheckResult) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[serviceKey{host, description}]
	if !ok {
		return errors.Wrapf(ErrNotFound, "service %s!%s", host, description)
	}

	at := cr.ScheduleEnd
	if at == 0 {
		at = unixTime(s.now())
	}

	hadResult := svc.LastCheckResult != nil
	oldState := svc.State
	oldType := svc.StateType

	if state == legacy.StateOK {
		svc.StateType = legacy.StateTypeHard
		svc.CurrentAttempt = 1
	} else {
		if oldState != legacy.StateOK && hadResult && svc.CurrentAttempt < svc.MaxAttempts {
			svc.CurrentAttempt++
		} else if oldState == legacy.StateOK || !hadResult {
			svc.CurrentAttempt = 1
		}

		if svc.CurrentAttempt >= svc.MaxAttempts {
			svc.StateType = legacy.StateTypeHard
		} else {
			svc.StateType = legacy.StateTypeSoft
		}
	}

	svc.State = state

	if state != oldState || !hadResult {
		svc.LastStateChange = at

		switch svc.Acknowledgement {
		case legacy.AcknowledgementNormal:
			svc.Acknowledgement = legacy.AcknowledgementNone
			svc.AcknowledgementExpiry = 0
		case legacy.AcknowledgementSticky:
			if state == legacy.StateOK {
				svc.Acknowledgement = legacy.AcknowledgementNone
				svc.AcknowledgementExpiry = 0
			}
		}
	}

	if svc.StateType == legacy.StateTypeHard &&
		(state != oldState || oldType != legacy.StateTypeHard || !hadResult) {
		svc.LastHardStateChange = at
	}

	interval := svc.CheckInterval
	if svc.StateType == legacy.StateTypeSoft {
		interval = svc.RetryInterval
	}
	svc.NextCheck = at + interval
	svc.LastCheckResult = &cr

	s.recordResult()
	return nil
}

// ProcessHostCheckResult marks the host up or down. Host results are not
// counted in the service check statistics.
func (s *Store) ProcessHostCheckResult(name string, up bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts[name]
	if !ok {
		return errors.Wrapf(ErrNotFound, "host %q", name)
	}

	h.Up = up
	s.updateReachability()
	return nil
}

// recordResult counts one processed service check result for the statistics. The
// write lock must be held.
func (s *Store) recordResult() {
	now := s.now()
	since := now.Add(-statsWindows[len(statsWindows)-1])

	drop := 0
	for drop < len(s.results) && s.results[drop].Before(since) {
		drop++
	}

	s.results = append(s.results[drop:], now)
}

// updateReachability recomputes whether each host is reachable: a host is
// unreachable when it has parents and none of them is both up and
// reachable. The write lock must be held.
func (s *Store) updateReachability() {
	const (
		unvisited = iota
		visiting
		done
	)

	marks := make(map[string]int, len(s.hosts))

	var visit func(h *legacy.Host) bool
	visit = func(h *legacy.Host) bool {
		switch marks[h.Name] {
		case done:
			return h.Reachable
		case visiting:
			// Parent cycle; treat the host as reachable rather than looping.
			return true
		}

		marks[h.Name] = visiting

		reachable := len(h.Parents) == 0
		for _, name := range h.Parents {
			parent, ok := s.hosts[name]
			if !ok {
				continue
			}
			if visit(parent) && parent.Up {
				reachable = true
			}
		}

		h.Reachable = reachable
		marks[h.Name] = done
		return reachable
	}

	for _, h := range s.hosts {
		visit(h)
	}
}
