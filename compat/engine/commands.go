package engine

import (
	"strconv"
	"strings"

	"git.unix.lgbt/diamondburned/compatd/compat/legacy"
	"github.com/pkg/errors"
)

var commands = map[string]command{
	"PROCESS_SERVICE_CHECK_RESULT":    {4, processServiceCheckResult, true},
	"PROCESS_HOST_CHECK_RESULT":       {3, processHostCheckResult, true},
	"SCHEDULE_SVC_CHECK":              {3, scheduleSvcCheck(false), false},
	"SCHEDULE_FORCED_SVC_CHECK":       {3, scheduleSvcCheck(true), false},
	"SCHEDULE_HOST_SVC_CHECKS":        {2, scheduleHostSvcChecks(false), false},
	"SCHEDULE_FORCED_HOST_SVC_CHECKS": {2, scheduleHostSvcChecks(true), false},
	"ENABLE_SVC_CHECK":                {2, setSvcFlag(activeChecks, true), false},
	"DISABLE_SVC_CHECK":               {2, setSvcFlag(activeChecks, false), false},
	"ENABLE_PASSIVE_SVC_CHECKS":       {2, setSvcFlag(passiveChecks, true), false},
	"DISABLE_PASSIVE_SVC_CHECKS":      {2, setSvcFlag(passiveChecks, false), false},
	"ENABLE_HOST_SVC_CHECKS":          {1, setHostSvcFlag(activeChecks, true), false},
	"DISABLE_HOST_SVC_CHECKS":         {1, setHostSvcFlag(activeChecks, false), false},
	"ACKNOWLEDGE_SVC_PROBLEM":         {7, acknowledgeSvcProblem(false), true},
	"ACKNOWLEDGE_SVC_PROBLEM_EXPIRE":  {8, acknowledgeSvcProblem(true), true},
	"REMOVE_SVC_ACKNOWLEDGEMENT":      {2, removeSvcAcknowledgement, false},
}

// PROCESS_SERVICE_CHECK_RESULT;<host>;<service>;<code>;<output>[|<perfdata>]
func processServiceCheckResult(e *Engine, ts float64, args []string) error {
	code, err := parseState(args[2])
	if err != nil {
		return err
	}

	svc, ok := e.store.Service(args[0], args[1])
	if ok && !svc.PassiveChecks {
		return errors.Errorf("passive checks are disabled for service %s!%s", args[0], args[1])
	}

	output, perfdata := args[3], ""
	if i := strings.IndexByte(output, '|'); i >= 0 {
		output, perfdata = output[:i], output[i+1:]
	}

	return e.store.ProcessServiceCheckResult(args[0], args[1], legacy.ServiceState(code), legacy.CheckResult{
		Output:         output,
		PerfData:       perfdata,
		ScheduleStart:  ts,
		ScheduleEnd:    ts,
		ExecutionStart: ts,
		ExecutionEnd:   ts,
	})
}

// PROCESS_HOST_CHECK_RESULT;<host>;<code>;<output>
func processHostCheckResult(e *Engine, ts float64, args []string) error {
	code, err := parseState(args[1])
	if err != nil {
		return err
	}

	return e.store.ProcessHostCheckResult(args[0], code == 0)
}

// SCHEDULE_SVC_CHECK;<host>;<service>;<time>
//
// Unforced scheduling only ever moves the next check earlier.
func scheduleSvcCheck(forced bool) handlerFunc {
	return func(e *Engine, ts float64, args []string) error {
		planned, err := parseTime(args[2])
		if err != nil {
			return err
		}

		return e.store.UpdateService(args[0], args[1], func(svc *legacy.Service) {
			reschedule(svc, planned, forced)
		})
	}
}

// SCHEDULE_HOST_SVC_CHECKS;<host>;<time>
func scheduleHostSvcChecks(forced bool) handlerFunc {
	return func(e *Engine, ts float64, args []string) error {
		planned, err := parseTime(args[1])
		if err != nil {
			return err
		}

		return e.eachService(args[0], func(svc *legacy.Service) {
			reschedule(svc, planned, forced)
		})
	}
}

func reschedule(svc *legacy.Service, planned float64, forced bool) {
	if forced || planned < svc.NextCheck {
		svc.NextCheck = planned
	}
}

type svcFlag int

const (
	activeChecks svcFlag = iota
	passiveChecks
)

func (f svcFlag) set(svc *legacy.Service, v bool) {
	switch f {
	case activeChecks:
		svc.ActiveChecks = v
	case passiveChecks:
		svc.PassiveChecks = v
	}
}

// ENABLE_SVC_CHECK;<host>;<service>
func setSvcFlag(flag svcFlag, v bool) handlerFunc {
	return func(e *Engine, ts float64, args []string) error {
		return e.store.UpdateService(args[0], args[1], func(svc *legacy.Service) {
			flag.set(svc, v)
		})
	}
}

// ENABLE_HOST_SVC_CHECKS;<host>
func setHostSvcFlag(flag svcFlag, v bool) handlerFunc {
	return func(e *Engine, ts float64, args []string) error {
		return e.eachService(args[0], func(svc *legacy.Service) {
			flag.set(svc, v)
		})
	}
}

// ACKNOWLEDGE_SVC_PROBLEM;<host>;<service>;<sticky>;<notify>;<persistent>;<author>;<comment>
// ACKNOWLEDGE_SVC_PROBLEM_EXPIRE;<host>;<service>;<sticky>;<notify>;<persistent>;<timestamp>;<author>;<comment>
func acknowledgeSvcProblem(expire bool) handlerFunc {
	return func(e *Engine, ts float64, args []string) error {
		sticky, err := strconv.Atoi(args[2])
		if err != nil {
			return errors.Wrapf(ErrInvalidArgument, "sticky %q", args[2])
		}

		var expiry float64
		if expire {
			expiry, err = parseTime(args[5])
			if err != nil {
				return err
			}
		}

		ackType := legacy.AcknowledgementNormal
		if sticky == 2 {
			ackType = legacy.AcknowledgementSticky
		}

		var isOK bool

		err = e.store.UpdateService(args[0], args[1], func(svc *legacy.Service) {
			if svc.State == legacy.StateOK {
				isOK = true
				return
			}

			svc.Acknowledgement = ackType
			svc.AcknowledgementExpiry = expiry
		})
		if err != nil {
			return err
		}

		if isOK {
			return errors.Errorf("service %s!%s is OK, nothing to acknowledge", args[0], args[1])
		}

		return nil
	}
}

// REMOVE_SVC_ACKNOWLEDGEMENT;<host>;<service>
func removeSvcAcknowledgement(e *Engine, ts float64, args []string) error {
	return e.store.UpdateService(args[0], args[1], func(svc *legacy.Service) {
		svc.Acknowledgement = legacy.AcknowledgementNone
		svc.AcknowledgementExpiry = 0
	})
}

// eachService applies fn to every service of the host.
func (e *Engine) eachService(host string, fn func(*legacy.Service)) error {
	descriptions, err := e.store.ServicesOf(host)
	if err != nil {
		return err
	}

	for _, description := range descriptions {
		if err := e.store.UpdateService(host, description, fn); err != nil {
			return err
		}
	}

	return nil
}

func parseState(s string) (int, error) {
	code, err := strconv.Atoi(s)
	if err != nil || code < 0 {
		return 0, errors.Wrapf(ErrInvalidArgument, "state %q", s)
	}
	return code, nil
}

func parseTime(s string) (float64, error) {
	t, err := strconv.ParseFloat(s, 64)
	if err != nil || t < 0 {
		return 0, errors.Wrapf(ErrInvalidArgument, "time %q", s)
	}
	return t, nil
}
