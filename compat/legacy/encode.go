package legacy

import (
	"strconv"
	"strings"
)

// Version is the format version written into the info section.
const Version = "2.0"

// blockWriter builds one block. Status blocks use key=value lines, object
// definitions use key<TAB>value lines.
type blockWriter struct {
	b   strings.Builder
	sep byte
}

func newStatusBlock(section string) *blockWriter {
	w := &blockWriter{sep: '='}
	w.b.Grow(1024)
	w.b.WriteString(section)
	w.b.WriteString(" {\n")
	return w
}

func newObjectBlock(kind string) *blockWriter {
	w := &blockWriter{sep: '\t'}
	w.b.Grow(512)
	w.b.WriteString("define ")
	w.b.WriteString(kind)
	w.b.WriteString(" {\n")
	return w
}

func (w *blockWriter) str(key, value string) {
	w.b.WriteByte('\t')
	w.b.WriteString(key)
	w.b.WriteByte(w.sep)
	w.b.WriteString(value)
	w.b.WriteByte('\n')
}

func (w *blockWriter) int(key string, v int) {
	w.str(key, strconv.Itoa(v))
}

func (w *blockWriter) float(key string, v float64) {
	w.str(key, formatFloat(v))
}

func (w *blockWriter) bool(key string, v bool) {
	if v {
		w.str(key, "1")
	} else {
		w.str(key, "0")
	}
}

func (w *blockWriter) list(key string, values []string) {
	w.str(key, strings.Join(values, ","))
}

func (w *blockWriter) String() string {
	w.b.WriteString("\t}\n\n")
	return w.b.String()
}

// formatFloat renders v in fixed notation with six decimals, the way the
// legacy writer did.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// EncodeStatusHeader renders the comment header and the info section of the
// status file. now is the generation time in Unix seconds.
func EncodeStatusHeader(now float64) string {
	w := newStatusBlock("info")
	w.float("created", now)
	w.str("version", Version)

	return "# Icinga status file\n" +
		"# This file is auto-generated. Do not modify this file.\n" +
		"\n" +
		w.String()
}

// EncodeProgramStatus renders the programstatus section.
func EncodeProgramStatus(ps ProgramStatus) string {
	w := newStatusBlock("programstatus")
	w.int("icinga_pid", ps.PID)
	w.str("daemon_mode", "1")
	w.float("program_start", ps.StartTime)
	w.str("active_service_checks_enabled", "1")
	w.str("passive_service_checks_enabled", "1")
	w.str("active_host_checks_enabled", "0")
	w.str("passive_host_checks_enabled", "0")
	w.str("check_service_freshness", "0")
	w.str("check_host_freshness", "0")
	w.str("enable_flap_detection", "1")
	w.str("enable_failure_prediction", "0")
	w.str("active_scheduled_service_check_stats", strings.Join([]string{
		strconv.Itoa(ps.CheckStats[0]),
		strconv.Itoa(ps.CheckStats[1]),
		strconv.Itoa(ps.CheckStats[2]),
	}, ","))
	return w.String()
}

// EncodeObjectsHeader renders the comment header of the objects cache.
func EncodeObjectsHeader() string {
	return "# Icinga objects cache file\n" +
		"# This file is auto-generated. Do not modify this file.\n" +
		"\n"
}

// EncodeHostStatus renders a hoststatus block. Hosts carry no check results
// of their own, so the state is derived from reachability alone and the
// timestamps are all now.
func EncodeHostStatus(h Host, now float64) string {
	w := newStatusBlock("hoststatus")
	w.str("host_name", h.Name)
	w.str("has_been_checked", "1")
	w.str("should_be_scheduled", "1")
	w.str("check_execution_time", "0")
	w.str("check_latency", "0")
	w.int("current_state", h.State())
	w.str("state_type", "1")
	w.float("last_check", now)
	w.float("next_check", now)
	w.str("current_attempt", "1")
	w.str("max_attempts", "1")
	w.str("active_checks_enabled", "1")
	w.str("passive_checks_enabled", "1")
	w.float("last_update", now)
	return w.String()
}

// EncodeHostObject renders a host definition.
func EncodeHostObject(h Host) string {
	w := newObjectBlock("host")
	w.str("host_name", h.Name)
	w.str("alias", h.Alias)
	w.str("check_interval", "1")
	w.str("retry_interval", "1")
	w.str("max_check_attempts", "1")
	w.str("active_checks_enabled", "1")
	w.str("passive_checks_enabled", "1")
	w.list("parents", h.Parents)
	return w.String()
}

// EncodeServiceStatus renders a servicestatus block. A service that has
// never been checked renders zeroes for every check result field.
func EncodeServiceStatus(s Service, now float64) string {
	cr := s.LastCheckResult

	var output, perfdata string
	var lastCheck float64
	if cr != nil {
		output = cr.Output
		perfdata = cr.PerfData
		lastCheck = cr.ScheduleEnd
	}

	w := newStatusBlock("servicestatus")
	w.str("host_name", s.HostName)
	w.str("service_description", s.Description)
	w.float("check_interval", s.CheckInterval/60)
	w.float("retry_interval", s.RetryInterval/60)
	w.bool("has_been_checked", cr != nil)
	w.str("should_be_scheduled", "1")
	w.float("check_execution_time", cr.ExecutionTime())
	w.float("check_latency", cr.Latency())
	w.int("current_state", int(s.State.Clamp()))
	w.int("state_type", int(s.StateType))
	w.str("plugin_output", output)
	w.str("performance_data", perfdata)
	w.float("last_check", lastCheck)
	w.float("next_check", s.NextCheck)
	w.int("current_attempt", s.CurrentAttempt)
	w.int("max_attempts", s.MaxAttempts)
	w.float("last_state_change", s.LastStateChange)
	w.float("last_hard_state_change", s.LastHardStateChange)
	w.str("last_update", strconv.FormatInt(int64(now), 10))
	w.bool("active_checks_enabled", s.ActiveChecks)
	w.bool("passive_checks_enabled", s.PassiveChecks)
	w.bool("problem_has_been_acknowledged", s.Acknowledgement != AcknowledgementNone)
	w.int("acknowledgement_type", int(s.Acknowledgement))
	w.float("acknowledgement_end_time", s.AcknowledgementExpiry)
	return w.String()
}

// EncodeServiceObject renders a service definition.
func EncodeServiceObject(s Service) string {
	w := newObjectBlock("service")
	w.str("host_name", s.HostName)
	w.str("service_description", s.Description)
	w.str("check_command", "check_i2")
	w.float("check_interval", s.CheckInterval/60)
	w.float("retry_interval", s.RetryInterval/60)
	w.str("max_check_attempts", "1")
	w.bool("active_checks_enabled", s.ActiveChecks)
	w.bool("passive_checks_enabled", s.PassiveChecks)
	return w.String()
}

// EncodeHostGroupObject renders a hostgroup definition.
func EncodeHostGroupObject(g HostGroup) string {
	w := newObjectBlock("hostgroup")
	w.str("hostgroup_name", g.Name)
	w.str("alias", g.Alias)
	w.str("notes_url", g.NotesURL)
	w.str("action_url", g.ActionURL)
	w.list("members", g.Members)
	return w.String()
}

// EncodeServiceGroupObject renders a servicegroup definition. Members are
// flattened into host,service,host,service pairs.
func EncodeServiceGroupObject(g ServiceGroup) string {
	members := make([]string, 0, len(g.Members)*2)
	for _, m := range g.Members {
		members = append(members, m.Host, m.Description)
	}

	w := newObjectBlock("servicegroup")
	w.str("servicegroup_name", g.Name)
	w.str("alias", g.Alias)
	w.str("notes_url", g.NotesURL)
	w.str("action_url", g.ActionURL)
	w.list("members", members)
	return w.String()
}

// EncodeStatus renders the status block of e. Groups have no status, in
// which case false is returned.
func EncodeStatus(e Entity, now float64) (string, bool) {
	switch e := e.(type) {
	case Host:
		return EncodeHostStatus(e, now), true
	case Service:
		return EncodeServiceStatus(e, now), true
	default:
		return "", false
	}
}

// EncodeObject renders the object definition of e.
func EncodeObject(e Entity) string {
	switch e := e.(type) {
	case Host:
		return EncodeHostObject(e)
	case HostGroup:
		return EncodeHostGroupObject(e)
	case Service:
		return EncodeServiceObject(e)
	case ServiceGroup:
		return EncodeServiceGroupObject(e)
	default:
		panic("unknown entity type")
	}
}
