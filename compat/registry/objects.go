package registry

import (
	"time"

	"github.com/pkg/errors"
)

// Objects is the set of object definitions that a Store is loaded from. It
// is usually decoded from the objects file.
type Objects struct {
	Hosts         []HostDef         `yaml:"hosts"`
	HostGroups    []HostGroupDef    `yaml:"hostgroups"`
	Services      []ServiceDef      `yaml:"services"`
	ServiceGroups []ServiceGroupDef `yaml:"servicegroups"`
}

// HostDef defines a host.
type HostDef struct {
	Name    string   `yaml:"name"`
	Alias   string   `yaml:"alias"`
	Parents []string `yaml:"parents"`
}

// HostGroupDef defines a host group.
type HostGroupDef struct {
	Name      string   `yaml:"name"`
	Alias     string   `yaml:"alias"`
	NotesURL  string   `yaml:"notes_url"`
	ActionURL string   `yaml:"action_url"`
	Members   []string `yaml:"members"`
}

// ServiceDef defines a service on a host.
type ServiceDef struct {
	Host          string        `yaml:"host"`
	Description   string        `yaml:"description"`
	CheckInterval time.Duration `yaml:"check_interval"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxAttempts   int           `yaml:"max_attempts"`
	// ActiveChecks and PassiveChecks default to true.
	ActiveChecks  *bool `yaml:"active_checks"`
	PassiveChecks *bool `yaml:"passive_checks"`
}

// ServiceGroupMember references a service from a service group.
type ServiceGroupMember struct {
	Host        string `yaml:"host"`
	Description string `yaml:"description"`
}

// ServiceGroupDef defines a service group.
type ServiceGroupDef struct {
	Name      string               `yaml:"name"`
	Alias     string               `yaml:"alias"`
	NotesURL  string               `yaml:"notes_url"`
	ActionURL string               `yaml:"action_url"`
	Members   []ServiceGroupMember `yaml:"members"`
}

const (
	defaultCheckInterval = 5 * time.Minute
	defaultRetryInterval = time.Minute
	defaultMaxAttempts   = 3
)

// Validate checks that every name is set and unique and that every reference
// points to a defined object.
func (objs Objects) Validate() error {
	hosts := make(map[string]struct{}, len(objs.Hosts))
	for _, h := range objs.Hosts {
		if h.Name == "" {
			return errors.New("host without name")
		}
		if _, dup := hosts[h.Name]; dup {
			return errors.Errorf("duplicate host %q", h.Name)
		}
		hosts[h.Name] = struct{}{}
	}

	for _, h := range objs.Hosts {
		for _, parent := range h.Parents {
			if _, ok := hosts[parent]; !ok {
				return errors.Errorf("host %q: unknown parent %q", h.Name, parent)
			}
		}
	}

	services := make(map[serviceKey]struct{}, len(objs.Services))
	for _, s := range objs.Services {
		if s.Description == "" {
			return errors.Errorf("host %q: service without description", s.Host)
		}
		if _, ok := hosts[s.Host]; !ok {
			return errors.Errorf("service %q: unknown host %q", s.Description, s.Host)
		}
		if s.CheckInterval < 0 || s.RetryInterval < 0 || s.MaxAttempts < 0 {
			return errors.Errorf("service %s!%s: negative check settings", s.Host, s.Description)
		}

		key := serviceKey{s.Host, s.Description}
		if _, dup := services[key]; dup {
			return errors.Errorf("duplicate service %s!%s", s.Host, s.Description)
		}
		services[key] = struct{}{}
	}

	groups := make(map[string]struct{}, len(objs.HostGroups))
	for _, g := range objs.HostGroups {
		if g.Name == "" {
			return errors.New("hostgroup without name")
		}
		if _, dup := groups[g.Name]; dup {
			return errors.Errorf("duplicate hostgroup %q", g.Name)
		}
		groups[g.Name] = struct{}{}

		for _, m := range g.Members {
			if _, ok := hosts[m]; !ok {
				return errors.Errorf("hostgroup %q: unknown member %q", g.Name, m)
			}
		}
	}

	groups = make(map[string]struct{}, len(objs.ServiceGroups))
	for _, g := range objs.ServiceGroups {
		if g.Name == "" {
			return errors.New("servicegroup without name")
		}
		if _, dup := groups[g.Name]; dup {
			return errors.Errorf("duplicate servicegroup %q", g.Name)
		}
		groups[g.Name] = struct{}{}

		for _, m := range g.Members {
			if _, ok := services[serviceKey{m.Host, m.Description}]; !ok {
				return errors.Errorf(
					"servicegroup %q: unknown member %s!%s", g.Name, m.Host, m.Description)
			}
		}
	}

	return nil
}
