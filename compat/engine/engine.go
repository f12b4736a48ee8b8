// Package engine executes external commands against the object registry.
//
// Only a subset of the legacy command set is understood. Unknown commands
// are rejected with ErrUnknownCommand so that the caller can journal them.
package engine

import (
	"sort"
	"strings"

	"git.unix.lgbt/diamondburned/compatd/compat/registry"
	"github.com/pkg/errors"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrArgumentCount   = errors.New("wrong number of arguments")
	ErrInvalidArgument = errors.New("invalid argument")
)

type handlerFunc func(e *Engine, ts float64, args []string) error

type command struct {
	args int
	fn   handlerFunc
	// rest makes the last argument take the remainder of the line,
	// semicolons included. Plugin output and comments may contain them.
	rest bool
}

// Engine executes external commands. It is safe for concurrent use as long
// as the underlying store is.
type Engine struct {
	store *registry.Store
}

// New creates a new engine operating on the given store.
func New(store *registry.Store) *Engine {
	return &Engine{store: store}
}

// Execute runs the named command. The timestamp is the one given by the
// submitter in Unix seconds.
func (e *Engine) Execute(timestamp float64, name string, arguments []string) error {
	cmd, ok := commands[name]
	if !ok {
		return errors.Wrapf(ErrUnknownCommand, "%q", name)
	}

	if cmd.rest && len(arguments) > cmd.args {
		last := cmd.args - 1

		joined := make([]string, cmd.args)
		copy(joined, arguments[:last])
		joined[last] = strings.Join(arguments[last:], ";")
		arguments = joined
	}

	if len(arguments) != cmd.args {
		return errors.Wrapf(ErrArgumentCount,
			"%s expects %d, got %d", name, cmd.args, len(arguments))
	}

	return cmd.fn(e, timestamp, arguments)
}

// Commands returns the names of all known commands, sorted.
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
