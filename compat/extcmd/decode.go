// Package extcmd decodes external commands written into the command pipe.
//
// A command line looks like this:
//
//    [1700000000] SCHEDULE_SVC_CHECK;myhost;myservice;1700000100
//
// The bracketed timestamp is mandatory. Everything after the space following
// the closing bracket is split on semicolons; the first field is the command
// name and the rest are its arguments, kept verbatim.
package extcmd

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxLineLength is the number of bytes of a line that are kept. Anything
// beyond it is discarded.
const MaxLineLength = 2047

var (
	ErrMissingTimestamp = errors.New("missing timestamp in command")
	ErrInvalidTimestamp = errors.New("invalid timestamp in command")
	ErrMissingArguments = errors.New("missing arguments in command")
)

// DecodeError is returned by Decode. Kind is one of the Err variables above.
type DecodeError struct {
	Kind error
	Line string
}

func (err *DecodeError) Error() string {
	return err.Kind.Error() + ": " + err.Line
}

func (err *DecodeError) Unwrap() error {
	return err.Kind
}

// Command is a decoded external command.
type Command struct {
	Timestamp float64
	Name      string
	Arguments []string
}

// String formats the command back into a line.
func (cmd Command) String() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strconv.FormatFloat(cmd.Timestamp, 'f', -1, 64))
	b.WriteString("] ")
	b.WriteString(cmd.Name)
	for _, arg := range cmd.Arguments {
		b.WriteByte(';')
		b.WriteString(arg)
	}
	return b.String()
}

// Decode decodes a single line. Trailing new lines must already be stripped.
func Decode(line string) (Command, error) {
	if !strings.HasPrefix(line, "[") {
		return Command{}, &DecodeError{ErrMissingTimestamp, line}
	}

	end := strings.IndexByte(line, ']')
	if end < 0 {
		return Command{}, &DecodeError{ErrMissingTimestamp, line}
	}

	ts, err := strconv.ParseFloat(line[1:end], 64)
	if err != nil || ts == 0 || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return Command{}, &DecodeError{ErrInvalidTimestamp, line}
	}

	// Skip the bracket and the space after it.
	var rest string
	if end+2 < len(line) {
		rest = line[end+2:]
	}

	fields := strings.Split(rest, ";")
	if fields[0] == "" {
		return Command{}, &DecodeError{ErrMissingArguments, line}
	}

	return Command{
		Timestamp: ts,
		Name:      fields[0],
		Arguments: fields[1:],
	}, nil
}
