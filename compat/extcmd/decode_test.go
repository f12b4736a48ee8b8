package extcmd

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		line   string
		expect Command
	}{
		{
			line: "[1700000000] SCHEDULE_SVC_CHECK;myhost;myservice;1700000100",
			expect: Command{
				Timestamp: 1700000000,
				Name:      "SCHEDULE_SVC_CHECK",
				Arguments: []string{"myhost", "myservice", "1700000100"},
			},
		},
		{
			line:   "[1.5] NAME;A;B",
			expect: Command{Timestamp: 1.5, Name: "NAME", Arguments: []string{"A", "B"}},
		},
		{
			line:   "[-3] NAME",
			expect: Command{Timestamp: -3, Name: "NAME", Arguments: []string{}},
		},
		{
			line:   "[1] NAME;;x;",
			expect: Command{Timestamp: 1, Name: "NAME", Arguments: []string{"", "x", ""}},
		},
		{
			line:   "[1] NAME; spaced ;arg",
			expect: Command{Timestamp: 1, Name: "NAME", Arguments: []string{" spaced ", "arg"}},
		},
	}

	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			cmd, err := Decode(test.line)
			if err != nil {
				t.Fatal("unexpected error:", err)
			}

			if !reflect.DeepEqual(cmd, test.expect) {
				t.Errorf("got %#v, expected %#v", cmd, test.expect)
			}
		})
	}
}

func TestDecodeError(t *testing.T) {
	tests := []struct {
		line string
		kind error
	}{
		{"garbage", ErrMissingTimestamp},
		{"", ErrMissingTimestamp},
		{" [1] NAME", ErrMissingTimestamp},
		{"[1700000000 NAME;a", ErrMissingTimestamp},
		{"[0] CMD;arg", ErrInvalidTimestamp},
		{"[] CMD", ErrInvalidTimestamp},
		{"[abc] CMD", ErrInvalidTimestamp},
		{"[NaN] CMD", ErrInvalidTimestamp},
		{"[1]", ErrMissingArguments},
		{"[1] ", ErrMissingArguments},
		{"[1] ;a;b", ErrMissingArguments},
	}

	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			cmd, err := Decode(test.line)
			if err == nil {
				t.Fatalf("expected error, got %#v", cmd)
			}

			if !errors.Is(err, test.kind) {
				t.Errorf("got error %v, expected kind %v", err, test.kind)
			}

			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) || decodeErr.Line != test.line {
				t.Errorf("error does not carry the line: %#v", err)
			}

			if !reflect.DeepEqual(cmd, Command{}) {
				t.Errorf("command returned alongside error: %#v", cmd)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	line := "[1700000000] SCHEDULE_SVC_CHECK;myhost;myservice;1700000100"

	cmd, err := Decode(line)
	if err != nil {
		t.Fatal("unexpected error:", err)
	}

	if s := cmd.String(); s != line {
		t.Errorf("got %q, expected %q", s, line)
	}
}
