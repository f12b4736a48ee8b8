package backwardio

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
)

const (
	entryAcquired = `{"time":1700000000,"type":"acquired","event":{"pid":42}}`
	entryReloaded = `{"time":1700000001,"type":"objects_reloaded","event":{}}`
	entryCommand  = `{"time":1700000002,"type":"command_executed","event":{"name":"NOP"}}`
)

func TestBackwardsReader(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
	}{
		{
			name:    "single entry",
			entries: []string{entryAcquired, ""},
		},
		{
			name:    "entries",
			entries: []string{entryAcquired, entryReloaded, entryCommand, ""},
		},
		{
			name:    "torn last write",
			entries: []string{entryAcquired, entryReloaded, `{"time":17000`},
		},
		{
			name:    "blank lines",
			entries: []string{entryAcquired, "", "", entryCommand, ""},
		},
		{
			name:    "leading newline",
			entries: []string{"", entryReloaded, entryCommand},
		},
	}

	for _, test := range tests {
		input := strings.Join(test.entries, "\n")

		longest := 0
		for _, entry := range test.entries {
			if len(entry) > longest {
				longest = len(entry)
			}
		}

		// The smallest buffer that still fits a line and its newline forces
		// lines to straddle chunk boundaries.
		for _, size := range []int{longest + 1, longest + 7, DefaultBufferSize} {
			r := NewBackwardsReaderSize(strings.NewReader(input), size)

			for i := len(test.entries) - 1; i >= 0; i-- {
				b, err := r.ReadUntil('\n')
				if err != nil {
					t.Fatalf("%s (size %d): failed to read line %d: %v", test.name, size, i, err)
				}

				if string(b) != test.entries[i] {
					t.Errorf("%s (size %d): line %d is %q, expected %q",
						test.name, size, i, b, test.entries[i])
				}
			}

			_, err := r.ReadUntil('\n')
			errorEq(t, err, io.EOF)
		}
	}
}

func TestBackwardsReaderEmpty(t *testing.T) {
	r := NewBackwardsReader(strings.NewReader(""))

	_, err := r.ReadLine()
	errorEq(t, err, io.EOF)
}

func TestBackwardsReaderTooLong(t *testing.T) {
	input := entryAcquired + "\n" + entryCommand + "\n"

	// Room for the acquired entry but not the command one.
	r := NewBackwardsReaderSize(strings.NewReader(input), len(entryAcquired)+1)

	if b, err := r.ReadUntil('\n'); err != nil || len(b) != 0 {
		t.Fatalf("expected empty trailing line, got %q (%v)", b, err)
	}

	_, err := r.ReadUntil('\n')
	errorEq(t, err, bufio.ErrTooLong)
}

func TestReadLine(t *testing.T) {
	input := "\n" + entryAcquired + "\n\n\n" + entryReloaded + "\n" + entryCommand + "\n\n"

	r := NewBackwardsReaderSize(strings.NewReader(input), len(entryCommand)+1)

	var lines []string
	for {
		line, err := r.ReadLine()
		if err != nil {
			errorEq(t, err, io.EOF)
			break
		}
		lines = append(lines, string(line))
	}

	expect := []string{entryCommand, entryReloaded, entryAcquired}
	if strings.Join(lines, "\n") != strings.Join(expect, "\n") {
		t.Errorf("got lines %q, expected %q", lines, expect)
	}
}

func TestBackwardsReaderError(t *testing.T) {
	errDisk := errors.New("disk on fire")

	tests := []struct {
		failOn string
		wrap   string
	}{
		{"end", "failed to find end of file"},
		{"seek", "failed to seek backwards"},
		{"read", "failed to read seeked chunk"},
	}

	for _, test := range tests {
		r := NewBackwardsReader(brokenFile{failOn: test.failOn, err: errDisk})

		_, err := r.ReadLine()
		errorEq(t, err, errDisk)

		if !strings.Contains(err.Error(), test.wrap) {
			t.Errorf("%s: error %q is not wrapped with %q", test.failOn, err, test.wrap)
		}
	}
}

func errorEq(t *testing.T, got, expect error) {
	t.Helper()

	if got == nil {
		t.Fatal("missing error")
	}

	if !errors.Is(got, expect) {
		t.Fatal("unexpected error:", got)
	}
}

// brokenFile is a 64-byte file of newlines that fails one kind of call.
type brokenFile struct {
	failOn string
	err    error
}

func (f brokenFile) Read(b []byte) (int, error) {
	if f.failOn == "read" {
		return 0, f.err
	}
	for i := range b {
		b[i] = '\n'
	}
	return len(b), nil
}

func (f brokenFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekEnd:
		if f.failOn == "end" {
			return 0, f.err
		}
		return 64, nil
	case io.SeekStart:
		if f.failOn == "seek" {
			return 0, f.err
		}
		return offset, nil
	default:
		return 0, errors.New("unexpected whence")
	}
}
