// Package backwardio implements a buffered reader that reads lines from the
// end of a file towards its start.
package backwardio

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// DefaultBufferSize is the default maximum token size.
const DefaultBufferSize = bufio.MaxScanTokenSize

// BackwardsReader is a reader that reads backwards, similar to bufio except
// things are scanned backwards.
type BackwardsReader struct {
	r    io.ReadSeeker
	buf  []byte
	size int
	end  int64 // last seeked, bound size for buf
}

// NewBackwardsReader creates a reader with DefaultBufferSize.
func NewBackwardsReader(r io.ReadSeeker) *BackwardsReader {
	return NewBackwardsReaderSize(r, DefaultBufferSize)
}

// NewBackwardsReaderSize creates a reader that can read tokens of up to size
// bytes. Longer tokens fail with bufio.ErrTooLong.
func NewBackwardsReaderSize(r io.ReadSeeker, size int) *BackwardsReader {
	if size < 1 {
		size = DefaultBufferSize
	}
	return &BackwardsReader{r: r, size: size}
}

// ReadLine returns the previous non-empty line. io.EOF is returned once the
// start of the reader is reached.
func (r *BackwardsReader) ReadLine() ([]byte, error) {
	for {
		line, err := r.ReadUntil('\n')
		if err != nil {
			return nil, err
		}
		if len(line) > 0 {
			return line, nil
		}
	}
}

// ReadUntil returns the bytes between the previous delimiter and the last
// returned token. The returned slice is only valid until the next call.
func (r *BackwardsReader) ReadUntil(delim byte) ([]byte, error) {
	for {
		if r.buf == nil {
			goto fill
		}

		for i := len(r.buf) - 1; i >= 0; i-- {
			isBOF := i == 0 && r.end == 0

			if r.buf[i] != delim && !isBOF {
				continue
			}

			tok := r.buf[i:]
			r.buf = r.buf[:i]

			if len(tok) > 0 && tok[0] == delim {
				tok = tok[1:]

				// A delimiter at the very start of the reader still
				// separates an empty first token.
				if isBOF && len(tok) > 0 {
					r.buf = r.buf[:1]
				}
			}

			return tok, nil
		}

		if len(r.buf) == cap(r.buf) {
			// The whole buffer holds a single token and there is no room
			// left to look further back.
			return nil, bufio.ErrTooLong
		}

	fill:
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

func (r *BackwardsReader) fill() error {
	if r.buf == nil {
		o, err := r.r.Seek(0, io.SeekEnd)
		if err != nil {
			return errors.Wrap(err, "failed to find end of file")
		}

		r.end = o
		r.buf = make([]byte, 0, r.size)
	}

	if r.end == 0 {
		return io.EOF
	}

	// Room left in front of the bytes not yet consumed.
	room := int64(cap(r.buf) - len(r.buf))

	pending := len(r.buf)
	r.buf = r.buf[:cap(r.buf)]
	copy(r.buf[room:], r.buf[:pending])

	seekTo := r.end - room
	start := int64(0)

	// Near the start of the file there is less to read than there is room
	// for; the chunk then goes right in front of the pending bytes.
	if seekTo < 0 {
		start = -seekTo
		seekTo = 0
	}

	if _, err := r.r.Seek(seekTo, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to seek backwards")
	}

	if _, err := io.ReadFull(r.r, r.buf[start:room]); err != nil {
		return errors.Wrap(err, "failed to read seeked chunk")
	}

	r.end = seekTo
	r.buf = r.buf[start:]

	return nil
}
