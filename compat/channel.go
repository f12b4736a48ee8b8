package compat

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"sync/atomic"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat/extcmd"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ChannelStopTimeout is the time Stop waits for the read loop to exit. The
// loop cannot exit while a writer keeps its end of the pipe open.
var ChannelStopTimeout = 5 * time.Second

// PipeMode is the permission of a newly created command pipe.
const PipeMode = 0660

// Channel reads external commands from a named pipe. Each successfully
// decoded line is handed to a Submitter; lines that fail to decode are
// journaled and skipped.
//
// The pipe is opened for reading in a loop: opening blocks until a writer
// connects, and once the writer closes its end the pipe is reopened for the
// next one. Writers are expected to open, write and close per command.
type Channel struct {
	path string
	sub  Submitter
	j    Journaler

	stopping atomic.Bool
	dead     chan struct{}
	err      error
}

// NewChannel prepares the named pipe at path and starts reading from it in the
// background. An error is returned if the pipe cannot be set up, in which case
// nothing is started.
func NewChannel(path string, sub Submitter, j Journaler) (*Channel, error) {
	created, err := preparePipe(path)
	if err != nil {
		j.Write(&EventChannelFatal{Path: path, Error: err.Error()})
		return nil, err
	}

	c := &Channel{
		path: path,
		sub:  sub,
		j:    j,
		dead: make(chan struct{}),
	}

	j.Write(&EventChannelReady{Path: path, Created: created})

	go c.loop()

	return c, nil
}

// preparePipe ensures that a readable named pipe exists at path. It returns
// true if the pipe had to be created.
func preparePipe(path string) (bool, error) {
	stat, err := os.Lstat(path)
	switch {
	case err == nil:
		if stat.Mode()&os.ModeNamedPipe != 0 && unix.Access(path, unix.R_OK) == nil {
			return false, nil
		}

		// Something else is in the way. Get rid of it.
		if err := os.Remove(path); err != nil {
			return false, errors.Wrap(err, "failed to remove non-pipe at command path")
		}

	case !os.IsNotExist(err):
		return false, errors.Wrap(err, "failed to stat command path")
	}

	if err := unix.Mkfifo(path, PipeMode); err != nil {
		return false, errors.Wrap(err, "failed to create command pipe")
	}

	return true, nil
}

// Path returns the path of the named pipe.
func (c *Channel) Path() string { return c.path }

// Wait blocks until the read loop exits. It returns the error that stopped
// the loop, or nil if the loop was stopped with Stop.
func (c *Channel) Wait() error {
	<-c.dead
	return c.err
}

// Done returns a channel that is closed once the read loop exits.
func (c *Channel) Done() <-chan struct{} {
	return c.dead
}

// Stop stops the read loop. The reader is woken up if it is waiting for a
// writer, but a writer that keeps the pipe open delays the stop until it
// closes or ChannelStopTimeout passes.
func (c *Channel) Stop() error {
	c.stopping.Store(true)

	timeout := time.NewTimer(ChannelStopTimeout)
	defer timeout.Stop()

	// The reader might not have reached open(2) yet, so keep poking it until
	// it is gone.
	poke := time.NewTicker(10 * time.Millisecond)
	defer poke.Stop()

	for {
		c.wake()

		select {
		case <-c.dead:
			return c.err
		case <-poke.C:
			continue
		case <-timeout.C:
			return errors.New("timed out waiting for command channel to close")
		}
	}
}

// wake unblocks a reader waiting in open(2) by briefly connecting as a writer.
func (c *Channel) wake() {
	fd, err := unix.Open(c.path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		// ENXIO: nobody is reading right now.
		return
	}
	unix.Close(fd)
}

func (c *Channel) loop() {
	defer close(c.dead)

	for !c.stopping.Load() {
		f, err := os.OpenFile(c.path, os.O_RDONLY, 0)
		if err != nil {
			c.err = errors.Wrap(err, "failed to open command pipe")
			c.j.Write(&EventChannelFatal{Path: c.path, Error: c.err.Error()})
			return
		}

		lines := c.readAll(f)
		f.Close()

		if !c.stopping.Load() {
			c.j.Write(&EventChannelClosed{Path: c.path, Lines: lines})
		}
	}
}

// readAll reads lines until the writer closes the pipe. It returns the number
// of lines read.
func (c *Channel) readAll(r io.Reader) int {
	br := bufio.NewReaderSize(r, extcmd.MaxLineLength+1)

	var lines int
	for {
		line, err := readLine(br)
		if err != nil {
			if err != io.EOF {
				c.j.Write(&EventWarning{
					Component: "channel",
					Error:     "failed to read command pipe: " + err.Error(),
				})
			}
			return lines
		}

		lines++

		if line == "" {
			continue
		}

		cmd, err := extcmd.Decode(line)
		if err != nil {
			c.j.Write(&EventCommandRejected{
				Line:   line,
				Reason: err.Error(),
			})
			continue
		}

		c.sub.Submit(cmd)
	}
}

// readLine reads one line, keeping at most extcmd.MaxLineLength bytes of it
// and stripping the trailing new line characters. A final line without a new
// line is still returned; io.EOF is only returned once nothing is left.
func readLine(br *bufio.Reader) (string, error) {
	var line []byte

	for {
		chunk, err := br.ReadSlice('\n')

		if room := extcmd.MaxLineLength - len(line); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			line = append(line, chunk...)
		}

		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && len(line) > 0:
			// Unterminated last line.
		case err != nil:
			return "", err
		}

		return string(bytes.TrimRight(line, "\r\n")), nil
	}
}
