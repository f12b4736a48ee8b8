package compat

import (
	"bufio"
	"context"
	"os"
	"sync"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat/legacy"
	"github.com/pkg/errors"
)

// DefaultPublishInterval is the legacy interval between two snapshots.
const DefaultPublishInterval = 15 * time.Second

// Registry is the read-only view of the object registry that the publisher
// needs. Objects must return copies that stay coherent while the registry is
// being modified.
type Registry interface {
	Objects(kind legacy.Kind) []legacy.Entity
	ProgramStatus() legacy.ProgramStatus
}

// Publisher periodically writes the status and objects files.
type Publisher struct {
	StatusPath  string
	ObjectsPath string

	reg Registry
	j   Journaler
	now func() time.Time

	// mutex serializes publish cycles; both cycles would write the same
	// temporary files otherwise.
	mutex sync.Mutex
}

// NewPublisher creates a new publisher.
func NewPublisher(statusPath, objectsPath string, reg Registry, j Journaler) *Publisher {
	return &Publisher{
		StatusPath:  statusPath,
		ObjectsPath: objectsPath,
		reg:         reg,
		j:           j,
		now:         time.Now,
	}
}

// Run publishes immediately and then once every interval until the context is
// canceled. Failed cycles are journaled and retried on the next tick.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	Every(ctx, interval, true, func() { p.Publish() })
}

// Publish writes both files once. Each published file is replaced atomically,
// so readers see either the old or the new snapshot in full. If anything
// fails before the files are replaced, the published files are left untouched.
func (p *Publisher) Publish() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	start := p.now()

	n, err := p.publish(start)
	if err != nil {
		p.j.Write(&EventPublishError{Error: err.Error()})
		return err
	}

	p.j.Write(&EventPublished{
		StatusPath:  p.StatusPath,
		ObjectsPath: p.ObjectsPath,
		Objects:     n,
		Seconds:     p.now().Sub(start).Seconds(),
	})

	return nil
}

func (p *Publisher) publish(start time.Time) (int, error) {
	statusTmp := p.StatusPath + ".tmp"
	objectsTmp := p.ObjectsPath + ".tmp"

	status, err := createSnapshotFile(statusTmp)
	if err != nil {
		return 0, err
	}
	defer status.abort()

	objects, err := createSnapshotFile(objectsTmp)
	if err != nil {
		return 0, err
	}
	defer objects.abort()

	now := float64(start.UnixNano()) / float64(time.Second)

	status.WriteString(legacy.EncodeStatusHeader(now))
	status.WriteString(legacy.EncodeProgramStatus(p.reg.ProgramStatus()))
	objects.WriteString(legacy.EncodeObjectsHeader())

	var n int
	for _, kind := range legacy.Kinds {
		for _, entity := range p.reg.Objects(kind) {
			if block, ok := legacy.EncodeStatus(entity, now); ok {
				status.WriteString(block)
			}
			objects.WriteString(legacy.EncodeObject(entity))
			n++
		}
	}

	if err := status.finish(); err != nil {
		return 0, err
	}
	if err := objects.finish(); err != nil {
		return 0, err
	}

	if err := replaceFile(statusTmp, p.StatusPath); err != nil {
		return 0, err
	}
	if err := replaceFile(objectsTmp, p.ObjectsPath); err != nil {
		return 0, err
	}

	return n, nil
}

// snapshotFile is a temporary file being written. Write errors are sticky in
// the bufio.Writer and reported by finish.
type snapshotFile struct {
	*bufio.Writer
	f    *os.File
	done bool
}

func createSnapshotFile(path string) (*snapshotFile, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temporary file")
	}

	return &snapshotFile{
		Writer: bufio.NewWriterSize(f, 64*1024),
		f:      f,
	}, nil
}

// finish flushes, syncs and closes the file.
func (s *snapshotFile) finish() error {
	if err := s.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write %s", s.f.Name())
	}
	if err := s.f.Sync(); err != nil {
		return errors.Wrapf(err, "failed to sync %s", s.f.Name())
	}
	if err := s.f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", s.f.Name())
	}

	s.done = true
	return nil
}

// abort closes and removes the file unless it was finished. A finished file
// that was not renamed is removed as well.
func (s *snapshotFile) abort() {
	if !s.done {
		s.f.Close()
	}
	// Once renamed, the temporary path no longer exists and this is a no-op.
	os.Remove(s.f.Name())
}

// replaceFile atomically moves src over dst.
func replaceFile(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return errors.Wrapf(err, "failed to replace %s", dst)
	}

	return nil
}
