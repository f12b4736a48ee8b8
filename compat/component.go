package compat

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Options configures a Component.
type Options struct {
	StatusPath  string
	ObjectsPath string
	CommandPath string

	// PublishInterval defaults to DefaultPublishInterval.
	PublishInterval time.Duration

	// Workers is the number of concurrent command executions. Zero means one
	// per CPU.
	Workers int
	// Rate limits command executions per second. Zero means no limit.
	Rate  float64
	Burst int
}

// Component ties the command channel, the dispatcher and the snapshot
// publisher together.
type Component struct {
	opts Options
	reg  Registry
	exec Executor
	j    Journaler
}

// NewComponent creates a new component. Nothing is started until Run is
// called.
func NewComponent(opts Options, reg Registry, exec Executor, j Journaler) *Component {
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = DefaultPublishInterval
	}

	return &Component{
		opts: opts,
		reg:  reg,
		exec: exec,
		j:    j,
	}
}

// Run runs the component until the context is canceled, in which case nil is
// returned. An error is returned if the command channel cannot be set up or
// dies while running; the publisher is stopped as well in that case.
func (c *Component) Run(ctx context.Context) error {
	d := NewDispatcher(ctx, c.exec, c.j,
		WithWorkerCount(c.opts.Workers),
		WithRateLimit(rate.Limit(c.opts.Rate), c.opts.Burst),
	)
	defer d.Stop()

	ch, err := NewChannel(c.opts.CommandPath, d, c.j)
	if err != nil {
		return errors.Wrap(err, "failed to start command channel")
	}

	p := NewPublisher(c.opts.StatusPath, c.opts.ObjectsPath, c.reg, c.j)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p.Run(ctx, c.opts.PublishInterval)
		return nil
	})

	g.Go(func() error {
		select {
		case <-ch.Done():
			if err := ch.Wait(); err != nil {
				return errors.Wrap(err, "command channel died")
			}
			return errors.New("command channel stopped unexpectedly")
		case <-ctx.Done():
			return ch.Stop()
		}
	})

	return g.Wait()
}
