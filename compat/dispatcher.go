package compat

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"git.unix.lgbt/diamondburned/compatd/compat/extcmd"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Executor executes external commands. It is implemented by the command
// execution engine.
type Executor interface {
	Execute(timestamp float64, name string, arguments []string) error
}

// Submitter accepts decoded commands. Submit must never block.
type Submitter interface {
	Submit(extcmd.Command)
}

type dispatchJob struct {
	id  uuid.UUID
	cmd extcmd.Command
}

// Dispatcher hands commands to an Executor on a pool of workers. Submissions
// are queued without bound, so a slow executor never stalls the submitter.
// Commands may complete in any order.
type Dispatcher struct {
	exec Executor
	j    Journaler

	workers int
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex sync.Mutex
	queue []dispatchJob
	wake  chan struct{}
}

var _ Submitter = (*Dispatcher)(nil)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkerCount sets the number of concurrent executions. It defaults to
// the number of CPUs.
func WithWorkerCount(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithRateLimit limits how many commands per second are executed. A zero or
// negative limit means no limit.
func WithRateLimit(limit rate.Limit, burst int) DispatcherOption {
	return func(d *Dispatcher) {
		if limit <= 0 {
			d.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewDispatcher creates a dispatcher and starts its workers. The workers run
// until Stop is called or the context is canceled.
func NewDispatcher(ctx context.Context, exec Executor, j Journaler, opts ...DispatcherOption) *Dispatcher {
	ctx, cancel := context.WithCancel(ctx)

	d := &Dispatcher{
		exec:    exec,
		j:       j,
		workers: runtime.NumCPU(),
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runWorker()
		}()
	}

	return d
}

// Submit queues the command for execution and returns immediately.
func (d *Dispatcher) Submit(cmd extcmd.Command) {
	d.mutex.Lock()
	d.queue = append(d.queue, dispatchJob{uuid.New(), cmd})
	d.mutex.Unlock()

	d.signal()
}

// Pending returns the number of queued commands that have not been picked up
// by a worker yet.
func (d *Dispatcher) Pending() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return len(d.queue)
}

// Stop stops the workers and waits for running executions to finish. Queued
// commands that have not started yet are dropped.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()

	d.mutex.Lock()
	dropped := len(d.queue)
	d.queue = nil
	d.mutex.Unlock()

	if dropped > 0 {
		d.j.Write(&EventWarning{
			Component: "dispatcher",
			Error:     fmt.Sprintf("dropped %d queued commands on shutdown", dropped),
		})
	}
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) pop() (dispatchJob, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.queue) == 0 {
		return dispatchJob{}, false
	}

	job := d.queue[0]
	d.queue[0] = dispatchJob{}
	d.queue = d.queue[1:]

	// Pass the wake-up on to the next idle worker.
	if len(d.queue) > 0 {
		d.signal()
	}

	return job, true
}

func (d *Dispatcher) runWorker() {
	for {
		if d.ctx.Err() != nil {
			return
		}

		job, ok := d.pop()
		if !ok {
			select {
			case <-d.ctx.Done():
				return
			case <-d.wake:
				continue
			}
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(d.ctx); err != nil {
				// Canceled while waiting; put the job back so Stop counts it.
				d.mutex.Lock()
				d.queue = append([]dispatchJob{job}, d.queue...)
				d.mutex.Unlock()
				return
			}
		}

		d.execute(job)
	}
}

// execute runs a single command. Errors and panics from the executor end up
// in the journal and nowhere else.
func (d *Dispatcher) execute(job dispatchJob) {
	id := job.id.String()
	line := job.cmd.String()

	d.j.Write(&EventCommandExecuting{
		ID:      id,
		Command: line,
	})

	defer func() {
		if v := recover(); v != nil {
			d.j.Write(&EventCommandFailed{
				ID:      id,
				Command: line,
				Error:   fmt.Sprintf("panic: %v", v),
			})
		}
	}()

	if err := d.exec.Execute(job.cmd.Timestamp, job.cmd.Name, job.cmd.Arguments); err != nil {
		d.j.Write(&EventCommandFailed{
			ID:      id,
			Command: line,
			Error:   err.Error(),
		})
	}
}
