// Package dispatch runs admitted administrative commands on a fixed worker
// pool behind a bounded queue. Admission enforces permissions before a
// command is ever queued; execution errors are contained per command.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"modwatch/pkg/interfaces"
	"modwatch/pkg/types"
)

const (
	DefaultQueueSize = 100
	DefaultWorkers   = 4
)

// Dispatcher owns the command queue and worker pool.
type Dispatcher struct {
	queue    chan interfaces.Command
	reporter interfaces.Reporter
	workers  int

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	fatalCh chan error
}

// New creates a dispatcher. Non-positive sizes fall back to the defaults.
func New(queueSize, workers int, reporter interfaces.Reporter) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		queue:    make(chan interfaces.Command, queueSize),
		reporter: reporter,
		workers:  workers,
		fatalCh:  make(chan error, 1),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrDispatcherRunning
	}
	d.running = true
	d.stopCh = make(chan struct{})

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.workerLoop(ctx, i)
	}
	log.Printf("command dispatcher started: workers=%d queue=%d", d.workers, cap(d.queue))
	return nil
}

// Stop closes admission, lets queued and in-flight commands finish, and
// releases the workers.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrDispatcherNotRunning
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()
	log.Println("command dispatcher stopped")
	return nil
}

// Fatal exposes the unrecoverable-error signal. The application listens on
// it and runs the ordered shutdown; workers never exit the process
// themselves.
func (d *Dispatcher) Fatal() <-chan error {
	return d.fatalCh
}

// Submit admits and enqueues a command. The permission check runs first:
// a denied command is never queued and the structured denial is reported
// synchronously. On a full queue Submit blocks until capacity frees or ctx
// ends; a canceled submission is reported failed, not silently dropped.
func (d *Dispatcher) Submit(ctx context.Context, cmd interfaces.Command, actor, bot types.Permission) error {
	d.mu.RLock()
	running := d.running
	stopCh := d.stopCh
	d.mu.RUnlock()

	if !running {
		return ErrDispatcherNotRunning
	}

	req := cmd.Requirements()
	if missing := actor.Missing(req.Actor); len(missing) > 0 {
		err := &PermissionError{Command: cmd.Name(), MissingActor: missing}
		d.reporter.ReportFailure(ctx, cmd, err)
		return err
	}
	if missing := bot.Missing(req.Bot); len(missing) > 0 {
		err := &PermissionError{Command: cmd.Name(), MissingBot: missing}
		d.reporter.ReportFailure(ctx, cmd, err)
		return err
	}

	select {
	case d.queue <- cmd:
		return nil
	case <-ctx.Done():
		err := fmt.Errorf("%w: %v", ErrSubmitInterrupted, ctx.Err())
		d.reporter.ReportFailure(ctx, cmd, err)
		return err
	case <-stopCh:
		err := ErrDispatcherNotRunning
		d.reporter.ReportFailure(ctx, cmd, err)
		return err
	}
}

// workerLoop pulls one command at a time and runs it to completion. The
// loop survives ordinary command failures and panics; it returns only on
// shutdown or after signaling a fatal error.
func (d *Dispatcher) workerLoop(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case cmd := <-d.queue:
			if !d.execute(ctx, cmd) {
				return
			}
		case <-d.stopCh:
			// Drain what was admitted before shutdown.
			for {
				select {
				case cmd := <-d.queue:
					if !d.execute(ctx, cmd) {
						return
					}
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// execute runs a single command, reporting its outcome. It returns false
// when the worker should stop because the failure was unrecoverable.
func (d *Dispatcher) execute(ctx context.Context, cmd interfaces.Command) (keepGoing bool) {
	keepGoing = true

	defer func() {
		if r := recover(); r != nil {
			err := &ExecutionError{
				CorrelationID: uuid.New().String(),
				Err:           fmt.Errorf("command panic: %v", r),
			}
			log.Printf("command panic: name=%s tenant=%s correlation=%s err=%v",
				cmd.Name(), cmd.TenantID(), err.CorrelationID, r)
			d.reporter.ReportFailure(ctx, cmd, err)
		}
	}()

	payload, err := cmd.Execute(ctx)
	if err != nil {
		if IsFatal(err) {
			log.Printf("unrecoverable command failure: name=%s tenant=%s err=%v",
				cmd.Name(), cmd.TenantID(), err)
			d.reporter.ReportFailure(ctx, cmd, err)
			d.signalFatal(err)
			return false
		}
		execErr := &ExecutionError{CorrelationID: uuid.New().String(), Err: err}
		log.Printf("command failed: name=%s tenant=%s correlation=%s err=%v",
			cmd.Name(), cmd.TenantID(), execErr.CorrelationID, err)
		d.reporter.ReportFailure(ctx, cmd, execErr)
		return true
	}

	d.reporter.ReportSuccess(ctx, cmd, payload)
	return true
}

func (d *Dispatcher) signalFatal(err error) {
	select {
	case d.fatalCh <- err:
	default:
		// A fatal error is already pending; shutdown is underway.
	}
}
