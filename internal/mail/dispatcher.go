package mail

import (
	"context"
	"fmt"
	"sync"

	"otpboard/api/internal/metrics"

	"github.com/sirupsen/logrus"
)

type job struct {
	ctx    context.Context
	msg    Message
	result chan error
}

// Dispatcher runs sends on a fixed set of workers fed by a bounded queue.
type Dispatcher struct {
	sender Sender
	log    logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, workers, queue int, log logrus.FieldLogger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	d := &Dispatcher{
		sender: sender,
		log:    log.WithField("component", "mail"),
		jobs:   make(chan job, queue),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Deliver queues m and returns a channel that receives exactly one value: nil
// on success, or an error wrapping ErrDelivery or ErrClosed.
func (d *Dispatcher) Deliver(ctx context.Context, m Message) <-chan error {
	result := make(chan error, 1)

	if err := m.validate(); err != nil {
		result <- fmt.Errorf("%w: %w", ErrDelivery, err)
		return result
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		result <- ErrClosed
		return result
	}

	select {
	case d.jobs <- job{ctx: ctx, msg: m, result: result}:
	case <-ctx.Done():
		result <- fmt.Errorf("%w: %w", ErrDelivery, ctx.Err())
	}
	return result
}

// Send is Deliver followed by waiting for the outcome.
func (d *Dispatcher) Send(ctx context.Context, m Message) error {
	select {
	case err := <-d.Deliver(ctx, m):
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrDelivery, ctx.Err())
	}
}

// Close stops accepting messages and waits for queued ones to finish or for
// ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		j.result <- d.run(j)
	}
}

func (d *Dispatcher) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDelivery, r)
		}
		metrics.MailDeliveries.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			d.log.WithError(err).WithField("subject", j.msg.Subject).Warn("mail delivery failed")
		}
	}()

	if err := j.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if err := d.sender.Send(j.ctx, j.msg); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}
