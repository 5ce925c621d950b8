package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/efreitasn/alertbridge/internal/domain"
)

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("dispatcher_closed")

// ErrQueueFull is returned by Dispatch when a job cannot be queued.
var ErrQueueFull = errors.New("sink_queue_full")

type job struct {
	sink  Sink
	order *domain.OrderResult
}

// Dispatcher runs sink jobs on a fixed pool of goroutines. Every job is
// independent: its failure or panic is logged and affects no other job.
// Jobs run in no particular order.
type Dispatcher struct {
	jobs   chan job
	logger *slog.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines draining a queue of queueSize jobs.
func NewDispatcher(workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &Dispatcher{
		jobs:   make(chan job, queueSize),
		logger: logger,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.run(j)
			}
		}()
	}
	return d
}

// Dispatch queues one job per sink for order without blocking. Jobs that
// cannot be queued are logged and reported in the returned error; the
// remaining sinks are still queued.
func (d *Dispatcher) Dispatch(order *domain.OrderResult, sinks ...Sink) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	var errs []error
	for _, s := range sinks {
		select {
		case d.jobs <- job{sink: s, order: order}:
		default:
			err := &domain.SinkError{Sink: s.Name(), OrderID: order.ID, Err: ErrQueueFull}
			d.logger.Error("sink job dropped",
				slog.String("sink", s.Name()),
				slog.String("order_id", order.ID),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting jobs and waits for queued jobs to finish or for
// ctx to expire, whichever comes first.
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

func (d *Dispatcher) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("sink panicked",
				slog.String("sink", j.sink.Name()),
				slog.String("order_id", j.order.ID),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := j.sink.Record(context.Background(), j.order); err != nil {
		sinkErr := &domain.SinkError{Sink: j.sink.Name(), OrderID: j.order.ID, Err: err}
		d.logger.Error("sink failed",
			slog.String("sink", j.sink.Name()),
			slog.String("order_id", j.order.ID),
			slog.String("error", sinkErr.Error()),
		)
		return
	}
	d.logger.Debug("sink recorded",
		slog.String("sink", j.sink.Name()),
		slog.String("order_id", j.order.ID),
	)
}
