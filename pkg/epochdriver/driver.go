// Package epochdriver implements the harness-side contract spec.md §4.3
// describes: something that repeatedly measures elapsed wall time, invokes
// TagQueue.RunEpoch, and drains the produced priority buckets to reply
// channels.
//
// Driver also realizes spec.md §5's single-threaded cooperative model on top
// of goroutines: every TagQueue-mutating call (AddRequest, UpdateRates,
// RunEpoch) happens on Driver.Run's own goroutine. Other goroutines only
// ever talk to Driver through channels: a buffered one for submissions and
// an unbuffered one for rate updates.
package epochdriver

import (
	"context"
	"log/slog"
	"time"

	"github.com/marcus-miao/tagqueue/pkg/rvadmission"
)

// Option configures a Driver at construction time.
type Option func(*Driver)

// WithLogger overrides the logger used for per-epoch diagnostics. The
// default discards everything below Info.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithQueueCapacity overrides the buffering of the internal submission
// channel. The default is 256.
func WithQueueCapacity(n int) Option {
	return func(d *Driver) { d.reqCh = make(chan *rvadmission.Request, n) }
}

// WithMetrics registers the Driver's per-epoch counters against m instead of
// the package default.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// Driver owns a TagQueue and drives it at a fixed nominal interval,
// measuring the true elapsed time between ticks rather than assuming the
// nominal interval held exactly.
type Driver struct {
	queue    *rvadmission.TagQueue
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics

	reqCh  chan *rvadmission.Request
	rateCh chan rateUpdate
}

type rateUpdate struct {
	rates map[rvadmission.Tag]float64
	errCh chan error
}

// New constructs a Driver around queue, ticking every interval.
func New(queue *rvadmission.TagQueue, interval time.Duration, opts ...Option) *Driver {
	d := &Driver{
		queue:    queue,
		interval: interval,
		logger:   slog.Default(),
		metrics:  NewMetrics(nil),
		reqCh:    make(chan *rvadmission.Request, 256),
		rateCh:   make(chan rateUpdate),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit enqueues req for consideration in the next epoch. It blocks only if
// the driver's internal channel is full, never on anything inside TagQueue.
func (d *Driver) Submit(ctx context.Context, req *rvadmission.Request) error {
	select {
	case d.reqCh <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateRates reconciles the driver's TagQueue with rates, returning any
// RateMisconfigured error from the underlying TagQueue.UpdateRates call. It
// is safe to call concurrently with Submit and with Run's own ticking.
func (d *Driver) UpdateRates(ctx context.Context, rates map[rvadmission.Tag]float64) error {
	errCh := make(chan error, 1)
	select {
	case d.rateCh <- rateUpdate{rates: rates, errCh: errCh}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the queue until ctx is canceled, then shuts the queue down,
// failing any still-pending or still-deferred requests. Run owns the only
// goroutine that ever calls into the TagQueue directly.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.queue.Shutdown()
			return ctx.Err()

		case req := <-d.reqCh:
			if err := d.queue.AddRequest(req); err != nil {
				req.Reply <- rvadmission.Outcome{Err: err}
			}

		case upd := <-d.rateCh:
			upd.errCh <- d.queue.UpdateRates(upd.rates)

		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now
			buckets := d.queue.RunEpoch(elapsed)
			d.metrics.observeDeferred(d.queue.DeferredCount())
			d.dispatch(buckets)
		}
	}
}

// dispatch fulfils every admitted request's reply channel and records
// per-bucket counts. This is the one place ownership of an admitted Request
// passes from the queue to its caller.
func (d *Driver) dispatch(b rvadmission.Buckets) {
	d.metrics.observeEpoch(b)
	for _, req := range b.Batch {
		req.Reply <- rvadmission.Outcome{}
	}
	for _, req := range b.Default {
		req.Reply <- rvadmission.Outcome{}
	}
	for _, req := range b.Immediate {
		req.Reply <- rvadmission.Outcome{}
	}
}
