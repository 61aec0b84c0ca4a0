// Package ratesource supplies the rate tables epochdriver.Driver pushes into
// a TagQueue via UpdateRates. The queue itself is agnostic to where rates
// come from; this package gives two concrete ways to source them, following
// the same Storer/RateLimiter interface-seam split the rate_limiter package
// in the retrieved pack uses to separate policy from transport.
package ratesource

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/marcus-miao/tagqueue/pkg/epochdriver"
	"github.com/marcus-miao/tagqueue/pkg/rvadmission"
)

// Source produces a rate table suitable for TagQueue.UpdateRates. A Fetch
// call may fail transiently; callers decide whether to retry.
type Source interface {
	Fetch(ctx context.Context) (map[rvadmission.Tag]float64, error)
}

// Static returns a fixed rate table on every Fetch call. Useful for tests
// and for deployments that configure rates once at startup.
type Static struct {
	rates map[rvadmission.Tag]float64
}

// NewStatic constructs a Static source over a copy of rates, so later
// mutation of the caller's map cannot affect the source.
func NewStatic(rates map[rvadmission.Tag]float64) *Static {
	cp := make(map[rvadmission.Tag]float64, len(rates))
	for tag, rate := range rates {
		cp[tag] = rate
	}
	return &Static{rates: cp}
}

// Fetch always succeeds, returning a fresh copy of the configured table.
func (s *Static) Fetch(ctx context.Context) (map[rvadmission.Tag]float64, error) {
	cp := make(map[rvadmission.Tag]float64, len(s.rates))
	for tag, rate := range s.rates {
		cp[tag] = rate
	}
	return cp, nil
}

// Poller wraps another Source, adding jittered retry around transient
// fetch failures, and a Run loop that reconciles a Driver's rate table on a
// fixed interval — the fallback path for a driver that has no upstream rate
// controller pushing updates directly.
type Poller struct {
	inner        Source
	maxRetries   int
	baseDelay    time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// PollerOption configures a Poller at construction time.
type PollerOption func(*Poller)

// WithMaxRetries overrides the number of retry attempts after an initial
// failed Fetch. The default is 3.
func WithMaxRetries(n int) PollerOption {
	return func(p *Poller) { p.maxRetries = n }
}

// WithBaseDelay overrides the base backoff delay between retries. The
// default is 100ms; actual delay is jittered and doubles per attempt.
func WithBaseDelay(d time.Duration) PollerOption {
	return func(p *Poller) { p.baseDelay = d }
}

// WithPollerLogger overrides the logger used to report retry attempts.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

// WithPollInterval overrides how often Run reconciles the driver's rate
// table. The default is 30s.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.pollInterval = d }
}

// NewPoller wraps inner with jittered exponential backoff retry.
func NewPoller(inner Source, opts ...PollerOption) *Poller {
	p := &Poller{
		inner:        inner,
		maxRetries:   3,
		baseDelay:    100 * time.Millisecond,
		pollInterval: 30 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run calls Fetch every pollInterval and pushes the result into driver's
// rate table via UpdateRates, until ctx is canceled. A failed Fetch or a
// rejected UpdateRates is logged and skipped rather than stopping the loop,
// so one bad reconciliation does not take down the whole poller.
func (p *Poller) Run(ctx context.Context, driver *epochdriver.Driver) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rates, err := p.Fetch(ctx)
			if err != nil {
				p.logger.Warn("rate poll failed, leaving rate table unchanged", "error", err)
				continue
			}
			if err := driver.UpdateRates(ctx, rates); err != nil {
				p.logger.Warn("polled rate table rejected", "error", err)
			}
		}
	}
}

// Fetch calls the wrapped Source, retrying with jittered exponential
// backoff on error, up to maxRetries additional attempts. It gives up early
// if ctx is canceled while waiting between attempts.
func (p *Poller) Fetch(ctx context.Context) (map[rvadmission.Tag]float64, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		rates, err := p.inner.Fetch(ctx)
		if err == nil {
			return rates, nil
		}
		lastErr = err
		p.logger.Warn("rate fetch failed", "attempt", attempt, "error", err)

		if attempt == p.maxRetries {
			break
		}
		delay := p.baseDelay * time.Duration(1<<attempt)
		jittered := time.Duration(rand.Int63n(int64(delay)))
		select {
		case <-time.After(jittered):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, errors.Wrap(lastErr, "rate fetch exhausted retries")
}
