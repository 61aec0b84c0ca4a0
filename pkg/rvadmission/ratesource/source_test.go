package ratesource

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/marcus-miao/tagqueue/pkg/epochdriver"
	"github.com/marcus-miao/tagqueue/pkg/rvadmission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticFetchReturnsCopy(t *testing.T) {
	s := NewStatic(map[rvadmission.Tag]float64{"x": 5})

	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	got["x"] = 999

	again, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, again["x"])
}

// flakySource counts calls with an atomic int since TestPollerRunReconcilesDriverOnSchedule
// reads it from a goroutine other than the one driving Fetch.
type flakySource struct {
	failures int
	rates    map[rvadmission.Tag]float64
	calls    atomic.Int32
}

func (f *flakySource) Fetch(ctx context.Context) (map[rvadmission.Tag]float64, error) {
	n := f.calls.Add(1)
	if int(n) <= f.failures {
		return nil, errors.New("transient")
	}
	return f.rates, nil
}

func TestPollerRetriesThenSucceeds(t *testing.T) {
	inner := &flakySource{failures: 2, rates: map[rvadmission.Tag]float64{"x": 1}}
	p := NewPoller(inner, WithMaxRetries(3), WithBaseDelay(time.Millisecond))

	rates, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[rvadmission.Tag]float64{"x": 1}, rates)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestPollerGivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakySource{failures: 100}
	p := NewPoller(inner, WithMaxRetries(2), WithBaseDelay(time.Millisecond))

	_, err := p.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestPollerRespectsContextCancellation(t *testing.T) {
	inner := &flakySource{failures: 100}
	p := NewPoller(inner, WithMaxRetries(5), WithBaseDelay(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Fetch(ctx)
	require.Error(t, err)
}

func TestPollerRunReconcilesDriverOnSchedule(t *testing.T) {
	inner := &flakySource{rates: map[rvadmission.Tag]float64{"x": 7}}
	p := NewPoller(inner, WithPollInterval(5*time.Millisecond))

	queue := rvadmission.NewTagQueue()
	driver := epochdriver.New(queue, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = driver.Run(ctx) }()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, driver) }()

	require.Eventually(t, func() bool {
		return inner.calls.Load() > 0
	}, time.Second, 5*time.Millisecond, "poller never reconciled the driver")

	cancel()
	err := <-done
	require.Error(t, err)
}
