package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	purged  int64
	err     error
}

func (f *fakePurger) PurgeCompletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.purged, f.err
}

func (f *fakePurger) calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.cutoffs...)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Schedule: "0 3 * * *", MaxAge: 30})
	assert.ErrorContains(t, err, "purger is required")

	_, err = New(Config{Purger: &fakePurger{}, Schedule: "0 3 * * *", MaxAge: 0})
	assert.ErrorContains(t, err, "max age must be positive")

	_, err = New(Config{Purger: &fakePurger{}, Schedule: "every day at dawn", MaxAge: 30})
	assert.ErrorContains(t, err, "invalid retention schedule")

	_, err = New(Config{Purger: &fakePurger{}, Schedule: "@daily", MaxAge: 30})
	assert.NoError(t, err)
}

func TestRunOnceUsesMaxAgeCutoff(t *testing.T) {
	purger := &fakePurger{purged: 3}
	job, err := New(Config{
		Purger:   purger,
		Schedule: "0 3 * * *",
		MaxAge:   30,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	before := time.Now().UTC().Add(-30 * 24 * time.Hour)
	job.runOnce()
	after := time.Now().UTC().Add(-30 * 24 * time.Hour)

	calls := purger.calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Before(before))
	assert.False(t, calls[0].After(after))
}

func TestRunOnceSurvivesPurgeFailure(t *testing.T) {
	purger := &fakePurger{err: errors.New("database locked")}
	job, err := New(Config{
		Purger:   purger,
		Schedule: "0 3 * * *",
		MaxAge:   7,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	job.runOnce()
	job.runOnce()
	assert.Len(t, purger.calls(), 2)
}

func TestStartAndStop(t *testing.T) {
	purger := &fakePurger{}
	job, err := New(Config{
		Purger:   purger,
		Schedule: "0 3 * * *",
		MaxAge:   30,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, job.Start())
	job.Stop()
}
