package mirror

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/R3E-Network/souschef/internal/logging"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) SyncAll(ctx context.Context, mode Mode) ([]Report, error) {
	r.calls.Add(1)
	return []Report{{Mode: mode}}, r.err
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler(&countingRunner{}, ModeMerge, "every now and then", nil)
	assert.Error(t, err)
	_, err = NewScheduler(nil, ModeMerge, "", nil)
	assert.Error(t, err)
}

func TestSchedulerRunsOnSchedule(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := &countingRunner{}
	s, err := NewScheduler(runner, ModePush, "@every 1s", logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "mirror-scheduler", s.Name())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")
	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
	assert.GreaterOrEqual(t, s.Runs(), 1)
}

func TestSchedulerRunNow(t *testing.T) {
	runner := &countingRunner{err: errors.New("remote down")}
	s, err := NewScheduler(runner, ModePull, "", nil)
	require.NoError(t, err)

	reports, err := s.RunNow(context.Background())
	assert.Error(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ModePull, reports[0].Mode)
	assert.Equal(t, 1, s.Runs())
}
