package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"DigitalHuman-server/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRunner struct {
	mu    sync.Mutex
	seen  []string
	calls int32
}

func (r *countingRunner) Process(_ context.Context, job service.StageJob) error {
	atomic.AddInt32(&r.calls, 1)
	r.mu.Lock()
	r.seen = append(r.seen, job.TaskID)
	r.mu.Unlock()
	if job.TaskID == "panic" {
		panic("boom")
	}
	return nil
}

func TestLocalDispatcher_RunsEachJobOnce(t *testing.T) {
	runner := &countingRunner{}
	d := service.NewLocalDispatcher(runner, 2, zap.NewNop())

	for _, id := range []string{"a", "b", "panic", "c"} {
		require.NoError(t, d.Dispatch(context.Background(), service.StageJob{Stage: "lyrics", TaskID: id}))
	}
	d.Wait()
	assert.Equal(t, int32(4), atomic.LoadInt32(&runner.calls))
	assert.ElementsMatch(t, []string{"a", "b", "panic", "c"}, runner.seen)
}

func TestLocalDispatcher_RejectsAfterClose(t *testing.T) {
	d := service.NewLocalDispatcher(&countingRunner{}, 1, zap.NewNop())
	d.Close()
	err := d.Dispatch(context.Background(), service.StageJob{Stage: "cover"})
	assert.ErrorIs(t, err, service.ErrDispatcherClosed)
}

func TestLocalDispatcher_IgnoresRequestCancellation(t *testing.T) {
	runner := &countingRunner{}
	d := service.NewLocalDispatcher(runner, 1, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, d.Dispatch(ctx, service.StageJob{Stage: "music", TaskID: "x"}))
	d.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))
}
