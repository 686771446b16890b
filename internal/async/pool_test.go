package async

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/classdocs/internal/testutil"
)

func TestPool_EnqueueDoesNotBlockWhenSaturated(t *testing.T) {
	t.Parallel()
	p := NewPool(testutil.Logger(), WithWorkers(1))
	release := make(chan struct{})
	var ran atomic.Int32

	for i := 0; i < 5; i++ {
		start := time.Now()
		err := p.Enqueue(context.Background(), Task{JobID: uuid.New(), Run: func(context.Context) error {
			<-release
			ran.Add(1)
			return nil
		}})
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	}
	assert.Equal(t, 5, p.Inflight())

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	assert.Equal(t, int32(5), ran.Load())
	assert.Zero(t, p.Inflight())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	p := NewPool(testutil.Logger(), WithWorkers(2))
	var cur, peak atomic.Int32

	for i := 0; i < 8; i++ {
		require.NoError(t, p.Enqueue(context.Background(), Task{JobID: uuid.New(), Run: func(context.Context) error {
			n := cur.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			cur.Add(-1)
			return nil
		}}))
	}
	require.NoError(t, p.Shutdown(context.Background()))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_TaskContextIsDetached(t *testing.T) {
	t.Parallel()
	p := NewPool(testutil.Logger(), WithProcessTimeout(time.Second))
	callerCtx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)

	require.NoError(t, p.Enqueue(callerCtx, Task{JobID: uuid.New(), Run: func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		result <- ctx.Err()
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}}))
	cancel()

	require.NoError(t, <-result)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_RecoversPanicsAndErrors(t *testing.T) {
	t.Parallel()
	p := NewPool(testutil.Logger(), WithWorkers(1))
	done := make(chan struct{})

	require.NoError(t, p.Enqueue(context.Background(), Task{JobID: uuid.New(), Run: func(context.Context) error {
		panic("boom")
	}}))
	require.NoError(t, p.Enqueue(context.Background(), Task{JobID: uuid.New(), Run: func(context.Context) error {
		return errors.New("failed")
	}}))
	require.NoError(t, p.Enqueue(context.Background(), Task{JobID: uuid.New(), Run: func(context.Context) error {
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool stopped running tasks after a panic")
	}
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_RejectsAfterShutdown(t *testing.T) {
	t.Parallel()
	p := NewPool(testutil.Logger())
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.Enqueue(context.Background(), Task{JobID: uuid.New(), Run: func(context.Context) error { return nil }})
	require.ErrorIs(t, err, ErrQueueClosed)
	require.Error(t, p.Enqueue(context.Background(), Task{JobID: uuid.New()}))
}

func TestPool_ShutdownHonoursContext(t *testing.T) {
	t.Parallel()
	p := NewPool(testutil.Logger())
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, p.Enqueue(context.Background(), Task{JobID: uuid.New(), Run: func(context.Context) error {
		<-release
		return nil
	}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)
}

func TestPool_LogsQueueWait(t *testing.T) {
	t.Parallel()
	var logs syncBuffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := NewPool(logger, WithWorkers(1))

	release := make(chan struct{})
	first, second := uuid.New(), uuid.New()
	require.NoError(t, p.Enqueue(context.Background(), Task{JobID: first, Run: func(context.Context) error {
		<-release
		return nil
	}}))
	require.NoError(t, p.Enqueue(context.Background(), Task{
		JobID:       second,
		SubmittedAt: time.Now().Add(-time.Second),
		Run:         func(context.Context) error { return nil },
	}))
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	waits := map[string]float64{}
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == "task started" {
			waits[rec["job_id"].(string)] = rec["queue_wait_ms"].(float64)
		}
	}
	require.Len(t, waits, 2)
	assert.GreaterOrEqual(t, waits[second.String()], float64(1000))
	assert.Less(t, waits[first.String()], float64(1000))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
