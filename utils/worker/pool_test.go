package worker

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qist/tpserve/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestNewPoolInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1, -8} {
		pool, err := NewPool(size)
		assert.Nil(t, pool)
		assert.ErrorIs(t, err, ErrInvalidSize)
	}
}

func TestNewPoolWorkersReady(t *testing.T) {
	const size = 4
	pool, err := NewPool(size)
	require.NoError(t, err)
	defer pool.Shutdown()

	assert.Equal(t, size, pool.Size())

	// 全部 worker 同时在线：size 个任务必须能同时开始
	var started sync.WaitGroup
	started.Add(size)
	release := make(chan struct{})
	for _i := 0; _i < size; _i++ {
		require.NoError(t, pool.Submit(func() {
			started.Done()
			<-release
		}))
	}

	done := make(chan struct{})
	go func() {
		started.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all workers picked up a job")
	}
	close(release)
}

func TestSubmitNilJob(t *testing.T) {
	pool, err := NewPool(1)
	require.NoError(t, err)
	defer pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(nil), ErrNilJob)
	assert.Equal(t, int64(0), pool.Stats().Submitted)
}

func TestEveryJobRunsExactlyOnce(t *testing.T) {
	const jobs = 1000
	pool, err := NewPool(8)
	require.NoError(t, err)

	runs := make([]atomic.Int32, jobs)
	for i := 0; i < jobs; i++ {
		i := i
		require.NoError(t, pool.Submit(func() { runs[i].Add(1) }))
	}
	pool.Shutdown()

	for i := range runs {
		if n := runs[i].Load(); n != 1 {
			t.Fatalf("job %d ran %d times", i, n)
		}
	}
	s := pool.Stats()
	assert.Equal(t, int64(jobs), s.Submitted)
	assert.Equal(t, int64(jobs), s.Completed)
	assert.Equal(t, 0, s.Pending)
}

func TestConcurrencyBoundedByPoolSize(t *testing.T) {
	const size = 3
	pool, err := NewPool(size)
	require.NoError(t, err)

	var running, peak atomic.Int32
	for _i := 0; _i < 30; _i++ {
		require.NoError(t, pool.Submit(func() {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		}))
	}
	pool.Shutdown()

	assert.LessOrEqual(t, peak.Load(), int32(size))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestJobsRunInParallel(t *testing.T) {
	const (
		size = 4
		d    = 200 * time.Millisecond
	)
	pool, err := NewPool(size)
	require.NoError(t, err)

	start := time.Now()
	for _i := 0; _i < size; _i++ {
		require.NoError(t, pool.Submit(func() { time.Sleep(d) }))
	}
	pool.Shutdown()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, d)
	assert.Less(t, elapsed, 3*d, "jobs should overlap, serial time is %s", size*d)
}

func TestBlockingJobOccupiesOneWorker(t *testing.T) {
	const size = 4
	pool, err := NewPool(size)
	require.NoError(t, err)

	release := make(chan struct{})
	require.NoError(t, pool.Submit(func() { <-release }))

	var fast sync.WaitGroup
	fast.Add(size)
	for _i := 0; _i < size; _i++ {
		require.NoError(t, pool.Submit(func() { fast.Done() }))
	}

	done := make(chan struct{})
	go func() {
		fast.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fast jobs were stalled by the blocking job")
	}

	assert.Eventually(t, func() bool { return pool.Stats().Busy == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	pool.Shutdown()
	assert.Equal(t, int64(size+1), pool.Stats().Completed)
}

func TestPanicIsRecoveredAndWorkerSurvives(t *testing.T) {
	var handled atomic.Int32
	var handledWorker atomic.Int32
	handledWorker.Store(-1)

	pool, err := NewPool(1, WithName("panic"), WithPanicHandler(func(id int, r any) {
		handled.Add(1)
		handledWorker.Store(int32(id))
		assert.Equal(t, "boom", r)
	}))
	require.NoError(t, err)

	var ran atomic.Bool
	require.NoError(t, pool.Submit(func() { panic("boom") }))
	require.NoError(t, pool.Submit(func() { ran.Store(true) }))
	pool.Shutdown()

	assert.True(t, ran.Load(), "single worker must keep running after a panic")
	assert.Equal(t, int32(1), handled.Load())
	assert.Equal(t, int32(0), handledWorker.Load())
	s := pool.Stats()
	assert.Equal(t, int64(1), s.Panicked)
	assert.Equal(t, int64(1), s.Completed)
}

func TestPanicHandlerPanicIsContained(t *testing.T) {
	pool, err := NewPool(1, WithPanicHandler(func(int, any) { panic("handler") }))
	require.NoError(t, err)

	var ran atomic.Bool
	require.NoError(t, pool.Submit(func() { panic("job") }))
	require.NoError(t, pool.Submit(func() { ran.Store(true) }))
	pool.Shutdown()

	assert.True(t, ran.Load())
}

func TestShutdownDrainsAndRejects(t *testing.T) {
	pool, err := NewPool(2, WithJobTrace(true))
	require.NoError(t, err)

	var count atomic.Int32
	for _i := 0; _i < 50; _i++ {
		require.NoError(t, pool.Submit(func() {
			time.Sleep(time.Millisecond)
			count.Add(1)
		}))
	}
	pool.Shutdown()

	assert.Equal(t, int32(50), count.Load())
	assert.True(t, pool.Closed())
	assert.ErrorIs(t, pool.Submit(func() {}), ErrDisconnected)
	assert.Equal(t, int64(50), pool.Stats().Submitted)
}

func TestShutdownConcurrentCallers(t *testing.T) {
	pool, err := NewPool(3)
	require.NoError(t, err)

	var finished atomic.Int32
	require.NoError(t, pool.Submit(func() {
		time.Sleep(50 * time.Millisecond)
		finished.Add(1)
	}))

	var wg sync.WaitGroup
	for _i := 0; _i < 5; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Shutdown()
			// 每个调用者返回时任务必然已结束
			assert.Equal(t, int32(1), finished.Load())
		}()
	}
	wg.Wait()
}

func TestConcurrentProducersCounter(t *testing.T) {
	const (
		producers = 8
		perThread = 250
	)
	pool, err := NewPool(4)
	require.NoError(t, err)

	var counter atomic.Int64
	var wg sync.WaitGroup
	for _i := 0; _i < producers; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _i := 0; _i < perThread; _i++ {
				if err := pool.Submit(func() { counter.Add(1) }); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	pool.Shutdown()

	assert.Equal(t, int64(producers*perThread), counter.Load())
}

func TestStatsPendingAndBusy(t *testing.T) {
	pool, err := NewPool(1)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-release
	}))
	<-started
	for _i := 0; _i < 3; _i++ {
		require.NoError(t, pool.Submit(func() {}))
	}

	s := pool.Stats()
	assert.Equal(t, 1, s.Workers)
	assert.Equal(t, int64(1), s.Busy)
	assert.Equal(t, 3, s.Pending)
	assert.Equal(t, int64(4), s.Submitted)

	close(release)
	pool.Shutdown()
	s = pool.Stats()
	assert.Equal(t, int64(0), s.Busy)
	assert.Equal(t, 0, s.Pending)
	assert.Equal(t, int64(4), s.Completed)
}
