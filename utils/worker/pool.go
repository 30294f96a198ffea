// Package worker provides a fixed-size goroutine pool fed by an unbounded
// FIFO queue.
//
//	pool, err := worker.NewPool(4)
//	if err != nil {
//	    return err
//	}
//	defer pool.Shutdown()
//
//	_ = pool.Submit(func() { handle(conn) })
//
// Every submitted job runs exactly once on exactly one worker. A panicking
// job is recovered and reported; the worker keeps serving. Shutdown stops
// intake, lets the workers drain the queue and joins them.
package worker

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/qist/tpserve/logger"
)

// Job 是无参数、只执行一次的任务
type Job func()

// Option 配置 Pool
type Option func(*Pool)

// WithName 设置日志中的池名称
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithPanicHandler 任务 panic 时回调，workerID 为执行该任务的 worker 序号
func WithPanicHandler(h func(workerID int, r any)) Option {
	return func(p *Pool) {
		p.panicHandler = h
	}
}

// WithJobTrace 打印每个任务的领取日志
func WithJobTrace(enabled bool) Option {
	return func(p *Pool) {
		p.traceJobs = enabled
	}
}

// Stats 是池的运行统计快照
type Stats struct {
	Workers   int   `json:"workers"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Panicked  int64 `json:"panicked"`
	Pending   int   `json:"pending"`
	Busy      int64 `json:"busy"`
}

// Pool 持有固定数量的 worker 和共享队列的生产端
type Pool struct {
	name         string
	size         int
	queue        *queue
	workers      []*worker
	wg           sync.WaitGroup
	ready        sync.WaitGroup
	panicHandler func(workerID int, r any)
	traceJobs    bool

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	busy      atomic.Int64

	closed       atomic.Bool
	shutdownOnce sync.Once
}

// NewPool 创建并立即启动 size 个 worker，返回前所有 worker 均已就绪
func NewPool(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	p := &Pool{
		name:    "pool",
		size:    size,
		queue:   newQueue(),
		workers: make([]*worker, 0, size),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.ready.Add(size)
	p.wg.Add(size)
	for id := 0; id < size; id++ {
		w := &worker{id: id, pool: p}
		p.workers = append(p.workers, w)
		go w.run()
	}
	p.ready.Wait()

	logger.LogPrintf("🚀 [%s] 工作池已启动，worker 数量: %d", p.name, size)
	return p, nil
}

// Submit 入队后立即返回，不等待执行
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return ErrNilJob
	}
	p.submitted.Add(1)
	if err := p.queue.Send(job); err != nil {
		p.submitted.Add(-1)
		return fmt.Errorf("[%s] submit: %w", p.name, err)
	}
	return nil
}

// Shutdown 关闭生产端，等待 worker 处理完已入队任务并全部退出。
// 可重复、并发调用，所有调用者都会在 worker 退出后返回。
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.closed.Store(true)
		logger.LogPrintf("🔄 [%s] 正在关闭工作池，待处理任务: %d", p.name, p.queue.Len())
		p.queue.Close()
		p.wg.Wait()
		s := p.Stats()
		logger.LogPrintf("✅ [%s] 工作池已关闭，完成 %d，panic %d", p.name, s.Completed, s.Panicked)
	})
}

// Closed 报告 Shutdown 是否已被调用
func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// Size 返回 worker 数量，构造后不再变化
func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.size,
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
		Pending:   p.queue.Len(),
		Busy:      p.busy.Load(),
	}
}
