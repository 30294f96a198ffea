package worker

import (
	"runtime/debug"

	"github.com/qist/tpserve/logger"
)

// worker 从共享队列逐个取任务执行，队列断开时退出
type worker struct {
	id   int
	pool *Pool
}

func (w *worker) run() {
	defer w.pool.wg.Done()
	w.pool.ready.Done()

	for {
		job, err := w.pool.queue.Receive()
		if err != nil {
			if w.pool.traceJobs {
				logger.LogPrintf("[%s] worker %d disconnected; shutting down.", w.pool.name, w.id)
			}
			return
		}
		if w.pool.traceJobs {
			logger.LogPrintf("[%s] worker %d got a job; executing.", w.pool.name, w.id)
		}
		w.execute(job)
	}
}

// execute 运行单个任务，panic 在此处被截获，worker 继续循环
func (w *worker) execute(job Job) {
	w.pool.busy.Add(1)
	defer func() {
		w.pool.busy.Add(-1)
		if r := recover(); r != nil {
			w.pool.panicked.Add(1)
			logger.LogPrintf("❌ [%s] worker %d job panic: %v\n%s", w.pool.name, w.id, r, debug.Stack())
			w.reportPanic(r)
			return
		}
		w.pool.completed.Add(1)
	}()

	job()
}

func (w *worker) reportPanic(r any) {
	h := w.pool.panicHandler
	if h == nil {
		return
	}
	defer func() {
		if r2 := recover(); r2 != nil {
			logger.LogPrintf("❌ [%s] panic handler panic: %v", w.pool.name, r2)
		}
	}()
	h(w.id, r)
}
