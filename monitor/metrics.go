package monitor

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qist/tpserve/logger"
	"github.com/qist/tpserve/utils/worker"
	"github.com/shirou/gopsutil/v3/process"
)

const namespace = "tpserve"

// StatsSource 提供工作池统计，通常是 *worker.Pool
type StatsSource interface {
	Stats() worker.Stats
}

// Metrics 把工作池统计和进程资源暴露为 Prometheus 指标
type Metrics struct {
	registry *prometheus.Registry

	submitted prometheus.CounterFunc
	completed prometheus.CounterFunc
	panicked  prometheus.CounterFunc
	pending   prometheus.GaugeFunc
	busy      prometheus.GaugeFunc
	workers   prometheus.GaugeFunc
}

func NewMetrics(src StatsSource) *Metrics {
	stat := func(f func(worker.Stats) float64) func() float64 {
		return func() float64 { return f(src.Stats()) }
	}
	poolOpts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: "pool", Name: name, Help: help}
	}

	m := &Metrics{registry: prometheus.NewRegistry()}
	m.submitted = prometheus.NewCounterFunc(prometheus.CounterOpts(poolOpts("jobs_submitted_total", "Jobs accepted by the pool.")),
		stat(func(s worker.Stats) float64 { return float64(s.Submitted) }))
	m.completed = prometheus.NewCounterFunc(prometheus.CounterOpts(poolOpts("jobs_completed_total", "Jobs that returned normally.")),
		stat(func(s worker.Stats) float64 { return float64(s.Completed) }))
	m.panicked = prometheus.NewCounterFunc(prometheus.CounterOpts(poolOpts("jobs_panicked_total", "Jobs that panicked and were recovered.")),
		stat(func(s worker.Stats) float64 { return float64(s.Panicked) }))
	m.pending = prometheus.NewGaugeFunc(prometheus.GaugeOpts(poolOpts("jobs_pending", "Jobs waiting in the queue.")),
		stat(func(s worker.Stats) float64 { return float64(s.Pending) }))
	m.busy = prometheus.NewGaugeFunc(prometheus.GaugeOpts(poolOpts("workers_busy", "Workers currently executing a job.")),
		stat(func(s worker.Stats) float64 { return float64(s.Busy) }))
	m.workers = prometheus.NewGaugeFunc(prometheus.GaugeOpts(poolOpts("workers", "Fixed number of workers.")),
		stat(func(s worker.Stats) float64 { return float64(s.Workers) }))

	m.registry.MustRegister(m.submitted, m.completed, m.panicked, m.pending, m.busy, m.workers)
	m.registry.MustRegister(collectors.NewGoCollector())

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "process", Name: "cpu_percent",
				Help: "Process CPU usage since start, in percent.",
			}, func() float64 {
				v, err := proc.CPUPercent()
				if err != nil {
					return 0
				}
				return v
			}),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "process", Name: "rss_bytes",
				Help: "Resident set size of the process.",
			}, func() float64 {
				info, err := proc.MemoryInfo()
				if err != nil || info == nil {
					return 0
				}
				return float64(info.RSS)
			}),
		)
	} else {
		logger.LogPrintf("⚠️ 获取进程信息失败，跳过进程指标: %v", err)
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ServeMetrics 在 addr 上提供 /metrics，阻塞直到 ctx 取消
func ServeMetrics(ctx context.Context, addr string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogPrintf("🚀 启动指标服务 http://%s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogPrintf("❌ 指标服务关闭失败: %v", err)
		return err
	}
	logger.LogPrintf("✅ 指标服务已关闭")
	return nil
}
