package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cloudflare/tableflip"
	"golang.org/x/sync/errgroup"

	"github.com/qist/tpserve/config"
	"github.com/qist/tpserve/config/load"
	"github.com/qist/tpserve/config/update"
	"github.com/qist/tpserve/config/watch"
	"github.com/qist/tpserve/handler"
	"github.com/qist/tpserve/logger"
	"github.com/qist/tpserve/monitor"
	"github.com/qist/tpserve/server"
	tsync "github.com/qist/tpserve/utils/sync"
	"github.com/qist/tpserve/utils/worker"
	"github.com/qist/tpserve/web"
)

func main() {
	flag.Parse()

	if *config.VersionFlag {
		fmt.Println("程序版本:", config.Version)
		return
	}

	// -------------------------
	// 初始化 tableflip Upgrader（仅非 Windows 平台）
	// -------------------------
	var upg *tableflip.Upgrader
	var err error
	if runtime.GOOS != "windows" {
		upg, err = tableflip.New(tableflip.Options{})
		if err != nil {
			log.Fatalf("无法创建升级器: %v", err)
		}
		defer upg.Stop()
	}

	// -------------------------
	// 配置文件加载
	// -------------------------
	configFilePath, err := load.EnsureConfigFile(*config.ConfigFilePath)
	if err != nil {
		log.Fatalf("确保配置文件失败: %v", err)
	}
	*config.ConfigFilePath = configFilePath
	if err := load.LoadConfig(configFilePath); err != nil {
		log.Fatalf("加载配置文件失败: %v", err)
	}
	cfg := config.Snapshot()

	// -------------------------
	// 工作池与连接处理
	// -------------------------
	pool, err := worker.NewPool(cfg.Server.Workers,
		worker.WithName("conn"),
		worker.WithJobTrace(cfg.Server.TraceJobs),
	)
	if err != nil {
		log.Fatalf("创建工作池失败: %v", err)
	}
	pages := web.NewStore(cfg.Server.DocRoot, cfg.Pages.CacheTTL)
	connHandler := handler.NewConnHandler(pages, update.HandlerOptions(cfg))

	ln, err := server.Listen(cfg.Server.Addr(), upg)
	if err != nil {
		log.Fatalf("监听 %s 失败: %v", cfg.Server.Addr(), err)
	}
	logger.LogPrintf("🚀 启动 TCP 服务 %s，版本 %s", ln.Addr(), config.Version)

	// -------------------------
	// 服务与后台任务
	// -------------------------
	ctx, cancel := config.ServerCtx, config.Cancel
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, ln, pool, connHandler)
	})
	if cfg.Monitor.MetricsAddr != "" {
		metrics := monitor.NewMetrics(pool)
		g.Go(func() error {
			// 指标服务失败不影响主服务
			if err := monitor.ServeMetrics(gctx, cfg.Monitor.MetricsAddr, metrics); err != nil {
				logger.LogPrintf("❌ 指标服务错误: %v", err)
			}
			return nil
		})
	}

	bg := tsync.WaitGroup{Name: "background"}
	if cfg.Monitor.Enabled {
		bg.Go(func() {
			monitor.RunStatsReporter(gctx, cfg.Monitor.Interval, pool, config.StartTime)
		})
	}
	bg.Go(func() {
		watch.WatchConfigFile(gctx, configFilePath, upg, func(c config.Config) {
			update.ApplyOnConfigChange(connHandler, c)
		})
	})

	// -------------------------
	// 捕获系统退出信号
	// -------------------------
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.LogPrintf("收到退出信号 %s，开始优雅退出", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// -------------------------
	// tableflip 准备完成；新进程接管后旧进程退出
	// -------------------------
	if upg != nil {
		if err := upg.Ready(); err != nil {
			log.Fatalf("升级器准备失败: %v", err)
		}
		go func() {
			select {
			case <-upg.Exit():
				logger.LogPrintf("🔄 新进程已接管监听，旧进程开始退出")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	if err := g.Wait(); err != nil {
		logger.LogPrintf("❌ 服务异常退出: %v", err)
	}
	shutdown(cancel, &bg, pool)
}

// shutdown 停止后台任务，等待工作池处理完已接受的连接
func shutdown(cancel context.CancelFunc, bg *tsync.WaitGroup, pool *worker.Pool) {
	cancel()
	bg.Wait()
	pool.Shutdown()
	logger.LogPrintf("优雅退出完成")
}
