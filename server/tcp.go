package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cloudflare/tableflip"
	"github.com/libp2p/go-reuseport"
	"github.com/qist/tpserve/logger"
	"github.com/qist/tpserve/utils/worker"
)

// Submitter 接收连接任务，通常是 *worker.Pool
type Submitter interface {
	Submit(job worker.Job) error
}

// ConnServer 处理单个连接，通常是 *handler.ConnHandler
type ConnServer interface {
	Serve(conn net.Conn)
}

const maxAcceptDelay = time.Second

// Listen 有升级器时从 tableflip 继承监听（热重启不断连），否则使用 SO_REUSEPORT
func Listen(addr string, upg *tableflip.Upgrader) (net.Listener, error) {
	if upg != nil {
		return upg.Listen("tcp", addr)
	}
	return reuseport.Listen("tcp", addr)
}

// Serve 循环接受连接，每个连接作为一个任务提交到工作池。
// ctx 取消后关闭监听并返回 nil。
func Serve(ctx context.Context, ln net.Listener, pool Submitter, h ConnServer) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.LogPrintf("✅ 已停止接受连接 %s", ln.Addr())
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			// 临时错误（如文件描述符耗尽）退避重试
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			logger.LogPrintf("⚠️ 接受连接失败: %v，%s 后重试", err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0

		if err := pool.Submit(func() { h.Serve(conn) }); err != nil {
			logger.LogPrintf("❌ [%s] 提交连接任务失败: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
		}
	}
}

// StartTCPServer 监听 addr 并阻塞服务直到 ctx 取消
func StartTCPServer(ctx context.Context, addr string, pool Submitter, h ConnServer, upg *tableflip.Upgrader) error {
	ln, err := Listen(addr, upg)
	if err != nil {
		return err
	}
	logger.LogPrintf("🚀 启动 TCP 服务 %s", ln.Addr())
	return Serve(ctx, ln, pool, h)
}
