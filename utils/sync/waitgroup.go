package tsync

import (
	"runtime/debug"
	"sync"

	"github.com/qist/tpserve/logger"
)

// WaitGroup 用于后台常驻协程（监控、配置监听、指标服务），panic 只记录不扩散
type WaitGroup struct {
	sync.WaitGroup
	Name string
}

func (wg *WaitGroup) Go(f func()) {
	wg.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				name := wg.Name
				if name == "" {
					name = "WaitGroup.Go"
				}
				logger.LogPrintf("[%s] goroutine panic: %v\n%s", name, r, debug.Stack())
			}
			wg.Done()
		}()

		f()
	}()
}
