package update

import (
	"github.com/qist/tpserve/config"
	"github.com/qist/tpserve/handler"
	"github.com/qist/tpserve/logger"
)

// HandlerOptions 从配置中取出连接处理参数
func HandlerOptions(cfg config.Config) handler.Options {
	return handler.Options{
		BufferSize: cfg.Server.BufferSize,
		SleepDelay: cfg.Server.SleepDelay,
	}
}

// ApplyOnConfigChange 把可热更新的配置应用到连接处理器和页面缓存。
// 监听地址与 worker 数量不在此处理，见 watch.NeedRestart。
func ApplyOnConfigChange(h *handler.ConnHandler, cfg config.Config) {
	old := h.Options()
	opts := HandlerOptions(cfg)
	h.Update(opts)

	pages := h.Pages()
	oldRoot := pages.Root()
	pages.Reset(cfg.Server.DocRoot, cfg.Pages.CacheTTL)

	if old != h.Options() {
		logger.LogPrintf("🔄 连接处理参数已更新: buffer_size=%d sleep_delay=%s", opts.BufferSize, opts.SleepDelay)
	}
	if oldRoot != cfg.Server.DocRoot {
		logger.LogPrintf("🔄 页面目录已更新: %q", cfg.Server.DocRoot)
	}
}
