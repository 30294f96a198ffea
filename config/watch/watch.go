package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloudflare/tableflip"
	"github.com/fsnotify/fsnotify"

	"github.com/qist/tpserve/config"
	"github.com/qist/tpserve/config/load"
	"github.com/qist/tpserve/logger"
)

// NeedRestart 判断新配置是否必须换进程才能生效：
// 工作池大小在进程内固定，监听地址变更需要重新绑定
func NeedRestart(oldCfg, newCfg config.Config) bool {
	return oldCfg.Server.Addr() != newCfg.Server.Addr() ||
		oldCfg.Server.Workers != newCfg.Server.Workers
}

// WatchConfigFile 监控配置文件变更。可热更新的部分交给 onReload，
// 需要重启的变更通过 tableflip 平滑升级到新进程。阻塞直到 ctx 取消。
func WatchConfigFile(ctx context.Context, configPath string, upg *tableflip.Upgrader, onReload func(config.Config)) {
	if configPath == "" {
		return
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		logger.LogPrintf("❌ 获取配置文件绝对路径失败: %v", err)
		return
	}
	parentDir := filepath.Dir(absPath)

	var lastModifiedTime time.Time
	if fileInfo, err := os.Stat(absPath); err == nil {
		lastModifiedTime = fileInfo.ModTime()
	} else {
		lastModifiedTime = time.Now()
		logger.LogPrintf("⚠️ 获取配置文件状态失败，将使用当前时间: %v", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.LogPrintf("❌ 创建文件监听失败: %v", err)
		return
	}
	defer watcher.Close()

	setupWatcher := func() error {
		// 监听父目录以便捕获编辑器的原子替换（rename + create）
		if err := watcher.Add(parentDir); err != nil {
			return err
		}
		return nil
	}
	if err := setupWatcher(); err != nil {
		logger.LogPrintf("❌ 初始化文件监控失败: %v", err)
		return
	}

	debounceDelay := time.Duration(config.Snapshot().Reload) * time.Second
	var (
		debounceTimer *time.Timer
		reloadMu      sync.Mutex
	)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	reload := func() {
		reloadMu.Lock()
		defer reloadMu.Unlock()

		info, err := os.Stat(absPath)
		if err != nil {
			logger.LogPrintf("❌ 获取文件信息失败: %v", err)
			return
		}
		if !info.ModTime().After(lastModifiedTime) {
			return
		}
		lastModifiedTime = info.ModTime()
		logger.LogPrintf("📦 检测到配置文件修改，准备重新加载...")

		oldCfg := config.Snapshot()
		if err := load.LoadConfig(absPath); err != nil {
			logger.LogPrintf("❌ 重新加载配置失败，继续使用旧配置: %v", err)
			return
		}
		newCfg := config.Snapshot()

		if onReload != nil {
			onReload(newCfg)
		}

		if !NeedRestart(oldCfg, newCfg) {
			logger.LogPrintf("🔄 配置变更无需重启服务，已平滑更新")
			return
		}

		logger.LogPrintf("🔄 监听地址或 worker 数量变更 (%s/%d → %s/%d)，需要重启服务",
			oldCfg.Server.Addr(), oldCfg.Server.Workers, newCfg.Server.Addr(), newCfg.Server.Workers)
		if upg == nil {
			logger.LogPrintf("⚠️ 当前平台不支持热升级，请手动重启进程")
			return
		}
		if err := upg.Upgrade(); err != nil {
			logger.LogPrintf("❌ 平滑重启失败: %v", err)
			return
		}
		logger.LogPrintf("✅ 新进程已就绪，旧进程开始退出")
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, reload)
			case event.Op&(fsnotify.Rename|fsnotify.Remove) != 0:
				logger.LogPrintf("⚠️ 配置文件被重命名或删除，等待重新创建")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.LogPrintf("❌ 文件监听错误: %v", err)
			if err := setupWatcher(); err != nil {
				logger.LogPrintf("❌ 重新建立监控失败: %v", err)
			}
		}
	}
}
