package watch

import (
	"github.com/qist/tpserve/config"
	"github.com/qist/tpserve/config/load"
)

// loadInto 加载配置并把防抖时间压到 0
func loadInto(path string) error {
	if err := load.LoadConfig(path); err != nil {
		return err
	}
	config.CfgMu.Lock()
	config.Cfg.Reload = 0
	config.CfgMu.Unlock()
	return nil
}
