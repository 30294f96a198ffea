package load

import (
	"fmt"
	"os"

	"github.com/qist/tpserve/config"
	"github.com/qist/tpserve/logger"
	"gopkg.in/yaml.v3"
)

// Parse 解析 YAML 并填充默认值、校验
func Parse(yamlData []byte) (config.Config, error) {
	var newCfg config.Config
	if err := yaml.Unmarshal(yamlData, &newCfg); err != nil {
		return config.Config{}, fmt.Errorf("解析配置失败: %w", err)
	}
	newCfg.SetDefaults()
	if err := newCfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("配置校验失败: %w", err)
	}
	return newCfg, nil
}

// LoadConfig 读取配置文件并替换全局配置，失败时保留旧配置
func LoadConfig(configPath string) error {
	yamlData, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	newCfg, err := Parse(yamlData)
	if err != nil {
		return err
	}

	config.CfgMu.Lock()
	config.Cfg = newCfg
	config.CfgMu.Unlock()

	SetupLogger(newCfg)
	logger.LogPrintf("✅ 配置文件已加载: %s，监听 %s，worker 数量: %d",
		configPath, newCfg.Server.Addr(), newCfg.Server.Workers)
	return nil
}

// SetupLogger 按配置重建日志输出
func SetupLogger(cfg config.Config) {
	logger.SetupLogger(logger.LogConfig{
		Enabled:    cfg.LogEnabled(),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}
