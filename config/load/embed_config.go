package load

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed config.yaml
var embeddedConfig embed.FS

// EnsureConfigFile 确保指定路径下有配置文件，不存在时写入内置默认配置
// 返回实际配置文件路径
func EnsureConfigFile(configPath string) (string, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	configFilePath := configPath
	if filepath.Ext(configPath) == "" || strings.HasSuffix(configPath, string(os.PathSeparator)) {
		// 没有扩展名或以 "/" 结尾 → 当目录处理
		configFilePath = filepath.Join(configPath, "config.yaml")
	} else if info, err := os.Stat(configPath); err == nil && info.IsDir() {
		configFilePath = filepath.Join(configPath, "config.yaml")
	}

	// 文件已存在 → 不覆盖
	if _, err := os.Stat(configFilePath); err == nil {
		return configFilePath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("检查配置文件时出错: %w", err)
	}

	content, err := embeddedConfig.ReadFile("config.yaml")
	if err != nil {
		return "", fmt.Errorf("读取嵌入配置文件失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configFilePath), 0o755); err != nil {
		return "", fmt.Errorf("创建配置目录失败: %w", err)
	}
	if err := os.WriteFile(configFilePath, content, 0o644); err != nil {
		return "", fmt.Errorf("写入默认配置文件失败: %w", err)
	}
	return configFilePath, nil
}
