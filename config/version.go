package config

import (
	_ "embed"
	"strings"
)

//go:embed version
var versionFile string

// Version 是程序版本号，默认从 version 文件读取
// 可以在编译时通过 -ldflags 覆盖，例如:
// go build -ldflags "-X 'github.com/qist/tpserve/config.Version=v0.2.0'" .
var Version = ""

func init() {
	if Version == "" {
		Version = strings.TrimSpace(versionFile)
	}
}
