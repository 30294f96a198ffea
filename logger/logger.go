// logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Enabled    bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var logger = struct {
	sync.RWMutex
	enabled bool
	output  io.Writer
	closer  io.Closer
}{
	enabled: true,
	output:  os.Stdout,
}

func LogPrintf(format string, v ...interface{}) {
	logger.RLock()
	defer logger.RUnlock()
	if logger.enabled && logger.output != nil {
		fmt.Fprintf(logger.output, time.Now().Format("2006/01/02 15:04:05 ")+format+"\n", v...)
	}
}

// SetupLogger 按配置切换输出目标，旧的 lumberjack 文件句柄会被关闭
func SetupLogger(cfg LogConfig) {
	logger.Lock()
	defer logger.Unlock()

	if logger.closer != nil {
		_ = logger.closer.Close()
		logger.closer = nil
	}

	if !cfg.Enabled {
		logger.enabled = false
		logger.output = io.Discard
		return
	}

	logger.enabled = true
	if cfg.File == "" {
		logger.output = os.Stdout
	} else {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		logger.output = lj
		logger.closer = lj
	}
}

// SetOutput 直接替换输出（测试用）
func SetOutput(w io.Writer) {
	logger.Lock()
	defer logger.Unlock()
	if logger.closer != nil {
		_ = logger.closer.Close()
		logger.closer = nil
	}
	logger.enabled = w != nil
	logger.output = w
}
