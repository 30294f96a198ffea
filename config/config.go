package config

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

var (
	ConfigFilePath *string
	VersionFlag    *bool
	ServerCtx      context.Context
	Cancel         context.CancelFunc
	Cfg            Config
	CfgMu          sync.RWMutex
	StartTime      time.Time // 程序启动时间
)

func init() {
	ConfigFilePath = flag.String("config", "config.yaml", "YAML配置文件路径")
	VersionFlag = flag.Bool("version", false, "显示程序版本")
	ServerCtx, Cancel = context.WithCancel(context.Background())
	StartTime = time.Now()
}

// 配置校验错误
var (
	ErrInvalidWorkers    = errors.New("server.workers must be positive")
	ErrInvalidPort       = errors.New("server.port out of range")
	ErrInvalidBufferSize = errors.New("server.buffer_size must be positive")
)

// Config 主配置结构
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Monitor MonitorConfig `yaml:"monitor"`
	Pages   PagesConfig   `yaml:"pages"`
	Reload  int           `yaml:"reload"` // 配置文件变更防抖秒数
}

type ServerConfig struct {
	Host       string        `yaml:"host"`        // 监听地址
	Port       int           `yaml:"port"`        // 监听端口
	Workers    int           `yaml:"workers"`     // 工作池大小，进程生命周期内固定
	BufferSize int           `yaml:"buffer_size"` // 请求读取缓冲区大小
	DocRoot    string        `yaml:"doc_root"`    // 页面目录，为空时使用内置页面
	SleepDelay time.Duration `yaml:"sleep_delay"` // /sleep 请求的延迟
	TraceJobs  bool          `yaml:"trace_jobs"`  // 打印 worker 领取任务日志
}

// Addr 返回 host:port
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type LogConfig struct {
	Enabled    *bool  `yaml:"enabled"`    // 启用日志
	File       string `yaml:"file"`       // 日志文件，为空输出到标准输出
	MaxSizeMB  int    `yaml:"maxsize"`    // 日志文件最大大小
	MaxBackups int    `yaml:"maxbackups"` // 最大备份数量
	MaxAgeDays int    `yaml:"maxage"`     // 最大保留天数
	Compress   bool   `yaml:"compress"`   // 启用压缩
}

type MonitorConfig struct {
	Enabled     bool          `yaml:"enabled"`      // 定时打印运行统计
	Interval    time.Duration `yaml:"interval"`     // 统计间隔
	MetricsAddr string        `yaml:"metrics_addr"` // Prometheus 指标地址，为空不启动
}

type PagesConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"` // 页面缓存时间
}

// Default 返回填充了默认值的配置
func Default() Config {
	var c Config
	c.SetDefaults()
	return c
}

func (c *Config) SetDefaults() {
	// Server 默认值
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 7878
	}
	if c.Server.Workers == 0 {
		c.Server.Workers = 4
	}
	if c.Server.BufferSize == 0 {
		c.Server.BufferSize = 512
	}
	if c.Server.SleepDelay == 0 {
		c.Server.SleepDelay = 5 * time.Second
	}

	// 日志默认开启，输出到标准输出
	if c.Log.Enabled == nil {
		c.Log.Enabled = ptr(true)
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 7
	}

	if c.Monitor.Interval <= 0 {
		c.Monitor.Interval = 30 * time.Second
	}
	if c.Pages.CacheTTL <= 0 {
		c.Pages.CacheTTL = time.Minute
	}
	if c.Reload <= 0 {
		c.Reload = 2
	}
}

// Validate 校验配置，不合法的配置不会被应用
func (c *Config) Validate() error {
	if c.Server.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Server.Workers)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	if c.Server.BufferSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBufferSize, c.Server.BufferSize)
	}
	if c.Server.SleepDelay < 0 {
		return fmt.Errorf("server.sleep_delay must not be negative: %s", c.Server.SleepDelay)
	}
	return nil
}

// LogEnabled 返回日志开关，未设置时视为开启
func (c *Config) LogEnabled() bool {
	return c.Log.Enabled == nil || *c.Log.Enabled
}

// Snapshot 在读锁下复制当前配置
func Snapshot() Config {
	CfgMu.RLock()
	defer CfgMu.RUnlock()
	return Cfg
}

func ptr[T any](v T) *T { return &v }
