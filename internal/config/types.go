package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	// StoreBaseURL 指向后端文档存储的 REST 入口。
	StoreBaseURL string   `mapstructure:"StoreBaseURL"`
	StoreTimeout Duration `mapstructure:"StoreTimeout"`

	// FreshTTL/StaleTTL 划分缓存条目的三态新鲜度；MaxEntries 是容量上限。
	FreshTTL   Duration `mapstructure:"FreshTTL"`
	StaleTTL   Duration `mapstructure:"StaleTTL"`
	MaxEntries int      `mapstructure:"MaxEntries"`

	// 重试与超时参数约束一次聚合抓取。
	MaxRetries     int      `mapstructure:"MaxRetries"`
	InitialBackoff Duration `mapstructure:"InitialBackoff"`
	MaxBackoff     Duration `mapstructure:"MaxBackoff"`
	FetchTimeout   Duration `mapstructure:"FetchTimeout"`

	// 后台维护：刷新 worker 数与过期清扫间隔。
	RevalidateWorkers int      `mapstructure:"RevalidateWorkers"`
	SweepInterval     Duration `mapstructure:"SweepInterval"`

	// facet 采样规模。
	ReviewSampleSize int `mapstructure:"ReviewSampleSize"`
	RelatedLimit     int `mapstructure:"RelatedLimit"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
}
