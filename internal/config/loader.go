package config

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoreTimeout", "10s")
	v.SetDefault("FreshTTL", "30s")
	v.SetDefault("StaleTTL", "5m")
	v.SetDefault("MaxEntries", 4096)
	v.SetDefault("MaxRetries", 3)
	v.SetDefault("InitialBackoff", "100ms")
	v.SetDefault("MaxBackoff", "2s")
	v.SetDefault("FetchTimeout", "8s")
	v.SetDefault("RevalidateWorkers", 4)
	v.SetDefault("SweepInterval", "1m")
	v.SetDefault("ReviewSampleSize", 5)
	v.SetDefault("RelatedLimit", 8)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.FreshTTL.DurationValue() == 0 {
		g.FreshTTL = Duration(30 * time.Second)
	}
	if g.StaleTTL.DurationValue() == 0 {
		g.StaleTTL = Duration(5 * time.Minute)
	}
	if g.MaxEntries == 0 {
		g.MaxEntries = 4096
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(100 * time.Millisecond)
	}
	if g.MaxBackoff.DurationValue() == 0 {
		g.MaxBackoff = Duration(2 * time.Second)
	}
	if g.FetchTimeout.DurationValue() == 0 {
		g.FetchTimeout = Duration(8 * time.Second)
	}
	if g.StoreTimeout.DurationValue() == 0 {
		g.StoreTimeout = Duration(10 * time.Second)
	}
	if g.RevalidateWorkers == 0 {
		g.RevalidateWorkers = 4
	}
	if g.SweepInterval.DurationValue() == 0 {
		g.SweepInterval = Duration(time.Minute)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
