package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if err := validateStoreURL(g.StoreBaseURL); err != nil {
		return fmt.Errorf("StoreBaseURL: %w", err)
	}
	if g.FreshTTL.DurationValue() <= 0 {
		return newFieldError("FreshTTL", "必须大于 0")
	}
	if g.StaleTTL.DurationValue() <= g.FreshTTL.DurationValue() {
		return newFieldError("StaleTTL", "必须大于 FreshTTL")
	}
	if g.MaxEntries <= 0 {
		return newFieldError("MaxEntries", "必须大于 0")
	}
	if g.MaxRetries < 0 {
		return newFieldError("MaxRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("InitialBackoff", "必须大于 0")
	}
	if g.MaxBackoff.DurationValue() < g.InitialBackoff.DurationValue() {
		return newFieldError("MaxBackoff", "不能小于 InitialBackoff")
	}
	if g.FetchTimeout.DurationValue() <= 0 {
		return newFieldError("FetchTimeout", "必须大于 0")
	}
	if g.RevalidateWorkers < 1 {
		return newFieldError("RevalidateWorkers", "至少为 1")
	}
	if g.SweepInterval.DurationValue() <= 0 {
		return newFieldError("SweepInterval", "必须大于 0")
	}

	return nil
}

func validateStoreURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return errors.New("不能为空")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("无法解析: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("仅支持 http/https")
	}
	if parsed.Host == "" {
		return errors.New("缺少主机名")
	}
	return nil
}
