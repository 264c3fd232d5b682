package server

import (
	"net"
	"net/http"
	"time"

	"github.com/catalog-edge/catalog-edge/internal/config"
)

// Shared HTTP transport tunings，对文档存储复用长连接并集中配置超时。
var storeTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewStoreClient 返回共享 http.Client，用于所有对文档存储的请求。
// 这里的超时约束单次底层查询；整个聚合的墙钟上限由 FetchTimeout 控制。
func NewStoreClient(cfg *config.Config) *http.Client {
	timeout := 10 * time.Second
	if cfg != nil && cfg.Global.StoreTimeout.DurationValue() > 0 {
		timeout = cfg.Global.StoreTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: storeTransport.Clone(),
	}
}
