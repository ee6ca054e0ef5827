package config

import "time"

// ============================================================================
//                              指标源配置
// ============================================================================

// 指标源类型
const (
	// MetricsClashAPI 轮询 Clash API /connections 端点
	MetricsClashAPI = "clash"

	// MetricsTrafficStream 订阅 Clash API /traffic WebSocket 流
	MetricsTrafficStream = "stream"

	// MetricsDebugVars 轮询 Go expvar /debug/vars 端点
	MetricsDebugVars = "debugvars"

	// MetricsProcessLiveness 仅做 PID 存活检测（无 API 可用时的兜底）
	MetricsProcessLiveness = "process"
)

// MetricsConfig 指标源配置
type MetricsConfig struct {
	// Provider 指标源类型
	// 默认值: "clash"
	Provider string

	// Port 传输进程控制面端口
	// 默认值: 9099
	Port int

	// FetchTimeout 单次 HTTP 拉取超时
	// 默认值: 2s
	FetchTimeout time.Duration

	// RedialMin WebSocket 断线重拨的起始退避
	// 默认值: 1s
	RedialMin time.Duration

	// RedialMax WebSocket 断线重拨的退避上限
	// 默认值: 30s
	RedialMax time.Duration
}

// DefaultMetricsConfig 返回默认配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Provider:     MetricsClashAPI,
		Port:         9099,
		FetchTimeout: 2 * time.Second,
		RedialMin:    1 * time.Second,
		RedialMax:    30 * time.Second,
	}
}

// Validate 校验配置，就地修正无效值
func (c *MetricsConfig) Validate() error {
	def := DefaultMetricsConfig()
	switch c.Provider {
	case MetricsClashAPI, MetricsTrafficStream, MetricsDebugVars, MetricsProcessLiveness:
	default:
		c.Provider = def.Provider
	}
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = def.Port
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.RedialMin <= 0 {
		c.RedialMin = def.RedialMin
	}
	if c.RedialMax < c.RedialMin {
		c.RedialMax = def.RedialMax
	}
	return nil
}

// WithPort 设置控制面端口
func (c MetricsConfig) WithPort(port int) MetricsConfig {
	c.Port = port
	return c
}
