package config

import "time"

// ============================================================================
//                              自动重连配置
// ============================================================================

// ReconnectConfig 自动重连配置
type ReconnectConfig struct {
	// StabilizationBuffer 恢复前的稳定等待时长（可被取消打断）
	// 默认值: 2s
	StabilizationBuffer time.Duration

	// LoadTimeout 配置加载超时
	// 默认值: 5s
	LoadTimeout time.Duration

	// TestTimeout 自愈检测的连接测试超时
	// 默认值: 10s
	TestTimeout time.Duration

	// ConnectTimeout 重连调用超时
	// 默认值: 30s
	ConnectTimeout time.Duration
}

// DefaultReconnectConfig 返回默认配置
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		StabilizationBuffer: 2 * time.Second,
		LoadTimeout:         5 * time.Second,
		TestTimeout:         10 * time.Second,
		ConnectTimeout:      30 * time.Second,
	}
}

// Validate 校验配置，就地修正无效值
func (c *ReconnectConfig) Validate() error {
	def := DefaultReconnectConfig()
	if c.StabilizationBuffer <= 0 {
		c.StabilizationBuffer = def.StabilizationBuffer
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = def.LoadTimeout
	}
	if c.TestTimeout <= 0 {
		c.TestTimeout = def.TestTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	return nil
}

// WithStabilizationBuffer 设置稳定等待时长
func (c ReconnectConfig) WithStabilizationBuffer(d time.Duration) ReconnectConfig {
	c.StabilizationBuffer = d
	return c
}
