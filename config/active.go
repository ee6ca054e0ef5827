package config

import "time"

// ============================================================================
//                              主动监控配置
// ============================================================================

// ActiveConfig 主动连通性监控配置
//
// 核心判定：「流量没有真正流动——只是重试噪声」。
// 小于 MinTrafficBytes 的增量视为 TCP 重试，不算真实流量。
type ActiveConfig struct {
	// SampleInterval 采样间隔
	// 默认值: 3s
	SampleInterval time.Duration

	// RequiredSamples 快速路径所需的连续停滞采样数（配合错误佐证）
	// 默认值: 2
	RequiredSamples int

	// WarningSamples 触发软警告的停滞采样数
	// 默认值: 4
	WarningSamples int

	// MaxStallSamples 兜底路径的停滞采样数（无需佐证，但要探测确认）
	// 默认值: 8
	MaxStallSamples int

	// MinTrafficBytes 流量判定阈值，增量低于该值视为停滞
	// 默认值: 200
	MinTrafficBytes uint64

	// MinHandshakeBytes 预热期内判定握手完成的增量阈值
	// 默认值: 1000
	MinHandshakeBytes uint64

	// SlowHandshakeTransports 需要预热宽限的慢握手传输类型
	// 默认值: ["xhttp", "splithttp"]
	SlowHandshakeTransports []string

	// FetchTimeout 单次快照拉取超时
	// 默认值: 2s
	FetchTimeout time.Duration

	// ProbeTimeout 单次隧道探测超时
	// 默认值: 2s
	ProbeTimeout time.Duration

	// FactBuffer 事实通道缓冲大小
	// 默认值: 16
	FactBuffer int

	// SendGrace 通道满时的宽限发送时长，超过后丢弃并告警
	// 默认值: 100ms
	SendGrace time.Duration
}

// DefaultActiveConfig 返回默认配置
func DefaultActiveConfig() ActiveConfig {
	return ActiveConfig{
		SampleInterval:          3 * time.Second,
		RequiredSamples:         2,
		WarningSamples:          4,
		MaxStallSamples:         8,
		MinTrafficBytes:         200,
		MinHandshakeBytes:       1000,
		SlowHandshakeTransports: []string{"xhttp", "splithttp"},
		FetchTimeout:            2 * time.Second,
		ProbeTimeout:            2 * time.Second,
		FactBuffer:              16,
		SendGrace:               100 * time.Millisecond,
	}
}

// Validate 校验配置，就地修正无效值
func (c *ActiveConfig) Validate() error {
	def := DefaultActiveConfig()
	if c.SampleInterval <= 0 {
		c.SampleInterval = def.SampleInterval
	}
	if c.RequiredSamples <= 0 {
		c.RequiredSamples = def.RequiredSamples
	}
	if c.WarningSamples < c.RequiredSamples {
		c.WarningSamples = def.WarningSamples
	}
	if c.MaxStallSamples <= c.WarningSamples {
		c.MaxStallSamples = def.MaxStallSamples
	}
	if c.MinTrafficBytes == 0 {
		c.MinTrafficBytes = def.MinTrafficBytes
	}
	if c.MinHandshakeBytes == 0 {
		c.MinHandshakeBytes = def.MinHandshakeBytes
	}
	if c.SlowHandshakeTransports == nil {
		c.SlowHandshakeTransports = def.SlowHandshakeTransports
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.FactBuffer <= 0 {
		c.FactBuffer = def.FactBuffer
	}
	if c.SendGrace <= 0 {
		c.SendGrace = def.SendGrace
	}
	return nil
}

// WithSampleInterval 设置采样间隔
func (c ActiveConfig) WithSampleInterval(d time.Duration) ActiveConfig {
	c.SampleInterval = d
	return c
}

// WithTrafficThreshold 设置流量判定阈值
func (c ActiveConfig) WithTrafficThreshold(bytes uint64) ActiveConfig {
	c.MinTrafficBytes = bytes
	return c
}
