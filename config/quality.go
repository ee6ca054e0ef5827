package config

import "time"

// ============================================================================
//                              质量观察者配置
// ============================================================================

// QualityConfig 网络质量观察者配置
type QualityConfig struct {
	// InitialWindow 初始滑动窗口大小
	// 默认值: 60s
	InitialWindow time.Duration

	// AdaptiveWindow 是否根据错误率自适应调整窗口
	// 默认值: true
	AdaptiveWindow bool

	// StableWindow 稳定网络（错误率 < StableRatio）使用的窗口
	// 默认值: 120s
	StableWindow time.Duration

	// DefaultWindow 中等错误率使用的窗口
	// 默认值: 60s
	DefaultWindow time.Duration

	// UnstableWindow 高错误率使用的窗口
	// 默认值: 30s
	UnstableWindow time.Duration

	// StableRatio 判定稳定的错误率上界
	// 默认值: 0.10
	StableRatio float64

	// UnstableRatio 判定中等的错误率上界，超过则用 UnstableWindow
	// 默认值: 0.20
	UnstableRatio float64

	// DegradationThreshold 降级所需的连续确认评估次数
	// 默认值: 5
	DegradationThreshold int

	// RecoveryThreshold 恢复所需的连续确认评估次数
	// 默认值: 3
	RecoveryThreshold int

	// DegradedErrors 窗口内判定 Degraded 的中等及以上错误数
	// 默认值: 8
	DegradedErrors int

	// UnstableErrors 窗口内判定 Unstable 的错误数
	// 默认值: 15
	UnstableErrors int

	// CriticalErrors 窗口内判定 Critical 的错误数
	// 默认值: 25
	CriticalErrors int

	// UnstableReconnects 窗口内判定 Unstable 的重连次数
	// 默认值: 3
	UnstableReconnects int

	// CriticalCooldown 进入 Critical 后的最短停留时间
	// 默认值: 30s
	CriticalCooldown time.Duration

	// RecoveryStepLimit 单次恢复最多上跳的等级数（旁路时不限制）
	// 默认值: 2
	RecoveryStepLimit int

	// ExcellentStableFor 允许进入 Excellent 前要求的持续稳定时长
	// 默认值: 60s
	ExcellentStableFor time.Duration

	// FastPathWindow 快速通道的突发检测窗口
	// 默认值: 3s
	FastPathWindow time.Duration

	// FastPathThreshold 快速通道触发所需的高置信错误数
	// 默认值: 10
	FastPathThreshold int

	// SilenceTimeout 静默检测阈值：超过该时长无任何活动即判定断开
	// 默认值: 2s
	SilenceTimeout time.Duration

	// SilenceWarmup 启动宽限期，宽限期内不做静默检测
	// 默认值: 30s
	SilenceWarmup time.Duration

	// LazyEvalInterval 读取质量时触发惰性重评的间隔
	// 默认值: 5s
	LazyEvalInterval time.Duration

	// TimeoutModerateCount 近期超时达到该次数后，超时从瞬时升为中等
	// 默认值: 3
	TimeoutModerateCount int

	// TimeoutRecentWindow 统计近期超时的回看窗口
	// 默认值: 30s
	TimeoutRecentWindow time.Duration

	// HandshakeHistory 握手耗时环形缓冲大小
	// 默认值: 50
	HandshakeHistory int
}

// DefaultQualityConfig 返回默认配置
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		InitialWindow:        60 * time.Second,
		AdaptiveWindow:       true,
		StableWindow:         120 * time.Second,
		DefaultWindow:        60 * time.Second,
		UnstableWindow:       30 * time.Second,
		StableRatio:          0.10,
		UnstableRatio:        0.20,
		DegradationThreshold: 5,
		RecoveryThreshold:    3,
		DegradedErrors:       8,
		UnstableErrors:       15,
		CriticalErrors:       25,
		UnstableReconnects:   3,
		CriticalCooldown:     30 * time.Second,
		RecoveryStepLimit:    2,
		ExcellentStableFor:   60 * time.Second,
		FastPathWindow:       3 * time.Second,
		FastPathThreshold:    10,
		SilenceTimeout:       2 * time.Second,
		SilenceWarmup:        30 * time.Second,
		LazyEvalInterval:     5 * time.Second,
		TimeoutModerateCount: 3,
		TimeoutRecentWindow:  30 * time.Second,
		HandshakeHistory:     50,
	}
}

// Validate 校验配置，就地修正无效值
func (c *QualityConfig) Validate() error {
	def := DefaultQualityConfig()
	if c.InitialWindow <= 0 {
		c.InitialWindow = def.InitialWindow
	}
	if c.StableWindow <= 0 {
		c.StableWindow = def.StableWindow
	}
	if c.DefaultWindow <= 0 {
		c.DefaultWindow = def.DefaultWindow
	}
	if c.UnstableWindow <= 0 {
		c.UnstableWindow = def.UnstableWindow
	}
	if c.StableRatio <= 0 || c.StableRatio >= 1 {
		c.StableRatio = def.StableRatio
	}
	if c.UnstableRatio <= c.StableRatio || c.UnstableRatio >= 1 {
		c.UnstableRatio = def.UnstableRatio
	}
	if c.DegradationThreshold <= 0 {
		c.DegradationThreshold = def.DegradationThreshold
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = def.RecoveryThreshold
	}
	if c.DegradedErrors <= 0 {
		c.DegradedErrors = def.DegradedErrors
	}
	if c.UnstableErrors <= c.DegradedErrors {
		c.UnstableErrors = def.UnstableErrors
	}
	if c.CriticalErrors <= c.UnstableErrors {
		c.CriticalErrors = def.CriticalErrors
	}
	if c.UnstableReconnects <= 0 {
		c.UnstableReconnects = def.UnstableReconnects
	}
	if c.CriticalCooldown <= 0 {
		c.CriticalCooldown = def.CriticalCooldown
	}
	if c.RecoveryStepLimit <= 0 {
		c.RecoveryStepLimit = def.RecoveryStepLimit
	}
	if c.ExcellentStableFor <= 0 {
		c.ExcellentStableFor = def.ExcellentStableFor
	}
	if c.FastPathWindow <= 0 {
		c.FastPathWindow = def.FastPathWindow
	}
	if c.FastPathThreshold <= 0 {
		c.FastPathThreshold = def.FastPathThreshold
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = def.SilenceTimeout
	}
	if c.SilenceWarmup <= 0 {
		c.SilenceWarmup = def.SilenceWarmup
	}
	if c.LazyEvalInterval <= 0 {
		c.LazyEvalInterval = def.LazyEvalInterval
	}
	if c.TimeoutModerateCount <= 0 {
		c.TimeoutModerateCount = def.TimeoutModerateCount
	}
	if c.TimeoutRecentWindow <= 0 {
		c.TimeoutRecentWindow = def.TimeoutRecentWindow
	}
	if c.HandshakeHistory <= 0 {
		c.HandshakeHistory = def.HandshakeHistory
	}
	return nil
}

// WithInitialWindow 设置初始窗口大小
func (c QualityConfig) WithInitialWindow(d time.Duration) QualityConfig {
	c.InitialWindow = d
	return c
}

// WithAdaptiveWindow 设置是否自适应窗口
func (c QualityConfig) WithAdaptiveWindow(enable bool) QualityConfig {
	c.AdaptiveWindow = enable
	return c
}

// WithHysteresis 设置降级/恢复的连续确认次数
func (c QualityConfig) WithHysteresis(degradation, recovery int) QualityConfig {
	c.DegradationThreshold = degradation
	c.RecoveryThreshold = recovery
	return c
}
