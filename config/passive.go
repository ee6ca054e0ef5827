package config

import "time"

// ============================================================================
//                              被动监控配置
// ============================================================================

// defaultFailureKeywords 判定连接失败的日志关键字（全部小写，子串匹配）
var defaultFailureKeywords = []string{
	// MUX 与传输层错误
	"failed to handler mux client connection",
	"transport closed",
	"generic::error",
	// 连接错误
	"connection reset by peer",
	"connection refused",
	"connection timed out",
	// 超时错误
	"read timeout",
	"i/o timeout",
	"dial tcp", // 涵盖 "dial tcp ... timeout" 与 "dial tcp ... refused"
	// 握手与 TLS 错误
	"handshake failed",
	"tls handshake",
	// 重试与失败错误
	"all retry attempts failed",
	"failed to get", // 涵盖 "failed to GET ..."
	"failed to post",
	// 网络错误
	"no such host",
	"no route to host",
	"network is unreachable",
	"wsarecv:", // Windows socket 错误
}

// PassiveConfig 被动日志监控配置
type PassiveConfig struct {
	// Keywords 失败关键字表（小写子串，首个命中生效）
	// 默认值: 内置关键字表
	Keywords []string

	// PollInterval 文件日志源的轮询间隔
	// 默认值: 1s
	PollInterval time.Duration

	// Debounce 两次告警之间的最短间隔
	// 默认值: 5s
	Debounce time.Duration

	// BaseCooldown 指数退避的基准暂停时长
	// 默认值: 5s
	BaseCooldown time.Duration

	// MaxCooldown 指数退避的暂停上限
	// 默认值: 5m
	MaxCooldown time.Duration

	// RecentFailureWindow HasRecentFailure 的回看窗口
	// 默认值: 30s
	RecentFailureWindow time.Duration

	// DedupCacheSize 按关键字去重缓存的容量
	// 默认值: 64
	DedupCacheSize int

	// FactBuffer 事实通道缓冲大小
	// 默认值: 16
	FactBuffer int

	// SendGrace 通道满时的宽限发送时长，超过后丢弃并告警
	// 默认值: 100ms
	SendGrace time.Duration
}

// DefaultPassiveConfig 返回默认配置
func DefaultPassiveConfig() PassiveConfig {
	return PassiveConfig{
		Keywords:            defaultFailureKeywords,
		PollInterval:        1 * time.Second,
		Debounce:            5 * time.Second,
		BaseCooldown:        5 * time.Second,
		MaxCooldown:         5 * time.Minute,
		RecentFailureWindow: 30 * time.Second,
		DedupCacheSize:      64,
		FactBuffer:          16,
		SendGrace:           100 * time.Millisecond,
	}
}

// Validate 校验配置，就地修正无效值
func (c *PassiveConfig) Validate() error {
	def := DefaultPassiveConfig()
	if len(c.Keywords) == 0 {
		c.Keywords = def.Keywords
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.Debounce <= 0 {
		c.Debounce = def.Debounce
	}
	if c.BaseCooldown <= 0 {
		c.BaseCooldown = def.BaseCooldown
	}
	if c.MaxCooldown < c.BaseCooldown {
		c.MaxCooldown = def.MaxCooldown
	}
	if c.RecentFailureWindow <= 0 {
		c.RecentFailureWindow = def.RecentFailureWindow
	}
	if c.DedupCacheSize <= 0 {
		c.DedupCacheSize = def.DedupCacheSize
	}
	if c.FactBuffer <= 0 {
		c.FactBuffer = def.FactBuffer
	}
	if c.SendGrace <= 0 {
		c.SendGrace = def.SendGrace
	}
	return nil
}

// WithKeywords 设置失败关键字表
func (c PassiveConfig) WithKeywords(keywords []string) PassiveConfig {
	c.Keywords = keywords
	return c
}

// WithDebounce 设置告警防抖间隔
func (c PassiveConfig) WithDebounce(d time.Duration) PassiveConfig {
	c.Debounce = d
	return c
}
