package interfaces

import (
	"context"
	"time"
)

// ============================================================================
//                              外部协作者接口
// ============================================================================

// MetricsProvider 指标源
//
// 每个采样周期被调用一次。返回错误表示本轮采样跳过，
// 不构成状态变更（崩溃判定属于被动通路）。
type MetricsProvider interface {
	// FetchSnapshot 拉取当前指标快照
	FetchSnapshot(ctx context.Context) (*MetricsSnapshot, error)
}

// LogSource 日志源
//
// 逐行输出传输进程的原始日志。Lines 通道在源关闭后 close。
type LogSource interface {
	// Lines 日志行通道
	Lines() <-chan string

	// Err 返回导致通道关闭的错误（正常关闭为 nil）
	Err() error
}

// NetworkValidator 网络可达性校验器
//
// 任何恢复尝试前都要先咨询它。
type NetworkValidator interface {
	// CheckInternetConnection 物理网络是否可达
	CheckInternetConnection(ctx context.Context) bool
}

// ConfigLoader 连接配置加载器
type ConfigLoader interface {
	// Load 按路径加载连接配置
	Load(ctx context.Context, path string) ([]byte, error)
}

// ConnectTester 连接测试器
//
// 用于重连前验证隧道是否已自愈。
type ConnectTester interface {
	// Test 用给定配置做一次连通性测试
	Test(ctx context.Context, config []byte) TestResult
}

// Reconnector 重连操作
//
// 实际的断开/重建完全由外部持有；成功的重连会开启新会话
// 并自行发出成功事件。
type Reconnector interface {
	// Reconnect 以最近一次已知目标和模式重建连接
	Reconnect(ctx context.Context, configPath string, mode Mode) bool
}

// SettingsProvider 设置提供者
type SettingsProvider interface {
	// AutoReconnectEnabled 自动重连（亦即监控整体）是否启用
	AutoReconnectEnabled() bool
}

// ============================================================================
//                              探测器
// ============================================================================

// ProbeResult 一次隧道探测的结果
type ProbeResult struct {
	// Success 探测是否成功
	Success bool

	// RTT 探测往返耗时
	RTT time.Duration

	// Err 探测过程中的错误（如果有）
	Err error
}

// Prober 隧道探测器
//
// 穿过隧道做一次轻量连通性验证，用于区分「空闲」与「断开」。
type Prober interface {
	// Probe 执行一次探测
	Probe(ctx context.Context) ProbeResult
}
