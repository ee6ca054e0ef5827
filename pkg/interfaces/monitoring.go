package interfaces

import (
	"context"
	"time"
)

// ============================================================================
//                              网络质量等级
// ============================================================================

// NetworkQuality 网络质量等级
//
// 全序离散等级，驱动外部限速自适应协作者。
// 数值越大质量越好，可直接用 < / > 比较。
type NetworkQuality int

const (
	// QualityCritical 严重异常，需要激进降速
	QualityCritical NetworkQuality = iota

	// QualityUnstable 频繁异常，需要降速
	QualityUnstable

	// QualityDegraded 存在异常，维持当前速率
	QualityDegraded

	// QualityStable 正常运行
	QualityStable

	// QualityExcellent 无异常，可以提速
	QualityExcellent
)

// String 返回质量等级名称
func (q NetworkQuality) String() string {
	switch q {
	case QualityCritical:
		return "critical"
	case QualityUnstable:
		return "unstable"
	case QualityDegraded:
		return "degraded"
	case QualityStable:
		return "stable"
	case QualityExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              错误信号
// ============================================================================

// ErrorKind 错误类型
type ErrorKind int

const (
	// ErrorTimeout 超时
	ErrorTimeout ErrorKind = iota

	// ErrorConnectionReset 连接被重置
	ErrorConnectionReset

	// ErrorDNSFailure DNS 解析失败
	ErrorDNSFailure

	// ErrorTLSFailure TLS 握手失败
	ErrorTLSFailure

	// ErrorProcessCrash 传输进程崩溃
	ErrorProcessCrash

	// ErrorReconnect 重连尝试
	ErrorReconnect
)

// String 返回错误类型名称
func (k ErrorKind) String() string {
	switch k {
	case ErrorTimeout:
		return "timeout"
	case ErrorConnectionReset:
		return "connection_reset"
	case ErrorDNSFailure:
		return "dns_failure"
	case ErrorTLSFailure:
		return "tls_failure"
	case ErrorProcessCrash:
		return "process_crash"
	case ErrorReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// ErrorSeverity 错误严重度
//
// 严重度是升级判定的输入，与重连失败原因码（升级判定的输出）无关。
type ErrorSeverity int

const (
	// SeverityTransient 瞬时错误（孤立超时、DNS 抖动），不计入统计
	SeverityTransient ErrorSeverity = iota + 1

	// SeverityModerate 中等错误（连接重置、重复超时）
	SeverityModerate

	// SeveritySevere 严重错误（TLS 失败、进程崩溃）
	SeveritySevere
)

// String 返回严重度名称
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityTransient:
		return "transient"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	default:
		return "unknown"
	}
}

// ErrorSignal 单个错误事件
//
// 不可变；只在有界时间窗口内存活，超过当前窗口大小即被淘汰。
type ErrorSignal struct {
	Kind      ErrorKind
	Severity  ErrorSeverity
	Timestamp time.Time
}

// ============================================================================
//                              指标快照
// ============================================================================

// MetricsSnapshot 传输进程指标快照
//
// 每个采样周期产出一次，仅与上一个快照比较。
type MetricsSnapshot struct {
	// Timestamp 采样时间
	Timestamp time.Time

	// UplinkBytes 累计上行字节数
	UplinkBytes uint64

	// DownlinkBytes 累计下行字节数
	DownlinkBytes uint64

	// OutboundFailures 出站失败计数
	OutboundFailures int

	// ProcessAlive 传输进程是否存活
	ProcessAlive bool
}

// TotalBytes 上下行字节合计
func (s *MetricsSnapshot) TotalBytes() uint64 {
	return s.UplinkBytes + s.DownlinkBytes
}

// ============================================================================
//                              监控事实
// ============================================================================

// MonitorFact 监控组件产出的事实
//
// 事实不携带策略或 UI 语义，也不携带会话身份；
// 是否有效由持有方（ConnectionMonitoringService）的当前会话决定。
type MonitorFact int

const (
	// FactPassiveFailure 被动日志监控命中失败模式
	FactPassiveFailure MonitorFact = iota

	// FactActiveLost 主动监控确认连接丢失（流量停滞 + 错误佐证）
	FactActiveLost

	// FactActiveRestored 主动监控检测到连接恢复
	FactActiveRestored

	// FactActiveDegraded 主动监控发现连接降级（软警告）
	FactActiveDegraded
)

// String 返回事实名称
func (f MonitorFact) String() string {
	switch f {
	case FactPassiveFailure:
		return "passive_failure"
	case FactActiveLost:
		return "active_lost"
	case FactActiveRestored:
		return "active_restored"
	case FactActiveDegraded:
		return "active_degraded"
	default:
		return "unknown"
	}
}

// FactEnvelope 事实通道信封
//
// 信封只是传输载体：SessionID 记录产出时的会话号，
// 供分发端丢弃跨会话的陈旧残留，不构成事实本身的身份。
type FactEnvelope struct {
	Fact      MonitorFact
	SessionID int64
	Timestamp time.Time
}

// ============================================================================
//                              连接信息
// ============================================================================

// Mode 连接模式
type Mode string

const (
	// ModeTunnel 隧道（VPN）模式，启用主动连通性监控
	ModeTunnel Mode = "vpn"

	// ModeProxy 代理模式，仅被动监控
	ModeProxy Mode = "proxy"
)

// ConnectionInfo 当前连接信息
//
// Adopted 表示该连接是从已运行的外部进程接管的：
// 没有可加载的配置，既不能自检也不能重连。
type ConnectionInfo struct {
	ConfigPath string
	Mode       Mode
	Adopted    bool
}

// TestResult 连接测试结果
type TestResult struct {
	Success bool
	Latency time.Duration
	Detail  string
}

// ============================================================================
//                              重连事件
// ============================================================================

// 重连流程事件名
const (
	// EventFailureDetected 已确认失败，准备进入恢复流程
	EventFailureDetected = "failure_detected"

	// EventReconnecting 即将调用重连操作
	EventReconnecting = "reconnecting"

	// EventReconnectFailed 恢复流程以失败终止，data["reason"] 携带原因码
	EventReconnectFailed = "reconnect_failed"
)

// 重连失败原因码
const (
	// ReasonNoInternet 物理网络不可达
	ReasonNoInternet = "no_internet"

	// ReasonInvalidConnection 连接信息缺失或不可重连（如接管连接）
	ReasonInvalidConnection = "invalid_connection"

	// ReasonConnectFailed 重连调用本身失败
	ReasonConnectFailed = "connect_failed"

	// ReasonNoConnection 没有任何连接信息
	ReasonNoConnection = "no_connection"
)

// ============================================================================
//                              回调类型
// ============================================================================

// FactHandler 接收经会话校验的监控事实
//
// 在分发 goroutine 上同步调用；UI 线程亲和性由外部控制器自行处理。
type FactHandler func(fact MonitorFact, sessionID int64)

// QualityHandler 接收稳定后的质量等级变更
type QualityHandler func(quality NetworkQuality)

// ReconnectEventHandler 接收重连流程事件
type ReconnectEventHandler func(name string, data map[string]string)

// ============================================================================
//                              组件接口
// ============================================================================

// ParseOutcome 日志行分类结果
type ParseOutcome int

const (
	// ParseNone 未命中任何模式
	ParseNone ParseOutcome = iota

	// ParseError 命中错误模式（已上报为错误信号）
	ParseError

	// ParseSuccess 命中成功标记（已记录为活动）
	ParseSuccess
)

// QualityObserver 网络质量观察者
//
// 从既有信号推断离散质量等级，不做任何主动探测。
type QualityObserver interface {
	// ReportError 上报一次错误信号并触发重新评估
	ReportError(kind ErrorKind)

	// ReportSuccess 记录一次成功活动（静默检测的输入）
	ReportSuccess()

	// ReportHandshake 记录握手耗时（仅用于诊断，不计入错误）
	ReportHandshake(d time.Duration)

	// ParseLogLine 对日志行做正则分类；未分类行被忽略
	ParseLogLine(line string) ParseOutcome

	// Quality 返回当前质量等级，超过 5s 未评估时惰性重评
	Quality() NetworkQuality

	// Subscribe 注册质量变更订阅者
	Subscribe(handler QualityHandler)

	// Reset 清空窗口与计数器，用于新会话
	Reset()
}

// ConnectivityMonitor 主动连通性监控器
type ConnectivityMonitor interface {
	// Start 以指定传输类型和会话号启动采样循环
	Start(transportType string, sessionID int64)

	// Stop 立即停止；返回后保证不再有事实进入通道
	Stop()

	// Facts 事实输出通道
	Facts() <-chan FactEnvelope

	// IsRunning 是否正在运行
	IsRunning() bool
}

// LogMonitor 被动日志监控器
type LogMonitor interface {
	// Start 以指定会话号启动日志消费循环
	Start(sessionID int64)

	// Stop 立即停止；返回后保证不再有事实进入通道
	Stop()

	// Pause 暂停告警；d > 0 时暂停指定时长，否则暂停直到 Resume
	Pause(d time.Duration)

	// Resume 立即恢复告警，并清除退避与防抖门
	Resume()

	// HasRecentFailure 最近 30s 内是否命中过失败关键字（原始命中时间，
	// 不受防抖影响）；是主动监控的佐证信号源
	HasRecentFailure() bool

	// Facts 事实输出通道
	Facts() <-chan FactEnvelope

	// IsRunning 是否正在运行
	IsRunning() bool
}

// ReconnectService 自动重连服务
type ReconnectService interface {
	// StartSession 记录新会话号，清除取消状态
	StartSession(sessionID int64)

	// Cancel 无条件设置取消；幂等；并发中的 HandleFailure
	// 在下一个检查点观察到取消后静默退出
	Cancel()

	// IsCancelled 当前会话是否已取消
	IsCancelled() bool

	// HandleFailure 把一次已确认的失败转化为一次可取消的、
	// 会话限定的恢复尝试；在调用方 goroutine 上同步执行
	HandleFailure(ctx context.Context, conn *ConnectionInfo, sessionID int64) bool
}

// MonitoringService 连接监控门面
//
// 唯一的监控启停决策点，也是所有对外事实的会话校验卡口。
type MonitoringService interface {
	// Start 为新连接启动所有监控；自动重连开关关闭时拒绝启动
	Start(sessionID int64, mode Mode, transportType string) bool

	// Stop 硬停止：先失效会话，再按序撤掉重连、主动、被动监控
	Stop()

	// HandleFailure 重连的唯一入口；未运行时为空操作
	HandleFailure(conn *ConnectionInfo)

	// IsRunning 监控是否正在运行
	IsRunning() bool

	// Enabled 自动重连开关是否打开
	Enabled() bool

	// SessionID 当前会话号（未运行时为 0）
	SessionID() int64

	// Validator 返回内部网络校验器（供连接前检查复用）
	Validator() NetworkValidator
}
