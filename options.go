package connmon

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/internal/core/metrics"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 聚合配置
	config *config.Config

	// 日志源（二选一：文件路径或自定义源）
	logFile   string
	logSource interfaces.LogSource

	// 外部协作者
	reconnector interfaces.Reconnector
	settings    interfaces.SettingsProvider
	loader      interfaces.ConfigLoader
	tester      interfaces.ConnectTester
	prober      interfaces.Prober
	provider    interfaces.MetricsProvider
	pidFunc     metrics.PIDFunc

	// 回调
	onFact      interfaces.FactHandler
	onQuality   interfaces.QualityHandler
	onReconnect interfaces.ReconnectEventHandler

	// 时钟（测试注入）
	clock clock.Clock

	// 用户自定义 Fx 选项
	userFxOptions []fx.Option
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{
		config: config.NewConfig(),
	}
}

// WithConfig 整体替换聚合配置
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg != nil {
			o.config = cfg
		}
		return nil
	}
}

// WithLogFile 以滚动日志文件作为被动监控的日志源
func WithLogFile(path string) Option {
	return func(o *options) error {
		o.logFile = path
		return nil
	}
}

// WithLogSource 使用自定义日志源
//
// 与 WithLogFile 同时设置时以本选项为准。
func WithLogSource(source interfaces.LogSource) Option {
	return func(o *options) error {
		o.logSource = source
		return nil
	}
}

// WithReconnector 设置重连操作的执行者（必需）
func WithReconnector(r interfaces.Reconnector) Option {
	return func(o *options) error {
		o.reconnector = r
		return nil
	}
}

// WithSettings 设置自动重连开关的提供者
//
// 不设置时开关视为常开。
func WithSettings(s interfaces.SettingsProvider) Option {
	return func(o *options) error {
		o.settings = s
		return nil
	}
}

// WithConnectTester 设置自愈复测所需的配置加载器与连接测试器
//
// 不设置时恢复流程跳过自愈复测，直接进入重连。
func WithConnectTester(loader interfaces.ConfigLoader, tester interfaces.ConnectTester) Option {
	return func(o *options) error {
		o.loader = loader
		o.tester = tester
		return nil
	}
}

// WithProber 设置主动监控的失败保障探测器
func WithProber(p interfaces.Prober) Option {
	return func(o *options) error {
		o.prober = p
		return nil
	}
}

// WithMetricsProvider 使用自定义指标源
//
// 设置后忽略配置中的指标源类型。
func WithMetricsProvider(p interfaces.MetricsProvider) Option {
	return func(o *options) error {
		o.provider = p
		return nil
	}
}

// WithPIDFunc 设置进程存活指标源所需的 PID 查询函数
func WithPIDFunc(f metrics.PIDFunc) Option {
	return func(o *options) error {
		o.pidFunc = f
		return nil
	}
}

// WithFactHandler 设置监控事实回调
func WithFactHandler(h interfaces.FactHandler) Option {
	return func(o *options) error {
		o.onFact = h
		return nil
	}
}

// WithQualityHandler 设置质量等级变更回调
func WithQualityHandler(h interfaces.QualityHandler) Option {
	return func(o *options) error {
		o.onQuality = h
		return nil
	}
}

// WithReconnectEventHandler 设置重连流程事件回调
func WithReconnectEventHandler(h interfaces.ReconnectEventHandler) Option {
	return func(o *options) error {
		o.onReconnect = h
		return nil
	}
}

// WithClock 注入时钟，仅测试使用
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithFxOptions 追加用户自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
