package connmon

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/internal/core/activemon"
	"github.com/xenray/go-connmon/internal/core/metrics"
	"github.com/xenray/go-connmon/internal/core/monitoring"
	"github.com/xenray/go-connmon/internal/core/netcheck"
	"github.com/xenray/go-connmon/internal/core/passivemon"
	"github.com/xenray/go-connmon/internal/core/quality"
	"github.com/xenray/go-connmon/internal/core/reconnect"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// buildFxApp 构建 Fx 应用
//
// 组装顺序（按依赖）：
//  1. 配置与时钟注入
//  2. 信号层: Quality Observer → 指标源 → 日志源
//  3. 监测层: Passive Monitor → Active Monitor
//  4. 恢复层: Netcheck Validator → Reconnect Service
//  5. 门面: Monitoring Service
func buildFxApp(opts *options, m *Monitor) (*fx.App, error) {
	if err := opts.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if opts.reconnector == nil {
		return nil, ErrNoReconnector
	}
	if opts.logSource == nil && opts.logFile == "" {
		return nil, ErrNoLogSource
	}

	clk := opts.clock
	if clk == nil {
		clk = clock.New()
	}

	modules := []fx.Option{
		// 配置注入
		fx.Supply(opts.config),
		fx.Provide(func() clock.Clock { return clk }),

		// 必选协作者
		fx.Provide(func() interfaces.Reconnector { return opts.reconnector }),

		// 信号与监测层
		quality.Module(),
		passivemon.Module(),
		activemon.Module(),

		// 恢复层与门面
		netcheck.Module(),
		reconnect.Module(),
		monitoring.Module(),
	}

	// 日志源：自定义源优先，否则用轮询文件尾随
	if opts.logSource != nil {
		modules = append(modules, fx.Provide(func() interfaces.LogSource { return opts.logSource }))
	} else {
		modules = append(modules, fx.Provide(func(lc fx.Lifecycle) interfaces.LogSource {
			src := passivemon.NewFileLogSource(opts.logFile, opts.config.Passive.PollInterval)
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error { src.Start(); return nil },
				OnStop:  func(context.Context) error { src.Close(); return nil },
			})
			return src
		}))
	}

	// 指标源：自定义源优先，否则按配置选择
	if opts.provider != nil {
		modules = append(modules, fx.Provide(func() interfaces.MetricsProvider { return opts.provider }))
	} else {
		modules = append(modules, metrics.Module())
	}

	// 可选协作者（模块侧均标记 optional）
	if opts.settings != nil {
		modules = append(modules, fx.Provide(func() interfaces.SettingsProvider { return opts.settings }))
	}
	if opts.loader != nil {
		modules = append(modules, fx.Provide(func() interfaces.ConfigLoader { return opts.loader }))
	}
	if opts.tester != nil {
		modules = append(modules, fx.Provide(func() interfaces.ConnectTester { return opts.tester }))
	}
	if opts.prober != nil {
		modules = append(modules, fx.Provide(func() interfaces.Prober { return opts.prober }))
	}
	if opts.pidFunc != nil {
		modules = append(modules, fx.Provide(func() metrics.PIDFunc { return opts.pidFunc }))
	}

	// 回调
	if opts.onFact != nil {
		modules = append(modules, fx.Provide(func() interfaces.FactHandler { return opts.onFact }))
	}
	if opts.onReconnect != nil {
		modules = append(modules, fx.Provide(func() interfaces.ReconnectEventHandler { return opts.onReconnect }))
	}
	if opts.onQuality != nil {
		handler := opts.onQuality
		modules = append(modules, fx.Invoke(func(o interfaces.QualityObserver) {
			o.Subscribe(handler)
		}))
	}

	// 用户扩展
	if len(opts.userFxOptions) > 0 {
		modules = append(modules, opts.userFxOptions...)
	}

	// 组件注入
	modules = append(modules, fx.Invoke(injectComponents(m)))

	// 禁用 Fx 自身的日志输出
	modules = append(modules,
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...), nil
}

// componentParams Monitor 组件注入参数
type componentParams struct {
	fx.In

	Monitoring interfaces.MonitoringService
	Observer   interfaces.QualityObserver
	Passive    interfaces.LogMonitor
	Reconnect  interfaces.ReconnectService
	Validator  interfaces.NetworkValidator
}

// injectComponents 创建 Monitor 组件注入函数
func injectComponents(m *Monitor) interface{} {
	return func(params componentParams) {
		m.monitoring = params.Monitoring
		m.observer = params.Observer
		m.passive = params.Passive
		m.reconnect = params.Reconnect
		m.validator = params.Validator
	}
}
