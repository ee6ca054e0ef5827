package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// PIDFunc 返回传输进程 PID，无进程时返回 0
//
// 仅 MetricsProcessLiveness 指标源需要。
type PIDFunc func() int

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideProvider),
	)
}

// providerParams 指标源依赖参数
type providerParams struct {
	fx.In

	Config    *config.Config
	Clock     clock.Clock
	Lifecycle fx.Lifecycle
	PIDFunc   PIDFunc `optional:"true"`
}

// ProvideProvider 按配置选择指标源实现
func ProvideProvider(params providerParams) interfaces.MetricsProvider {
	cfg := params.Config.Metrics
	switch cfg.Provider {
	case config.MetricsTrafficStream:
		p := NewTrafficStreamProvider(cfg, params.Clock)
		params.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error { p.Start(); return nil },
			OnStop:  func(context.Context) error { p.Stop(); return nil },
		})
		return p
	case config.MetricsDebugVars:
		return NewDebugVarsProvider(cfg, params.Clock)
	case config.MetricsProcessLiveness:
		pidFunc := params.PIDFunc
		if pidFunc == nil {
			pidFunc = func() int { return 0 }
		}
		return NewProcessLivenessProvider(pidFunc, params.Clock)
	default:
		return NewClashAPIProvider(cfg, params.Clock)
	}
}
