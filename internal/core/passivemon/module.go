package passivemon

import (
	"go.uber.org/fx"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("passivemon",
		fx.Provide(ProvideMonitor),
	)
}

// monitorParams 监控器依赖参数
type monitorParams struct {
	fx.In

	Config   *config.Config
	Clock    clock.Clock
	Source   interfaces.LogSource
	Observer interfaces.QualityObserver `optional:"true"`
}

// ProvideMonitor 提供被动日志监控器
func ProvideMonitor(params monitorParams) interfaces.LogMonitor {
	return NewMonitor(params.Config.Passive, params.Clock, params.Source, params.Observer)
}
