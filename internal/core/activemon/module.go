package activemon

import (
	"go.uber.org/fx"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("activemon",
		fx.Provide(ProvideMonitor),
	)
}

// monitorParams 监控器依赖参数
type monitorParams struct {
	fx.In

	Config     *config.Config
	Clock      clock.Clock
	Provider   interfaces.MetricsProvider
	Prober     interfaces.Prober   `optional:"true"`
	LogMonitor interfaces.LogMonitor `optional:"true"` // 错误佐证来源
}

// ProvideMonitor 提供主动连通性监控器
func ProvideMonitor(params monitorParams) interfaces.ConnectivityMonitor {
	var corroborate func() bool
	if params.LogMonitor != nil {
		corroborate = params.LogMonitor.HasRecentFailure
	}
	return NewMonitor(params.Config.Active, params.Clock, params.Provider, params.Prober, corroborate)
}
