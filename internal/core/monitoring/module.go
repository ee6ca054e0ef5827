package monitoring

import (
	"go.uber.org/fx"

	"github.com/xenray/go-connmon/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("monitoring",
		fx.Provide(ProvideService),
	)
}

// serviceParams 门面依赖参数
type serviceParams struct {
	fx.In

	Settings  interfaces.SettingsProvider `optional:"true"`
	Validator interfaces.NetworkValidator
	Passive   interfaces.LogMonitor
	Active    interfaces.ConnectivityMonitor
	Reconnect interfaces.ReconnectService
	OnFact    interfaces.FactHandler `optional:"true"`
}

// ProvideService 提供连接监控门面
func ProvideService(params serviceParams) interfaces.MonitoringService {
	return NewService(
		params.Settings,
		params.Validator,
		params.Passive,
		params.Active,
		params.Reconnect,
		params.OnFact,
	)
}
