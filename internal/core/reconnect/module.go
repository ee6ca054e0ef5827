package reconnect

import (
	"go.uber.org/fx"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("reconnect",
		fx.Provide(ProvideService),
	)
}

// serviceParams 重连服务依赖参数
type serviceParams struct {
	fx.In

	Config      *config.Config
	Clock       clock.Clock
	Validator   interfaces.NetworkValidator
	Loader      interfaces.ConfigLoader           `optional:"true"`
	Tester      interfaces.ConnectTester          `optional:"true"`
	Reconnector interfaces.Reconnector
	Emit        interfaces.ReconnectEventHandler `optional:"true"`
}

// ProvideService 提供自动重连服务
func ProvideService(params serviceParams) interfaces.ReconnectService {
	return NewService(
		params.Config.Reconnect,
		params.Clock,
		params.Validator,
		params.Loader,
		params.Tester,
		params.Reconnector,
		params.Emit,
	)
}
