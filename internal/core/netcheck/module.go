package netcheck

import (
	"go.uber.org/fx"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("netcheck",
		fx.Provide(ProvideValidator),
	)
}

// ProvideValidator 提供网络可达性校验器
func ProvideValidator(cfg *config.Config) interfaces.NetworkValidator {
	return NewValidator(cfg.Netcheck)
}
