package quality

import (
	"go.uber.org/fx"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("quality",
		fx.Provide(ProvideObserver),
	)
}

// observerParams 观察者依赖参数
type observerParams struct {
	fx.In

	Config *config.Config
	Clock  clock.Clock
}

// observerResult 观察者输出
type observerResult struct {
	fx.Out

	Observer  *Observer
	Interface interfaces.QualityObserver
}

// ProvideObserver 提供质量观察者
func ProvideObserver(params observerParams) observerResult {
	o := NewObserver(params.Config.Quality, params.Clock)
	return observerResult{Observer: o, Interface: o}
}
