// Package config 提供 go-connmon 的聚合配置
//
// 所有阈值、窗口大小都收敛为不可变配置值，在构造时传入各组件，
// 不存在进程级可变全局状态。
//
// 配置约定：
//   - 每个组件一个 Config 结构，字段带默认值说明
//   - DefaultXxxConfig() 返回默认配置
//   - Validate() 就地修正越界值，永远返回 nil
package config

// Config go-connmon 聚合配置
type Config struct {
	// Quality 网络质量观察者配置
	Quality QualityConfig

	// Active 主动连通性监控配置
	Active ActiveConfig

	// Passive 被动日志监控配置
	Passive PassiveConfig

	// Reconnect 自动重连配置
	Reconnect ReconnectConfig

	// Netcheck 网络可达性校验配置
	Netcheck NetcheckConfig

	// Metrics 指标源配置
	Metrics MetricsConfig
}

// NewConfig 返回默认聚合配置
func NewConfig() *Config {
	return &Config{
		Quality:   DefaultQualityConfig(),
		Active:    DefaultActiveConfig(),
		Passive:   DefaultPassiveConfig(),
		Reconnect: DefaultReconnectConfig(),
		Netcheck:  DefaultNetcheckConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// Validate 校验并就地修正所有子配置
func (c *Config) Validate() error {
	c.Quality.Validate()
	c.Active.Validate()
	c.Passive.Validate()
	c.Reconnect.Validate()
	c.Netcheck.Validate()
	c.Metrics.Validate()
	return nil
}
