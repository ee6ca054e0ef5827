// Package interfaces 定义 go-connmon 的共享类型与接口
//
// 所有跨包共享的数据类型（质量等级、错误信号、监控事实、指标快照）
// 和外部协作者接口（指标源、日志源、网络校验器、重连操作）集中在此，
// 内部实现包只依赖本包，不互相依赖。
//
// 设计约定：
//   - 接口由消费方定义，实现方通过 var _ interfaces.X = (*Y)(nil) 断言
//   - MonitorFact 本身不携带会话身份，有效性由持有方的当前会话决定
//   - FactEnvelope 仅是通道传输载体，信封上的会话号用于陈旧性判定
package interfaces
