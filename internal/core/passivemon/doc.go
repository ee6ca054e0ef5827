// Package passivemon 提供基于日志的被动失败监控
//
// 逐行消费传输进程的日志：每一行都喂给质量观察者做正则分类；
// 命中失败关键字（小写子串，首个命中生效）时，经过防抖与按关键字
// 去重后发出 PassiveFailure 事实，并按指数退避自动暂停告警，
// 避免同一故障刷屏。
//
// 原始关键字命中时间独立于防抖记录，HasRecentFailure 以 30s 回看
// 窗口对外提供，是主动监控快速路径的佐证信号源。
package passivemon
