// Package metrics 提供传输进程的指标源实现
//
// 四种指标源对应传输进程能给出的不同观测面：
//
//   - ClashAPIProvider       轮询 Clash API /connections（累计流量 + 存活）
//   - TrafficStreamProvider  订阅 /traffic WebSocket 流并本地累加
//   - DebugVarsProvider      轮询 Go expvar /debug/vars
//   - ProcessLivenessProvider 仅做 PID 存活检测的兜底实现
//
// 所有实现都满足同一契约：拉取失败返回错误（本轮采样跳过），
// 进程死亡返回 ProcessAlive=false 的正常快照。
package metrics
