// Package activemon 提供基于流量指标的主动连通性监控
//
// 每 3s 采样一次传输进程的字节计数器，对比相邻快照的增量判定
// 流量是否停滞。核心认知：小增量只是 TCP 重试噪声，不是真实流量。
//
// 混合升级策略：
//   - 快速路径：连续 2 次停滞 + 外部错误佐证 → 判定丢失
//   - 软警告：连续 4 次停滞时先做一次隧道探测，区分「空闲」与「降级」
//   - 兜底路径：连续 8 次停滞且最终探测仍失败 → 无需佐证直接判定丢失
//
// 慢握手传输（xhttp 等）启动后进入预热期，在观察到一次 ≥1000B 的
// 增量（握手完成）之前抑制停滞检测。
package activemon
