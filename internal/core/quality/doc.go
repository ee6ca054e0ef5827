// Package quality 提供被动式网络质量推断
//
// 观察者只消费既有信号（日志分类、握手耗时、错误上报），不产生任何
// 新的网络流量。质量等级是一个带滞回稳定的离散标尺：
//
//	Critical < Unstable < Degraded < Stable < Excellent
//
// 评估流水线（每个新信号触发一次，读取时超过 5s 惰性补评）：
//
//	1. 淘汰滑动窗口外的事件；窗口大小按错误率自适应
//	2. 统计窗口内中等及以上错误、重连、崩溃（滚动计数，无 O(N) 重扫）
//	3. 检查旁路：快速通道（3s 内 ≥10 个高置信错误）与静默检测
//	4. 无旁路时按阈值推出基线等级
//	5. 应用稳定性约束：Critical 冷却、恢复步长上限、Excellent 持续稳定门槛
//	6. 应用滞回：降级需 5 次连续确认，恢复需 3 次，异向评估双双清零
//	7. 真正发生迁移时同步通知订阅者；订阅者 panic 被捕获且不中断流水线
package quality
