// Package connmon 提供 VPN / 代理客户端的连接韧性子系统
//
// 子系统由两条互补的监测通路和一个会话限定的恢复服务组成：
//
//   - 被动通路：逐行消费传输进程日志，正则分类错误信号推断
//     网络质量等级，关键字命中产出失败事实
//   - 主动通路：周期采样传输进程的累计流量计数，停滞 + 错误
//     佐证共同确认连接丢失
//   - 恢复服务：把已确认的失败转化为单次、可取消的恢复尝试
//     （可达性检查 → 稳定等待 → 自愈复测 → 重连）
//
// 所有监控事实都带会话号，经门面校验后才到达外部回调，
// 跨会话的陈旧事实在卡口被丢弃。
//
// 基本用法：
//
//	m, err := connmon.New(
//	    connmon.WithLogFile("/var/log/xray/error.log"),
//	    connmon.WithReconnector(myReconnector),
//	    connmon.WithFactHandler(onFact),
//	)
//	if err != nil { ... }
//	if err := m.Start(ctx); err != nil { ... }
//	defer m.Close(ctx)
//
//	// 连接建立后
//	session := m.ConnectionEstablished(interfaces.ModeTunnel, "ws")
//	_ = session
//
//	// 连接断开时
//	m.ConnectionClosed()
package connmon
