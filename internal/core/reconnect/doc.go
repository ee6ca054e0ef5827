// Package reconnect 提供会话限定的自动重连服务
//
// 把一次已确认的失败转化为单次、可取消的恢复尝试：
//
//	校验会话 → 检查物理网络 → 稳定等待（可打断） → 自愈复测 → 重连
//
// 会话限定设计：
//   - 每个连接持有唯一递增的会话号，所有操作在六个检查点上
//     与当前会话比对，任何不匹配或取消都立即静默退出
//   - 断开是终态：Cancel() 后不可能再有事件发出
//   - 成功的重连会开启新会话并自行发出成功事件，本服务从不发
//     "reconnected"——用陈旧会话号发出只会被丢弃，所以干脆不发
package reconnect
