// Package monitoring 提供连接监控门面
//
// 门面是监控子系统唯一的启停决策点：被动日志监控、主动连通性
// 监控与自动重连服务都由它按连接生命周期编排。所有监控事实在
// 送达外部回调前都要经过门面的会话校验卡口，跨会话的陈旧事实
// 在这里被丢弃。
//
// 启停语义：
//   - Start 受自动重连开关门控，关闭时整个子系统保持沉默
//   - 被动监控总是启动；主动监控仅在隧道模式下启动
//   - Stop 是硬停止：先让会话失效，再按 重连 → 主动 → 被动
//     的顺序撤掉各组件
package monitoring
