package monitoring

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/xenray/go-connmon/pkg/interfaces"
	"github.com/xenray/go-connmon/pkg/lib/log"
)

var logger = log.Logger("core/monitoring")

// sessionCounter 全局会话号计数器，只增不减，0 保留为「无会话」
var sessionCounter atomic.Int64

// NextSessionID 生成下一个会话号
func NextSessionID() int64 {
	return sessionCounter.Add(1)
}

// ============ 连接监控门面 ============

// Service 实现 interfaces.MonitoringService
type Service struct {
	settings  interfaces.SettingsProvider
	validator interfaces.NetworkValidator
	passive   interfaces.LogMonitor
	active    interfaces.ConnectivityMonitor
	reconnect interfaces.ReconnectService
	onFact    interfaces.FactHandler

	mu         sync.Mutex
	running    bool
	sessionID  int64
	recovering bool          // 当前是否有恢复流程在进行
	stopCh     chan struct{} // 停止分发协程
	wg         sync.WaitGroup
}

var _ interfaces.MonitoringService = (*Service)(nil)

// NewService 创建连接监控门面
//
// onFact 可为 nil，此时事实在校验后被丢弃（仅日志监控副作用保留）。
func NewService(
	settings interfaces.SettingsProvider,
	validator interfaces.NetworkValidator,
	passive interfaces.LogMonitor,
	active interfaces.ConnectivityMonitor,
	reconnect interfaces.ReconnectService,
	onFact interfaces.FactHandler,
) *Service {
	return &Service{
		settings:  settings,
		validator: validator,
		passive:   passive,
		active:    active,
		reconnect: reconnect,
		onFact:    onFact,
	}
}

// ============ 生命周期 ============

// Start 为新连接启动监控
//
// 自动重连开关关闭时拒绝启动并返回 false。主动监控只在
// 隧道模式下启动：代理模式缺少全局流量视角，采样无意义。
func (s *Service) Start(sessionID int64, mode interfaces.Mode, transportType string) bool {
	if !s.Enabled() {
		logger.Info("自动重连已关闭，监控不启动")
		return false
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		// 上一个会话还没撤干净，先硬停再重启
		s.Stop()
		s.mu.Lock()
	}
	s.running = true
	s.sessionID = sessionID
	s.recovering = false
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.reconnect.StartSession(sessionID)
	s.passive.Start(sessionID)

	s.wg.Add(1)
	go s.dispatch(s.passive.Facts(), stopCh)

	if mode == interfaces.ModeTunnel {
		s.active.Start(transportType, sessionID)
		s.wg.Add(1)
		go s.dispatch(s.active.Facts(), stopCh)
	}

	logger.Info("连接监控启动",
		"session", sessionID, "mode", mode, "transport", transportType)
	return true
}

// Stop 硬停止所有监控
//
// 先让会话失效（之后任何事实都过不了校验），再停分发协程，
// 最后按 重连 → 主动 → 被动 的顺序撤掉各组件。幂等。
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	session := s.sessionID
	s.running = false
	s.sessionID = 0
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	s.reconnect.Cancel()
	s.active.Stop()
	s.passive.Stop()

	logger.Info("连接监控停止", "session", session)
}

// ============ 事实分发 ============

// dispatch 消费单个事实通道直到停止
func (s *Service) dispatch(facts <-chan interfaces.FactEnvelope, stopCh <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stopCh:
			return
		case env := <-facts:
			s.deliver(env)
		}
	}
}

// deliver 对单个事实做会话校验并转发
func (s *Service) deliver(env interfaces.FactEnvelope) {
	s.mu.Lock()
	if !s.running || env.SessionID != s.sessionID {
		s.mu.Unlock()
		logger.Debug("丢弃陈旧事实", "fact", env.Fact, "session", env.SessionID)
		return
	}
	handler := s.onFact
	sessionID := s.sessionID
	s.mu.Unlock()

	logger.Debug("监控事实", "fact", env.Fact, "session", sessionID)
	if handler != nil {
		handler(env.Fact, sessionID)
	}
}

// ============ 失败处理 ============

// HandleFailure 对已确认的失败触发一次恢复流程
//
// 未运行时为空操作；已有恢复在进行时忽略新的触发。恢复在
// 独立协程中执行，期间被动监控暂停以免重连噪音自激。
func (s *Service) HandleFailure(conn *interfaces.ConnectionInfo) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		logger.Debug("监控未运行，忽略失败上报")
		return
	}
	if s.recovering {
		s.mu.Unlock()
		logger.Debug("恢复流程进行中，忽略重复触发")
		return
	}
	s.recovering = true
	sessionID := s.sessionID
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.recovering = false
			s.mu.Unlock()
		}()

		// 重连期间传输进程的断流日志不构成新失败
		s.passive.Pause(0)
		ok := s.reconnect.HandleFailure(context.Background(), conn, sessionID)

		s.mu.Lock()
		stillCurrent := s.running && s.sessionID == sessionID
		s.mu.Unlock()
		if stillCurrent {
			s.passive.Resume()
		}
		logger.Info("恢复流程结束", "session", sessionID, "recovered", ok)
	}()
}

// ============ 访问器 ============

// IsRunning 监控是否正在运行
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Enabled 自动重连开关是否打开
func (s *Service) Enabled() bool {
	if s.settings == nil {
		return true
	}
	return s.settings.AutoReconnectEnabled()
}

// SessionID 当前会话号
func (s *Service) SessionID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Validator 返回内部网络校验器
func (s *Service) Validator() interfaces.NetworkValidator {
	return s.validator
}
