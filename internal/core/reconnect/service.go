package reconnect

import (
	"context"
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
	"github.com/xenray/go-connmon/pkg/lib/log"
)

var logger = log.Logger("core/reconnect")

// ============ 自动重连服务 ============

// Service 实现 interfaces.ReconnectService
//
// 单实例贯穿所有会话：StartSession 换代，Cancel 终止当前代。
// HandleFailure 是同步方法，由监控外观在独立协程中调用。
type Service struct {
	cfg   config.ReconnectConfig
	clock clock.Clock

	validator   interfaces.NetworkValidator
	loader      interfaces.ConfigLoader
	tester      interfaces.ConnectTester
	reconnector interfaces.Reconnector
	emit        interfaces.ReconnectEventHandler

	mu        sync.Mutex
	sessionID int64
	cancelled bool
	cancelCh  chan struct{} // 取消时关闭，用于打断稳定等待
}

var _ interfaces.ReconnectService = (*Service)(nil)

// NewService 创建自动重连服务
//
// loader 与 tester 可为 nil，此时跳过自愈复测直接进入重连。
// emit 可为 nil，此时事件被静默丢弃。
func NewService(
	cfg config.ReconnectConfig,
	clk clock.Clock,
	validator interfaces.NetworkValidator,
	loader interfaces.ConfigLoader,
	tester interfaces.ConnectTester,
	reconnector interfaces.Reconnector,
	emit interfaces.ReconnectEventHandler,
) *Service {
	cfg.Validate()
	return &Service{
		cfg:         cfg,
		clock:       clk,
		validator:   validator,
		loader:      loader,
		tester:      tester,
		reconnector: reconnector,
		emit:        emit,
		cancelCh:    make(chan struct{}),
	}
}

// ============ 会话生命周期 ============

// StartSession 开启新会话并重置取消标记
func (s *Service) StartSession(sessionID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.cancelled = false
	s.cancelCh = make(chan struct{})
	logger.Debug("重连会话开启", "session", sessionID)
}

// Cancel 取消当前会话，幂等
//
// 取消后本会话内任何进行中的 HandleFailure 都会在下一个
// 检查点静默退出，等待中的稳定计时立即被打断。
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.cancelled = true
	close(s.cancelCh)
	logger.Debug("重连会话取消", "session", s.sessionID)
}

// IsCancelled 报告当前会话是否已取消
func (s *Service) IsCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// checkpoint 校验会话仍然有效
//
// 失败不是错误：换代或取消后的静默退出是正常路径。
func (s *Service) checkpoint(sessionID int64, stage string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.sessionID != sessionID {
		logger.Debug("会话检查点失效，放弃恢复",
			"stage", stage, "session", sessionID, "current", s.sessionID)
		return false
	}
	return true
}

// ============ 恢复流程 ============

// HandleFailure 对一次已确认的失败执行单次恢复尝试
//
// 返回 true 表示隧道已恢复（自愈复测通过或重连成功），
// false 表示恢复失败或会话中途失效。同一时刻最多一次调用
// 由上游外观保证，本方法不做并发排队。
func (s *Service) HandleFailure(ctx context.Context, conn *interfaces.ConnectionInfo, sessionID int64) bool {
	if !s.checkpoint(sessionID, "start") {
		return false
	}
	attemptID := uuid.NewString()
	logger.Info("开始处理连接失败", "session", sessionID, "attempt", attemptID)

	if !s.emitSafe(sessionID, attemptID, interfaces.EventFailureDetected, nil) {
		return false
	}

	// 物理网络都不通时重连毫无意义，直接报失败等待网络恢复
	if !s.checkpoint(sessionID, "internet_check") {
		return false
	}
	if !s.validator.CheckInternetConnection(ctx) {
		logger.Warn("物理网络不可达，放弃重连", "attempt", attemptID)
		s.emitSafe(sessionID, attemptID, interfaces.EventReconnectFailed,
			map[string]string{"reason": interfaces.ReasonNoInternet})
		return false
	}

	// 稳定等待：瞬时抖动常在数秒内自愈，等一拍再决定。
	// 等待期间 Cancel 或 ctx 取消都会立即打断。
	s.mu.Lock()
	cancelCh := s.cancelCh
	s.mu.Unlock()
	timer := s.clock.Timer(s.cfg.StabilizationBuffer)
	defer timer.Stop()
	select {
	case <-cancelCh:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	if !s.checkpoint(sessionID, "post_stabilization") {
		return false
	}

	// 自愈复测：稳定期后配置仍可连通则视为已恢复，免去重连。
	// 托管连接没有本地配置可测，直接走重连。
	if s.canRetest(conn) {
		if !s.checkpoint(sessionID, "recovery_check") {
			return false
		}
		if s.retestConnection(ctx, conn.ConfigPath, attemptID) {
			logger.Info("连接已自愈，跳过重连", "attempt", attemptID)
			return true
		}
	}

	return s.attemptReconnect(ctx, conn, sessionID, attemptID)
}

func (s *Service) canRetest(conn *interfaces.ConnectionInfo) bool {
	return s.loader != nil && s.tester != nil &&
		conn != nil && conn.ConfigPath != "" && !conn.Adopted
}

// retestConnection 重新加载并测试当前配置
func (s *Service) retestConnection(ctx context.Context, configPath, attemptID string) bool {
	lctx, lcancel := context.WithTimeout(ctx, s.cfg.LoadTimeout)
	defer lcancel()
	cfgData, err := s.loader.Load(lctx, configPath)
	if err != nil {
		logger.Warn("配置加载失败，无法复测", "attempt", attemptID, "err", err)
		return false
	}

	tctx, tcancel := context.WithTimeout(ctx, s.cfg.TestTimeout)
	defer tcancel()
	res := s.tester.Test(tctx, cfgData)
	if !res.Success {
		logger.Debug("复测未通过", "attempt", attemptID, "err", res.Detail)
		return false
	}
	logger.Debug("复测通过", "attempt", attemptID, "latency", res.Latency)
	return true
}

// attemptReconnect 执行实际的重连调用
func (s *Service) attemptReconnect(ctx context.Context, conn *interfaces.ConnectionInfo, sessionID int64, attemptID string) bool {
	if !s.checkpoint(sessionID, "pre_reconnect") {
		return false
	}

	if conn == nil {
		s.emitSafe(sessionID, attemptID, interfaces.EventReconnectFailed,
			map[string]string{"reason": interfaces.ReasonNoConnection})
		return false
	}
	if conn.ConfigPath == "" || conn.Mode == "" || conn.Adopted {
		logger.Warn("连接信息不完整，无法重连",
			"attempt", attemptID, "mode", conn.Mode, "adopted", conn.Adopted)
		s.emitSafe(sessionID, attemptID, interfaces.EventReconnectFailed,
			map[string]string{"reason": interfaces.ReasonInvalidConnection})
		return false
	}

	if !s.emitSafe(sessionID, attemptID, interfaces.EventReconnecting, nil) {
		return false
	}

	if !s.checkpoint(sessionID, "connect_call") {
		return false
	}
	cctx, ccancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer ccancel()
	ok := s.reconnector.Reconnect(cctx, conn.ConfigPath, conn.Mode)

	if !s.checkpoint(sessionID, "post_connect") {
		return false
	}
	if !ok {
		logger.Warn("重连失败", "attempt", attemptID)
		s.emitSafe(sessionID, attemptID, interfaces.EventReconnectFailed,
			map[string]string{"reason": interfaces.ReasonConnectFailed})
		return false
	}

	// 重连成功会以新会话号自行宣告，这里不发成功事件：
	// 用旧会话号发出的事件注定被外观丢弃
	logger.Info("重连成功", "attempt", attemptID)
	return true
}

// ============ 事件发送 ============

// emitSafe 在会话仍有效的前提下发送事件
//
// 返回 false 表示会话已失效，调用方应立即放弃后续步骤。
// 回调 panic 被吸收，不影响恢复流程本身。
func (s *Service) emitSafe(sessionID int64, attemptID, event string, data map[string]string) bool {
	s.mu.Lock()
	if s.cancelled || s.sessionID != sessionID {
		s.mu.Unlock()
		logger.Debug("会话已失效，丢弃事件", "event", event, "session", sessionID)
		return false
	}
	emit := s.emit
	s.mu.Unlock()

	if emit == nil {
		return true
	}
	payload := map[string]string{
		"attempt": attemptID,
		"session": strconv.FormatInt(sessionID, 10),
	}
	for k, v := range data {
		payload[k] = v
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("事件回调 panic", "event", event, "panic", r)
			}
		}()
		emit(event, payload)
	}()
	return true
}
