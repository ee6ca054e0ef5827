package connmon

import (
	"context"
	"sync"

	"go.uber.org/fx"

	"github.com/xenray/go-connmon/internal/core/monitoring"
	"github.com/xenray/go-connmon/pkg/interfaces"
	"github.com/xenray/go-connmon/pkg/lib/log"
)

// Version 当前版本
const Version = "v0.1.0"

var logger = log.Logger("connmon")

// ============================================================================
//                              Monitor
// ============================================================================

// Monitor 连接韧性监控器
//
// 对外的唯一入口：内部组件由 Fx 组装，生命周期跟随
// Start / Close，连接会话跟随 ConnectionEstablished /
// ConnectionClosed。
type Monitor struct {
	app *fx.App

	// Fx 注入的组件
	monitoring interfaces.MonitoringService
	observer   interfaces.QualityObserver
	passive    interfaces.LogMonitor
	reconnect  interfaces.ReconnectService
	validator  interfaces.NetworkValidator

	mu      sync.Mutex
	started bool
	closed  bool
}

// New 创建监控器
//
// 必须至少提供日志源（WithLogFile / WithLogSource）和重连
// 操作（WithReconnector）。
func New(opts ...Option) (*Monitor, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	m := &Monitor{}
	app, err := buildFxApp(o, m)
	if err != nil {
		return nil, err
	}
	m.app = app
	return m, nil
}

// ============ 生命周期 ============

// Start 启动监控器的后台组件
//
// 只启动常驻基础设施（日志源、流式指标源等），监控本身
// 要等 ConnectionEstablished 才开始。
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.started {
		return ErrAlreadyStarted
	}
	if err := m.app.Start(ctx); err != nil {
		return err
	}
	m.started = true
	logger.Info("监控器已启动", "version", Version)
	return nil
}

// Close 停止所有监控并关闭后台组件
func (m *Monitor) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if !m.started {
		return nil
	}
	m.monitoring.Stop()
	return m.app.Stop(ctx)
}

// ============ 连接会话 ============

// ConnectionEstablished 通知一条新连接已建立
//
// 分配新会话号并启动监控，返回会话号；监控被开关拒绝时
// 返回 0。质量观察者随新会话清零。
func (m *Monitor) ConnectionEstablished(mode interfaces.Mode, transportType string) int64 {
	m.mu.Lock()
	if !m.started || m.closed {
		m.mu.Unlock()
		return 0
	}
	m.mu.Unlock()

	sessionID := monitoring.NextSessionID()
	m.observer.Reset()
	if !m.monitoring.Start(sessionID, mode, transportType) {
		return 0
	}
	return sessionID
}

// ConnectionClosed 通知连接已断开，硬停止所有监控
func (m *Monitor) ConnectionClosed() {
	m.monitoring.Stop()
}

// ReportFailure 上报一次已确认的连接失败，触发恢复流程
func (m *Monitor) ReportFailure(conn *interfaces.ConnectionInfo) {
	m.monitoring.HandleFailure(conn)
}

// ============ 访问器 ============

// Quality 当前网络质量等级
func (m *Monitor) Quality() interfaces.NetworkQuality {
	return m.observer.Quality()
}

// Observer 网络质量观察者
func (m *Monitor) Observer() interfaces.QualityObserver {
	return m.observer
}

// Monitoring 连接监控门面
func (m *Monitor) Monitoring() interfaces.MonitoringService {
	return m.monitoring
}

// Validator 网络可达性校验器，供连接前检查复用
func (m *Monitor) Validator() interfaces.NetworkValidator {
	return m.validator
}

// IsRunning 监控是否正在运行
func (m *Monitor) IsRunning() bool {
	return m.monitoring.IsRunning()
}
