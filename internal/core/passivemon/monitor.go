package passivemon

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
	"github.com/xenray/go-connmon/pkg/lib/log"
)

var logger = log.Logger("core/passivemon")

// ============================================================================
//                              Monitor
// ============================================================================

// Monitor 被动日志监控器
type Monitor struct {
	mu sync.Mutex

	cfg   config.PassiveConfig
	clock clock.Clock

	// 依赖
	source   interfaces.LogSource
	observer interfaces.QualityObserver // 可为 nil

	// 会话状态
	running   bool
	sessionID int64

	// 告警门控
	paused              bool
	pausedUntil         time.Time
	lastAlert           time.Time
	lastMatch           time.Time // 原始命中时间，独立于防抖
	consecutiveFailures int

	// 按关键字去重（TTL = 防抖间隔）
	dedup *expirable.LRU[string, time.Time]

	// 事实通道
	facts chan interfaces.FactEnvelope

	// 消费循环
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// 确保实现接口
var _ interfaces.LogMonitor = (*Monitor)(nil)

// NewMonitor 创建被动日志监控器
//
// observer 可为 nil（仅关键字告警，不做质量分类）。
func NewMonitor(cfg config.PassiveConfig, clk clock.Clock, source interfaces.LogSource, observer interfaces.QualityObserver) *Monitor {
	cfg.Validate()
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		cfg:      cfg,
		clock:    clk,
		source:   source,
		observer: observer,
		dedup:    expirable.NewLRU[string, time.Time](cfg.DedupCacheSize, nil, cfg.Debounce),
		facts:    make(chan interfaces.FactEnvelope, cfg.FactBuffer),
	}
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 以指定会话号启动日志消费循环；已在运行时为空操作
func (m *Monitor) Start(sessionID int64) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	m.running = true
	m.sessionID = sessionID
	m.paused = false
	m.pausedUntil = time.Time{}
	m.lastAlert = time.Time{}
	m.lastMatch = time.Time{}
	m.consecutiveFailures = 0
	m.dedup.Purge()

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.wg.Add(1)
	go m.consumeLoop(m.ctx)
	m.mu.Unlock()

	logger.Info("被动监控已启动", "session", sessionID)
}

// Stop 立即停止监控
//
// 持锁翻转运行标志并清零会话号后取消循环上下文；
// 返回后保证不再有事实进入通道。幂等。
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.sessionID = 0
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	logger.Info("被动监控已停止")
}

// IsRunning 是否正在运行
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Facts 事实输出通道
func (m *Monitor) Facts() <-chan interfaces.FactEnvelope {
	return m.facts
}

// ============================================================================
//                              暂停与恢复
// ============================================================================

// Pause 暂停告警
//
// d > 0 时暂停指定时长；否则暂停直到 Resume。
func (m *Monitor) Pause(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d > 0 {
		m.pausedUntil = m.clock.Now().Add(d)
		logger.Debug("告警暂停", "duration", d)
	} else {
		m.paused = true
		logger.Debug("告警无限期暂停")
	}
}

// Resume 立即恢复告警，清除退避与防抖门
func (m *Monitor) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = false
	m.pausedUntil = time.Time{}
	m.lastAlert = time.Time{}
	m.dedup.Purge()
	logger.Debug("告警已恢复")
}

// HasRecentFailure 回看窗口内是否命中过失败关键字
//
// 使用原始命中时间，不受防抖与暂停影响。
func (m *Monitor) HasRecentFailure() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.lastMatch.IsZero() && m.clock.Since(m.lastMatch) <= m.cfg.RecentFailureWindow
}

// ============================================================================
//                              消费循环
// ============================================================================

// consumeLoop 日志行消费循环
func (m *Monitor) consumeLoop(ctx context.Context) {
	defer m.wg.Done()

	lines := m.source.Lines()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				logger.Warn("日志源已关闭", "error", m.source.Err())
				return
			}
			m.processLine(line)
		}
	}
}

// processLine 处理单行日志
func (m *Monitor) processLine(line string) {
	// 每一行都喂给质量观察者做分类，与关键字告警互不影响
	if m.observer != nil {
		m.observer.ParseLogLine(line)
	}

	lower := strings.ToLower(line)
	for _, keyword := range m.cfg.Keywords {
		if strings.Contains(lower, keyword) {
			m.handleMatch(keyword, line)
			break
		}
	}
}

// handleMatch 处理一次关键字命中
func (m *Monitor) handleMatch(keyword, line string) {
	m.mu.Lock()
	now := m.clock.Now()

	// 原始命中时间先记录，供 HasRecentFailure 佐证
	m.lastMatch = now

	if !m.running {
		m.mu.Unlock()
		return
	}

	// 暂停门
	if m.paused || (!m.pausedUntil.IsZero() && now.Before(m.pausedUntil)) {
		m.mu.Unlock()
		return
	}
	m.pausedUntil = time.Time{}

	// 全局防抖门
	if !m.lastAlert.IsZero() && now.Sub(m.lastAlert) < m.cfg.Debounce {
		m.mu.Unlock()
		return
	}

	// 按关键字去重门
	if _, seen := m.dedup.Get(keyword); seen {
		m.mu.Unlock()
		return
	}
	m.dedup.Add(keyword, now)

	m.lastAlert = now
	m.consecutiveFailures++

	// 指数退避：5s × 2^(n-1)，上限 5m
	backoff := m.backoff(m.consecutiveFailures)
	m.pausedUntil = now.Add(backoff)

	m.emitLocked()
	attempt := m.consecutiveFailures
	m.mu.Unlock()

	logger.Warn("检测到连接失败",
		"keyword", keyword,
		"line", log.TruncateLine(strings.TrimSpace(line), 160),
		"attempt", attempt,
		"backoff", backoff)
}

// backoff 计算第 n 次告警后的退避时长
func (m *Monitor) backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	shift := n - 1
	if shift > 10 {
		shift = 10 // 再移就溢出了，反正早已超过上限
	}
	d := m.cfg.BaseCooldown << shift
	if d > m.cfg.MaxCooldown {
		d = m.cfg.MaxCooldown
	}
	return d
}

// emitLocked 发出 PassiveFailure 事实（须持锁调用）
func (m *Monitor) emitLocked() {
	if !m.running || m.sessionID == 0 {
		logger.Debug("事实被抑制（已停止）")
		return
	}

	env := interfaces.FactEnvelope{
		Fact:      interfaces.FactPassiveFailure,
		SessionID: m.sessionID,
		Timestamp: m.clock.Now(),
	}

	select {
	case m.facts <- env:
	default:
		logger.Warn("事实通道已满，宽限重试")
		timer := m.clock.Timer(m.cfg.SendGrace)
		select {
		case m.facts <- env:
			timer.Stop()
		case <-timer.C:
			logger.Error("消费者无响应，丢弃事实")
		}
	}
}
