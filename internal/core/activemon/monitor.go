package activemon

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
	"github.com/xenray/go-connmon/pkg/lib/log"
)

var logger = log.Logger("core/activemon")

// ============================================================================
//                              Monitor
// ============================================================================

// Monitor 主动连通性监控器
//
// 状态机：NotRunning → Running{Warmup?, StallCount(n), Lost} → NotRunning。
// 事实在持锁复查 (running, sessionID) 之后才进入通道，
// 保证 Stop() 返回后不再有事实发出。
type Monitor struct {
	mu sync.Mutex

	cfg   config.ActiveConfig
	clock clock.Clock

	// 依赖
	provider    interfaces.MetricsProvider
	prober      interfaces.Prober
	corroborate func() bool // 外部错误佐证（被动监控的近期命中）

	// 会话状态
	running   bool
	sessionID int64

	// 停滞状态机
	lastSnapshot   *interfaces.MetricsSnapshot
	stallSamples   int
	connected      bool
	warningEmitted bool
	needsWarmup    bool
	handshakeDone  bool
	probeOK        bool // 最近一次探测结果，仅在单轮采样内使用

	// 事实通道
	facts chan interfaces.FactEnvelope

	// 采样循环
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// 确保实现接口
var _ interfaces.ConnectivityMonitor = (*Monitor)(nil)

// NewMonitor 创建主动连通性监控器
//
// corroborate 为外部提供的错误佐证检查（可为 nil，快速路径即不可用）。
func NewMonitor(cfg config.ActiveConfig, clk clock.Clock, provider interfaces.MetricsProvider, prober interfaces.Prober, corroborate func() bool) *Monitor {
	cfg.Validate()
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		cfg:         cfg,
		clock:       clk,
		provider:    provider,
		prober:      prober,
		corroborate: corroborate,
		connected:   true,
		facts:       make(chan interfaces.FactEnvelope, cfg.FactBuffer),
	}
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 以指定传输类型和会话号启动采样循环
//
// 重置所有计数器与上一快照；慢握手传输进入预热期。
// 已在运行时为空操作。
func (m *Monitor) Start(transportType string, sessionID int64) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	// 等待上一轮（已取消的）循环退出后再复用
	m.wg.Wait()

	m.mu.Lock()
	m.running = true
	m.sessionID = sessionID
	m.stallSamples = 0
	m.connected = true
	m.warningEmitted = false
	m.lastSnapshot = nil

	m.needsWarmup = false
	for _, t := range m.cfg.SlowHandshakeTransports {
		if t == transportType {
			m.needsWarmup = true
			break
		}
	}
	m.handshakeDone = !m.needsWarmup

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.wg.Add(1)
	go m.sampleLoop(m.ctx)
	m.mu.Unlock()

	logger.Info("主动监控已启动",
		"session", sessionID,
		"threshold_bytes", m.cfg.MinTrafficBytes,
		"fast_samples", m.cfg.RequiredSamples,
		"failsafe_samples", m.cfg.MaxStallSamples,
		"warmup", m.needsWarmup,
		"transport", transportType)
}

// Stop 立即停止监控
//
// 持锁翻转运行标志并清零会话号，随后取消循环上下文。
// 不等待在途采样结束——采样会在下一个检查点观察到新状态并自行作废。
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
	logger.Info("主动监控已停止")
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
//                              采样循环
// ============================================================================

// sampleLoop 固定间隔采样循环
func (m *Monitor) sampleLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := m.clock.Ticker(m.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check 执行一次连通性检查
func (m *Monitor) check(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	snapshot, err := m.provider.FetchSnapshot(fctx)
	cancel()

	if err != nil || snapshot == nil {
		// 采样失败只是缺了一拍，不是状态变更
		logger.Warn("快照拉取失败，跳过本轮", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// 检查点：拉取期间可能已被停止
	if !m.running {
		return
	}

	// 进程未存活不算停滞，崩溃判定属于被动通路
	if !snapshot.ProcessAlive {
		m.lastSnapshot = snapshot
		return
	}

	// 预热期：等待一次握手级别的增量
	if !m.handshakeDone {
		if m.lastSnapshot != nil {
			delta := trafficDelta(m.lastSnapshot, snapshot)
			if delta >= m.cfg.MinHandshakeBytes {
				m.handshakeDone = true
				logger.Info("握手完成，启用停滞检测", "delta_bytes", delta)
			} else {
				logger.Debug("预热中", "delta_bytes", delta, "need_bytes", m.cfg.MinHandshakeBytes)
			}
		}
		m.lastSnapshot = snapshot
		return
	}

	if m.isStalled(snapshot) {
		m.handleStallLocked(ctx, snapshot)
	} else {
		m.handleFlowLocked()
	}
	m.lastSnapshot = snapshot
}

// isStalled 判定本轮是否停滞（须持锁调用）
//
// 首个样本没有比较对象，不算停滞。
func (m *Monitor) isStalled(snapshot *interfaces.MetricsSnapshot) bool {
	if m.lastSnapshot == nil {
		return false
	}
	delta := trafficDelta(m.lastSnapshot, snapshot)
	stalled := delta < m.cfg.MinTrafficBytes
	if stalled {
		logger.Debug("流量增量低于阈值", "delta_bytes", delta, "threshold_bytes", m.cfg.MinTrafficBytes)
	}
	return stalled
}

// handleStallLocked 处理停滞采样（须持锁调用，可能临时放锁做探测）
func (m *Monitor) handleStallLocked(ctx context.Context, snapshot *interfaces.MetricsSnapshot) {
	m.stallSamples++

	corroborated := m.corroborate != nil && m.corroborate()

	logger.Debug("检测到停滞",
		"stall_samples", m.stallSamples,
		"required", m.cfg.RequiredSamples,
		"corroborated", corroborated)

	// 软警告阶段：先探测，区分「空闲」与「降级」
	if m.stallSamples == m.cfg.WarningSamples && !m.warningEmitted {
		if m.probeUnlocked(ctx, snapshot) {
			return // 探测期间会话已失效
		}
		if m.probeOK {
			// 只是空闲，连接没问题
			logger.Debug("停滞但探测成功，判定为空闲")
			m.stallSamples = 0
			return
		}
		m.warningEmitted = true
		logger.Info("连接降级（探测失败）")
		m.emitLocked(interfaces.FactActiveDegraded)
	}

	// 混合升级：
	//  1. 快速路径：停滞 + 错误佐证 → 立即触发
	//  2. 兜底路径：长时间停滞 → 最终探测后触发
	trigger := false
	reason := ""

	if m.stallSamples >= m.cfg.RequiredSamples && corroborated {
		trigger = true
		reason = "corroborated"
	} else if m.stallSamples >= m.cfg.MaxStallSamples {
		if m.probeUnlocked(ctx, snapshot) {
			return
		}
		if m.probeOK {
			logger.Info("兜底探测成功，连接正常，重置停滞计数")
			m.stallSamples = 0
			m.warningEmitted = false
		} else {
			trigger = true
			reason = "failsafe"
		}
	}

	if trigger && m.connected {
		m.connected = false
		logger.Warn("连通性丢失", "reason", reason, "stall_samples", m.stallSamples)
		m.emitLocked(interfaces.FactActiveLost)
	}
}

// handleFlowLocked 处理流量恢复采样（须持锁调用）
func (m *Monitor) handleFlowLocked() {
	wasWarning := m.warningEmitted

	if m.stallSamples > 0 {
		logger.Debug("流量恢复，重置停滞计数")
	}
	m.stallSamples = 0
	m.warningEmitted = false

	// 丢失后恢复，或警告后恢复，都要发一次 Restored
	if !m.connected {
		m.connected = true
		logger.Info("连通性已恢复（此前丢失）")
		m.emitLocked(interfaces.FactActiveRestored)
	} else if wasWarning {
		logger.Info("连通性已恢复（清除警告）")
		m.emitLocked(interfaces.FactActiveRestored)
	}
}

// probeUnlocked 临时放锁执行一次隧道探测（须持锁调用）
//
// 返回 true 表示探测期间会话已失效，调用方应立刻放弃本轮；
// 探测结果写入 m.probeOK。
func (m *Monitor) probeUnlocked(ctx context.Context, snapshot *interfaces.MetricsSnapshot) (invalidated bool) {
	sid := m.sessionID
	m.mu.Unlock()

	ok := false
	if m.prober != nil {
		pctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		result := m.prober.Probe(pctx)
		cancel()
		ok = result.Success
		logger.Debug("隧道探测", "success", result.Success, "rtt", result.RTT, "error", result.Err)
	}

	m.mu.Lock()
	m.probeOK = ok

	// 检查点：探测期间可能 Stop/重启
	if !m.running || m.sessionID != sid {
		m.lastSnapshot = snapshot
		return true
	}
	return false
}

// emitLocked 发出一个事实（须持锁调用）
//
// 持锁复查运行状态与会话号；通道满时先非阻塞发送，
// 再以宽限时长重试，仍失败则丢弃并告警。
func (m *Monitor) emitLocked(fact interfaces.MonitorFact) {
	if !m.running || m.sessionID == 0 {
		logger.Debug("事实被抑制（已停止）", "fact", fact.String())
		return
	}

	env := interfaces.FactEnvelope{
		Fact:      fact,
		SessionID: m.sessionID,
		Timestamp: m.clock.Now(),
	}

	select {
	case m.facts <- env:
	default:
		logger.Warn("事实通道已满，宽限重试", "fact", fact.String())
		timer := m.clock.Timer(m.cfg.SendGrace)
		select {
		case m.facts <- env:
			timer.Stop()
		case <-timer.C:
			logger.Error("消费者无响应，丢弃事实", "fact", fact.String())
		}
	}
}

// trafficDelta 相邻快照的流量增量
//
// 计数器回绕（进程重启）时按从零重新累计处理。
func trafficDelta(prev, cur *interfaces.MetricsSnapshot) uint64 {
	p, c := prev.TotalBytes(), cur.TotalBytes()
	if c < p {
		return c
	}
	return c - p
}
