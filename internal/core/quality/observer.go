package quality

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
	"github.com/xenray/go-connmon/pkg/lib/log"
)

var logger = log.Logger("core/quality")

// ============================================================================
//                              Observer
// ============================================================================

// handshakeSample 单个握手耗时样本
type handshakeSample struct {
	timestamp time.Time
	duration  time.Duration
}

// transition 一次已发生的质量迁移（在锁外通知订阅者）
type transition struct {
	from         interfaces.NetworkQuality
	to           interfaces.NetworkQuality
	windowErrors int
	windowTotal  int
	reason       string
}

// Observer 网络质量观察者
//
// 线程安全；所有时间运算通过注入的 clock.Clock，测试可用 mock 时钟
// 精确推进窗口与滞回计数。
type Observer struct {
	mu    sync.Mutex
	cfg   config.QualityConfig
	clock clock.Clock

	// 当前等级与窗口
	current    interfaces.NetworkQuality
	windowSize time.Duration

	// 事件历史（滑动窗口，头部淘汰）
	errorHistory []interfaces.ErrorSignal
	handshakes   []handshakeSample

	// 滚动计数器，避免热路径 O(N) 重扫
	moderateCount  int
	reconnectCount int
	crashCount     int

	// 累计事件计数（窗口自适应的错误率输入）
	totalEvents int
	errorEvents int

	// 按类型的累计计数（诊断用）
	kindCounts map[interfaces.ErrorKind]int

	// 滞回计数
	consecutiveBad  int
	consecutiveGood int

	// 时间锚点
	criticalEntry  time.Time
	lastEval       time.Time
	lastTransition time.Time
	stableSince    time.Time
	lastSuccess    time.Time
	lastError      time.Time
	startup        time.Time

	// 订阅者（专用锁，避免与 mu 嵌套死锁）
	subscribers   []interfaces.QualityHandler
	subscribersMu sync.RWMutex
}

// 确保实现接口
var _ interfaces.QualityObserver = (*Observer)(nil)

// NewObserver 创建质量观察者
func NewObserver(cfg config.QualityConfig, clk clock.Clock) *Observer {
	cfg.Validate()
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now()
	return &Observer{
		cfg:         cfg,
		clock:       clk,
		current:     interfaces.QualityStable,
		windowSize:  cfg.InitialWindow,
		kindCounts:  make(map[interfaces.ErrorKind]int),
		lastEval:    now,
		stableSince: now,
		lastSuccess: now,
		startup:     now,
	}
}

// ============================================================================
//                              信号上报
// ============================================================================

// ReportError 上报一次错误信号并触发重新评估
//
// 孤立的超时是瞬时错误；近期窗口内重复出现后升为中等。
func (o *Observer) ReportError(kind interfaces.ErrorKind) {
	o.mu.Lock()
	o.recordError(kind, o.classifySeverity(kind))
	t := o.evaluate()
	o.mu.Unlock()
	o.notify(t)
}

// ReportSuccess 记录一次成功活动
//
// 静默检测的输入；若此前因静默被压到 Critical，立即重评以便恢复。
func (o *Observer) ReportSuccess() {
	o.mu.Lock()
	o.lastSuccess = o.clock.Now()
	o.totalEvents++
	t := o.evaluate()
	o.mu.Unlock()
	o.notify(t)
}

// ReportHandshake 记录握手耗时
//
// 只进诊断环形缓冲，不计入错误统计。
func (o *Observer) ReportHandshake(d time.Duration) {
	o.mu.Lock()
	now := o.clock.Now()
	o.lastSuccess = now
	o.handshakes = append(o.handshakes, handshakeSample{timestamp: now, duration: d})
	if len(o.handshakes) > o.cfg.HandshakeHistory {
		o.handshakes = o.handshakes[len(o.handshakes)-o.cfg.HandshakeHistory:]
	}
	o.totalEvents++
	t := o.evaluate()
	o.mu.Unlock()
	o.notify(t)
}

// ParseLogLine 对日志行做正则分类
//
// 命中错误模式 → 上报对应错误；命中成功标记 → 记录活动；
// 未分类行被忽略。返回分类结果，供被动监控佐证。
func (o *Observer) ParseLogLine(line string) interfaces.ParseOutcome {
	switch {
	case matchAny(timeoutPatterns, line):
		o.ReportError(interfaces.ErrorTimeout)
		return interfaces.ParseError
	case matchAny(connectionResetPatterns, line):
		o.ReportError(interfaces.ErrorConnectionReset)
		return interfaces.ParseError
	case matchAny(dnsFailurePatterns, line):
		o.ReportError(interfaces.ErrorDNSFailure)
		return interfaces.ParseError
	case matchAny(tlsFailurePatterns, line):
		o.ReportError(interfaces.ErrorTLSFailure)
		return interfaces.ParseError
	case matchAny(successPatterns, line):
		o.ReportSuccess()
		return interfaces.ParseSuccess
	}

	if strings.Contains(line, "ERROR") {
		logger.Debug("未分类错误行", "line", log.TruncateLine(strings.TrimSpace(line), 160))
	}
	return interfaces.ParseNone
}

// ============================================================================
//                              读取
// ============================================================================

// Quality 返回当前质量等级
//
// 距上次评估超过 LazyEvalInterval 时先惰性重评（无错误也要允许恢复）。
func (o *Observer) Quality() interfaces.NetworkQuality {
	o.mu.Lock()
	var t *transition
	if o.clock.Since(o.lastEval) > o.cfg.LazyEvalInterval {
		t = o.evaluate()
	}
	q := o.current
	o.mu.Unlock()
	o.notify(t)
	return q
}

// Stats 观察者统计快照
type Stats struct {
	Quality          interfaces.NetworkQuality
	WindowSize       time.Duration
	WindowErrors     int
	Reconnects       int
	Crashes          int
	TotalEvents      int
	ErrorEvents      int
	LastTransition   time.Time
	AvgHandshake     time.Duration
	MaxHandshake     time.Duration
	HandshakeSamples int
	KindCounts       map[interfaces.ErrorKind]int
}

// GetStats 返回诊断统计快照
func (o *Observer) GetStats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	var sum, max time.Duration
	cutoff := o.clock.Now().Add(-o.windowSize)
	samples := 0
	for _, h := range o.handshakes {
		if h.timestamp.Before(cutoff) {
			continue
		}
		sum += h.duration
		if h.duration > max {
			max = h.duration
		}
		samples++
	}
	var avg time.Duration
	if samples > 0 {
		avg = sum / time.Duration(samples)
	}

	kinds := make(map[interfaces.ErrorKind]int, len(o.kindCounts))
	for k, v := range o.kindCounts {
		kinds[k] = v
	}

	return Stats{
		Quality:          o.current,
		WindowSize:       o.windowSize,
		WindowErrors:     o.moderateCount,
		Reconnects:       o.reconnectCount,
		Crashes:          o.crashCount,
		TotalEvents:      o.totalEvents,
		ErrorEvents:      o.errorEvents,
		LastTransition:   o.lastTransition,
		AvgHandshake:     avg,
		MaxHandshake:     max,
		HandshakeSamples: samples,
		KindCounts:       kinds,
	}
}

// Subscribe 注册质量变更订阅者
//
// 订阅者在评估 goroutine 上同步执行；panic 被捕获并记录。
func (o *Observer) Subscribe(handler interfaces.QualityHandler) {
	if handler == nil {
		return
	}
	o.subscribersMu.Lock()
	o.subscribers = append(o.subscribers, handler)
	o.subscribersMu.Unlock()
}

// Reset 清空窗口与计数器，用于新会话
func (o *Observer) Reset() {
	o.mu.Lock()
	now := o.clock.Now()
	o.current = interfaces.QualityStable
	o.windowSize = o.cfg.InitialWindow
	o.errorHistory = nil
	o.handshakes = nil
	o.moderateCount = 0
	o.reconnectCount = 0
	o.crashCount = 0
	o.totalEvents = 0
	o.errorEvents = 0
	o.kindCounts = make(map[interfaces.ErrorKind]int)
	o.consecutiveBad = 0
	o.consecutiveGood = 0
	o.criticalEntry = time.Time{}
	o.lastEval = now
	o.stableSince = now
	o.lastSuccess = now
	o.lastError = time.Time{}
	o.startup = now
	o.mu.Unlock()

	logger.Info("质量观察者已重置")
}

// ============================================================================
//                              记录与分类
// ============================================================================

// classifySeverity 按错误类型与近期历史判定严重度（须持锁调用）
func (o *Observer) classifySeverity(kind interfaces.ErrorKind) interfaces.ErrorSeverity {
	switch kind {
	case interfaces.ErrorTimeout:
		// 孤立超时是瞬时的；近期窗口内重复出现升为中等
		cutoff := o.clock.Now().Add(-o.cfg.TimeoutRecentWindow)
		recent := 0
		for i := len(o.errorHistory) - 1; i >= 0; i-- {
			if o.errorHistory[i].Timestamp.Before(cutoff) {
				break
			}
			if o.errorHistory[i].Kind == interfaces.ErrorTimeout {
				recent++
			}
		}
		if recent < o.cfg.TimeoutModerateCount {
			return interfaces.SeverityTransient
		}
		return interfaces.SeverityModerate
	case interfaces.ErrorTLSFailure, interfaces.ErrorProcessCrash:
		return interfaces.SeveritySevere
	default:
		return interfaces.SeverityModerate
	}
}

// recordError 记录一次错误事件（须持锁调用）
func (o *Observer) recordError(kind interfaces.ErrorKind, severity interfaces.ErrorSeverity) {
	now := o.clock.Now()
	o.errorHistory = append(o.errorHistory, interfaces.ErrorSignal{
		Kind:      kind,
		Severity:  severity,
		Timestamp: now,
	})

	// 只统计中等及以上
	if severity >= interfaces.SeverityModerate {
		o.lastError = now
		o.errorEvents++
		o.moderateCount++
		o.kindCounts[kind]++
		switch kind {
		case interfaces.ErrorReconnect:
			o.reconnectCount++
		case interfaces.ErrorProcessCrash:
			o.crashCount++
		}
	}

	o.totalEvents++
	o.evictExpired(now)
}

// evictExpired 淘汰窗口外的事件并回退滚动计数（须持锁调用）
func (o *Observer) evictExpired(now time.Time) {
	cutoff := now.Add(-o.windowSize)

	i := 0
	for ; i < len(o.errorHistory); i++ {
		e := o.errorHistory[i]
		if !e.Timestamp.Before(cutoff) {
			break
		}
		if e.Severity >= interfaces.SeverityModerate {
			o.moderateCount--
			switch e.Kind {
			case interfaces.ErrorReconnect:
				o.reconnectCount--
			case interfaces.ErrorProcessCrash:
				o.crashCount--
			}
		}
	}
	if i > 0 {
		o.errorHistory = o.errorHistory[i:]
	}

	j := 0
	for ; j < len(o.handshakes); j++ {
		if !o.handshakes[j].timestamp.Before(cutoff) {
			break
		}
	}
	if j > 0 {
		o.handshakes = o.handshakes[j:]
	}
}

// ============================================================================
//                              评估流水线
// ============================================================================

// windowMetrics 当前窗口的聚合指标
type windowMetrics struct {
	moderateErrors int
	reconnects     int
	crashes        int
	totalEvents    int
}

// evaluate 执行一次质量评估（须持锁调用）
//
// 返回实际发生的迁移（无迁移时为 nil），由调用方在锁外通知订阅者。
func (o *Observer) evaluate() *transition {
	now := o.clock.Now()
	o.lastEval = now
	o.evictExpired(now)
	o.adjustWindowSize()

	m := windowMetrics{
		moderateErrors: maxInt(0, o.moderateCount),
		reconnects:     maxInt(0, o.reconnectCount),
		crashes:        maxInt(0, o.crashCount),
		totalEvents:    len(o.errorHistory) + len(o.handshakes),
	}

	// 旁路检查优先于一切
	target, bypass, reason := o.checkOverrides(now)
	if !bypass {
		target = o.baseQuality(m)
	}

	target = o.applyStabilityConstraints(target, bypass, now)
	return o.applyHysteresis(target, bypass, m, reason)
}

// adjustWindowSize 按错误率自适应调整窗口大小（须持锁调用）
func (o *Observer) adjustWindowSize() {
	if !o.cfg.AdaptiveWindow {
		return
	}
	var ratio float64
	if o.totalEvents > 0 {
		ratio = float64(o.errorEvents) / float64(o.totalEvents)
	}

	var next time.Duration
	switch {
	case ratio < o.cfg.StableRatio:
		next = o.cfg.StableWindow
	case ratio < o.cfg.UnstableRatio:
		next = o.cfg.DefaultWindow
	default:
		next = o.cfg.UnstableWindow
	}

	if next != o.windowSize {
		o.windowSize = next
		logger.Debug("窗口大小已调整", "window", next, "error_ratio", ratio)
	}
}

// checkOverrides 检查旁路条件（快速通道 / 静默检测）（须持锁调用）
//
// 命中旁路时跳过滞回与稳定性约束，直接压为 Critical。
func (o *Observer) checkOverrides(now time.Time) (interfaces.NetworkQuality, bool, string) {
	// A. 快速通道：只认高置信信号的突发
	cutoff := now.Add(-o.cfg.FastPathWindow)
	burst := 0
	for i := len(o.errorHistory) - 1; i >= 0; i-- {
		e := o.errorHistory[i]
		if e.Timestamp.Before(cutoff) {
			break
		}
		if e.Severity < interfaces.SeverityModerate {
			continue
		}
		switch e.Kind {
		case interfaces.ErrorDNSFailure, interfaces.ErrorTimeout,
			interfaces.ErrorTLSFailure, interfaces.ErrorProcessCrash:
			burst++
		}
	}
	if burst >= o.cfg.FastPathThreshold {
		return interfaces.QualityCritical, true, "fast-path burst"
	}

	// B. 静默检测：启动宽限期后，成功与错误双双静默即视为硬断开
	if now.Sub(o.startup) >= o.cfg.SilenceWarmup {
		if now.Sub(o.lastSuccess) > o.cfg.SilenceTimeout &&
			now.Sub(o.lastError) > o.cfg.SilenceTimeout {
			return interfaces.QualityCritical, true, "silence"
		}
	}

	return 0, false, ""
}

// baseQuality 从窗口指标推出基线等级（须持锁调用）
func (o *Observer) baseQuality(m windowMetrics) interfaces.NetworkQuality {
	switch {
	case m.moderateErrors >= o.cfg.CriticalErrors || m.crashes > 0:
		return interfaces.QualityCritical
	case m.moderateErrors >= o.cfg.UnstableErrors || m.reconnects >= o.cfg.UnstableReconnects:
		return interfaces.QualityUnstable
	case m.moderateErrors >= o.cfg.DegradedErrors:
		return interfaces.QualityDegraded
	case m.moderateErrors == 0:
		return interfaces.QualityExcellent
	default:
		return interfaces.QualityStable
	}
}

// applyStabilityConstraints 应用稳定性约束（须持锁调用）
func (o *Observer) applyStabilityConstraints(target interfaces.NetworkQuality, bypass bool, now time.Time) interfaces.NetworkQuality {
	// 1. Critical 冷却：进入后 30s 内拒绝离开
	if o.current == interfaces.QualityCritical && target > interfaces.QualityCritical {
		if now.Sub(o.criticalEntry) < o.cfg.CriticalCooldown {
			return interfaces.QualityCritical
		}
	}

	// 2. 恢复步长上限（旁路时不限制）
	if target > o.current && !bypass {
		if int(target) > int(o.current)+o.cfg.RecoveryStepLimit {
			target = interfaces.NetworkQuality(int(o.current) + o.cfg.RecoveryStepLimit)
		}
	}

	// 3. Excellent 门槛：要求持续的 Stable 及以上
	if target == interfaces.QualityExcellent && !bypass {
		sustained := o.current >= interfaces.QualityStable &&
			!o.stableSince.IsZero() &&
			now.Sub(o.stableSince) > o.cfg.ExcellentStableFor
		if !sustained {
			return interfaces.QualityStable
		}
	}

	return target
}

// applyHysteresis 应用滞回并在满足条件时执行迁移（须持锁调用）
func (o *Observer) applyHysteresis(target interfaces.NetworkQuality, bypass bool, m windowMetrics, reason string) *transition {
	if bypass {
		o.consecutiveBad = 0
		o.consecutiveGood = 0
		if target != o.current {
			return o.transitionTo(target, m, reason)
		}
		return nil
	}

	switch {
	case target < o.current:
		// 降级方向
		o.consecutiveBad++
		o.consecutiveGood = 0
		if o.consecutiveBad >= o.cfg.DegradationThreshold {
			o.consecutiveBad = 0
			return o.transitionTo(target, m, reason)
		}
	case target > o.current:
		// 恢复方向
		o.consecutiveGood++
		o.consecutiveBad = 0
		if o.consecutiveGood >= o.cfg.RecoveryThreshold {
			o.consecutiveGood = 0
			return o.transitionTo(target, m, reason)
		}
	default:
		// 与当前一致，双向清零
		o.consecutiveBad = 0
		o.consecutiveGood = 0
	}
	return nil
}

// transitionTo 执行一次质量迁移（须持锁调用）
func (o *Observer) transitionTo(target interfaces.NetworkQuality, m windowMetrics, reason string) *transition {
	if target == o.current {
		return nil
	}

	now := o.clock.Now()
	from := o.current
	o.current = target
	o.lastTransition = now

	if target == interfaces.QualityCritical {
		o.criticalEntry = now
	}

	// 维护「持续 Stable 及以上」的锚点
	if target < interfaces.QualityStable {
		o.stableSince = time.Time{}
	} else if from < interfaces.QualityStable || o.stableSince.IsZero() {
		o.stableSince = now
	}

	logger.Info("质量等级变更",
		"previous", from.String(),
		"current", target.String(),
		"window_errors", m.moderateErrors,
		"window_total", m.totalEvents,
		"reason", reason)

	return &transition{
		from:         from,
		to:           target,
		windowErrors: m.moderateErrors,
		windowTotal:  m.totalEvents,
		reason:       reason,
	}
}

// ============================================================================
//                              订阅者通知
// ============================================================================

// notify 在锁外同步通知所有订阅者
func (o *Observer) notify(t *transition) {
	if t == nil {
		return
	}

	o.subscribersMu.RLock()
	subscribers := make([]interfaces.QualityHandler, len(o.subscribers))
	copy(subscribers, o.subscribers)
	o.subscribersMu.RUnlock()

	for _, handler := range subscribers {
		o.callSafe(handler, t.to)
	}
}

// callSafe 调用单个订阅者，捕获 panic
func (o *Observer) callSafe(handler interfaces.QualityHandler, q interfaces.NetworkQuality) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("订阅者 panic", "quality", q.String(), "panic", r)
		}
	}()
	handler(q)
}

// maxInt 返回两者较大值
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
