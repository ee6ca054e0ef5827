package quality

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// newTestObserver 创建带 mock 时钟的观察者
func newTestObserver() (*Observer, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	return NewObserver(config.DefaultQualityConfig(), mock), mock
}

// TestObserver_InitialQuality 测试初始等级为 Stable
func TestObserver_InitialQuality(t *testing.T) {
	o, _ := newTestObserver()
	if q := o.Quality(); q != interfaces.QualityStable {
		t.Errorf("expected initial quality Stable, got %v", q)
	}
}

// TestObserver_DegradationHysteresis 测试降级需要连续确认
func TestObserver_DegradationHysteresis(t *testing.T) {
	o, mock := newTestObserver()

	// 前 8 次错误把窗口推到 Degraded 判定线，之后每次评估
	// 目标都是 Degraded，但要连续 5 次确认才真正迁移
	for i := 0; i < 11; i++ {
		o.ReportError(interfaces.ErrorConnectionReset)
		mock.Add(100 * time.Millisecond)
	}
	if q := o.Quality(); q != interfaces.QualityStable {
		t.Fatalf("expected Stable before hysteresis confirmed, got %v", q)
	}

	// 第 12 次错误是第 5 次连续确认
	o.ReportError(interfaces.ErrorConnectionReset)
	if q := o.Quality(); q != interfaces.QualityDegraded {
		t.Errorf("expected Degraded after confirmation, got %v", q)
	}
}

// TestObserver_FastPathBurst 测试高置信突发立即压为 Critical
func TestObserver_FastPathBurst(t *testing.T) {
	o, mock := newTestObserver()

	for i := 0; i < 10; i++ {
		o.ReportError(interfaces.ErrorTLSFailure)
		mock.Add(50 * time.Millisecond)
	}
	if q := o.Quality(); q != interfaces.QualityCritical {
		t.Errorf("expected Critical after fast-path burst, got %v", q)
	}
}

// TestObserver_CriticalCooldown 测试 Critical 冷却期内拒绝恢复
func TestObserver_CriticalCooldown(t *testing.T) {
	o, mock := newTestObserver()

	// 突发压为 Critical
	for i := 0; i < 10; i++ {
		o.ReportError(interfaces.ErrorTLSFailure)
	}
	if q := o.Quality(); q != interfaces.QualityCritical {
		t.Fatalf("expected Critical, got %v", q)
	}

	// 冷却期内持续有成功活动，仍应停留在 Critical
	mock.Add(10 * time.Second)
	o.ReportSuccess()
	if q := o.Quality(); q != interfaces.QualityCritical {
		t.Errorf("expected Critical inside cooldown, got %v", q)
	}
}

// TestObserver_RecoveryStepLimit 测试恢复步长上限
func TestObserver_RecoveryStepLimit(t *testing.T) {
	o, mock := newTestObserver()

	for i := 0; i < 10; i++ {
		o.ReportError(interfaces.ErrorTLSFailure)
	}
	if q := o.Quality(); q != interfaces.QualityCritical {
		t.Fatalf("expected Critical, got %v", q)
	}

	// 越过冷却期且错误全部滚出窗口后，持续成功活动开始恢复。
	// 从 Critical 直接到 Excellent 被步长上限截成最多 +2。
	mock.Add(31 * time.Second)
	for i := 0; i < 3; i++ {
		mock.Add(time.Second)
		o.ReportSuccess()
	}
	if q := o.Quality(); q != interfaces.QualityDegraded {
		t.Errorf("expected step-limited recovery to Degraded, got %v", q)
	}
}

// TestObserver_SilenceDetection 测试宽限期后的静默判定
func TestObserver_SilenceDetection(t *testing.T) {
	o, mock := newTestObserver()

	// 宽限期内静默不触发
	mock.Add(10 * time.Second)
	if q := o.Quality(); q != interfaces.QualityStable {
		t.Fatalf("expected Stable inside warmup, got %v", q)
	}

	// 宽限期过后，成功与错误双双静默即判定硬断开
	mock.Add(25 * time.Second)
	if q := o.Quality(); q != interfaces.QualityCritical {
		t.Errorf("expected Critical after silence, got %v", q)
	}
}

// TestObserver_TimeoutSeverity 测试孤立超时为瞬时、重复超时升级
func TestObserver_TimeoutSeverity(t *testing.T) {
	o, mock := newTestObserver()

	// 前 3 次超时是瞬时错误，不计入窗口统计
	for i := 0; i < 3; i++ {
		o.ReportError(interfaces.ErrorTimeout)
		mock.Add(time.Second)
	}
	if stats := o.GetStats(); stats.WindowErrors != 0 {
		t.Errorf("expected 0 moderate errors for isolated timeouts, got %d", stats.WindowErrors)
	}

	// 第 4 次起升为中等
	o.ReportError(interfaces.ErrorTimeout)
	if stats := o.GetStats(); stats.WindowErrors != 1 {
		t.Errorf("expected 1 moderate error after repeated timeouts, got %d", stats.WindowErrors)
	}
}

// TestObserver_WindowEviction 测试窗口外错误被淘汰
func TestObserver_WindowEviction(t *testing.T) {
	o, mock := newTestObserver()

	for i := 0; i < 5; i++ {
		o.ReportError(interfaces.ErrorConnectionReset)
	}
	if stats := o.GetStats(); stats.WindowErrors != 5 {
		t.Fatalf("expected 5 moderate errors, got %d", stats.WindowErrors)
	}

	// 错误率 100% 时窗口收缩为 30s，推过窗口后全部淘汰
	mock.Add(31 * time.Second)
	o.ReportSuccess()
	if stats := o.GetStats(); stats.WindowErrors != 0 {
		t.Errorf("expected errors evicted after window, got %d", stats.WindowErrors)
	}
}

// TestObserver_Subscribe 测试质量变更通知订阅者
func TestObserver_Subscribe(t *testing.T) {
	o, _ := newTestObserver()

	var got []interfaces.NetworkQuality
	o.Subscribe(func(q interfaces.NetworkQuality) {
		got = append(got, q)
	})

	for i := 0; i < 10; i++ {
		o.ReportError(interfaces.ErrorTLSFailure)
	}
	if len(got) != 1 || got[0] != interfaces.QualityCritical {
		t.Errorf("expected single Critical notification, got %v", got)
	}
}

// TestObserver_SubscriberPanic 测试订阅者 panic 不影响评估
func TestObserver_SubscriberPanic(t *testing.T) {
	o, _ := newTestObserver()
	o.Subscribe(func(interfaces.NetworkQuality) { panic("boom") })

	for i := 0; i < 10; i++ {
		o.ReportError(interfaces.ErrorTLSFailure)
	}
	if q := o.Quality(); q != interfaces.QualityCritical {
		t.Errorf("expected Critical despite subscriber panic, got %v", q)
	}
}

// TestObserver_Reset 测试重置后回到初始状态
func TestObserver_Reset(t *testing.T) {
	o, _ := newTestObserver()

	for i := 0; i < 10; i++ {
		o.ReportError(interfaces.ErrorTLSFailure)
	}
	o.Reset()

	if q := o.Quality(); q != interfaces.QualityStable {
		t.Errorf("expected Stable after reset, got %v", q)
	}
	if stats := o.GetStats(); stats.WindowErrors != 0 || stats.TotalEvents != 0 {
		t.Errorf("expected empty stats after reset, got %+v", stats)
	}
}
