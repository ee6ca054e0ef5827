package activemon

import (
	"context"
	"errors"
	"testing"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// stubProvider 按预设序列吐出快照
type stubProvider struct {
	snapshots []*interfaces.MetricsSnapshot
	index     int
	err       error
}

func (s *stubProvider) FetchSnapshot(_ context.Context) (*interfaces.MetricsSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.index >= len(s.snapshots) {
		return s.snapshots[len(s.snapshots)-1], nil
	}
	snap := s.snapshots[s.index]
	s.index++
	return snap, nil
}

// snap 构造指定累计流量的存活快照
func snap(total uint64) *interfaces.MetricsSnapshot {
	return &interfaces.MetricsSnapshot{UplinkBytes: total, ProcessAlive: true}
}

// newTestMonitor 创建测试监控器并启动会话
//
// 时钟为 mock，采样循环不会自行触发，测试直接驱动 check()。
func newTestMonitor(provider interfaces.MetricsProvider, prober interfaces.Prober, corroborate func() bool) *Monitor {
	m := NewMonitor(config.DefaultActiveConfig(), clock.NewMock(), provider, prober, corroborate)
	m.Start("ws", 1)
	return m
}

// drain 收走通道里现有的全部事实
func drain(m *Monitor) []interfaces.MonitorFact {
	var facts []interfaces.MonitorFact
	for {
		select {
		case env := <-m.Facts():
			facts = append(facts, env.Fact)
		default:
			return facts
		}
	}
}

// TestMonitor_FlowingTrafficNeverLost 测试流量充足时不产出事实
func TestMonitor_FlowingTrafficNeverLost(t *testing.T) {
	provider := &stubProvider{snapshots: []*interfaces.MetricsSnapshot{
		snap(1000), snap(2000), snap(3000), snap(4000),
	}}
	m := newTestMonitor(provider, nil, nil)
	defer m.Stop()

	for i := 0; i < 4; i++ {
		m.check(context.Background())
	}
	if facts := drain(m); len(facts) != 0 {
		t.Errorf("expected no facts with flowing traffic, got %v", facts)
	}
}

// TestMonitor_StallWithCorroboration 测试停滞 + 佐证快速触发一次 Lost
func TestMonitor_StallWithCorroboration(t *testing.T) {
	provider := &stubProvider{snapshots: []*interfaces.MetricsSnapshot{
		snap(1000), snap(1000), snap(1000), snap(1000),
	}}
	m := newTestMonitor(provider, nil, func() bool { return true })
	defer m.Stop()

	// 首个样本无比较对象；第 2、3 个样本停滞，第 3 个达到快速阈值
	for i := 0; i < 4; i++ {
		m.check(context.Background())
	}
	facts := drain(m)
	if len(facts) != 1 || facts[0] != interfaces.FactActiveLost {
		t.Errorf("expected exactly one Lost fact, got %v", facts)
	}
}

// TestMonitor_RestoredAfterLost 测试丢失后流量恢复发出一次 Restored
func TestMonitor_RestoredAfterLost(t *testing.T) {
	provider := &stubProvider{snapshots: []*interfaces.MetricsSnapshot{
		snap(1000), snap(1000), snap(1000), snap(5000), snap(9000),
	}}
	m := newTestMonitor(provider, nil, func() bool { return true })
	defer m.Stop()

	for i := 0; i < 5; i++ {
		m.check(context.Background())
	}
	facts := drain(m)
	want := []interfaces.MonitorFact{interfaces.FactActiveLost, interfaces.FactActiveRestored}
	if len(facts) != len(want) || facts[0] != want[0] || facts[1] != want[1] {
		t.Errorf("expected %v, got %v", want, facts)
	}
}

// TestMonitor_WarningProbeIdleReset 测试软警告阶段探测成功判定为空闲
func TestMonitor_WarningProbeIdleReset(t *testing.T) {
	provider := &stubProvider{snapshots: []*interfaces.MetricsSnapshot{snap(1000)}}
	prober := NewMockProber() // 默认探测成功
	m := newTestMonitor(provider, prober, nil)
	defer m.Stop()

	// 停滞推进到软警告样本数，探测成功应清零计数且无事实
	for i := 0; i < 6; i++ {
		m.check(context.Background())
	}
	if facts := drain(m); len(facts) != 0 {
		t.Errorf("expected no facts for idle connection, got %v", facts)
	}
	if prober.ProbeCount() == 0 {
		t.Error("expected warning-stage probe to run")
	}
}

// TestMonitor_FailsafeEscalation 测试无佐证时的兜底升级路径
func TestMonitor_FailsafeEscalation(t *testing.T) {
	provider := &stubProvider{snapshots: []*interfaces.MetricsSnapshot{snap(1000)}}
	prober := NewMockProber()
	prober.SetSuccess(false)
	m := newTestMonitor(provider, prober, nil)
	defer m.Stop()

	// 停滞样本推进到兜底上限：第 4 个停滞样本发软警告，
	// 第 8 个停滞样本探测失败后触发 Lost
	for i := 0; i < 9; i++ {
		m.check(context.Background())
	}
	facts := drain(m)
	want := []interfaces.MonitorFact{interfaces.FactActiveDegraded, interfaces.FactActiveLost}
	if len(facts) != len(want) || facts[0] != want[0] || facts[1] != want[1] {
		t.Errorf("expected %v, got %v", want, facts)
	}
}

// TestMonitor_SlowTransportWarmup 测试慢握手传输的预热期
func TestMonitor_SlowTransportWarmup(t *testing.T) {
	provider := &stubProvider{snapshots: []*interfaces.MetricsSnapshot{
		snap(100), snap(200), snap(300), snap(2000), snap(2000), snap(2000), snap(2000),
	}}
	m := NewMonitor(config.DefaultActiveConfig(), clock.NewMock(), provider, nil, func() bool { return true })
	m.Start("xhttp", 1)
	defer m.Stop()

	// 前 3 个样本增量不足握手阈值，停留在预热期不计停滞；
	// 第 4 个样本完成握手；之后的停滞正常计数并触发
	for i := 0; i < 7; i++ {
		m.check(context.Background())
	}
	facts := drain(m)
	if len(facts) != 1 || facts[0] != interfaces.FactActiveLost {
		t.Errorf("expected exactly one Lost after warmup, got %v", facts)
	}
}

// TestMonitor_CounterWrapNotStalled 测试计数器回绕按重新累计处理
func TestMonitor_CounterWrapNotStalled(t *testing.T) {
	provider := &stubProvider{snapshots: []*interfaces.MetricsSnapshot{
		snap(50000), snap(300),
	}}
	m := newTestMonitor(provider, nil, func() bool { return true })
	defer m.Stop()

	m.check(context.Background())
	m.check(context.Background())
	if facts := drain(m); len(facts) != 0 {
		t.Errorf("expected wrap treated as fresh counting, got %v", facts)
	}
}

// TestMonitor_FetchErrorSkipsSample 测试拉取失败只跳过本轮
func TestMonitor_FetchErrorSkipsSample(t *testing.T) {
	provider := &stubProvider{err: errors.New("fetch failed")}
	m := newTestMonitor(provider, nil, func() bool { return true })
	defer m.Stop()

	for i := 0; i < 10; i++ {
		m.check(context.Background())
	}
	if facts := drain(m); len(facts) != 0 {
		t.Errorf("expected no facts on fetch errors, got %v", facts)
	}
}

// TestMonitor_DeadProcessNotStall 测试进程死亡不计入停滞
func TestMonitor_DeadProcessNotStall(t *testing.T) {
	dead := &interfaces.MetricsSnapshot{ProcessAlive: false}
	provider := &stubProvider{snapshots: []*interfaces.MetricsSnapshot{dead}}
	m := newTestMonitor(provider, nil, func() bool { return true })
	defer m.Stop()

	for i := 0; i < 10; i++ {
		m.check(context.Background())
	}
	if facts := drain(m); len(facts) != 0 {
		t.Errorf("expected no facts for dead process, got %v", facts)
	}
}

// TestMonitor_StopSuppressesFacts 测试停止后不再有事实发出
func TestMonitor_StopSuppressesFacts(t *testing.T) {
	provider := &stubProvider{snapshots: []*interfaces.MetricsSnapshot{snap(1000)}}
	m := newTestMonitor(provider, nil, func() bool { return true })

	m.Stop()
	m.Stop() // 幂等

	for i := 0; i < 5; i++ {
		m.check(context.Background())
	}
	if facts := drain(m); len(facts) != 0 {
		t.Errorf("expected no facts after Stop, got %v", facts)
	}
	if m.IsRunning() {
		t.Error("expected monitor stopped")
	}
}
