package reconnect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// ============ 测试替身 ============

type stubValidator struct{ reachable bool }

func (v stubValidator) CheckInternetConnection(_ context.Context) bool { return v.reachable }

type stubReconnector struct {
	mu      sync.Mutex
	result  bool
	calls   int
	lastArg string
}

func (r *stubReconnector) Reconnect(_ context.Context, configPath string, _ interfaces.Mode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.lastArg = configPath
	return r.result
}

func (r *stubReconnector) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type stubLoader struct{ err error }

func (l stubLoader) Load(_ context.Context, _ string) ([]byte, error) {
	if l.err != nil {
		return nil, l.err
	}
	return []byte(`{"outbounds":[]}`), nil
}

type stubTester struct{ success bool }

func (t stubTester) Test(_ context.Context, _ []byte) interfaces.TestResult {
	return interfaces.TestResult{Success: t.success, Latency: 42 * time.Millisecond}
}

// eventRecorder 线程安全的事件收集器
type eventRecorder struct {
	mu     sync.Mutex
	events []string
	data   []map[string]string
}

func (r *eventRecorder) handler() interfaces.ReconnectEventHandler {
	return func(name string, data map[string]string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, name)
		r.data = append(r.data, data)
	}
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *eventRecorder) lastReason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.data) == 0 {
		return ""
	}
	return r.data[len(r.data)-1]["reason"]
}

// ============ 构造辅助 ============

func testConfig() config.ReconnectConfig {
	cfg := config.DefaultReconnectConfig()
	cfg.StabilizationBuffer = time.Millisecond
	return cfg
}

func validConn() *interfaces.ConnectionInfo {
	return &interfaces.ConnectionInfo{
		ConfigPath: "/etc/xray/config.json",
		Mode:       interfaces.ModeTunnel,
	}
}

func equalNames(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// ============ 测试 ============

// TestService_NoInternetAborts 测试物理网络不可达时放弃重连
func TestService_NoInternetAborts(t *testing.T) {
	rec := &eventRecorder{}
	reconnector := &stubReconnector{result: true}
	s := NewService(testConfig(), clock.New(), stubValidator{reachable: false},
		nil, nil, reconnector, rec.handler())
	s.StartSession(1)

	if s.HandleFailure(context.Background(), validConn(), 1) {
		t.Error("expected failure result")
	}
	want := []string{interfaces.EventFailureDetected, interfaces.EventReconnectFailed}
	if !equalNames(rec.names(), want) {
		t.Errorf("expected events %v, got %v", want, rec.names())
	}
	if rec.lastReason() != interfaces.ReasonNoInternet {
		t.Errorf("expected reason no_internet, got %q", rec.lastReason())
	}
	if reconnector.callCount() != 0 {
		t.Error("reconnector must not be invoked without internet")
	}
}

// TestService_SuccessfulReconnect 测试重连成功且不发成功事件
func TestService_SuccessfulReconnect(t *testing.T) {
	rec := &eventRecorder{}
	reconnector := &stubReconnector{result: true}
	s := NewService(testConfig(), clock.New(), stubValidator{reachable: true},
		nil, nil, reconnector, rec.handler())
	s.StartSession(1)

	if !s.HandleFailure(context.Background(), validConn(), 1) {
		t.Error("expected recovery to succeed")
	}
	want := []string{interfaces.EventFailureDetected, interfaces.EventReconnecting}
	if !equalNames(rec.names(), want) {
		t.Errorf("expected events %v (no success event), got %v", want, rec.names())
	}
	if reconnector.callCount() != 1 {
		t.Errorf("expected one reconnect call, got %d", reconnector.callCount())
	}
}

// TestService_ConnectFailed 测试重连调用失败的原因码
func TestService_ConnectFailed(t *testing.T) {
	rec := &eventRecorder{}
	s := NewService(testConfig(), clock.New(), stubValidator{reachable: true},
		nil, nil, &stubReconnector{result: false}, rec.handler())
	s.StartSession(1)

	if s.HandleFailure(context.Background(), validConn(), 1) {
		t.Error("expected failure result")
	}
	if rec.lastReason() != interfaces.ReasonConnectFailed {
		t.Errorf("expected reason connect_failed, got %q", rec.lastReason())
	}
}

// TestService_NilConnection 测试无连接信息的原因码
func TestService_NilConnection(t *testing.T) {
	rec := &eventRecorder{}
	s := NewService(testConfig(), clock.New(), stubValidator{reachable: true},
		nil, nil, &stubReconnector{}, rec.handler())
	s.StartSession(1)

	if s.HandleFailure(context.Background(), nil, 1) {
		t.Error("expected failure result")
	}
	if rec.lastReason() != interfaces.ReasonNoConnection {
		t.Errorf("expected reason no_connection, got %q", rec.lastReason())
	}
}

// TestService_AdoptedConnection 测试接管连接不可重连
func TestService_AdoptedConnection(t *testing.T) {
	rec := &eventRecorder{}
	reconnector := &stubReconnector{result: true}
	s := NewService(testConfig(), clock.New(), stubValidator{reachable: true},
		nil, nil, reconnector, rec.handler())
	s.StartSession(1)

	conn := validConn()
	conn.Adopted = true
	if s.HandleFailure(context.Background(), conn, 1) {
		t.Error("expected failure result")
	}
	if rec.lastReason() != interfaces.ReasonInvalidConnection {
		t.Errorf("expected reason invalid_connection, got %q", rec.lastReason())
	}
	if reconnector.callCount() != 0 {
		t.Error("reconnector must not be invoked for adopted connection")
	}
}

// TestService_SelfHeal 测试自愈复测通过时跳过重连
func TestService_SelfHeal(t *testing.T) {
	rec := &eventRecorder{}
	reconnector := &stubReconnector{result: true}
	s := NewService(testConfig(), clock.New(), stubValidator{reachable: true},
		stubLoader{}, stubTester{success: true}, reconnector, rec.handler())
	s.StartSession(1)

	if !s.HandleFailure(context.Background(), validConn(), 1) {
		t.Error("expected self-heal to succeed")
	}
	want := []string{interfaces.EventFailureDetected}
	if !equalNames(rec.names(), want) {
		t.Errorf("expected only failure_detected, got %v", rec.names())
	}
	if reconnector.callCount() != 0 {
		t.Error("reconnector must not be invoked when connection self-healed")
	}
}

// TestService_SelfHealFailsThenReconnects 测试复测失败后继续重连
func TestService_SelfHealFailsThenReconnects(t *testing.T) {
	reconnector := &stubReconnector{result: true}
	s := NewService(testConfig(), clock.New(), stubValidator{reachable: true},
		stubLoader{}, stubTester{success: false}, reconnector, nil)
	s.StartSession(1)

	if !s.HandleFailure(context.Background(), validConn(), 1) {
		t.Error("expected reconnect to succeed after failed retest")
	}
	if reconnector.callCount() != 1 {
		t.Errorf("expected one reconnect call, got %d", reconnector.callCount())
	}
}

// TestService_LoadErrorSkipsRetest 测试配置加载失败时跳过复测
func TestService_LoadErrorSkipsRetest(t *testing.T) {
	reconnector := &stubReconnector{result: true}
	s := NewService(testConfig(), clock.New(), stubValidator{reachable: true},
		stubLoader{err: errors.New("no such file")}, stubTester{success: true}, reconnector, nil)
	s.StartSession(1)

	if !s.HandleFailure(context.Background(), validConn(), 1) {
		t.Error("expected reconnect to succeed")
	}
	if reconnector.callCount() != 1 {
		t.Errorf("expected fallthrough to reconnect, got %d calls", reconnector.callCount())
	}
}

// TestService_CancelDuringStabilization 测试稳定等待被取消打断
func TestService_CancelDuringStabilization(t *testing.T) {
	cfg := testConfig()
	cfg.StabilizationBuffer = time.Second
	rec := &eventRecorder{}
	reconnector := &stubReconnector{result: true}
	s := NewService(cfg, clock.New(), stubValidator{reachable: true},
		nil, nil, reconnector, rec.handler())
	s.StartSession(1)

	done := make(chan bool, 1)
	go func() {
		done <- s.HandleFailure(context.Background(), validConn(), 1)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected cancelled recovery to fail")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("HandleFailure did not return promptly after Cancel")
	}
	if reconnector.callCount() != 0 {
		t.Error("reconnector must not be invoked after cancel")
	}
	want := []string{interfaces.EventFailureDetected}
	if !equalNames(rec.names(), want) {
		t.Errorf("expected no events after cancel, got %v", rec.names())
	}
}

// TestService_StaleSessionSilent 测试陈旧会话号静默退出
func TestService_StaleSessionSilent(t *testing.T) {
	rec := &eventRecorder{}
	s := NewService(testConfig(), clock.New(), stubValidator{reachable: true},
		nil, nil, &stubReconnector{result: true}, rec.handler())
	s.StartSession(2)

	if s.HandleFailure(context.Background(), validConn(), 1) {
		t.Error("expected stale session to fail")
	}
	if len(rec.names()) != 0 {
		t.Errorf("expected no events for stale session, got %v", rec.names())
	}
}

// TestService_CancelIdempotent 测试重复取消
func TestService_CancelIdempotent(t *testing.T) {
	s := NewService(testConfig(), clock.New(), stubValidator{reachable: true},
		nil, nil, &stubReconnector{}, nil)
	s.StartSession(1)

	s.Cancel()
	s.Cancel()
	if !s.IsCancelled() {
		t.Error("expected cancelled state")
	}

	// 新会话清除取消状态
	s.StartSession(2)
	if s.IsCancelled() {
		t.Error("expected new session to clear cancellation")
	}
}
