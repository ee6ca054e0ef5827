package activemon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/xenray/go-connmon/pkg/interfaces"
)

// ============================================================================
//                              HTTP Prober
// ============================================================================

// DefaultProbeURL 默认探测目标（返回 204，无正文开销）
const DefaultProbeURL = "http://www.gstatic.com/generate_204"

// HTTPProber 经本地代理端口穿过隧道的 HTTP 探测器
//
// 用于区分「空闲」（隧道通畅但无流量）和「断开」（隧道已坏）。
type HTTPProber struct {
	client *http.Client
	target string
}

// 确保实现接口
var _ interfaces.Prober = (*HTTPProber)(nil)

// NewHTTPProber 创建 HTTP 探测器
//
// proxyPort 是传输进程暴露的本地 HTTP 代理端口；
// target 为空时使用 DefaultProbeURL。
func NewHTTPProber(proxyPort int, target string, timeout time.Duration) *HTTPProber {
	if target == "" {
		target = DefaultProbeURL
	}
	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("127.0.0.1:%d", proxyPort),
	}
	return &HTTPProber{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyURL(proxyURL),
				DisableKeepAlives: true,
			},
			Timeout: timeout,
		},
		target: target,
	}
}

// Probe 执行一次探测
func (p *HTTPProber) Probe(ctx context.Context) interfaces.ProbeResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.target, nil)
	if err != nil {
		return interfaces.ProbeResult{Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return interfaces.ProbeResult{RTT: time.Since(start), Err: err}
	}
	defer resp.Body.Close()

	return interfaces.ProbeResult{
		Success: resp.StatusCode < http.StatusInternalServerError,
		RTT:     time.Since(start),
	}
}

// ============================================================================
//                              NoOp Prober
// ============================================================================

// NoopProber 空操作探测器（用于禁用探测或测试）
type NoopProber struct{}

// 确保实现接口
var _ interfaces.Prober = (*NoopProber)(nil)

// NewNoopProber 创建空操作探测器
func NewNoopProber() *NoopProber {
	return &NoopProber{}
}

// Probe 总是返回成功
func (p *NoopProber) Probe(_ context.Context) interfaces.ProbeResult {
	return interfaces.ProbeResult{Success: true}
}

// ============================================================================
//                              Mock Prober (用于测试)
// ============================================================================

// MockProber 可控的模拟探测器
type MockProber struct {
	success    atomic.Bool
	probeCount atomic.Int64
}

// 确保实现接口
var _ interfaces.Prober = (*MockProber)(nil)

// NewMockProber 创建模拟探测器，默认探测成功
func NewMockProber() *MockProber {
	mp := &MockProber{}
	mp.success.Store(true)
	return mp
}

// SetSuccess 设置探测结果
func (p *MockProber) SetSuccess(success bool) {
	p.success.Store(success)
}

// Probe 返回预设的结果
func (p *MockProber) Probe(_ context.Context) interfaces.ProbeResult {
	p.probeCount.Add(1)
	return interfaces.ProbeResult{Success: p.success.Load()}
}

// ProbeCount 获取探测次数
func (p *MockProber) ProbeCount() int64 {
	return p.probeCount.Load()
}
