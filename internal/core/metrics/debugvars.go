package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// ============ expvar 轮询 ============

// DebugVarsProvider 轮询 Go expvar 的 /debug/vars 端点
//
// 适用于暴露 expvar 的传输进程。流量计数从 uplinkTotal /
// downlinkTotal 两个变量取得，缺失时按 0 处理，能拿到文档
// 本身就证明进程存活。
type DebugVarsProvider struct {
	url    string
	client *http.Client
	clock  clock.Clock
}

var _ interfaces.MetricsProvider = (*DebugVarsProvider)(nil)

// NewDebugVarsProvider 创建 expvar 指标源
func NewDebugVarsProvider(cfg config.MetricsConfig, clk clock.Clock) *DebugVarsProvider {
	return &DebugVarsProvider{
		url:    fmt.Sprintf("http://127.0.0.1:%d/debug/vars", cfg.Port),
		client: &http.Client{Timeout: cfg.FetchTimeout},
		clock:  clk,
	}
}

// debugVarsDocument /debug/vars 响应中关心的变量
type debugVarsDocument struct {
	UplinkTotal      uint64 `json:"uplinkTotal"`
	DownlinkTotal    uint64 `json:"downlinkTotal"`
	OutboundFailures int    `json:"outboundFailures"`
}

// FetchSnapshot 拉取当前指标快照
func (p *DebugVarsProvider) FetchSnapshot(ctx context.Context) (*interfaces.MetricsSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if isConnRefused(err) {
			return &interfaces.MetricsSnapshot{
				Timestamp:    p.clock.Now(),
				ProcessAlive: false,
			}, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("debug vars 响应异常: %s", resp.Status)
	}
	var doc debugVarsDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("debug vars 解析失败: %w", err)
	}
	return &interfaces.MetricsSnapshot{
		Timestamp:        p.clock.Now(),
		UplinkBytes:      doc.UplinkTotal,
		DownlinkBytes:    doc.DownlinkTotal,
		OutboundFailures: doc.OutboundFailures,
		ProcessAlive:     true,
	}, nil
}
