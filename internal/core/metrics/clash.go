package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"syscall"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
)

// ============ Clash API 轮询 ============

// ClashAPIProvider 轮询 Clash API 的 /connections 端点
//
// 该端点返回累计上下行字节数，正好是采样所需的单调计数。
// 连接被拒绝说明控制面没起来，按进程死亡处理而不是报错。
type ClashAPIProvider struct {
	baseURL string
	client  *http.Client
	clock   clock.Clock
}

var _ interfaces.MetricsProvider = (*ClashAPIProvider)(nil)

// NewClashAPIProvider 创建 Clash API 指标源
func NewClashAPIProvider(cfg config.MetricsConfig, clk clock.Clock) *ClashAPIProvider {
	return &ClashAPIProvider{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", cfg.Port),
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		clock:   clk,
	}
}

// connectionsResponse /connections 端点响应体
type connectionsResponse struct {
	DownloadTotal uint64 `json:"downloadTotal"`
	UploadTotal   uint64 `json:"uploadTotal"`
}

// FetchSnapshot 拉取当前指标快照
func (p *ClashAPIProvider) FetchSnapshot(ctx context.Context) (*interfaces.MetricsSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/connections", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if isConnRefused(err) {
			// 控制面不在线：进程已死，这是有效观测而非采样失败
			return &interfaces.MetricsSnapshot{
				Timestamp:    p.clock.Now(),
				ProcessAlive: false,
			}, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clash api 响应异常: %s", resp.Status)
	}
	var body connectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("clash api 响应解析失败: %w", err)
	}
	return &interfaces.MetricsSnapshot{
		Timestamp:     p.clock.Now(),
		UplinkBytes:   body.UploadTotal,
		DownlinkBytes: body.DownloadTotal,
		ProcessAlive:  true,
	}, nil
}

// isConnRefused 判断错误链中是否有连接拒绝
func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
