package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
	"github.com/xenray/go-connmon/pkg/lib/log"
)

var streamLogger = log.Logger("core/metrics/stream")

// ============ WebSocket 流式指标 ============

// TrafficStreamProvider 订阅 Clash API 的 /traffic WebSocket 流
//
// 流中每条消息是上一秒的速率，本地累加成单调计数以满足
// 快照契约。连接断开按指数退避重拨；断线期间快照报告进程
// 死亡，重连成功后计数继续累加而不清零。
type TrafficStreamProvider struct {
	url   string
	cfg   config.MetricsConfig
	clock clock.Clock

	uplink    atomic.Uint64
	downlink  atomic.Uint64
	connected atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ interfaces.MetricsProvider = (*TrafficStreamProvider)(nil)

// NewTrafficStreamProvider 创建流式指标源
func NewTrafficStreamProvider(cfg config.MetricsConfig, clk clock.Clock) *TrafficStreamProvider {
	return &TrafficStreamProvider{
		url:   fmt.Sprintf("ws://127.0.0.1:%d/traffic", cfg.Port),
		cfg:   cfg,
		clock: clk,
	}
}

// trafficMessage /traffic 流单条消息
type trafficMessage struct {
	Up   uint64 `json:"up"`
	Down uint64 `json:"down"`
}

// Start 启动订阅循环
func (p *TrafficStreamProvider) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
}

// Stop 停止订阅并等待循环退出
func (p *TrafficStreamProvider) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run 订阅循环：连接 → 消费 → 断线退避重拨
func (p *TrafficStreamProvider) run(ctx context.Context) {
	defer close(p.done)
	backoff := p.cfg.RedialMin
	for {
		if err := p.consume(ctx); err != nil {
			streamLogger.Debug("traffic 流断开", "err", err)
		}
		p.connected.Store(false)
		if ctx.Err() != nil {
			return
		}

		timer := p.clock.Timer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
		if backoff > p.cfg.RedialMax {
			backoff = p.cfg.RedialMax
		}
	}
}

// consume 单次连接的消费循环
func (p *TrafficStreamProvider) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	p.connected.Store(true)
	streamLogger.Debug("traffic 流已连接", "url", p.url)

	// ctx 取消时强制关闭连接以打断阻塞的 ReadMessage
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg trafficMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			streamLogger.Debug("traffic 消息解析失败", "err", err)
			continue
		}
		p.uplink.Add(msg.Up)
		p.downlink.Add(msg.Down)
	}
}

// FetchSnapshot 返回本地累加的计数快照
func (p *TrafficStreamProvider) FetchSnapshot(_ context.Context) (*interfaces.MetricsSnapshot, error) {
	return &interfaces.MetricsSnapshot{
		Timestamp:     p.clock.Now(),
		UplinkBytes:   p.uplink.Load(),
		DownlinkBytes: p.downlink.Load(),
		ProcessAlive:  p.connected.Load(),
	}, nil
}
