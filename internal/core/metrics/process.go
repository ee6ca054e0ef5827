package metrics

import (
	"context"
	"os"
	"syscall"

	"github.com/benbjohnson/clock"

	"github.com/xenray/go-connmon/pkg/interfaces"
)

// ============ 进程存活兜底 ============

// ProcessLivenessProvider 仅做 PID 存活检测的兜底指标源
//
// 传输进程没有任何控制面可用时的最后手段：流量计数恒为 0，
// 主动监控因此只能走失败保障探测路径，但进程崩溃仍能被发现。
type ProcessLivenessProvider struct {
	pidFunc func() int
	clock   clock.Clock
}

var _ interfaces.MetricsProvider = (*ProcessLivenessProvider)(nil)

// NewProcessLivenessProvider 创建进程存活指标源
//
// pidFunc 返回当前传输进程 PID，无进程时返回 0。
func NewProcessLivenessProvider(pidFunc func() int, clk clock.Clock) *ProcessLivenessProvider {
	return &ProcessLivenessProvider{pidFunc: pidFunc, clock: clk}
}

// FetchSnapshot 返回仅含存活位的快照
func (p *ProcessLivenessProvider) FetchSnapshot(_ context.Context) (*interfaces.MetricsSnapshot, error) {
	return &interfaces.MetricsSnapshot{
		Timestamp:    p.clock.Now(),
		ProcessAlive: p.alive(),
	}, nil
}

// alive 用信号 0 探测进程是否存在
func (p *ProcessLivenessProvider) alive() bool {
	pid := p.pidFunc()
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
