// Package netcheck 提供物理网络可达性校验
//
// 并发探测一组高可用解析器端点，任一端点完成 DNS 确认查询
// 即判定可达。仅 TCP 连通不算数：强制门户会劫持 53 端口的
// TCP 握手，但伪造不了真实解析器的应答。
package netcheck

import (
	"context"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
	"github.com/xenray/go-connmon/pkg/lib/log"
)

var logger = log.Logger("core/netcheck")

// ============ 可达性校验器 ============

// Validator 实现 interfaces.NetworkValidator
type Validator struct {
	cfg config.NetcheckConfig
}

var _ interfaces.NetworkValidator = (*Validator)(nil)

// NewValidator 创建可达性校验器
func NewValidator(cfg config.NetcheckConfig) *Validator {
	return &Validator{cfg: cfg}
}

// CheckInternetConnection 物理网络是否可达
//
// 所有端点并发探测，第一个成功立即取消其余探测并返回 true；
// 全部失败返回 false 并把聚合错误记入日志。
func (v *Validator) CheckInternetConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)
	success := make(chan struct{}, 1)

	var errs error
	errCh := make(chan error, len(v.cfg.Resolvers))

	for _, endpoint := range v.cfg.Resolvers {
		endpoint := endpoint
		group.Go(func() error {
			if err := v.probe(gctx, endpoint); err != nil {
				errCh <- err
				return nil
			}
			select {
			case success <- struct{}{}:
			default:
			}
			// 返回非 nil 错误让 errgroup 取消其余探测
			return context.Canceled
		})
	}

	_ = group.Wait()
	close(errCh)
	for err := range errCh {
		errs = multierr.Append(errs, err)
	}

	select {
	case <-success:
		return true
	default:
		logger.Warn("物理网络不可达", "err", errs)
		return false
	}
}

// probe 对单个解析器端点做一次确认查询
func (v *Validator) probe(ctx context.Context, endpoint string) error {
	client := &dns.Client{Timeout: v.cfg.Timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(v.cfg.QueryName), dns.TypeA)

	resp, rtt, err := client.ExchangeContext(ctx, msg, endpoint)
	if err != nil {
		return err
	}
	logger.Debug("解析器应答", "endpoint", endpoint, "rtt", rtt, "rcode", resp.Rcode)
	return nil
}
