package netcheck

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"

	"github.com/xenray/go-connmon/config"
)

// startTestResolver 在本地随机端口起一个应答 A 查询的 DNS 服务
func startTestResolver(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(req)
		rr, _ := dns.NewRR(req.Question[0].Name + " 60 IN A 93.184.216.34")
		if rr != nil {
			resp.Answer = append(resp.Answer, rr)
		}
		_ = w.WriteMsg(resp)
	})

	server := &dns.Server{PacketConn: pc, Handler: mux}
	go func() { _ = server.ActivateAndServe() }()
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func testConfig(resolvers ...string) config.NetcheckConfig {
	cfg := config.DefaultNetcheckConfig()
	cfg.Resolvers = resolvers
	cfg.Timeout = time.Second
	return cfg
}

// TestValidator_Reachable 测试本地解析器应答判定可达
func TestValidator_Reachable(t *testing.T) {
	addr := startTestResolver(t)
	v := NewValidator(testConfig(addr))

	if !v.CheckInternetConnection(context.Background()) {
		t.Error("expected reachable with answering resolver")
	}
}

// TestValidator_AnySuccessWins 测试任一端点成功即判定可达
func TestValidator_AnySuccessWins(t *testing.T) {
	addr := startTestResolver(t)
	// 前两个端点不可达，第三个正常
	v := NewValidator(testConfig("127.0.0.1:1", "127.0.0.1:2", addr))

	if !v.CheckInternetConnection(context.Background()) {
		t.Error("expected reachable when one resolver answers")
	}
}

// TestValidator_Unreachable 测试全部端点失败判定不可达
func TestValidator_Unreachable(t *testing.T) {
	v := NewValidator(testConfig("127.0.0.1:1"))

	if v.CheckInternetConnection(context.Background()) {
		t.Error("expected unreachable with dead resolver")
	}
}

// TestValidator_ContextCancelled 测试上下文取消立即返回不可达
func TestValidator_ContextCancelled(t *testing.T) {
	v := NewValidator(testConfig("127.0.0.1:1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if v.CheckInternetConnection(ctx) {
		t.Error("expected unreachable with cancelled context")
	}
}
