package quality

import (
	"testing"

	"github.com/xenray/go-connmon/pkg/interfaces"
)

// TestParseLogLine_Classification 测试日志行分类
func TestParseLogLine_Classification(t *testing.T) {
	cases := []struct {
		name string
		line string
		want interfaces.ParseOutcome
	}{
		{"timeout", "2026/01/01 [Error] transport: dial timeout", interfaces.ParseError},
		{"io timeout", "dial tcp 1.2.3.4:443: i/o timeout", interfaces.ParseError},
		{"deadline", "context deadline exceeded", interfaces.ParseError},
		{"reset", "read: connection reset by peer", interfaces.ParseError},
		{"refused", "dial: connection refused", interfaces.ParseError},
		{"outbound", "failed to process outbound traffic", interfaces.ParseError},
		{"dns", "dns: exchange failed", interfaces.ParseError},
		{"no host", "lookup example.com: no such host", interfaces.ParseError},
		{"tls", "TLS handshake failed: EOF", interfaces.ParseError},
		{"xtls", "XTLS rejected early data", interfaces.ParseError},
		{"success", "connection established to proxy.example.com", interfaces.ParseSuccess},
		{"handshake ok", "handshake completed in 89ms", interfaces.ParseSuccess},
		{"noise", "2026/01/01 12:00:00 [Info] stats flushed", interfaces.ParseNone},
		{"empty", "", interfaces.ParseNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, _ := newTestObserver()
			if got := o.ParseLogLine(tc.line); got != tc.want {
				t.Errorf("ParseLogLine(%q) = %v, want %v", tc.line, got, tc.want)
			}
		})
	}
}

// TestParseLogLine_CaseInsensitive 测试大小写不敏感匹配
func TestParseLogLine_CaseInsensitive(t *testing.T) {
	o, _ := newTestObserver()
	if got := o.ParseLogLine("CONNECTION RESET BY PEER"); got != interfaces.ParseError {
		t.Errorf("expected ParseError for uppercase line, got %v", got)
	}
}

// TestParseLogLine_FeedsObserver 测试分类结果进入错误统计
func TestParseLogLine_FeedsObserver(t *testing.T) {
	o, _ := newTestObserver()
	o.ParseLogLine("read: connection reset by peer")
	if stats := o.GetStats(); stats.WindowErrors != 1 {
		t.Errorf("expected 1 moderate error after parsed reset, got %d", stats.WindowErrors)
	}
}
