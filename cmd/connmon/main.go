// connmon 命令行演示工具
//
// 对一个已运行的传输进程挂载监控：尾随其日志文件、轮询其
// Clash API，把监控事实、质量变更和重连事件打印到标准输出。
// 重连操作是空实现，仅用于观察子系统行为。
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	connmon "github.com/xenray/go-connmon"
	"github.com/xenray/go-connmon/config"
	"github.com/xenray/go-connmon/pkg/interfaces"
	"github.com/xenray/go-connmon/pkg/lib/log"
)

// noopReconnector 只打印不重连
type noopReconnector struct{}

func (noopReconnector) Reconnect(_ context.Context, configPath string, mode interfaces.Mode) bool {
	fmt.Printf("reconnect requested: config=%s mode=%s\n", configPath, mode)
	return false
}

func main() {
	var (
		logFile   = flag.String("log", "", "传输进程日志文件路径（必需）")
		port      = flag.Int("port", 9099, "传输进程 Clash API 端口")
		mode      = flag.String("mode", "vpn", "连接模式: vpn | proxy")
		transport = flag.String("transport", "", "传输类型（如 ws, xhttp）")
		verbose   = flag.Bool("v", false, "输出调试日志")
		version   = flag.Bool("version", false, "打印版本后退出")
	)
	flag.Parse()

	if *version {
		fmt.Println("connmon", connmon.Version)
		return
	}
	if *logFile == "" {
		fmt.Fprintln(os.Stderr, "usage: connmon -log <path> [-port N] [-mode vpn|proxy]")
		os.Exit(2)
	}
	if *verbose {
		log.SetLevel(slog.LevelDebug)
	}

	cfg := config.NewConfig()
	cfg.Metrics = cfg.Metrics.WithPort(*port)

	m, err := connmon.New(
		connmon.WithConfig(cfg),
		connmon.WithLogFile(*logFile),
		connmon.WithReconnector(noopReconnector{}),
		connmon.WithFactHandler(func(fact interfaces.MonitorFact, sessionID int64) {
			fmt.Printf("[fact] %s session=%d\n", fact, sessionID)
		}),
		connmon.WithQualityHandler(func(q interfaces.NetworkQuality) {
			fmt.Printf("[quality] %s\n", q)
		}),
		connmon.WithReconnectEventHandler(func(name string, data map[string]string) {
			fmt.Printf("[event] %s %v\n", name, data)
		}),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init failed:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "start failed:", err)
		os.Exit(1)
	}

	session := m.ConnectionEstablished(interfaces.Mode(*mode), *transport)
	fmt.Printf("monitoring started: session=%d quality=%s\n", session, m.Quality())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	m.ConnectionClosed()
	if err := m.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown error:", err)
	}
}
