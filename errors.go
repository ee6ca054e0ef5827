package connmon

import "errors"

// 公共错误定义
var (
	// ErrNotStarted 监控器未启动
	ErrNotStarted = errors.New("monitor not started")

	// ErrAlreadyStarted 监控器已启动
	ErrAlreadyStarted = errors.New("monitor already started")

	// ErrClosed 监控器已关闭
	ErrClosed = errors.New("monitor closed")

	// ErrNoLogSource 未配置日志源
	ErrNoLogSource = errors.New("no log source configured")

	// ErrNoReconnector 未配置重连操作
	ErrNoReconnector = errors.New("no reconnector configured")
)
