package passivemon

import (
	"bufio"
	"io"
	"sync"

	"github.com/xenray/go-connmon/pkg/interfaces"
)

// ============================================================================
//                              ReaderLogSource
// ============================================================================

// ReaderLogSource 包装 io.Reader（如进程 stdout 管道）的日志源
//
// 读到 EOF 或出错时关闭行通道；错误通过 Err() 暴露。
type ReaderLogSource struct {
	lines chan string

	errMu sync.Mutex
	err   error
}

// 确保实现接口
var _ interfaces.LogSource = (*ReaderLogSource)(nil)

// NewReaderLogSource 创建并立即开始扫描
func NewReaderLogSource(r io.Reader) *ReaderLogSource {
	s := &ReaderLogSource{
		lines: make(chan string, 64),
	}
	go s.scan(r)
	return s
}

// Lines 日志行通道
func (s *ReaderLogSource) Lines() <-chan string {
	return s.lines
}

// Err 返回导致通道关闭的错误（正常 EOF 为 nil）
func (s *ReaderLogSource) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// scan 逐行扫描直到 EOF
func (s *ReaderLogSource) scan(r io.Reader) {
	defer close(s.lines)

	scanner := bufio.NewScanner(r)
	// 传输进程的单行日志可能很长（完整 URL、堆栈）
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		s.lines <- scanner.Text()
	}

	if err := scanner.Err(); err != nil {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()
	}
}
