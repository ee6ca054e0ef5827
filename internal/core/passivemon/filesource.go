package passivemon

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/xenray/go-connmon/pkg/interfaces"
)

// ============================================================================
//                              FileLogSource
// ============================================================================

// FileLogSource 轮询式文件日志源
//
// 每个轮询周期检查一次日志文件：文件出现后打开并跳到末尾，
// 之后只输出新增行；检测到轮转（文件被替换或被截断）时从头重读。
// 读取错误暂停一个周期后继续，不终止源。
type FileLogSource struct {
	path     string
	interval time.Duration

	lines chan string

	errMu sync.Mutex
	err   error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// 确保实现接口
var _ interfaces.LogSource = (*FileLogSource)(nil)

// NewFileLogSource 创建文件日志源
func NewFileLogSource(path string, interval time.Duration) *FileLogSource {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FileLogSource{
		path:     path,
		interval: interval,
		lines:    make(chan string, 64),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动轮询；幂等
func (s *FileLogSource) Start() {
	s.once.Do(func() {
		s.wg.Add(1)
		go s.tailLoop()
	})
}

// Close 停止轮询并关闭行通道
func (s *FileLogSource) Close() {
	s.cancel()
	s.wg.Wait()
}

// Lines 日志行通道
func (s *FileLogSource) Lines() <-chan string {
	return s.lines
}

// Err 返回导致通道关闭的错误（正常关闭为 nil）
func (s *FileLogSource) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// ============================================================================
//                              轮询实现
// ============================================================================

// tailState 单个打开文件的读取状态
type tailState struct {
	file    *os.File
	reader  *bufio.Reader
	info    os.FileInfo // 打开时的元信息，用于轮转判定
	offset  int64       // 已消费的字节偏移
	partial string      // 未以换行结束的残余
}

func (t *tailState) close() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}

// tailLoop 文件轮询主循环
func (s *FileLogSource) tailLoop() {
	defer s.wg.Done()
	defer close(s.lines)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var st tailState
	defer st.close()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if !s.poll(&st) {
				return
			}
		}
	}
}

// poll 执行一次轮询；返回 false 表示应退出
func (s *FileLogSource) poll(st *tailState) bool {
	stat, err := os.Stat(s.path)
	if err != nil {
		// 文件尚不存在或暂不可读：关掉旧句柄，等它出现
		st.close()
		return true
	}

	if st.file == nil {
		f, err := os.Open(s.path)
		if err != nil {
			return true
		}
		// 首次打开跳到末尾，只关心新增内容
		offset, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return true
		}
		st.file = f
		st.reader = bufio.NewReader(f)
		st.info = stat
		st.offset = offset
		st.partial = ""
	} else if s.rotated(st, stat) {
		st.close()
		f, err := os.Open(s.path)
		if err != nil {
			return true
		}
		// 轮转后的新文件从头读
		st.file = f
		st.reader = bufio.NewReader(f)
		st.info = stat
		st.offset = 0
		st.partial = ""
	}

	return s.drain(st)
}

// rotated 判定文件是否被轮转
func (s *FileLogSource) rotated(st *tailState, stat os.FileInfo) bool {
	// 文件被替换（inode 变化；Windows 上按底层文件标识比较）
	if !os.SameFile(st.info, stat) {
		return true
	}
	// 文件被截断重建
	return stat.Size() < st.offset
}

// drain 读空当前可用的行；返回 false 表示应退出
func (s *FileLogSource) drain(st *tailState) bool {
	for {
		chunk, err := st.reader.ReadString('\n')
		st.offset += int64(len(chunk))

		if err == nil {
			line := st.partial + strings.TrimRight(chunk, "\r\n")
			st.partial = ""
			if !s.send(line) {
				return false
			}
			continue
		}

		// EOF：残余留到下一轮，其他错误下一轮重试
		st.partial += chunk
		return true
	}
}

// send 发送一行；返回 false 表示源已关闭
func (s *FileLogSource) send(line string) bool {
	select {
	case s.lines <- line:
		return true
	case <-s.ctx.Done():
		return false
	}
}
