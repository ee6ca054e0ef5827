package passivemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// collectLines 在超时前从源收集 n 行
func collectLines(t *testing.T, src *FileLogSource, n int) []string {
	t.Helper()
	var lines []string
	deadline := time.After(3 * time.Second)
	for len(lines) < n {
		select {
		case line, ok := <-src.Lines():
			if !ok {
				t.Fatalf("source closed early: %v", src.Err())
			}
			lines = append(lines, line)
		case <-deadline:
			t.Fatalf("timed out waiting for %d lines, got %v", n, lines)
		}
	}
	return lines
}

// appendFile 向文件追加内容
func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// TestFileLogSource_TailsNewLines 测试只输出打开后的新增行
func TestFileLogSource_TailsNewLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proc.log")
	appendFile(t, path, "old line\n")

	src := NewFileLogSource(path, 10*time.Millisecond)
	src.Start()
	defer src.Close()

	// 等首次打开（跳到末尾）完成后再追加
	time.Sleep(50 * time.Millisecond)
	appendFile(t, path, "line one\nline two\n")

	lines := collectLines(t, src, 2)
	if lines[0] != "line one" || lines[1] != "line two" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

// TestFileLogSource_PartialLineCarry 测试不完整行延迟到补全后输出
func TestFileLogSource_PartialLineCarry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proc.log")
	appendFile(t, path, "")

	src := NewFileLogSource(path, 10*time.Millisecond)
	src.Start()
	defer src.Close()

	time.Sleep(50 * time.Millisecond)
	appendFile(t, path, "partial")

	// 无换行时不应有输出
	select {
	case line := <-src.Lines():
		t.Fatalf("premature line: %q", line)
	case <-time.After(100 * time.Millisecond):
	}

	appendFile(t, path, " completed\n")
	lines := collectLines(t, src, 1)
	if lines[0] != "partial completed" {
		t.Errorf("unexpected line: %q", lines[0])
	}
}

// TestFileLogSource_Rotation 测试轮转后的文件从头读
func TestFileLogSource_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proc.log")
	appendFile(t, path, "old\n")

	src := NewFileLogSource(path, 10*time.Millisecond)
	src.Start()
	defer src.Close()

	time.Sleep(50 * time.Millisecond)

	// 模拟轮转：原子替换为新文件
	next := filepath.Join(dir, "proc.log.next")
	appendFile(t, next, "fresh line\n")
	if err := os.Rename(next, path); err != nil {
		t.Fatalf("rename failed: %v", err)
	}

	lines := collectLines(t, src, 1)
	if lines[0] != "fresh line" {
		t.Errorf("expected new file read from start, got %q", lines[0])
	}
}

// TestFileLogSource_MissingFile 测试文件出现前保持等待
func TestFileLogSource_MissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.log")

	src := NewFileLogSource(path, 10*time.Millisecond)
	src.Start()
	defer src.Close()

	time.Sleep(50 * time.Millisecond)

	// 文件以完整内容原子出现，首次打开应跳过既有行
	seed := filepath.Join(dir, "late.log.seed")
	appendFile(t, seed, "ignored seed\n")
	if err := os.Rename(seed, path); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	appendFile(t, path, "appended\n")

	lines := collectLines(t, src, 1)
	if lines[0] != "appended" {
		t.Errorf("unexpected line: %q", lines[0])
	}
}

// TestFileLogSource_CloseIdempotent 测试关闭后通道关闭
func TestFileLogSource_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proc.log")
	appendFile(t, path, "")

	src := NewFileLogSource(path, 10*time.Millisecond)
	src.Start()
	src.Close()
	src.Close()

	if _, ok := <-src.Lines(); ok {
		t.Error("expected lines channel closed")
	}
}
