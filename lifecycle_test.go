package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// TestRunPurgesScratchAcrossLifecycle 完整驱动 run()：启动时清空遗留
// 工件，收到 SIGINT 后优雅退出并再次清空暂存目录。
func TestRunPurgesScratchAcrossLifecycle(t *testing.T) {
	scratch := t.TempDir()
	stale := filepath.Join(scratch, "stale.bin")
	if err := os.WriteFile(stale, []byte("left over from a previous run"), 0o644); err != nil {
		t.Fatalf("写入遗留文件失败: %v", err)
	}

	port := freeListenPort(t)
	configPath := writeConfigFile(t, fmt.Sprintf(`
ListenPort = %d
ScratchPath = "%s"
`, port, scratch))

	useBufferWriters(t)

	done := make(chan int, 1)
	go func() {
		done <- run(cliOptions{configPath: configPath})
	}()

	waitForStatus(t, port)

	// 启动清理应已移除上一个进程的遗留工件。
	if _, err := os.Stat(stale); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("启动时应清空暂存目录, got %v", err)
	}

	// 服务运行期间落盘的工件，退出清理要兜底移除。
	leftover := filepath.Join(scratch, "mid-flight.bin")
	if err := os.WriteFile(leftover, []byte("never retrieved"), 0o644); err != nil {
		t.Fatalf("写入运行期工件失败: %v", err)
	}

	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("发送 SIGINT 失败: %v", err)
	}

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("优雅退出应返回 0, got %d", code)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("收到 SIGINT 后 run 未能及时退出")
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatalf("读取暂存目录失败: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("退出时应清空暂存目录, got %v", entries)
	}
}

// freeListenPort 申请一个空闲 TCP 端口后立即释放，供服务绑定。
func freeListenPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("无法申请空闲端口: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}

// waitForStatus 轮询诊断接口直到服务就绪。
func waitForStatus(t *testing.T, port int) {
	t.Helper()
	url := fmt.Sprintf("http://127.0.0.1:%d/-/status", port)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("服务在 %s 上未能就绪", url)
}
