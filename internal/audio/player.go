// internal/audio/player.go

package audio

import (
	"fmt"
	"os/exec"
	"sync"

	"backend/internal/logger"
)

// ExecPlayer 基于ffplay的播放器实现。
// Play阻塞到子进程退出；Stop杀掉进程打断播放。
type ExecPlayer struct {
	FFplayPath string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewExecPlayer 创建ffplay播放器，路径为空时使用PATH中的命令
func NewExecPlayer(ffplayPath string) *ExecPlayer {
	if ffplayPath == "" {
		ffplayPath = "ffplay"
	}
	return &ExecPlayer{FFplayPath: ffplayPath}
}

// Play 播放音频文件，阻塞到结束
func (p *ExecPlayer) Play(path string) error {
	cmd := exec.Command(p.FFplayPath, "-nodisp", "-autoexit", "-loglevel", "quiet", path)

	p.mu.Lock()
	if p.cmd != nil {
		p.mu.Unlock()
		return fmt.Errorf("已有音频正在播放")
	}
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("播放器启动失败: %w", err)
	}
	p.cmd = cmd
	p.mu.Unlock()

	err := cmd.Wait()

	p.mu.Lock()
	p.cmd = nil
	p.mu.Unlock()

	if err != nil {
		// Stop杀进程也会走到这里，调用方把它当作播放结束处理
		logger.Debug("播放进程退出: %v", err)
	}
	return nil
}

// Stop 打断当前播放，未在播放时为空操作
func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}
