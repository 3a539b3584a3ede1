// internal/broadcast/job.go

package broadcast

import (
	"fmt"
	"time"

	"backend/internal/audio"
	"backend/internal/logger"
)

// 任务类别
const (
	KindText  = "text"
	KindAudio = "audio"
)

const (
	minTextSeconds     = 3.0  // 文本播报时长下限
	perRuneSeconds     = 0.3  // 每字估算时长
	fallbackAudioSecs  = 30.0 // 探测失败时的音频时长兜底
	postPlaybackSettle = 500 * time.Millisecond
)

// Job 一次待执行的广播任务。
// 文本任务在激活分区之前先合成语音，避免占着分区等TTS。
type Job struct {
	ID        string
	Kind      string
	Text      string
	Lang      string
	AudioPath string
	Targets   []string // 原始目标名，记录与事件用
	Rooms     []int    // 解析后的房间号
	SkipTones bool     // 预览审批通过的任务已经拼好提示音

	EstimatedDuration float64 // 秒，不含提示音
	EnqueuedAt        time.Time
}

// newJobID 毫秒时间戳ID，队列是单生产入口，毫秒粒度不会碰撞
func newJobID() string {
	return fmt.Sprintf("job_%d", time.Now().UnixMilli())
}

// estimateText 文本播报时长估算：每字0.3秒，下限3秒
func estimateText(text string) float64 {
	est := perRuneSeconds * float64(len([]rune(text)))
	if est < minTextSeconds {
		return minTextSeconds
	}
	return est
}

// estimateAudio 探测音频时长，探测失败用30秒兜底
func estimateAudio(prober audio.Prober, path string) float64 {
	if prober != nil {
		if dur, err := prober.Duration(path); err == nil && dur > 0 {
			return dur
		} else if err != nil {
			logger.Warn("音频时长探测失败，使用兜底估算: %v", err)
		}
	}
	return fallbackAudioSecs
}
