// internal/audio/ffmpeg.go

package audio

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"backend/internal/logger"
)

// FFmpeg 基于ffmpeg/ffprobe命令行的音频协作者实现。
// 包外无音频处理库，与原系统一样委托给外部工具。
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	TempDir     string
	TargetDBFS  float64 // 归一目标响度，0表示不做归一
}

// NewFFmpeg 创建ffmpeg工具封装，路径为空时使用PATH中的命令
func NewFFmpeg(ffmpegPath, ffprobePath, tempDir string, targetDBFS float64) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		TempDir:     tempDir,
		TargetDBFS:  targetDBFS,
	}
}

// Duration ffprobe读取音频时长
func (f *FFmpeg) Duration(path string) (float64, error) {
	out, err := exec.Command(f.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe执行失败: %w", err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("ffprobe输出解析失败: %w", err)
	}
	dur, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe时长字段非法: %q", probe.Format.Duration)
	}
	return dur, nil
}

// Normalize 响度归一。TargetDBFS为0或处理失败时退回原文件，
// 归一失败不是广播失败的理由。
func (f *FFmpeg) Normalize(path string) (string, error) {
	if f.TargetDBFS == 0 {
		return path, nil
	}

	outPath := filepath.Join(f.TempDir,
		fmt.Sprintf("normalized_%s.mp3", time.Now().Format("20060102_150405")))
	err := exec.Command(f.FFmpegPath,
		"-y", "-i", path,
		"-af", fmt.Sprintf("loudnorm=I=%.1f", f.TargetDBFS),
		outPath,
	).Run()
	if err != nil {
		logger.Warn("响度归一失败，使用原文件: %v", err)
		return path, nil
	}
	return outPath, nil
}

// Concat 拼接多段音频为单个mp3，跳过不存在的段落
func (f *FFmpeg) Concat(paths []string, outPath string) error {
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			logger.Warn("拼接段落不存在，已跳过: %s", p)
			continue
		}
		existing = append(existing, p)
	}
	if len(existing) == 0 {
		return fmt.Errorf("没有可拼接的音频段落")
	}

	// concat demuxer需要文件清单
	listPath := filepath.Join(f.TempDir,
		fmt.Sprintf("concat_%s.txt", time.Now().Format("20060102_150405.000")))
	var sb strings.Builder
	for _, p := range existing {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		sb.WriteString(fmt.Sprintf("file '%s'\n", abs))
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("拼接清单写入失败: %w", err)
	}
	defer os.Remove(listPath)

	err := exec.Command(f.FFmpegPath,
		"-y", "-f", "concat", "-safe", "0",
		"-i", listPath,
		"-ac", "2", "-ar", "44100", "-b:a", "192k",
		outPath,
	).Run()
	if err != nil {
		return fmt.Errorf("音频拼接失败: %w", err)
	}
	return nil
}
