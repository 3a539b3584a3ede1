// internal/audio/tts.go

package audio

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"backend/internal/logger"
)

// CommandSynthesizer 把文本转语音委托给外部命令行工具。
// 命令模板中的 {text}、{lang}、{out} 占位符在执行前替换。
type CommandSynthesizer struct {
	Command string   // 可执行文件（例: "edge-tts"）
	Args    []string // 参数模板
	OutDir  string   // 合成产物目录
	Lang    string   // 默认语言，Synthesize传空时使用
}

// NewCommandSynthesizer 创建命令行TTS封装
func NewCommandSynthesizer(command string, args []string, outDir, lang string) *CommandSynthesizer {
	if lang == "" {
		lang = "zh-CN"
	}
	return &CommandSynthesizer{
		Command: command,
		Args:    args,
		OutDir:  outDir,
		Lang:    lang,
	}
}

// Synthesize 合成文本为音频文件，返回产物路径
func (s *CommandSynthesizer) Synthesize(text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("合成文本为空")
	}
	if lang == "" {
		lang = s.Lang
	}

	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("合成目录创建失败: %w", err)
	}
	outPath := filepath.Join(s.OutDir,
		fmt.Sprintf("tts_%s.mp3", time.Now().Format("20060102_150405.000")))

	args := make([]string, 0, len(s.Args))
	for _, a := range s.Args {
		a = strings.ReplaceAll(a, "{text}", text)
		a = strings.ReplaceAll(a, "{lang}", lang)
		a = strings.ReplaceAll(a, "{out}", outPath)
		args = append(args, a)
	}

	logger.Debug("语音合成: %d 字 -> %s", len([]rune(text)), outPath)
	if out, err := exec.Command(s.Command, args...).CombinedOutput(); err != nil {
		return "", fmt.Errorf("语音合成命令失败: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("语音合成未产出文件: %s", outPath)
	}
	return outPath, nil
}
