// internal/audio/audio.go

// Package audio 定义广播核心消耗的外部音频协作者接口。
// 语音合成、响度归一、时长探测和实际播放都在核心范围之外，
// 核心只负责按顺序驱动它们。
package audio

// Synthesizer 文本转语音
type Synthesizer interface {
	Synthesize(text, lang string) (string, error)
}

// Prober 音频文件时长探测（秒）
type Prober interface {
	Duration(path string) (float64, error)
}

// Normalizer 响度归一，返回处理后的文件路径（可能等于输入路径）
type Normalizer interface {
	Normalize(path string) (string, error)
}

// Player 音频输出设备。Play阻塞到播放完成或被Stop打断。
type Player interface {
	Play(path string) error
	Stop()
}

// Concatenator 多段音频拼接成单个文件
type Concatenator interface {
	Concat(paths []string, outPath string) error
}

// Tones 起止提示音文件路径，文件不存在时对应段落跳过
type Tones struct {
	StartPath string
	EndPath   string
}
