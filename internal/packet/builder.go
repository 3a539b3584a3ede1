// internal/packet/builder.go

package packet

import (
	"backend/internal/logger"
	"backend/internal/types"
)

// Builder 控制报文生成器。
// 按寻址策略把房间号集合编码成46字节的设备开关报文。
type Builder struct {
	strategy AddressingStrategy
}

// NewBuilder 创建报文生成器
func NewBuilder(strategy AddressingStrategy) *Builder {
	return &Builder{strategy: strategy}
}

// EncodeActivate 生成激活指定房间集合的状态报文。
// 非法房间号跳过并告警，不中断编码（硬件按位独立，部分编码有效）。
func (b *Builder) EncodeActivate(rooms []int) []byte {
	frame := newBaseFrame()
	for _, room := range rooms {
		z, ok := types.ZoneFromRoomID(room)
		if !ok {
			logger.Warn("忽略非法房间号: %d", room)
			continue
		}
		bytePos, bitPos, ok := b.strategy.Position(z)
		if !ok {
			logger.Warn("寻址策略 %s 不支持坐标 (%d, %d)，已跳过", b.strategy.Name(), z.Row, z.Col)
			continue
		}
		frame[bytePos] |= 1 << bitPos
	}
	return finalizeFrame(frame)
}

// EncodeZone 生成单个分区的开/关报文（保留当前其他分区为关闭状态）
func (b *Builder) EncodeZone(z types.Zone, on bool) ([]byte, bool) {
	if !z.Valid() {
		logger.Warn("非法坐标: (%d, %d)", z.Row, z.Col)
		return nil, false
	}
	bytePos, bitPos, ok := b.strategy.Position(z)
	if !ok {
		logger.Warn("寻址策略 %s 不支持坐标 (%d, %d)", b.strategy.Name(), z.Row, z.Col)
		return nil, false
	}
	frame := newBaseFrame()
	if on {
		frame[bytePos] |= 1 << bitPos
	}
	return finalizeFrame(frame), true
}

// EncodeAllOff 生成全部关闭报文（状态字节全0）
func (b *Builder) EncodeAllOff() []byte {
	return finalizeFrame(newBaseFrame())
}

// Strategy 当前使用的寻址策略
func (b *Builder) Strategy() AddressingStrategy {
	return b.strategy
}
