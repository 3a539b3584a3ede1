// internal/packet/addressing.go

package packet

import (
	"fmt"

	"backend/internal/types"
)

// AddressingStrategy 坐标到报文字节/位的寻址策略。
// 两代硬件使用互不兼容的映射，通过配置显式选择，
// 不在代码里猜测哪一代是权威版本。
type AddressingStrategy interface {
	// Position 坐标对应的字节位置和位位置；该代硬件不支持的坐标返回 ok=false
	Position(z types.Zone) (bytePos, bitPos int, ok bool)
	// ZoneAt 从字节/位位置反推坐标
	ZoneAt(bytePos, bitPos int) (types.Zone, bool)
	// Name 配置中使用的策略名
	Name() string
}

// StrategyByName 按配置名选择寻址策略
func StrategyByName(name string) (AddressingStrategy, error) {
	switch name {
	case "grid", "":
		return GridAddressing{}, nil
	case "legacy":
		return LegacyAddressing{}, nil
	default:
		return nil, fmt.Errorf("未知的寻址策略: %s", name)
	}
}

// GridAddressing 新一代硬件的寻址方式。
// 每行占2个状态字节（1~8列、9~16列各一个），行间隔4字节：
// 1行=10/11, 2行=14/15, 3行=18/19, 4行=22/23。
type GridAddressing struct{}

func (GridAddressing) Name() string { return "grid" }

func (GridAddressing) Position(z types.Zone) (int, int, bool) {
	if !z.Valid() {
		return 0, 0, false
	}
	group := 0
	bitPos := z.Col - 1
	if z.Col > 8 {
		group = 1
		bitPos = z.Col - 9
	}
	bytePos := stateOffset + (z.Row-1)*4 + group
	return bytePos, bitPos, true
}

func (GridAddressing) ZoneAt(bytePos, bitPos int) (types.Zone, bool) {
	if bitPos < 0 || bitPos > 7 || bytePos < stateOffset {
		return types.Zone{}, false
	}
	offset := bytePos - stateOffset
	row := offset/4 + 1
	group := offset % 4
	if group > 1 || row < 1 || row > types.Rows {
		return types.Zone{}, false
	}
	col := bitPos + 1
	if group == 1 {
		col = bitPos + 9
	}
	z := types.Zone{Row: row, Col: col}
	return z, z.Valid()
}

// LegacyAddressing 旧一代硬件的寻址方式（早期抓包结果）。
// 只有1行支持16列（字节10/11），2~4行各占单字节且仅支持1~8列，
// 字节位置为12/15/16（中间存在硬件保留的空洞字节）。
type LegacyAddressing struct{}

var legacyRowBytes = map[int]int{2: 12, 3: 15, 4: 16}

func (LegacyAddressing) Name() string { return "legacy" }

func (LegacyAddressing) Position(z types.Zone) (int, int, bool) {
	if !z.Valid() {
		return 0, 0, false
	}
	if z.Row == 1 {
		if z.Col <= 8 {
			return stateOffset, z.Col - 1, true
		}
		return stateOffset + 1, z.Col - 9, true
	}
	if z.Col > 8 {
		// 旧硬件2~4行没有9~16列
		return 0, 0, false
	}
	return legacyRowBytes[z.Row], z.Col - 1, true
}

func (LegacyAddressing) ZoneAt(bytePos, bitPos int) (types.Zone, bool) {
	if bitPos < 0 || bitPos > 7 {
		return types.Zone{}, false
	}
	switch bytePos {
	case stateOffset:
		return types.Zone{Row: 1, Col: bitPos + 1}, true
	case stateOffset + 1:
		return types.Zone{Row: 1, Col: bitPos + 9}, true
	}
	for row, pos := range legacyRowBytes {
		if pos == bytePos {
			return types.Zone{Row: row, Col: bitPos + 1}, true
		}
	}
	return types.Zone{}, false
}
