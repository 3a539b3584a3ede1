package packet

import (
	"testing"

	"backend/internal/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	builder := NewBuilder(GridAddressing{})
	parser := NewParser(GridAddressing{})

	cases := []struct {
		name  string
		rooms []int
	}{
		{"空集合", []int{}},
		{"单个房间", []int{101}},
		{"跨行跨组", []int{101, 116, 302, 409}},
		{"全部房间", allRooms()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := builder.EncodeActivate(tc.rooms)
			if len(frame) != FrameSize {
				t.Fatalf("报文长度 = %d, 期望 %d", len(frame), FrameSize)
			}

			decoded, err := parser.DecodeStatus(frame)
			if err != nil {
				t.Fatalf("DecodeStatus: %v", err)
			}
			if len(decoded) != len(tc.rooms) {
				t.Fatalf("解码房间数 = %d, 期望 %d", len(decoded), len(tc.rooms))
			}
			want := make(map[int]bool, len(tc.rooms))
			for _, r := range tc.rooms {
				want[r] = true
			}
			for _, r := range decoded {
				if !want[r] {
					t.Errorf("解码出未编码的房间 %d", r)
				}
			}
		})
	}
}

func allRooms() []int {
	rooms := make([]int, 0, types.Total)
	for row := 1; row <= types.Rows; row++ {
		for col := 1; col <= types.Cols; col++ {
			rooms = append(rooms, types.Zone{Row: row, Col: col}.RoomID())
		}
	}
	return rooms
}

func TestEncodeActivateSkipsInvalidRooms(t *testing.T) {
	builder := NewBuilder(GridAddressing{})
	parser := NewParser(GridAddressing{})

	frame := builder.EncodeActivate([]int{101, 999, -5, 302})
	decoded, err := parser.DecodeStatus(frame)
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != 101 || decoded[1] != 302 {
		t.Fatalf("解码结果 = %v, 期望 [101 302]", decoded)
	}
}

func TestEncodeZone(t *testing.T) {
	builder := NewBuilder(GridAddressing{})
	parser := NewParser(GridAddressing{})

	frame, ok := builder.EncodeZone(types.Zone{Row: 2, Col: 10}, true)
	if !ok {
		t.Fatal("EncodeZone失败")
	}
	rooms, err := parser.DecodeStatus(frame)
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if len(rooms) != 1 || rooms[0] != 210 {
		t.Fatalf("解码结果 = %v, 期望 [210]", rooms)
	}

	if _, ok := builder.EncodeZone(types.Zone{Row: 0, Col: 1}, true); ok {
		t.Error("非法坐标应当编码失败")
	}
}

func TestChecksumSingleBitSensitivity(t *testing.T) {
	builder := NewBuilder(GridAddressing{})
	parser := NewParser(GridAddressing{})
	frame := builder.EncodeActivate([]int{205})

	if err := parser.Validate(frame); err != nil {
		t.Fatalf("原始报文校验失败: %v", err)
	}

	// 任何一个状态位翻转都必须被校验和捕获
	for i := stateOffset; i < reservedOffset; i++ {
		corrupted := make([]byte, len(frame))
		copy(corrupted, frame)
		corrupted[i] ^= 0x01
		if err := parser.Validate(corrupted); err == nil {
			t.Errorf("字节 %d 翻转后校验仍通过", i)
		}
	}
}

func TestDecodeFailsClosed(t *testing.T) {
	parser := NewParser(GridAddressing{})

	t.Run("报文过短", func(t *testing.T) {
		if _, err := parser.DecodeStatus(make([]byte, 14)); err == nil {
			t.Fatal("短报文应当返回错误")
		}
	})

	t.Run("头部错误", func(t *testing.T) {
		frame := NewBuilder(GridAddressing{}).EncodeAllOff()
		frame[0] = 0xFF
		rooms, err := parser.DecodeStatus(frame)
		if err == nil {
			t.Fatal("头部错误应当返回错误")
		}
		if len(rooms) != 0 {
			t.Fatalf("校验失败时返回了部分状态: %v", rooms)
		}
	})

	t.Run("校验和错误", func(t *testing.T) {
		frame := NewBuilder(GridAddressing{}).EncodeActivate([]int{101})
		frame[checksumOffset] ^= 0xFF
		if _, err := parser.DecodeStatus(frame); err == nil {
			t.Fatal("校验和错误应当返回错误")
		}
	})
}

func TestResponseFrameValidation(t *testing.T) {
	parser := NewParser(GridAddressing{})

	// 手工构造状态响应帧：响应方向校验和 = 异或值 + 0x03
	frame := make([]byte, FrameSize)
	copy(frame[0:3], respHeader)
	copy(frame[3:10], respCommand)
	frame[stateOffset] = 0x01 // 房间101
	frame[checksumOffset] = ResponseChecksum(frame)
	copy(frame[footerOffset:], footer)

	rooms, err := parser.DecodeStatus(frame)
	if err != nil {
		t.Fatalf("响应帧校验失败: %v", err)
	}
	if len(rooms) != 1 || rooms[0] != 101 {
		t.Fatalf("解码结果 = %v, 期望 [101]", rooms)
	}

	// 用发送方向的校验和填响应帧必须被拒绝
	frame[checksumOffset] = Checksum(frame)
	if _, err := parser.DecodeStatus(frame); err == nil {
		t.Fatal("响应帧使用发送方向校验和应当被拒绝")
	}
}

func TestGridAddressing(t *testing.T) {
	cases := []struct {
		zone    types.Zone
		bytePos int
		bitPos  int
	}{
		{types.Zone{Row: 1, Col: 1}, 10, 0},
		{types.Zone{Row: 1, Col: 8}, 10, 7},
		{types.Zone{Row: 1, Col: 9}, 11, 0},
		{types.Zone{Row: 1, Col: 16}, 11, 7},
		{types.Zone{Row: 2, Col: 1}, 14, 0},
		{types.Zone{Row: 3, Col: 10}, 19, 1},
		{types.Zone{Row: 4, Col: 16}, 23, 7},
	}

	for _, tc := range cases {
		bytePos, bitPos, ok := GridAddressing{}.Position(tc.zone)
		if !ok {
			t.Fatalf("(%d,%d) 寻址失败", tc.zone.Row, tc.zone.Col)
		}
		if bytePos != tc.bytePos || bitPos != tc.bitPos {
			t.Errorf("(%d,%d) = 字节%d 位%d, 期望 字节%d 位%d",
				tc.zone.Row, tc.zone.Col, bytePos, bitPos, tc.bytePos, tc.bitPos)
		}

		back, ok := GridAddressing{}.ZoneAt(bytePos, bitPos)
		if !ok || back != tc.zone {
			t.Errorf("ZoneAt(%d,%d) = %v, 期望 %v", bytePos, bitPos, back, tc.zone)
		}
	}
}

func TestLegacyAddressing(t *testing.T) {
	cases := []struct {
		zone    types.Zone
		bytePos int
		bitPos  int
	}{
		{types.Zone{Row: 1, Col: 1}, 10, 0},
		{types.Zone{Row: 1, Col: 16}, 11, 7},
		{types.Zone{Row: 2, Col: 3}, 12, 2},
		{types.Zone{Row: 3, Col: 8}, 15, 7},
		{types.Zone{Row: 4, Col: 1}, 16, 0},
	}

	for _, tc := range cases {
		bytePos, bitPos, ok := LegacyAddressing{}.Position(tc.zone)
		if !ok {
			t.Fatalf("(%d,%d) 寻址失败", tc.zone.Row, tc.zone.Col)
		}
		if bytePos != tc.bytePos || bitPos != tc.bitPos {
			t.Errorf("(%d,%d) = 字节%d 位%d, 期望 字节%d 位%d",
				tc.zone.Row, tc.zone.Col, bytePos, bitPos, tc.bytePos, tc.bitPos)
		}
	}

	// 旧硬件2~4行没有9~16列
	if _, _, ok := (LegacyAddressing{}).Position(types.Zone{Row: 2, Col: 9}); ok {
		t.Error("旧硬件不应支持 (2,9)")
	}
}

func TestStrategyByName(t *testing.T) {
	for name, want := range map[string]string{"": "grid", "grid": "grid", "legacy": "legacy"} {
		s, err := StrategyByName(name)
		if err != nil {
			t.Fatalf("StrategyByName(%q): %v", name, err)
		}
		if s.Name() != want {
			t.Errorf("StrategyByName(%q).Name() = %s, 期望 %s", name, s.Name(), want)
		}
	}
	if _, err := StrategyByName("unknown"); err == nil {
		t.Error("未知策略名应当返回错误")
	}
}
