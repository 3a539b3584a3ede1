package device

import (
	"testing"

	"backend/internal/types"
)

// mapResolver 测试用的设备名映射
type mapResolver map[string]types.Zone

func (m mapResolver) Coordinates(name string) (types.Zone, bool) {
	z, ok := m[name]
	return z, ok
}

func TestParseTarget(t *testing.T) {
	resolver := mapResolver{
		"操场": {Row: 4, Col: 16},
	}

	cases := []struct {
		name   string
		input  string
		kind   TargetKind
		roomID int
	}{
		{"学年班级格式", "3-1", TargetClassroom, 301},
		{"学年班级两位列", "1-12", TargetClassroom, 112},
		{"纯数字房间号", "301", TargetRoomID, 301},
		{"特殊教室", "操场", TargetSpecial, 416},
		{"带空白", " 2-5 ", TargetClassroom, 205},
		{"行越界", "5-1", TargetInvalid, 0},
		{"列越界", "1-17", TargetInvalid, 0},
		{"非法房间号", "999", TargetInvalid, 0},
		{"未知名称", "图书馆", TargetInvalid, 0},
		{"空字符串", "", TargetInvalid, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseTarget(tc.input, resolver)
			if got.Kind != tc.kind {
				t.Fatalf("Kind = %v, 期望 %v", got.Kind, tc.kind)
			}
			if tc.kind != TargetInvalid && got.Zone.RoomID() != tc.roomID {
				t.Fatalf("RoomID = %d, 期望 %d", got.Zone.RoomID(), tc.roomID)
			}
		})
	}
}

func TestResolveRooms(t *testing.T) {
	resolver := mapResolver{
		"操场": {Row: 4, Col: 16},
	}

	t.Run("去重且跳过非法目标", func(t *testing.T) {
		rooms := ResolveRooms([]string{"1-1", "101", "操场", "不存在", "5-1"}, resolver)
		if len(rooms) != 2 {
			t.Fatalf("解析结果 = %v, 期望2个房间", rooms)
		}
		if rooms[0] != 101 || rooms[1] != 416 {
			t.Fatalf("解析结果 = %v, 期望 [101 416]", rooms)
		}
	})

	t.Run("全部非法返回空", func(t *testing.T) {
		if rooms := ResolveRooms([]string{"xx", "9-9"}, resolver); len(rooms) != 0 {
			t.Fatalf("解析结果 = %v, 期望空", rooms)
		}
	})

	t.Run("无解析器时特殊名不可用", func(t *testing.T) {
		if rooms := ResolveRooms([]string{"操场"}, nil); len(rooms) != 0 {
			t.Fatalf("解析结果 = %v, 期望空", rooms)
		}
	})
}
