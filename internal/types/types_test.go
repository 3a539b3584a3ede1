package types

import "testing"

func TestZoneValid(t *testing.T) {
	valid := []Zone{{1, 1}, {4, 16}, {2, 8}}
	for _, z := range valid {
		if !z.Valid() {
			t.Errorf("(%d,%d) 应当有效", z.Row, z.Col)
		}
	}

	invalid := []Zone{{0, 1}, {1, 0}, {5, 1}, {1, 17}, {-1, -1}}
	for _, z := range invalid {
		if z.Valid() {
			t.Errorf("(%d,%d) 应当无效", z.Row, z.Col)
		}
	}
}

func TestRoomIDRoundTrip(t *testing.T) {
	for row := 1; row <= Rows; row++ {
		for col := 1; col <= Cols; col++ {
			z := Zone{Row: row, Col: col}
			back, ok := ZoneFromRoomID(z.RoomID())
			if !ok || back != z {
				t.Fatalf("RoomID往返失败: %v -> %d -> %v", z, z.RoomID(), back)
			}
		}
	}
}

func TestZoneFromRoomIDRejectsInvalid(t *testing.T) {
	for _, roomID := range []int{0, 100, 117, 500, 999, -101} {
		if _, ok := ZoneFromRoomID(roomID); ok {
			t.Errorf("房间号 %d 应当无效", roomID)
		}
	}
}
