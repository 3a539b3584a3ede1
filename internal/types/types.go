// internal/types/types.go

package types

// 设备矩阵规格：4行16列，共64个可寻址分区
const (
	Rows  = 4
	Cols  = 16
	Total = Rows * Cols
)

// Zone 一个可寻址的广播分区（功放输出）
type Zone struct {
	Row int `json:"row"` // 行号 (1-4)
	Col int `json:"col"` // 列号 (1-16)
}

// Valid 检查分区坐标是否在矩阵范围内
func (z Zone) Valid() bool {
	return z.Row >= 1 && z.Row <= Rows && z.Col >= 1 && z.Col <= Cols
}

// RoomID 坐标转换为房间号（例: 3行1列 -> 301）
func (z Zone) RoomID() int {
	return z.Row*100 + z.Col
}

// ZoneFromRoomID 房间号转换为坐标（例: 312 -> 3行12列）
func ZoneFromRoomID(roomID int) (Zone, bool) {
	z := Zone{Row: roomID / 100, Col: roomID % 100}
	return z, z.Valid()
}
