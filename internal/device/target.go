// internal/device/target.go

package device

import (
	"strconv"
	"strings"

	"backend/internal/logger"
	"backend/internal/types"
)

// TargetKind 广播目标的类别
type TargetKind int

const (
	TargetInvalid   TargetKind = iota
	TargetClassroom            // "3-1" 学年-班级格式
	TargetRoomID               // "301" 纯数字房间号
	TargetSpecial              // 命名的特殊教室（体育馆、操场等）
)

// Target 解析后的广播目标
type Target struct {
	Kind TargetKind
	Zone types.Zone
	Name string
}

// NameResolver 特殊教室名到坐标的查询接口，由设备名映射仓库实现
type NameResolver interface {
	Coordinates(name string) (types.Zone, bool)
}

// ParseTarget 把设备名解析成带类别标签的目标。
// 所有字符串形态判断集中在这一个入口，调用方只看类别。
func ParseTarget(name string, resolver NameResolver) Target {
	name = strings.TrimSpace(name)
	if name == "" {
		return Target{Kind: TargetInvalid, Name: name}
	}

	// 学年-班级格式（例: "1-1", "3-12"）
	if i := strings.IndexByte(name, '-'); i > 0 && name[0] >= '0' && name[0] <= '9' {
		row, err1 := strconv.Atoi(name[:i])
		col, err2 := strconv.Atoi(name[i+1:])
		if err1 == nil && err2 == nil {
			z := types.Zone{Row: row, Col: col}
			if z.Valid() {
				return Target{Kind: TargetClassroom, Zone: z, Name: name}
			}
		}
		return Target{Kind: TargetInvalid, Name: name}
	}

	// 纯数字房间号（例: "301"）
	if room, err := strconv.Atoi(name); err == nil {
		if z, ok := types.ZoneFromRoomID(room); ok {
			return Target{Kind: TargetRoomID, Zone: z, Name: name}
		}
		return Target{Kind: TargetInvalid, Name: name}
	}

	// 命名的特殊教室
	if resolver != nil {
		if z, ok := resolver.Coordinates(name); ok && z.Valid() {
			return Target{Kind: TargetSpecial, Zone: z, Name: name}
		}
	}
	return Target{Kind: TargetInvalid, Name: name}
}

// ResolveRooms 把目标名列表解析成房间号集合（升序去重）。
// 无法解析的目标跳过并告警，与硬件按位独立的语义保持一致。
func ResolveRooms(names []string, resolver NameResolver) []int {
	seen := make(map[int]struct{}, len(names))
	rooms := make([]int, 0, len(names))
	for _, name := range names {
		t := ParseTarget(name, resolver)
		if t.Kind == TargetInvalid {
			logger.Warn("忽略无法解析的广播目标: %q", name)
			continue
		}
		room := t.Zone.RoomID()
		if _, dup := seen[room]; dup {
			continue
		}
		seen[room] = struct{}{}
		rooms = append(rooms, room)
	}
	return rooms
}
