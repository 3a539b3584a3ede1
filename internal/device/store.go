// internal/device/store.go

package device

import (
	"sort"
	"sync"
	"time"

	"backend/internal/events"
	"backend/internal/logger"
	"backend/internal/packet"
	"backend/internal/types"
)

const (
	allOffAttempts = 3
	allOffBackoff  = 500 * time.Millisecond
)

// Sender 报文投递接口，由transport.Client实现，测试中用桩替换
type Sender interface {
	Send(frame []byte) ([]byte, error)
	SendOnce(frame []byte) ([]byte, error)
	TestConnection() bool
	PacketsSent() int
	Target() (string, int)
}

// Store 设备状态的唯一权威持有者。
// 维护4x16矩阵和派生的激活房间集合，矩阵是事实来源，
// 激活集合在每次提交时重算。所有变更走 快照->编码->发送->提交/回滚
// 的事务流程，锁覆盖整个序列，保证方法返回成功时本地状态
// 与实际发往硬件的状态一致，返回失败时本地状态原封不动。
type Store struct {
	mu      sync.Mutex
	matrix  [types.Rows][types.Cols]bool
	active  map[int]struct{}
	builder *packet.Builder
	sender  Sender
	bus     *events.EventBus
}

// NewStore 创建设备状态存储
func NewStore(builder *packet.Builder, sender Sender, bus *events.EventBus) *Store {
	return &Store{
		active:  make(map[int]struct{}),
		builder: builder,
		sender:  sender,
		bus:     bus,
	}
}

func (s *Store) lock()   { s.mu.Lock() }
func (s *Store) unlock() { s.mu.Unlock() }

// TurnOn 打开单个分区并发送当前全量状态报文
func (s *Store) TurnOn(z types.Zone) error {
	return s.mutateZone(z, true)
}

// TurnOff 关闭单个分区并发送当前全量状态报文
func (s *Store) TurnOff(z types.Zone) error {
	return s.mutateZone(z, false)
}

func (s *Store) mutateZone(z types.Zone, on bool) error {
	if !z.Valid() {
		return types.NewProtocolError("非法坐标: (%d, %d)", z.Row, z.Col)
	}

	s.lock()
	defer s.unlock()

	next := s.snapshotLocked()
	if on {
		next[z.RoomID()] = struct{}{}
	} else {
		delete(next, z.RoomID())
	}
	return s.commitLocked(next, "zone")
}

// SetActiveRooms 整体替换激活房间集合，一次往返完成多分区开关。
// 非法房间号跳过并告警。
func (s *Store) SetActiveRooms(rooms []int) error {
	s.lock()
	defer s.unlock()

	next := make(map[int]struct{}, len(rooms))
	for _, room := range rooms {
		if _, ok := types.ZoneFromRoomID(room); !ok {
			logger.Warn("忽略非法房间号: %d", room)
			continue
		}
		next[room] = struct{}{}
	}
	return s.commitLocked(next, "set")
}

// TurnOffAll 全部关闭。这是所有错误路径的兜底恢复动作，
// 允许最多3次发送尝试，间隔0.5秒；全部失败才回滚并报错。
func (s *Store) TurnOffAll() error {
	s.lock()
	defer s.unlock()

	var lastErr error
	for attempt := 1; attempt <= allOffAttempts; attempt++ {
		frame := s.builder.EncodeAllOff()
		if _, err := s.sender.Send(frame); err != nil {
			lastErr = err
			logger.Warn("全部关闭发送失败 (尝试 %d/%d): %v", attempt, allOffAttempts, err)
			if attempt < allOffAttempts {
				time.Sleep(allOffBackoff)
			}
			continue
		}

		s.applyLocked(map[int]struct{}{})
		logger.Info("全部关闭成功 (尝试 %d/%d)", attempt, allOffAttempts)
		s.publish(events.EventDeviceAllOff)
		return nil
	}

	logger.Error("全部关闭在 %d 次尝试后仍失败，状态保持回滚前快照", allOffAttempts)
	s.publish(events.EventDeviceSendFailed)
	return &types.StateConflictError{Op: "all-off", Err: lastErr}
}

// commitLocked 编码目标集合并发送，成功则提交，失败保持原状态。
// 调用方必须持有锁。
func (s *Store) commitLocked(next map[int]struct{}, op string) error {
	frame := s.builder.EncodeActivate(sortedRooms(next))
	if _, err := s.sender.Send(frame); err != nil {
		logger.Error("报文发送失败，状态回滚 (%s): %v", op, err)
		s.publish(events.EventDeviceSendFailed)
		return &types.StateConflictError{Op: op, Err: err}
	}

	s.applyLocked(next)
	logger.Info("状态提交成功 (%s): 激活 %d 个房间 %v", op, len(next), sortedRooms(next))
	s.publish(events.EventDeviceStateChanged)
	return nil
}

// applyLocked 用目标集合重建矩阵并替换激活集合
func (s *Store) applyLocked(next map[int]struct{}) {
	for r := 0; r < types.Rows; r++ {
		for c := 0; c < types.Cols; c++ {
			s.matrix[r][c] = false
		}
	}
	for room := range next {
		if z, ok := types.ZoneFromRoomID(room); ok {
			s.matrix[z.Row-1][z.Col-1] = true
		}
	}
	s.active = next
}

func (s *Store) snapshotLocked() map[int]struct{} {
	snap := make(map[int]struct{}, len(s.active))
	for room := range s.active {
		snap[room] = struct{}{}
	}
	return snap
}

func (s *Store) publish(t events.EventType) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type: t,
		Data: events.DeviceStateEventData{
			ActiveRooms: sortedRooms(s.active),
			ActiveCount: len(s.active),
			ChangedAt:   time.Now(),
		},
	})
}

// Resync 把本地权威状态单次重发给硬件，尽力而为，
// 失败不回滚也不重试。用于硬件掉电恢复后找回分区状态。
func (s *Store) Resync() error {
	s.lock()
	frame := s.builder.EncodeActivate(sortedRooms(s.active))
	count := len(s.active)
	s.unlock()

	if _, err := s.sender.SendOnce(frame); err != nil {
		return err
	}
	logger.Info("状态重同步完成: 激活 %d 个房间", count)
	return nil
}

// ActiveRooms 当前激活的房间号（升序副本）
func (s *Store) ActiveRooms() []int {
	s.lock()
	defer s.unlock()
	return sortedRooms(s.active)
}

// IsActive 指定房间当前是否激活
func (s *Store) IsActive(room int) bool {
	s.lock()
	defer s.unlock()
	_, ok := s.active[room]
	return ok
}

// ZoneState 指定分区当前开关状态
func (s *Store) ZoneState(z types.Zone) (bool, bool) {
	if !z.Valid() {
		return false, false
	}
	s.lock()
	defer s.unlock()
	return s.matrix[z.Row-1][z.Col-1], true
}

// Matrix 矩阵快照
func (s *Store) Matrix() [types.Rows][types.Cols]bool {
	s.lock()
	defer s.unlock()
	return s.matrix
}

// Summary 状态汇总，只读，不产生网络IO
type Summary struct {
	TotalDevices int    `json:"total_devices"`
	ActiveCount  int    `json:"active_count"`
	ActiveRooms  []int  `json:"active_rooms"`
	TargetIP     string `json:"target_ip"`
	TargetPort   int    `json:"target_port"`
	PacketsSent  int    `json:"packets_sent"`
}

// StatusSummary 汇总当前状态
func (s *Store) StatusSummary() Summary {
	s.lock()
	active := sortedRooms(s.active)
	s.unlock()

	ip, port := s.sender.Target()
	return Summary{
		TotalDevices: types.Total,
		ActiveCount:  len(active),
		ActiveRooms:  active,
		TargetIP:     ip,
		TargetPort:   port,
		PacketsSent:  s.sender.PacketsSent(),
	}
}

func sortedRooms(set map[int]struct{}) []int {
	rooms := make([]int, 0, len(set))
	for room := range set {
		rooms = append(rooms, room)
	}
	sort.Ints(rooms)
	return rooms
}
