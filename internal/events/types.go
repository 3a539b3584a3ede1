package events

import "time"

// EventType 事件类型定义
type EventType int

const (
	// 系统事件 (0-9)
	EventSystemStartup EventType = iota
	EventSystemShutdown
	EventConfigChanged

	// 设备状态事件 (10-29)
	EventDeviceStateChanged // 激活分区集合发生变化
	EventDeviceAllOff       // 全部关闭
	EventDeviceSendFailed   // 报文发送失败（已回滚）
	EventDeviceUnreachable  // 监控探测到硬件不可达
	EventDeviceReachable    // 硬件恢复可达

	// 广播任务事件 (30-49)
	EventBroadcastQueued
	EventBroadcastStarted
	EventBroadcastComplete
	EventBroadcastFailed
	EventBroadcastStopped // 紧急停止，队列被清空

	// 预览事件 (50-69)
	EventPreviewCreated
	EventPreviewApproved
	EventPreviewRejected
	EventPreviewExpired

	// 定时广播事件 (70-89)
	EventScheduleFired
)

// Event 事件结构
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Handler 事件处理函数类型
type Handler func(Event)

// Subscription 事件订阅信息
type Subscription struct {
	EventType EventType
	Handler   Handler
}

// DeviceStateEventData 设备状态事件数据
type DeviceStateEventData struct {
	ActiveRooms []int     `json:"active_rooms"`
	ActiveCount int       `json:"active_count"`
	ChangedAt   time.Time `json:"changed_at"`
}

// BroadcastEventData 广播任务事件数据
type BroadcastEventData struct {
	JobID             string    `json:"job_id"`
	Kind              string    `json:"kind"`
	Targets           []string  `json:"targets"`
	EstimatedDuration float64   `json:"estimated_duration"`
	StartedAt         time.Time `json:"started_at,omitempty"`
	EndedAt           time.Time `json:"ended_at,omitempty"`
	Stage             string    `json:"stage,omitempty"`
	Reason            string    `json:"reason,omitempty"`
}

// PreviewEventData 预览事件数据
type PreviewEventData struct {
	PreviewID string `json:"preview_id"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason,omitempty"`
}

// ScheduleEventData 定时广播事件数据
type ScheduleEventData struct {
	EntryID  uint   `json:"entry_id"`
	Name     string `json:"name"`
	FireTime string `json:"fire_time"`
}

// EventNames 提供事件类型的字符串表示
var EventNames = map[EventType]string{
	EventSystemStartup:      "SystemStartup",
	EventSystemShutdown:     "SystemShutdown",
	EventConfigChanged:      "ConfigChanged",
	EventDeviceStateChanged: "DeviceStateChanged",
	EventDeviceAllOff:       "DeviceAllOff",
	EventDeviceSendFailed:   "DeviceSendFailed",
	EventDeviceUnreachable:  "DeviceUnreachable",
	EventDeviceReachable:    "DeviceReachable",
	EventBroadcastQueued:    "BroadcastQueued",
	EventBroadcastStarted:   "BroadcastStarted",
	EventBroadcastComplete:  "BroadcastComplete",
	EventBroadcastFailed:    "BroadcastFailed",
	EventBroadcastStopped:   "BroadcastStopped",
	EventPreviewCreated:     "PreviewCreated",
	EventPreviewApproved:    "PreviewApproved",
	EventPreviewRejected:    "PreviewRejected",
	EventPreviewExpired:     "PreviewExpired",
	EventScheduleFired:      "ScheduleFired",
}
