// internal/monitor/monitor.go

package monitor

import (
	"sync"
	"time"

	"backend/internal/device"
	"backend/internal/events"
	"backend/internal/logger"
)

// HardwareMetrics 硬件链路监控指标
type HardwareMetrics struct {
	Timestamp     time.Time `json:"timestamp"`
	Reachable     bool      `json:"reachable"`
	LastReachable time.Time `json:"last_reachable,omitempty"`
	FailStreak    int       `json:"fail_streak"`
	TargetIP      string    `json:"target_ip"`
	TargetPort    int       `json:"target_port"`
	PacketsSent   int       `json:"packets_sent"`
	ActiveCount   int       `json:"active_count"`
	ActiveRooms   []int     `json:"active_rooms"`
}

// Monitor 周期探测功放硬件可达性并发布状态事件。
// 探测是纯TCP握手，不发送业务报文，不影响分区状态。
type Monitor struct {
	mu       sync.RWMutex
	eventBus *events.EventBus
	store    *device.Store
	sender   device.Sender
	interval time.Duration
	metrics  HardwareMetrics
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewMonitor(eventBus *events.EventBus, store *device.Store, sender device.Sender, interval time.Duration) *Monitor {
	if interval == 0 {
		interval = 30 * time.Second
	}
	ip, port := sender.Target()
	return &Monitor{
		eventBus: eventBus,
		store:    store,
		sender:   sender,
		interval: interval,
		metrics: HardwareMetrics{
			Reachable:  true, // 启动时乐观假设可达，首轮探测校正
			TargetIP:   ip,
			TargetPort: port,
		},
		stopChan: make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.run()
	logger.Info("硬件监控已启动 (间隔 %v)", m.interval)
}

func (m *Monitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()
	logger.Info("硬件监控已停止")
}

func (m *Monitor) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.probe()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) probe() {
	reachable := m.sender.TestConnection()
	now := time.Now()
	summary := m.store.StatusSummary()

	m.mu.Lock()
	was := m.metrics.Reachable
	m.metrics.Timestamp = now
	m.metrics.Reachable = reachable
	m.metrics.PacketsSent = summary.PacketsSent
	m.metrics.ActiveCount = summary.ActiveCount
	m.metrics.ActiveRooms = summary.ActiveRooms
	if reachable {
		m.metrics.LastReachable = now
		m.metrics.FailStreak = 0
	} else {
		m.metrics.FailStreak++
	}
	streak := m.metrics.FailStreak
	m.mu.Unlock()

	if reachable == was {
		return
	}

	if reachable {
		logger.Info("功放硬件恢复可达: %s:%d", m.metrics.TargetIP, m.metrics.TargetPort)
		m.publish(events.EventDeviceReachable)
		// 掉线期间硬件可能断电丢状态，把本地权威状态推回去
		if err := m.store.Resync(); err != nil {
			logger.Warn("恢复可达后状态重同步失败: %v", err)
		}
	} else {
		logger.Warn("功放硬件不可达: %s:%d (连续失败 %d 次)",
			m.metrics.TargetIP, m.metrics.TargetPort, streak)
		m.publish(events.EventDeviceUnreachable)
	}
}

func (m *Monitor) publish(t events.EventType) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.Publish(events.Event{Type: t, Data: m.GetMetrics()})
}

// GetMetrics 获取当前监控指标快照
func (m *Monitor) GetMetrics() HardwareMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}
