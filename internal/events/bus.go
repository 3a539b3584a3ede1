package events

import (
	"sync"
	"time"
)

// EventBus 是事件总线的实现
type EventBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType]map[int]Handler
}

// NewEventBus 创建新的事件总线
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType]map[int]Handler),
	}
}

// Publish 发布事件，时间戳为空时自动补齐
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, handler := range eb.handlers[event.Type] {
		go handler(event) // 异步处理事件
	}
}

// Subscribe 订阅事件，返回用于取消订阅的句柄
func (eb *EventBus) Subscribe(eventType EventType, handler Handler) int {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.handlers[eventType] == nil {
		eb.handlers[eventType] = make(map[int]Handler)
	}
	eb.nextID++
	eb.handlers[eventType][eb.nextID] = handler
	return eb.nextID
}

// Unsubscribe 取消订阅
func (eb *EventBus) Unsubscribe(eventType EventType, id int) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	delete(eb.handlers[eventType], id)
}
