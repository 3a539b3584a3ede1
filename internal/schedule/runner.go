// internal/schedule/runner.go

// Package schedule 定时广播调度。每分钟扫描一次启用中的条目，
// 命中 HH:MM 和星期的条目入队广播。
package schedule

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"backend/internal/broadcast"
	"backend/internal/db"
	"backend/internal/events"
	"backend/internal/logger"
)

// EntryStore 调度条目的查询接口，由db.ScheduleRepository实现
type EntryStore interface {
	ListEnabled() ([]db.ScheduleEntry, error)
	MarkFired(id uint, at time.Time) error
}

// Runner 定时广播调度器
type Runner struct {
	store EntryStore
	queue *broadcast.Queue
	bus   *events.EventBus

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewRunner 创建调度器
func NewRunner(store EntryStore, queue *broadcast.Queue, bus *events.EventBus) *Runner {
	return &Runner{
		store: store,
		queue: queue,
		bus:   bus,
		stop:  make(chan struct{}),
	}
}

// Start 启动扫描协程
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
	logger.Info("定时广播调度器已启动")
}

// Close 停止扫描协程
func (r *Runner) Close() {
	close(r.stop)
	r.wg.Wait()
}

func (r *Runner) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.tick(now)
		}
	}
}

// tick 扫描一轮，触发命中当前分钟的条目
func (r *Runner) tick(now time.Time) {
	entries, err := r.store.ListEnabled()
	if err != nil {
		logger.Error("定时广播条目读取失败: %v", err)
		return
	}

	for i := range entries {
		entry := &entries[i]
		if !Due(entry, now) {
			continue
		}
		r.fire(entry, now)
	}
}

// Due 条目是否应在now这一分钟触发。
// 时间按HH:MM整分匹配，星期按ISO编号（1=周一），
// 同一分钟内已触发过的条目不再触发。
func Due(entry *db.ScheduleEntry, now time.Time) bool {
	if entry.FireTime != now.Format("15:04") {
		return false
	}
	if !weekdayMatch(entry.Weekdays, now.Weekday()) {
		return false
	}
	if !entry.LastFired.IsZero() && entry.LastFired.Truncate(time.Minute).Equal(now.Truncate(time.Minute)) {
		return false
	}
	return true
}

// weekdayMatch 空字符串表示每天
func weekdayMatch(weekdays string, wd time.Weekday) bool {
	weekdays = strings.TrimSpace(weekdays)
	if weekdays == "" {
		return true
	}
	iso := int(wd)
	if iso == 0 {
		iso = 7 // time.Sunday是0，条目里用7
	}
	for _, part := range strings.Split(weekdays, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && n == iso {
			return true
		}
	}
	return false
}

func (r *Runner) fire(entry *db.ScheduleEntry, now time.Time) {
	targets := splitTargets(entry.Targets)
	var err error
	switch entry.Kind {
	case broadcast.KindAudio:
		_, err = r.queue.EnqueueAudio(entry.AudioPath, targets, false)
	default:
		_, err = r.queue.EnqueueText(entry.Text, entry.Lang, targets)
	}
	if err != nil {
		logger.Error("定时广播 %q 入队失败: %v", entry.Name, err)
		return
	}

	if err := r.store.MarkFired(entry.ID, now); err != nil {
		logger.Warn("定时广播触发时间记录失败: %v", err)
	}
	logger.Info("定时广播触发: %q (%s)", entry.Name, entry.FireTime)
	if r.bus != nil {
		r.bus.Publish(events.Event{
			Type: events.EventScheduleFired,
			Data: events.ScheduleEventData{
				EntryID:  entry.ID,
				Name:     entry.Name,
				FireTime: entry.FireTime,
			},
		})
	}
}

func splitTargets(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
