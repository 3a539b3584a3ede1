// internal/broadcast/queue.go

// Package broadcast 实现广播任务队列与预览审批流程。
// 队列是单工作协程的FIFO：同一时刻最多一个广播占用功放，
// 任务按 激活分区->提示音->内容->恢复 的顺序执行。
package broadcast

import (
	"os"
	"sync"
	"time"

	"backend/internal/audio"
	"backend/internal/device"
	"backend/internal/events"
	"backend/internal/logger"
	"backend/internal/types"
)

const (
	defaultQueueSize = 64
	restoreAttempts  = 3
	restoreBackoff   = 500 * time.Millisecond
	toneOverheadSecs = 4.0 // 起止提示音的估算开销
)

// HistoryEntry 一次广播的归档记录
type HistoryEntry struct {
	JobID     string
	Kind      string
	Content   string
	Targets   []string
	Rooms     []int
	Status    string // completed / failed / stopped
	Detail    string
	StartedAt time.Time
	EndedAt   time.Time
}

// HistoryRecorder 广播历史归档接口，由数据库仓库实现。
// 归档失败只记日志，不影响广播本身。
type HistoryRecorder interface {
	Record(entry HistoryEntry) error
}

// Enqueued 入队回执
type Enqueued struct {
	JobID             string    `json:"job_id"`
	Position          int       `json:"position"` // 1表示下一个执行
	EstimatedDuration float64   `json:"estimated_duration"`
	EstimatedStart    time.Time `json:"estimated_start"`
}

// QueueStatus 队列状态快照
type QueueStatus struct {
	Running       *JobStatus  `json:"running,omitempty"`
	Waiting       []JobStatus `json:"waiting"`
	WaitingCount  int         `json:"waiting_count"`
	EstimatedIdle time.Time   `json:"estimated_idle"`
}

// JobStatus 单个任务的对外视图
type JobStatus struct {
	JobID             string    `json:"job_id"`
	Kind              string    `json:"kind"`
	Targets           []string  `json:"targets"`
	EstimatedDuration float64   `json:"estimated_duration"`
	EnqueuedAt        time.Time `json:"enqueued_at"`
	StartedAt         time.Time `json:"started_at,omitempty"`
}

// Queue 广播任务队列。
// 有界通道做排队，单工作协程串行消费；pending镜像通道内容
// 供状态查询和时间估算使用，两者在锁内同步更新。
type Queue struct {
	store    *device.Store
	player   audio.Player
	synth    audio.Synthesizer
	prober   audio.Prober
	tones    audio.Tones
	resolver device.NameResolver
	history  HistoryRecorder
	bus      *events.EventBus

	restoreStates bool

	jobs chan *Job

	mu        sync.Mutex
	pending   []*Job
	running   *Job
	runStart  time.Time
	backup    []int
	hasBackup bool
	stopGen   int
	closed    bool

	wg sync.WaitGroup
}

// Options 队列构造参数
type Options struct {
	Store         *device.Store
	Player        audio.Player
	Synthesizer   audio.Synthesizer
	Prober        audio.Prober
	Tones         audio.Tones
	Resolver      device.NameResolver
	History       HistoryRecorder
	Bus           *events.EventBus
	RestoreStates bool
	QueueSize     int
}

// NewQueue 创建广播队列，需调用Start启动工作协程
func NewQueue(opts Options) *Queue {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		store:         opts.Store,
		player:        opts.Player,
		synth:         opts.Synthesizer,
		prober:        opts.Prober,
		tones:         opts.Tones,
		resolver:      opts.Resolver,
		history:       opts.History,
		bus:           opts.Bus,
		restoreStates: opts.RestoreStates,
		jobs:          make(chan *Job, size),
	}
}

// Start 启动工作协程
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
	logger.Info("广播队列已启动 (容量 %d)", cap(q.jobs))
}

// Close 关闭队列并等待当前任务结束，仅在系统停机时调用
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.jobs)
	q.wg.Wait()
}

// EnqueueText 文本广播入队。语音合成推迟到任务执行时进行。
func (q *Queue) EnqueueText(text, lang string, targets []string) (*Enqueued, error) {
	rooms := device.ResolveRooms(targets, q.resolver)
	if len(rooms) == 0 {
		return nil, types.NewProtocolError("没有可用的广播目标: %v", targets)
	}

	job := &Job{
		ID:                newJobID(),
		Kind:              KindText,
		Text:              text,
		Lang:              lang,
		Targets:           targets,
		Rooms:             rooms,
		EstimatedDuration: estimateText(text),
		EnqueuedAt:        time.Now(),
	}
	return q.enqueue(job)
}

// EnqueueAudio 音频广播入队。skipTones用于预览审批通过的任务，
// 其音频已经拼好了起止提示音。
func (q *Queue) EnqueueAudio(path string, targets []string, skipTones bool) (*Enqueued, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, types.NewProtocolError("音频文件不存在: %s", path)
	}
	rooms := device.ResolveRooms(targets, q.resolver)
	if len(rooms) == 0 {
		return nil, types.NewProtocolError("没有可用的广播目标: %v", targets)
	}

	job := &Job{
		ID:                newJobID(),
		Kind:              KindAudio,
		AudioPath:         path,
		Targets:           targets,
		Rooms:             rooms,
		SkipTones:         skipTones,
		EstimatedDuration: estimateAudio(q.prober, path),
		EnqueuedAt:        time.Now(),
	}
	return q.enqueue(job)
}

func (q *Queue) enqueue(job *Job) (*Enqueued, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, types.ErrQueueStopped
	}

	select {
	case q.jobs <- job:
	default:
		q.mu.Unlock()
		return nil, types.ErrQueueFull
	}

	q.pending = append(q.pending, job)
	position := len(q.pending)
	start := q.estimatedStartLocked(job)
	q.mu.Unlock()

	logger.Info("广播任务入队: %s (%s, 位置 %d, 预计 %.1f 秒)",
		job.ID, job.Kind, position, job.EstimatedDuration)
	q.publish(events.EventBroadcastQueued, job, "", "")

	return &Enqueued{
		JobID:             job.ID,
		Position:          position,
		EstimatedDuration: job.EstimatedDuration,
		EstimatedStart:    start,
	}, nil
}

// estimatedStartLocked 估算任务开始时刻：当前任务剩余时间
// 加上排在它前面的所有任务的估算时长。调用方必须持有锁。
func (q *Queue) estimatedStartLocked(job *Job) time.Time {
	start := time.Now()
	if q.running != nil {
		total := jobTotalEstimate(q.running)
		elapsed := time.Since(q.runStart).Seconds()
		if remain := total - elapsed; remain > 0 {
			start = start.Add(time.Duration(remain * float64(time.Second)))
		}
	}
	for _, p := range q.pending {
		if p == job {
			break
		}
		start = start.Add(time.Duration(jobTotalEstimate(p) * float64(time.Second)))
	}
	return start
}

func jobTotalEstimate(job *Job) float64 {
	total := job.EstimatedDuration
	if !job.SkipTones {
		total += toneOverheadSecs
	}
	return total
}

// Status 队列状态快照
func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := QueueStatus{Waiting: make([]JobStatus, 0, len(q.pending))}
	if q.running != nil {
		rs := jobView(q.running)
		rs.StartedAt = q.runStart
		st.Running = &rs
	}
	for _, p := range q.pending {
		st.Waiting = append(st.Waiting, jobView(p))
	}
	st.WaitingCount = len(st.Waiting)

	idle := time.Now()
	if q.running != nil {
		total := jobTotalEstimate(q.running)
		if remain := total - time.Since(q.runStart).Seconds(); remain > 0 {
			idle = idle.Add(time.Duration(remain * float64(time.Second)))
		}
	}
	for _, p := range q.pending {
		idle = idle.Add(time.Duration(jobTotalEstimate(p) * float64(time.Second)))
	}
	st.EstimatedIdle = idle
	return st
}

func jobView(job *Job) JobStatus {
	return JobStatus{
		JobID:             job.ID,
		Kind:              job.Kind,
		Targets:           job.Targets,
		EstimatedDuration: job.EstimatedDuration,
		EnqueuedAt:        job.EnqueuedAt,
	}
}

// Stop 紧急停止：清空等待队列、打断播放、无条件全部关闭。
// 队列本身不关闭，后续任务仍可入队。
func (q *Queue) Stop() error {
	q.mu.Lock()
	discarded := len(q.pending)
	q.pending = q.pending[:0]
	// 队列关闭后通道的接收永远就绪，必须用双值判断防止空转
	for draining := true; draining; {
		select {
		case _, ok := <-q.jobs:
			draining = ok
		default:
			draining = false
		}
	}
	q.backup = nil
	q.hasBackup = false
	q.stopGen++
	q.mu.Unlock()

	q.player.Stop()

	logger.Warn("紧急停止: 丢弃 %d 个等待任务", discarded)
	if q.bus != nil {
		q.bus.Publish(events.Event{
			Type: events.EventBroadcastStopped,
			Data: events.BroadcastEventData{Reason: "emergency stop"},
		})
	}

	// 不管恢复与否，紧急停止后分区必须全部静默
	return q.store.TurnOffAll()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.mu.Lock()
		// 紧急停止可能已把任务从镜像中清掉，此时跳过
		if len(q.pending) == 0 || q.pending[0] != job {
			q.mu.Unlock()
			logger.Debug("跳过已被丢弃的任务: %s", job.ID)
			continue
		}
		q.pending = q.pending[1:]
		q.running = job
		q.runStart = time.Now()
		q.mu.Unlock()

		q.run(job)

		q.mu.Lock()
		q.running = nil
		q.mu.Unlock()
	}
}

// run 执行单个广播任务。任何阶段失败都走强制恢复路径，
// 保证下一个任务从确定的分区状态开始。
func (q *Queue) run(job *Job) {
	startedAt := time.Now()
	logger.Info("广播任务开始: %s -> %v", job.ID, job.Rooms)
	q.publish(events.EventBroadcastStarted, job, "", "")

	// 文本任务先合成，合成期间不占用分区
	if job.Kind == KindText && job.AudioPath == "" {
		path, err := q.synth.Synthesize(job.Text, job.Lang)
		if err != nil {
			q.finish(job, startedAt, &types.JobFailure{JobID: job.ID, Stage: "synthesize", Err: err})
			return
		}
		job.AudioPath = path
	}

	// 激活集合 = 当前激活 ∪ 目标，不打断别处已开的分区
	current := q.store.ActiveRooms()
	q.mu.Lock()
	gen := q.stopGen
	if q.restoreStates {
		q.backup = current
		q.hasBackup = true
	}
	q.mu.Unlock()
	union := unionRooms(current, job.Rooms)
	if err := q.store.SetActiveRooms(union); err != nil {
		q.finish(job, startedAt, &types.JobFailure{JobID: job.ID, Stage: "activate", Err: err})
		return
	}

	var playErr error
	if !job.SkipTones {
		q.playTone(q.tones.StartPath)
	}
	if err := q.player.Play(job.AudioPath); err != nil {
		playErr = &types.JobFailure{JobID: job.ID, Stage: "play", Err: err}
	}
	if !job.SkipTones {
		q.playTone(q.tones.EndPath)
	}

	// 功放有尾音，留半秒再切
	time.Sleep(postPlaybackSettle)

	if err := q.restore(job, gen); err != nil && playErr == nil {
		playErr = err
	}
	q.finish(job, startedAt, playErr)
}

// playTone 播放提示音，文件缺失或播放失败只告警
func (q *Queue) playTone(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("提示音文件不存在，已跳过: %s", path)
		return
	}
	if err := q.player.Play(path); err != nil {
		logger.Warn("提示音播放失败: %v", err)
	}
}

// restore 播放结束后的分区恢复。开启恢复时回到广播前的快照，
// 否则只关掉本次广播打开的分区；恢复失败兜底全部关闭。
// 任务启动后发生过紧急停止时跳过恢复，全关就是终态。
func (q *Queue) restore(job *Job, gen int) error {
	var target []int
	q.mu.Lock()
	if q.stopGen != gen {
		q.backup = nil
		q.hasBackup = false
		q.mu.Unlock()
		logger.Debug("紧急停止后跳过分区恢复: %s", job.ID)
		return nil
	}
	if q.restoreStates && q.hasBackup {
		target = q.backup
		q.backup = nil
		q.hasBackup = false
		q.mu.Unlock()
	} else {
		q.mu.Unlock()
		target = subtractRooms(q.store.ActiveRooms(), job.Rooms)
	}

	var lastErr error
	for attempt := 1; attempt <= restoreAttempts; attempt++ {
		q.mu.Lock()
		stopped := q.stopGen != gen
		q.mu.Unlock()
		if stopped {
			logger.Debug("紧急停止后跳过分区恢复: %s", job.ID)
			return nil
		}
		if err := q.store.SetActiveRooms(target); err != nil {
			lastErr = err
			logger.Warn("分区恢复失败 (尝试 %d/%d): %v", attempt, restoreAttempts, err)
			time.Sleep(restoreBackoff)
			continue
		}
		return nil
	}

	logger.Error("分区恢复在 %d 次尝试后仍失败，兜底全部关闭", restoreAttempts)
	if err := q.store.TurnOffAll(); err != nil {
		return &types.JobFailure{JobID: job.ID, Stage: "restore", Err: err}
	}
	return &types.JobFailure{JobID: job.ID, Stage: "restore", Err: lastErr}
}

// finish 收尾：归档历史并发布结果事件
func (q *Queue) finish(job *Job, startedAt time.Time, failure error) {
	endedAt := time.Now()
	status := "completed"
	detail := ""
	if failure != nil {
		status = "failed"
		detail = failure.Error()
		logger.Error("广播任务失败: %v", failure)
		q.publish(events.EventBroadcastFailed, job, stageOf(failure), detail)
	} else {
		logger.Info("广播任务完成: %s (耗时 %.1f 秒)", job.ID, endedAt.Sub(startedAt).Seconds())
		q.publish(events.EventBroadcastComplete, job, "", "")
	}

	if q.history != nil {
		entry := HistoryEntry{
			JobID:     job.ID,
			Kind:      job.Kind,
			Content:   job.Text,
			Targets:   job.Targets,
			Rooms:     job.Rooms,
			Status:    status,
			Detail:    detail,
			StartedAt: startedAt,
			EndedAt:   endedAt,
		}
		if job.Kind == KindAudio {
			entry.Content = job.AudioPath
		}
		if err := q.history.Record(entry); err != nil {
			logger.Warn("广播历史归档失败: %v", err)
		}
	}
}

func (q *Queue) publish(t events.EventType, job *Job, stage, reason string) {
	if q.bus == nil {
		return
	}
	data := events.BroadcastEventData{
		JobID:             job.ID,
		Kind:              job.Kind,
		Targets:           job.Targets,
		EstimatedDuration: job.EstimatedDuration,
		Stage:             stage,
		Reason:            reason,
	}
	q.bus.Publish(events.Event{Type: t, Data: data})
}

func stageOf(err error) string {
	if jf, ok := err.(*types.JobFailure); ok {
		return jf.Stage
	}
	return ""
}

func unionRooms(a, b []int) []int {
	set := make(map[int]struct{}, len(a)+len(b))
	for _, r := range a {
		set[r] = struct{}{}
	}
	for _, r := range b {
		set[r] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	return out
}

func subtractRooms(a, b []int) []int {
	drop := make(map[int]struct{}, len(b))
	for _, r := range b {
		drop[r] = struct{}{}
	}
	out := make([]int, 0, len(a))
	for _, r := range a {
		if _, ok := drop[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}
