// internal/broadcast/preview.go

package broadcast

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"backend/internal/audio"
	"backend/internal/events"
	"backend/internal/logger"
	"backend/internal/types"
)

// 预览状态
const (
	PreviewWaiting    = "waiting"    // 等待合成槽位
	PreviewGenerating = "generating" // 正在合成试听音频
	PreviewReady      = "ready"      // 可试听，等待审批
	PreviewFailed     = "failed"
)

const (
	defaultPreviewTTL     = 10 * time.Minute
	defaultPreviewWorkers = 4
	previewSweepInterval  = time.Minute

	// 未就绪（排队/合成中）的预览给宽松的过期时间，覆盖槽位排队耗时；
	// 就绪和失败后改为从该时刻起算TTL
	pendingTTLFactor = 3
)

// Preview 一条待审批的广播预览。
// 试听产物就是审批通过后实际播放的文件（已拼好起止提示音），
// 审批入队时跳过提示音阶段，保证"听到什么播什么"。
type Preview struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Text         string    `json:"text,omitempty"`
	Lang         string    `json:"lang,omitempty"`
	SourcePath   string    `json:"source_path,omitempty"`
	Targets      []string  `json:"targets"`
	Status       string    `json:"status"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Duration     float64   `json:"duration,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ReadyAt      time.Time `json:"ready_at,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// PreviewManager 预览的生成、存放与审批。
// 合成走固定大小的槽位池，避免同时起太多TTS/转码进程；
// ready的预览超过TTL未审批自动清理。
type PreviewManager struct {
	queue  *Queue
	synth  audio.Synthesizer
	norm   audio.Normalizer
	prober audio.Prober
	concat audio.Concatenator
	tones  audio.Tones
	bus    *events.EventBus

	dir string
	ttl time.Duration

	slots chan struct{}

	mu      sync.Mutex
	entries map[string]*Preview

	stop chan struct{}
	wg   sync.WaitGroup
}

// PreviewOptions 预览管理器构造参数
type PreviewOptions struct {
	Queue        *Queue
	Synthesizer  audio.Synthesizer
	Normalizer   audio.Normalizer
	Prober       audio.Prober
	Concatenator audio.Concatenator
	Tones        audio.Tones
	Bus          *events.EventBus
	Dir          string
	TTL          time.Duration
	Workers      int
}

// NewPreviewManager 创建预览管理器
func NewPreviewManager(opts PreviewOptions) *PreviewManager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultPreviewTTL
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultPreviewWorkers
	}
	return &PreviewManager{
		queue:   opts.Queue,
		synth:   opts.Synthesizer,
		norm:    opts.Normalizer,
		prober:  opts.Prober,
		concat:  opts.Concatenator,
		tones:   opts.Tones,
		bus:     opts.Bus,
		dir:     opts.Dir,
		ttl:     ttl,
		slots:   make(chan struct{}, workers),
		entries: make(map[string]*Preview),
		stop:    make(chan struct{}),
	}
}

// Start 启动过期清理协程
func (m *PreviewManager) Start() {
	m.wg.Add(1)
	go m.sweeper()
}

// Close 停止清理协程
func (m *PreviewManager) Close() {
	close(m.stop)
	m.wg.Wait()
}

func newPreviewID() string {
	return fmt.Sprintf("preview_%s", uuid.NewString()[:8])
}

// CreateText 文本广播预览，立即返回，合成在后台进行
func (m *PreviewManager) CreateText(text, lang string, targets []string) (*Preview, error) {
	if len(targets) == 0 {
		return nil, types.NewProtocolError("广播目标为空")
	}
	p := &Preview{
		ID:        newPreviewID(),
		Kind:      KindText,
		Text:      text,
		Lang:      lang,
		Targets:   targets,
		Status:    PreviewWaiting,
		CreatedAt: time.Now(),
	}
	p.ExpiresAt = p.CreatedAt.Add(pendingTTLFactor * m.ttl)
	return m.submit(p)
}

// CreateAudio 音频广播预览
func (m *PreviewManager) CreateAudio(path string, targets []string) (*Preview, error) {
	if len(targets) == 0 {
		return nil, types.NewProtocolError("广播目标为空")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, types.NewProtocolError("音频文件不存在: %s", path)
	}
	p := &Preview{
		ID:         newPreviewID(),
		Kind:       KindAudio,
		SourcePath: path,
		Targets:    targets,
		Status:     PreviewWaiting,
		CreatedAt:  time.Now(),
	}
	p.ExpiresAt = p.CreatedAt.Add(pendingTTLFactor * m.ttl)
	return m.submit(p)
}

func (m *PreviewManager) submit(p *Preview) (*Preview, error) {
	m.mu.Lock()
	m.entries[p.ID] = p
	snap := *p
	m.mu.Unlock()

	m.wg.Add(1)
	go m.generate(p.ID)

	logger.Info("预览创建: %s (%s)", p.ID, p.Kind)
	if m.bus != nil {
		m.bus.Publish(events.Event{
			Type: events.EventPreviewCreated,
			Data: events.PreviewEventData{PreviewID: p.ID, Kind: p.Kind},
		})
	}
	return &snap, nil
}

// generate 占槽位后合成试听产物：起音 + 归一后的内容 + 止音
func (m *PreviewManager) generate(id string) {
	defer m.wg.Done()

	select {
	case m.slots <- struct{}{}:
	case <-m.stop:
		return
	}
	defer func() { <-m.slots }()

	m.setStatus(id, PreviewGenerating, "")

	m.mu.Lock()
	p, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	kind, text, lang, source := p.Kind, p.Text, p.Lang, p.SourcePath
	m.mu.Unlock()

	content := source
	if kind == KindText {
		path, err := m.synth.Synthesize(text, lang)
		if err != nil {
			m.fail(id, fmt.Errorf("语音合成失败: %w", err))
			return
		}
		content = path
	}

	if m.norm != nil {
		if normalized, err := m.norm.Normalize(content); err == nil {
			content = normalized
		}
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		m.fail(id, fmt.Errorf("预览目录创建失败: %w", err))
		return
	}
	artifact := filepath.Join(m.dir, id+".mp3")
	if err := m.concat.Concat([]string{m.tones.StartPath, content, m.tones.EndPath}, artifact); err != nil {
		m.fail(id, err)
		return
	}

	var dur float64
	if m.prober != nil {
		if d, err := m.prober.Duration(artifact); err == nil {
			dur = d
		}
	}

	now := time.Now()
	m.mu.Lock()
	p, ok = m.entries[id]
	if ok {
		p.Status = PreviewReady
		p.ArtifactPath = artifact
		p.Duration = dur
		p.ReadyAt = now
		p.ExpiresAt = now.Add(m.ttl)
	}
	m.mu.Unlock()

	if !ok {
		// 合成期间条目已被清理，产物一并删除
		_ = os.Remove(artifact)
		return
	}
	logger.Info("预览就绪: %s (%.1f 秒)", id, dur)
}

func (m *PreviewManager) setStatus(id, status, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.entries[id]; ok {
		p.Status = status
		p.Error = errMsg
	}
}

// fail 标记失败并从失败时刻起算TTL，废弃的失败预览由清理协程回收
func (m *PreviewManager) fail(id string, err error) {
	logger.Error("预览合成失败: %s: %v", id, err)
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.entries[id]; ok {
		p.Status = PreviewFailed
		p.Error = err.Error()
		p.ExpiresAt = time.Now().Add(m.ttl)
	}
}

// Get 查询单条预览。ready的预览附带若立即审批的预计播出时间。
func (m *PreviewManager) Get(id string) (*Preview, error) {
	m.mu.Lock()
	p, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return nil, types.ErrPreviewNotFound
	}
	snap := *p
	m.mu.Unlock()
	return &snap, nil
}

// EstimatedStart ready预览若立即审批的预计开播时刻
func (m *PreviewManager) EstimatedStart() time.Time {
	if m.queue == nil {
		return time.Now()
	}
	return m.queue.Status().EstimatedIdle
}

// List 全部预览快照，按创建时间排列由调用方处理
func (m *PreviewManager) List() []Preview {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Preview, 0, len(m.entries))
	for _, p := range m.entries {
		out = append(out, *p)
	}
	return out
}

// Approve 审批通过：试听产物原样入队播放（跳过提示音），
// 预览记录删除，产物文件交给队列播放后保留在预览目录。
func (m *PreviewManager) Approve(id string) (*Enqueued, error) {
	m.mu.Lock()
	p, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return nil, types.ErrPreviewNotFound
	}
	if p.Status != PreviewReady {
		status := p.Status
		m.mu.Unlock()
		return nil, types.NewProtocolError("预览 %s 当前状态为 %s，不可审批", id, status)
	}
	artifact := p.ArtifactPath
	targets := p.Targets
	delete(m.entries, id)
	m.mu.Unlock()

	enq, err := m.queue.EnqueueAudio(artifact, targets, true)
	if err != nil {
		// 入队失败把预览放回去，调用方可以稍后重试
		m.mu.Lock()
		p.ExpiresAt = time.Now().Add(m.ttl)
		m.entries[id] = p
		m.mu.Unlock()
		return nil, err
	}

	logger.Info("预览审批通过: %s -> %s", id, enq.JobID)
	if m.bus != nil {
		m.bus.Publish(events.Event{
			Type: events.EventPreviewApproved,
			Data: events.PreviewEventData{PreviewID: id, Kind: p.Kind},
		})
	}
	return enq, nil
}

// Reject 驳回：删除预览记录和试听产物
func (m *PreviewManager) Reject(id, reason string) error {
	m.mu.Lock()
	p, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return types.ErrPreviewNotFound
	}
	delete(m.entries, id)
	artifact := p.ArtifactPath
	m.mu.Unlock()

	if artifact != "" {
		if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
			logger.Warn("预览产物删除失败: %v", err)
		}
	}

	logger.Info("预览驳回: %s (%s)", id, reason)
	if m.bus != nil {
		m.bus.Publish(events.Event{
			Type: events.EventPreviewRejected,
			Data: events.PreviewEventData{PreviewID: id, Kind: p.Kind, Reason: reason},
		})
	}
	return nil
}

// sweeper 周期清理超过TTL未审批的预览
func (m *PreviewManager) sweeper() {
	defer m.wg.Done()
	ticker := time.NewTicker(previewSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweepExpired(time.Now())
		}
	}
}

func (m *PreviewManager) sweepExpired(now time.Time) {
	type expired struct {
		id, kind, artifact string
	}
	var dead []expired

	// 任何状态的条目过期都清理：ready是未审批超时，failed/waiting是
	// 调用方放弃的遗留。合成协程对条目消失是安全的（查不到就放弃写回）。
	m.mu.Lock()
	for id, p := range m.entries {
		if !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt) {
			dead = append(dead, expired{id, p.Kind, p.ArtifactPath})
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()

	for _, d := range dead {
		if d.artifact != "" {
			if err := os.Remove(d.artifact); err != nil && !os.IsNotExist(err) {
				logger.Warn("过期预览产物删除失败: %v", err)
			}
		}
		logger.Info("预览超时未审批，已清理: %s", d.id)
		if m.bus != nil {
			m.bus.Publish(events.Event{
				Type: events.EventPreviewExpired,
				Data: events.PreviewEventData{PreviewID: d.id, Kind: d.kind, Reason: "ttl expired"},
			})
		}
	}
}
