package broadcast

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"backend/internal/device"
	"backend/internal/events"
	"backend/internal/packet"
)

// fakeSender 总是成功的报文发送桩
type fakeSender struct {
	mu    sync.Mutex
	count int
}

func (f *fakeSender) Send(frame []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return frame, nil
}

func (f *fakeSender) SendOnce(frame []byte) ([]byte, error) { return f.Send(frame) }

func (f *fakeSender) TestConnection() bool  { return true }
func (f *fakeSender) PacketsSent() int      { return f.count }
func (f *fakeSender) Target() (string, int) { return "192.0.2.1", 5000 }

// fakePlayer 记录播放顺序
type fakePlayer struct {
	mu     sync.Mutex
	played []string
	err    error
}

func (f *fakePlayer) Play(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.played = append(f.played, path)
	return nil
}

func (f *fakePlayer) Stop() {}

func (f *fakePlayer) playedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

// blockingPlayer 播放时挂起直到Stop，用于制造"广播进行中"的窗口
type blockingPlayer struct {
	mu      sync.Mutex
	plays   int
	started chan struct{}
	release chan struct{}
	stopped bool
}

func newBlockingPlayer() *blockingPlayer {
	return &blockingPlayer{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (b *blockingPlayer) Play(path string) error {
	b.mu.Lock()
	b.plays++
	b.mu.Unlock()
	b.started <- struct{}{}
	<-b.release
	return nil
}

func (b *blockingPlayer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.stopped {
		b.stopped = true
		close(b.release)
	}
}

func (b *blockingPlayer) playCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.plays
}

func (b *blockingPlayer) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-b.started:
	case <-time.After(5 * time.Second):
		t.Fatal("等待播放开始超时")
	}
}

// fakeSynth 立即返回固定文件
type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	path  string
	err   error
}

func (f *fakeSynth) Synthesize(text, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, text)
	return f.path, nil
}

// memHistory 内存里的历史归档
type memHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

func (m *memHistory) Record(entry HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memHistory) all() []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryEntry(nil), m.entries...)
}

func newTestStore() *device.Store {
	return device.NewStore(packet.NewBuilder(packet.GridAddressing{}), &fakeSender{}, nil)
}

func tempAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp3")
	if err := os.WriteFile(path, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// waitComplete 订阅任务结束事件，返回等待函数
func waitComplete(bus *events.EventBus, n int) func(t *testing.T) {
	done := make(chan struct{}, n*2)
	handler := func(events.Event) { done <- struct{}{} }
	bus.Subscribe(events.EventBroadcastComplete, handler)
	bus.Subscribe(events.EventBroadcastFailed, handler)

	return func(t *testing.T) {
		t.Helper()
		for i := 0; i < n; i++ {
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("等待广播结束超时")
			}
		}
	}
}

func TestTextBroadcastLifecycle(t *testing.T) {
	bus := events.NewEventBus()
	store := newTestStore()
	player := &fakePlayer{}
	synth := &fakeSynth{path: tempAudioFile(t)}
	history := &memHistory{}

	q := NewQueue(Options{
		Store:         store,
		Player:        player,
		Synthesizer:   synth,
		History:       history,
		Bus:           bus,
		RestoreStates: true,
	})
	wait := waitComplete(bus, 1)
	q.Start()
	defer q.Close()

	enq, err := q.EnqueueText("放学时间到了", "", []string{"1-1", "3-2"})
	if err != nil {
		t.Fatalf("EnqueueText: %v", err)
	}
	if enq.Position != 1 {
		t.Errorf("Position = %d, 期望 1", enq.Position)
	}
	if enq.EstimatedDuration != minTextSeconds {
		t.Errorf("短文本估算 = %.1f, 期望下限 %.1f", enq.EstimatedDuration, minTextSeconds)
	}

	wait(t)

	// 内容播放过，广播结束后分区恢复为广播前状态（空）
	if played := player.playedPaths(); len(played) != 1 || played[0] != synth.path {
		t.Fatalf("播放记录 = %v", played)
	}
	if active := store.ActiveRooms(); len(active) != 0 {
		t.Fatalf("恢复后激活集合 = %v, 期望空", active)
	}

	entries := history.all()
	if len(entries) != 1 {
		t.Fatalf("历史记录数 = %d, 期望 1", len(entries))
	}
	if entries[0].Status != "completed" || entries[0].JobID != enq.JobID {
		t.Fatalf("历史记录 = %+v", entries[0])
	}
}

func TestQueueIsFIFO(t *testing.T) {
	bus := events.NewEventBus()
	store := newTestStore()
	player := &fakePlayer{}

	first := tempAudioFile(t)
	second := filepath.Join(t.TempDir(), "second.mp3")
	if err := os.WriteFile(second, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	q := NewQueue(Options{
		Store:  store,
		Player: player,
		Bus:    bus,
	})
	wait := waitComplete(bus, 2)

	// 先全部入队再启动，保证顺序只由队列决定
	enq1, err := q.EnqueueAudio(first, []string{"1-1"}, true)
	if err != nil {
		t.Fatalf("EnqueueAudio: %v", err)
	}
	enq2, err := q.EnqueueAudio(second, []string{"1-2"}, true)
	if err != nil {
		t.Fatalf("EnqueueAudio: %v", err)
	}
	if enq1.Position != 1 || enq2.Position != 2 {
		t.Fatalf("入队位置 = %d, %d", enq1.Position, enq2.Position)
	}
	if !enq2.EstimatedStart.After(enq1.EstimatedStart) {
		t.Error("后入队任务的预计开始时间应当更晚")
	}

	q.Start()
	defer q.Close()
	wait(t)

	played := player.playedPaths()
	if len(played) != 2 || played[0] != first || played[1] != second {
		t.Fatalf("播放顺序 = %v", played)
	}
}

func TestEnqueueRejectsBadInput(t *testing.T) {
	q := NewQueue(Options{Store: newTestStore(), Player: &fakePlayer{}})

	t.Run("目标全部非法", func(t *testing.T) {
		if _, err := q.EnqueueText("测试", "", []string{"不存在"}); err == nil {
			t.Fatal("非法目标应当拒绝入队")
		}
	})

	t.Run("音频文件不存在", func(t *testing.T) {
		if _, err := q.EnqueueAudio("/no/such/file.mp3", []string{"1-1"}, false); err == nil {
			t.Fatal("不存在的文件应当拒绝入队")
		}
	})
}

func TestSynthesisFailureSkipsDevice(t *testing.T) {
	bus := events.NewEventBus()
	store := newTestStore()
	player := &fakePlayer{}
	synth := &fakeSynth{err: errors.New("tts unavailable")}
	history := &memHistory{}

	q := NewQueue(Options{
		Store:       store,
		Player:      player,
		Synthesizer: synth,
		History:     history,
		Bus:         bus,
	})
	wait := waitComplete(bus, 1)
	q.Start()
	defer q.Close()

	if _, err := q.EnqueueText("测试", "", []string{"1-1"}); err != nil {
		t.Fatalf("EnqueueText: %v", err)
	}
	wait(t)

	// 合成失败发生在激活之前，不应有任何播放动作
	if played := player.playedPaths(); len(played) != 0 {
		t.Fatalf("播放记录 = %v, 期望空", played)
	}
	entries := history.all()
	if len(entries) != 1 || entries[0].Status != "failed" {
		t.Fatalf("历史记录 = %+v", entries)
	}
}

func TestStopDiscardsQueue(t *testing.T) {
	store := newTestStore()
	player := &fakePlayer{}
	path := tempAudioFile(t)

	q := NewQueue(Options{Store: store, Player: player})

	// 不启动工作协程，任务停在队列里
	for i := 0; i < 3; i++ {
		if _, err := q.EnqueueAudio(path, []string{"1-1"}, true); err != nil {
			t.Fatalf("EnqueueAudio: %v", err)
		}
	}
	if st := q.Status(); st.WaitingCount != 3 {
		t.Fatalf("WaitingCount = %d, 期望 3", st.WaitingCount)
	}

	if err := q.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if st := q.Status(); st.WaitingCount != 0 {
		t.Fatalf("停止后 WaitingCount = %d, 期望 0", st.WaitingCount)
	}
	if active := store.ActiveRooms(); len(active) != 0 {
		t.Fatalf("停止后激活集合 = %v, 期望空", active)
	}
}

// 播放进行中紧急停止：当前任务被打断，排在后面的任务全部丢弃
func TestStopInterruptsRunningJob(t *testing.T) {
	bus := events.NewEventBus()
	store := newTestStore()
	player := newBlockingPlayer()
	path := tempAudioFile(t)

	q := NewQueue(Options{Store: store, Player: player, Bus: bus})
	wait := waitComplete(bus, 1)
	q.Start()
	defer q.Close()

	for i := 0; i < 3; i++ {
		if _, err := q.EnqueueAudio(path, []string{"1-1"}, true); err != nil {
			t.Fatalf("EnqueueAudio: %v", err)
		}
	}
	player.waitStarted(t)

	if err := q.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	wait(t)

	if st := q.Status(); st.WaitingCount != 0 {
		t.Fatalf("停止后 WaitingCount = %d, 期望 0", st.WaitingCount)
	}
	if active := store.ActiveRooms(); len(active) != 0 {
		t.Fatalf("停止后激活集合 = %v, 期望空", active)
	}
	// 第2、3个任务不能被继续执行
	if got := player.playCount(); got != 1 {
		t.Fatalf("播放次数 = %d, 期望 1", got)
	}
}

// 紧急停止后恢复流程不得拿广播前快照把分区重新打开
func TestStopSuppressesRestore(t *testing.T) {
	bus := events.NewEventBus()
	store := newTestStore()
	player := newBlockingPlayer()
	path := tempAudioFile(t)

	// 广播开始前已有别处打开的分区，会被记入恢复快照
	if err := store.SetActiveRooms([]int{416}); err != nil {
		t.Fatalf("SetActiveRooms: %v", err)
	}

	q := NewQueue(Options{Store: store, Player: player, Bus: bus, RestoreStates: true})
	wait := waitComplete(bus, 1)
	q.Start()
	defer q.Close()

	if _, err := q.EnqueueAudio(path, []string{"1-1"}, true); err != nil {
		t.Fatalf("EnqueueAudio: %v", err)
	}
	player.waitStarted(t)

	if err := q.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	wait(t)

	if active := store.ActiveRooms(); len(active) != 0 {
		t.Fatalf("停止后激活集合 = %v, 期望空", active)
	}
}

// 系统停机后再触发紧急停止必须立即返回，不能空转
func TestStopAfterClose(t *testing.T) {
	q := NewQueue(Options{Store: newTestStore(), Player: &fakePlayer{}})
	q.Start()
	q.Close()

	done := make(chan error, 1)
	go func() { done <- q.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("关闭后的Stop没有返回")
	}
}

func TestEstimates(t *testing.T) {
	t.Run("短文本下限", func(t *testing.T) {
		if got := estimateText("喂"); got != minTextSeconds {
			t.Errorf("estimateText = %.1f, 期望 %.1f", got, minTextSeconds)
		}
	})

	t.Run("按字数线性增长", func(t *testing.T) {
		long := make([]rune, 100)
		for i := range long {
			long[i] = '字'
		}
		if got := estimateText(string(long)); got != 30.0 {
			t.Errorf("estimateText = %.1f, 期望 30.0", got)
		}
	})

	t.Run("音频探测失败用兜底", func(t *testing.T) {
		if got := estimateAudio(nil, "x.mp3"); got != fallbackAudioSecs {
			t.Errorf("estimateAudio = %.1f, 期望 %.1f", got, fallbackAudioSecs)
		}
	})
}
