// internal/app/app.go

package app

import (
	"context"
	"fmt"
	"time"

	"backend/api"
	"backend/internal/audio"
	"backend/internal/broadcast"
	"backend/internal/config"
	"backend/internal/db"
	"backend/internal/device"
	"backend/internal/events"
	"backend/internal/handlers"
	"backend/internal/logger"
	"backend/internal/monitor"
	"backend/internal/packet"
	"backend/internal/schedule"
	"backend/internal/transport"
	"backend/server"
)

type App struct {
	cfg      *config.Config
	eventBus *events.EventBus
	client   *transport.Client
	store    *device.Store
	queue    *broadcast.Queue
	previews *broadcast.PreviewManager
	monitor  *monitor.Monitor
	runner   *schedule.Runner
	srv      *server.Server
}

func NewApp(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

func (a *App) Initialize() error {
	logger.SetLevel(logger.ParseLevel(a.cfg.LogLevel))

	if err := db.Init_DB(a.cfg.Database.Path); err != nil {
		return err
	}
	a.eventBus = events.NewEventBus()

	strategy, err := packet.StrategyByName(a.cfg.Hardware.Addressing)
	if err != nil {
		return err
	}
	builder := packet.NewBuilder(strategy)
	a.client = transport.NewClient(a.cfg.Hardware.IP, a.cfg.Hardware.Port, a.cfg.Hardware.DoubleSend)
	a.store = device.NewStore(builder, a.client, a.eventBus)

	ffmpeg := audio.NewFFmpeg(
		a.cfg.Audio.FFmpegPath,
		a.cfg.Audio.FFprobePath,
		a.cfg.Audio.TempDir,
		a.cfg.Audio.NormalizeDBFS,
	)
	player := audio.NewExecPlayer(a.cfg.Audio.FFplayPath)
	synth := audio.NewCommandSynthesizer(
		a.cfg.Audio.TTSCommand,
		a.cfg.Audio.TTSArgs,
		a.cfg.Audio.TempDir,
		a.cfg.Audio.Language,
	)
	tones := audio.Tones{
		StartPath: a.cfg.Audio.StartTonePath,
		EndPath:   a.cfg.Audio.EndTonePath,
	}

	nameRepo := db.NewDeviceNameRepository()
	historyRepo := db.NewHistoryRepository()
	scheduleRepo := db.NewScheduleRepository()

	a.queue = broadcast.NewQueue(broadcast.Options{
		Store:         a.store,
		Player:        player,
		Synthesizer:   synth,
		Prober:        ffmpeg,
		Tones:         tones,
		Resolver:      nameRepo,
		History:       historyRepo,
		Bus:           a.eventBus,
		RestoreStates: a.cfg.Broadcast.RestoreStates,
		QueueSize:     a.cfg.Broadcast.QueueSize,
	})
	a.previews = broadcast.NewPreviewManager(broadcast.PreviewOptions{
		Queue:        a.queue,
		Synthesizer:  synth,
		Normalizer:   ffmpeg,
		Prober:       ffmpeg,
		Concatenator: ffmpeg,
		Tones:        tones,
		Bus:          a.eventBus,
		Dir:          a.cfg.Audio.PreviewDir,
		TTL:          time.Duration(a.cfg.Preview.TTLMinutes) * time.Minute,
		Workers:      a.cfg.Preview.Workers,
	})
	a.monitor = monitor.NewMonitor(a.eventBus, a.store, a.client,
		time.Duration(a.cfg.Monitor.IntervalSeconds)*time.Second)
	a.runner = schedule.NewRunner(scheduleRepo, a.queue, a.eventBus)

	a.srv = server.NewServer(a.cfg.Security.Enabled, a.cfg.Security.Allowlist)
	api.SetupRouter(
		a.srv.Router(),
		handlers.NewDeviceHandler(a.store, a.monitor, nameRepo),
		handlers.NewBroadcastHandler(a.queue, historyRepo),
		handlers.NewPreviewHandler(a.previews),
		handlers.NewScheduleHandler(scheduleRepo),
	)
	return nil
}

func (a *App) Start() error {
	a.queue.Start()
	a.previews.Start()
	a.monitor.Start()
	a.runner.Start()

	a.eventBus.Publish(events.Event{Type: events.EventSystemStartup})

	if !a.client.TestConnection() {
		logger.Warn("功放硬件当前不可达: %s:%d，报文发送时将重试",
			a.cfg.Hardware.IP, a.cfg.Hardware.Port)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.Start(a.cfg.Server.Host, a.cfg.Server.Port)
	}()

	// 给ListenAndServe一个立即失败（端口占用等）的机会
	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP服务启动失败: %w", err)
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.eventBus.Publish(events.Event{Type: events.EventSystemShutdown})

	a.runner.Close()
	a.monitor.Stop()
	a.previews.Close()

	// 停机顺序：先清队列停播放，再关闭队列，最后保证分区静默
	if err := a.queue.Stop(); err != nil {
		logger.Error("停机时全部关闭未确认: %v", err)
	}
	a.queue.Close()

	if err := a.srv.Stop(ctx); err != nil {
		return fmt.Errorf("HTTP服务关闭失败: %w", err)
	}
	logger.Info("系统已停止")
	return nil
}
