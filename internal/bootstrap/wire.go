package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"meetingrec/internal/archive"
	"meetingrec/internal/audio"
	"meetingrec/internal/catalog"
	"meetingrec/internal/config"
	"meetingrec/internal/logging"
	"meetingrec/internal/notify"
	"meetingrec/internal/ports"
	"meetingrec/internal/preflight"
	"meetingrec/internal/report"
	"meetingrec/internal/rules"
	"meetingrec/internal/screenshot"
	"meetingrec/internal/statusfeed"
	"meetingrec/internal/transcription"
	"meetingrec/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Events     *usecase.Fanout
	Catalog    *catalog.Store
	// Feed is nil unless status_feed.addr is configured.
	Feed   *statusfeed.Hub
	Config config.Config
}

// Close releases resources held by the graph.
func (s Services) Close() error {
	if s.Feed != nil {
		s.Feed.Close()
	}
	if s.Catalog != nil {
		return s.Catalog.Close()
	}
	return nil
}

// Build wires all backend dependencies for cfg. Extra sinks receive every
// status change and failure event.
func Build(ctx context.Context, cfg config.Config, sinks ...ports.EventSink) (Services, error) {
	for _, err := range cfg.Validate() {
		logging.L("config").Warn(err.Error())
	}

	corrector, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	store, err := catalog.Open(cfg.Storage.CatalogPath)
	if err != nil {
		return Services{}, fmt.Errorf("open catalog: %w", err)
	}

	hooks := []ports.ExportHook{store}
	if cfg.Archive.S3Bucket != "" {
		archiver, err := archive.NewS3Archiver(ctx, cfg.Archive.S3Bucket, cfg.Archive.S3Region, cfg.Archive.S3Prefix)
		if err != nil {
			_ = store.Close()
			return Services{}, err
		}
		hooks = append(hooks, archiver)
	}

	events := usecase.NewFanout(notify.New(cfg.Notifications.Desktop, logging.L("notify")))
	for _, sink := range sinks {
		events.Add(sink)
	}

	var feed *statusfeed.Hub
	if cfg.StatusFeed.Addr != "" {
		feed = statusfeed.NewHub(logging.L("statusfeed"))
		events.Add(feed)
	}

	engine := audio.NewEngine(
		audio.NewFFMPEGSource(cfg.Audio.FFmpegCommand),
		audio.NewFFMPEGMixer(cfg.Audio.FFmpegCommand),
		audio.Options{
			InputFormat:        cfg.Audio.InputFormat,
			MicDevice:          cfg.Audio.MicDevice,
			SystemDevice:       cfg.Audio.SystemDevice,
			SampleRate:         cfg.Audio.SampleRate,
			Channels:           cfg.Audio.Channels,
			ChunkSize:          cfg.Audio.ChunkSize,
			HeaderSyncInterval: cfg.Audio.HeaderSyncInterval,
			Mix:                cfg.Audio.Mix,
			MixFormat:          cfg.Audio.Format,
		},
		logging.L("audio"),
	)

	shots := screenshot.NewStore(
		screenshot.NewResolver(cfg.Screenshot.ResolverCommand),
		screenshot.NewCommandCapturer(cfg.Screenshot.CaptureCommand),
		cfg.Screenshot.Format,
		screenshot.WithLogger(logging.L("screenshot")),
	)

	retry := transcription.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Transcription.MaxAttempts
	retry.InitialDelay = cfg.Transcription.InitialBackoff
	retry.MaxDelay = cfg.Transcription.MaxBackoff

	client := transcription.NewClient(&http.Client{}, transcription.Options{
		APIKey:         cfg.Transcription.APIKey,
		BaseURL:        cfg.Transcription.APIBaseURL,
		Model:          cfg.Transcription.Model,
		Language:       cfg.Transcription.Language,
		Temperature:    cfg.Transcription.Temperature,
		AttemptTimeout: cfg.Transcription.AttemptTimeout,
		MaxUploadBytes: int64(cfg.Transcription.MaxUploadMB) * 1024 * 1024,
		ChunkSpan:      time.Duration(cfg.Transcription.ChunkSeconds) * time.Second,
		Retry:          retry,
	}, logging.L("transcription"))

	assembler := report.NewAssembler(time.Now, logging.L("report"))

	controller := usecase.NewSessionController(usecase.Dependencies{
		Recorder:    engine,
		Screenshots: shots,
		Transcriber: client,
		Assembler:   assembler,
		Corrector:   corrector,
		Transcripts: assembler,
		Storage:     preflight.NewDiskGuard(cfg.Storage.MinFreeMB),
		Hooks:       hooks,
		Events:      events,
		Logger:      logging.L("session"),
	}, usecase.Config{
		OutputDir:      cfg.OutputDir,
		FolderTemplate: cfg.FolderTemplate,
	})

	return Services{
		Controller: controller,
		Events:     events,
		Catalog:    store,
		Feed:       feed,
		Config:     cfg,
	}, nil
}
