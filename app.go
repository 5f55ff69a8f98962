package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"meetingrec/internal/bootstrap"
	"meetingrec/internal/catalog"
	"meetingrec/internal/config"
	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
	"meetingrec/internal/usecase"
)

const (
	eventStatus  = "meetingrec:status"
	eventFailure = "meetingrec:failure"
)

const shutdownTimeout = 10 * time.Second

// App is the Wails application root.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
	logger     *zap.Logger
}

func NewApp() *App {
	return &App{logger: logging.L("app")}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	cfg, err := config.Load("")
	if err != nil {
		a.fail(err)
		return
	}
	if cfg.Log.File != "" {
		if f, err := logging.OpenFile(cfg.Log.File); err == nil {
			logging.Init(cfg.Log.Format, cfg.Log.Level, f)
		}
	}

	services, err := bootstrap.Build(ctx, cfg, a)
	if err != nil {
		a.fail(err)
		return
	}

	a.cfg = cfg
	a.services = services
	a.controller = services.Controller

	if services.Feed != nil {
		go func() {
			if err := services.Feed.Serve(ctx, cfg.StatusFeed.Addr, nil); err != nil {
				a.logger.Warn("status feed stopped", zap.Error(err))
			}
		}()
	}
	a.StatusChanged(a.controller.Status())
}

func (a *App) shutdown(_ context.Context) {
	if a.controller == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.controller.Shutdown(ctx); err != nil {
		a.logger.Warn("shutdown incomplete", zap.Error(err))
	}
	_ = a.services.Close()
}

func (a *App) fail(err error) {
	a.bootErr = err
	a.Failure(domain.FailureEvent{
		Kind:    domain.KindOf(err),
		Message: err.Error(),
		At:      time.Now(),
	})
}

// StartRecording begins a new meeting.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Start(a.ctx)
}

// StopRecording finalizes the audio files.
func (a *App) StopRecording() ([]domain.AudioArtifact, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.controller.Stop(a.ctx)
}

// CaptureScreenshot grabs the meeting window, or the screen when no window matches hint.
func (a *App) CaptureScreenshot(hint string) (domain.ScreenshotRecord, error) {
	if err := a.requireReady(); err != nil {
		return domain.ScreenshotRecord{}, err
	}
	return a.controller.CaptureScreenshot(a.ctx, hint)
}

// Transcribe sends the recorded audio for transcription.
func (a *App) Transcribe() (domain.Transcript, error) {
	if err := a.requireReady(); err != nil {
		return domain.Transcript{}, err
	}
	return a.controller.Transcribe(a.ctx)
}

func (a *App) CancelTranscription() {
	if a.controller != nil {
		a.controller.CancelTranscription()
	}
}

// Export writes the markdown report.
func (a *App) Export(withoutTranscript bool) (domain.Report, error) {
	if err := a.requireReady(); err != nil {
		return domain.Report{}, err
	}
	return a.controller.Export(a.ctx, usecase.ExportOptions{WithoutTranscript: withoutTranscript})
}

// Discard releases a stopped or failed session. Files stay on disk.
func (a *App) Discard() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Discard()
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateFailed, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.controller.Status()
}

// ListMeetings returns exported meetings, newest first.
func (a *App) ListMeetings(limit int) ([]catalog.Meeting, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Catalog.List(a.ctx, limit)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"outputDir":     a.cfg.OutputDir,
		"model":         a.cfg.Transcription.Model,
		"language":      a.cfg.Transcription.Language,
		"rulesFile":     a.cfg.Rules.Path,
		"micDevice":     a.cfg.Audio.MicDevice,
		"systemDevice":  a.cfg.Audio.SystemDevice,
		"inputFormat":   a.cfg.Audio.InputFormat,
		"apiKeyPresent": strconv.FormatBool(a.cfg.Transcription.APIKey != ""),
		"statusFeed":    a.cfg.StatusFeed.Addr,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// StatusChanged emits session lifecycle updates to the frontend.
func (a *App) StatusChanged(status domain.Status) {
	if a.ctx == nil {
		return
	}
	if status.Message == "" {
		status.Message = stateMessage(status.State)
	}
	runtime.EventsEmit(a.ctx, eventStatus, status)
}

// Failure emits component failures to the UI.
func (a *App) Failure(event domain.FailureEvent) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFailure, map[string]any{
		"id":          event.ID,
		"kind":        string(event.Kind),
		"title":       errorMessage(event.Kind, event.Message),
		"message":     event.Message,
		"sessionId":   event.SessionID,
		"recoverable": event.Recoverable,
	})
}

func stateMessage(state domain.SessionState) string {
	switch state {
	case domain.SessionStateIdle:
		return "Ready to record"
	case domain.SessionStateRecording:
		return "Recording"
	case domain.SessionStateStopping:
		return "Finishing audio files..."
	case domain.SessionStateStopped:
		return "Recording stopped"
	case domain.SessionStateTranscribing:
		return "Transcribing..."
	case domain.SessionStateTranscribed:
		return "Transcript ready"
	case domain.SessionStateExporting:
		return "Writing report..."
	case domain.SessionStateDone:
		return "Report saved"
	case domain.SessionStateFailed:
		return "Recording failed"
	default:
		return ""
	}
}

func errorMessage(kind domain.ErrorKind, detail string) string {
	switch kind {
	case domain.ErrorKindDeviceUnavailable:
		return "Audio device unavailable"
	case domain.ErrorKindCaptureTargetNotFound:
		return "Screenshot target not found"
	case domain.ErrorKindArtifactNotReady:
		return "Audio not ready"
	case domain.ErrorKindTranscriptionTransient:
		return "Transcription service unavailable"
	case domain.ErrorKindTranscriptionPermanent:
		return "Transcription failed"
	case domain.ErrorKindTranscriptionMalformed:
		return "Unexpected transcription response"
	case domain.ErrorKindInvalidState, domain.ErrorKindAlreadyActive:
		return "Action not available"
	case domain.ErrorKindIOFailure:
		return "File system error"
	case domain.ErrorKindStreamLost:
		return "Audio stream lost"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
