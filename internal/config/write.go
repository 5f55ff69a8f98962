package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileHeader = "MeetingRec configuration.\nEnvironment variables MEETINGREC_<SECTION>_<KEY> override these values;\nOPENAI_API_KEY is used when transcription.api_key is empty."

// ErrConfigExists is returned by WriteDefault when the target already exists and force is unset.
var ErrConfigExists = errors.New("config file already exists")

// WriteDefault writes cfg as a commented YAML document at path.
func WriteDefault(path string, cfg Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	// The file may carry an API key.
	return os.WriteFile(path, data, 0o600)
}

// Marshal renders cfg in the file layout that Load reads.
func Marshal(cfg Config) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(document(cfg)); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	node.HeadComment = fileHeader

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func document(cfg Config) map[string]any {
	return map[string]any{
		"output_dir":      cfg.OutputDir,
		"folder_template": cfg.FolderTemplate,
		"audio": map[string]any{
			"ffmpeg_command":       cfg.Audio.FFmpegCommand,
			"input_format":         cfg.Audio.InputFormat,
			"mic_device":           cfg.Audio.MicDevice,
			"system_device":        cfg.Audio.SystemDevice,
			"format":               cfg.Audio.Format,
			"sample_rate":          cfg.Audio.SampleRate,
			"channels":             cfg.Audio.Channels,
			"mix":                  cfg.Audio.Mix,
			"chunk_size":           cfg.Audio.ChunkSize,
			"header_sync_interval": cfg.Audio.HeaderSyncInterval.String(),
		},
		"screenshot": map[string]any{
			"format":           cfg.Screenshot.Format,
			"resolver_command": cfg.Screenshot.ResolverCommand,
			"capture_command":  cfg.Screenshot.CaptureCommand,
		},
		"transcription": map[string]any{
			"api_key":         cfg.Transcription.APIKey,
			"api_base_url":    cfg.Transcription.APIBaseURL,
			"model":           cfg.Transcription.Model,
			"language":        cfg.Transcription.Language,
			"temperature":     cfg.Transcription.Temperature,
			"max_attempts":    cfg.Transcription.MaxAttempts,
			"initial_backoff": cfg.Transcription.InitialBackoff.String(),
			"max_backoff":     cfg.Transcription.MaxBackoff.String(),
			"attempt_timeout": cfg.Transcription.AttemptTimeout.String(),
			"max_upload_mb":   cfg.Transcription.MaxUploadMB,
			"chunk_seconds":   cfg.Transcription.ChunkSeconds,
		},
		"rules": map[string]any{
			"path":            cfg.Rules.Path,
			"iteration_limit": cfg.Rules.IterationLimit,
		},
		"storage": map[string]any{
			"min_free_mb":  cfg.Storage.MinFreeMB,
			"catalog_path": cfg.Storage.CatalogPath,
		},
		"archive": map[string]any{
			"s3_bucket": cfg.Archive.S3Bucket,
			"s3_region": cfg.Archive.S3Region,
			"s3_prefix": cfg.Archive.S3Prefix,
		},
		"status_feed": map[string]any{
			"addr": cfg.StatusFeed.Addr,
		},
		"notifications": map[string]any{
			"desktop": cfg.Notifications.Desktop,
		},
		"log": map[string]any{
			"format": cfg.Log.Format,
			"level":  cfg.Log.Level,
			"file":   cfg.Log.File,
		},
	}
}
