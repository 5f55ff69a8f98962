package config

import (
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validAudioFormats = map[string]bool{
	"wav": true,
	"mp3": true,
	"m4a": true,
}

var validImageFormats = map[string]bool{
	"png": true,
	"jpg": true,
}

// Validate checks the config for invalid values and returns all errors found.
// Values that would break capture or retry loops are clamped to safe defaults.
func (c *Config) Validate() []error {
	var errs []error

	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, fmt.Errorf("output_dir must not be empty"))
	}
	if _, err := template.New("folder").Parse(c.FolderTemplate); err != nil || strings.TrimSpace(c.FolderTemplate) == "" {
		errs = append(errs, fmt.Errorf("folder_template %q is not a valid template", c.FolderTemplate))
	}

	if c.Audio.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is below minimum 8000, clamping", c.Audio.SampleRate))
		c.Audio.SampleRate = 8000
	} else if c.Audio.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d exceeds maximum 48000, clamping", c.Audio.SampleRate))
		c.Audio.SampleRate = 48000
	}
	if c.Audio.Channels < 1 {
		errs = append(errs, fmt.Errorf("audio.channels %d is below minimum 1, clamping", c.Audio.Channels))
		c.Audio.Channels = 1
	} else if c.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d exceeds maximum 2, clamping", c.Audio.Channels))
		c.Audio.Channels = 2
	}
	if c.Audio.ChunkSize < 256 {
		errs = append(errs, fmt.Errorf("audio.chunk_size %d is below minimum 256, clamping", c.Audio.ChunkSize))
		c.Audio.ChunkSize = 4096
	}
	if c.Audio.HeaderSyncInterval <= 0 {
		errs = append(errs, fmt.Errorf("audio.header_sync_interval must be positive, clamping"))
		c.Audio.HeaderSyncInterval = time.Second
	}
	if !validAudioFormats[strings.ToLower(c.Audio.Format)] {
		errs = append(errs, fmt.Errorf("audio.format %q is not valid (use wav, mp3, m4a)", c.Audio.Format))
		c.Audio.Format = "wav"
	}
	if strings.TrimSpace(c.Audio.MicDevice) == "" {
		errs = append(errs, fmt.Errorf("audio.mic_device must not be empty"))
	}

	if !validImageFormats[strings.ToLower(c.Screenshot.Format)] {
		errs = append(errs, fmt.Errorf("screenshot.format %q is not valid (use png or jpg)", c.Screenshot.Format))
		c.Screenshot.Format = "png"
	}

	if c.Transcription.APIBaseURL != "" {
		u, err := url.Parse(c.Transcription.APIBaseURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("transcription.api_base_url %q is not a valid URL: %w", c.Transcription.APIBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("transcription.api_base_url scheme must be http or https, got %q", u.Scheme))
		}
	}
	if c.Transcription.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("transcription.max_attempts %d is below minimum 1, clamping", c.Transcription.MaxAttempts))
		c.Transcription.MaxAttempts = 1
	} else if c.Transcription.MaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("transcription.max_attempts %d exceeds maximum 10, clamping", c.Transcription.MaxAttempts))
		c.Transcription.MaxAttempts = 10
	}
	if c.Transcription.InitialBackoff <= 0 {
		errs = append(errs, fmt.Errorf("transcription.initial_backoff must be positive, clamping"))
		c.Transcription.InitialBackoff = time.Second
	}
	if c.Transcription.MaxBackoff < c.Transcription.InitialBackoff {
		errs = append(errs, fmt.Errorf("transcription.max_backoff %s is below initial_backoff, clamping", c.Transcription.MaxBackoff))
		c.Transcription.MaxBackoff = c.Transcription.InitialBackoff
	}
	if c.Transcription.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("transcription.attempt_timeout must be positive, clamping"))
		c.Transcription.AttemptTimeout = 5 * time.Minute
	}
	if c.Transcription.Temperature < 0 || c.Transcription.Temperature > 1 {
		errs = append(errs, fmt.Errorf("transcription.temperature %.2f is outside [0,1], clamping", c.Transcription.Temperature))
		c.Transcription.Temperature = min(max(c.Transcription.Temperature, 0), 1)
	}
	if c.Transcription.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("transcription.max_upload_mb %d is below minimum 1, clamping", c.Transcription.MaxUploadMB))
		c.Transcription.MaxUploadMB = 1
	}
	if c.Transcription.ChunkSeconds < 30 {
		errs = append(errs, fmt.Errorf("transcription.chunk_seconds %d is below minimum 30, clamping", c.Transcription.ChunkSeconds))
		c.Transcription.ChunkSeconds = 30
	}

	if c.Rules.IterationLimit <= 0 {
		errs = append(errs, fmt.Errorf("rules.iteration_limit %d is below minimum 1, clamping", c.Rules.IterationLimit))
		c.Rules.IterationLimit = 30
	}
	if c.Storage.MinFreeMB < 0 {
		errs = append(errs, fmt.Errorf("storage.min_free_mb %d is negative, clamping", c.Storage.MinFreeMB))
		c.Storage.MinFreeMB = 0
	}
	if c.Archive.S3Bucket != "" && c.Archive.S3Region == "" {
		errs = append(errs, fmt.Errorf("archive.s3_region is required when archive.s3_bucket is set"))
	}

	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Errorf("log.level %q is not valid (use debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "" && c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not valid (use console or json)", c.Log.Format))
	}

	return errs
}
