package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores runtime configuration. Values are read once per session start.
type Config struct {
	OutputDir      string              `mapstructure:"output_dir"`
	FolderTemplate string              `mapstructure:"folder_template"`
	Audio          AudioConfig         `mapstructure:"audio"`
	Screenshot     ScreenshotConfig    `mapstructure:"screenshot"`
	Transcription  TranscriptionConfig `mapstructure:"transcription"`
	Rules          RulesConfig         `mapstructure:"rules"`
	Storage        StorageConfig       `mapstructure:"storage"`
	Archive        ArchiveConfig       `mapstructure:"archive"`
	StatusFeed     StatusFeedConfig    `mapstructure:"status_feed"`
	Notifications  NotificationsConfig `mapstructure:"notifications"`
	Log            LogConfig           `mapstructure:"log"`

	// File is the config file that was read, empty when only defaults and env applied.
	File string `mapstructure:"-"`
}

type AudioConfig struct {
	FFmpegCommand      string        `mapstructure:"ffmpeg_command"`
	InputFormat        string        `mapstructure:"input_format"`
	MicDevice          string        `mapstructure:"mic_device"`
	SystemDevice       string        `mapstructure:"system_device"`
	Format             string        `mapstructure:"format"`
	SampleRate         int           `mapstructure:"sample_rate"`
	Channels           int           `mapstructure:"channels"`
	Mix                bool          `mapstructure:"mix"`
	ChunkSize          int           `mapstructure:"chunk_size"`
	HeaderSyncInterval time.Duration `mapstructure:"header_sync_interval"`
}

type ScreenshotConfig struct {
	Format          string `mapstructure:"format"`
	ResolverCommand string `mapstructure:"resolver_command"`
	CaptureCommand  string `mapstructure:"capture_command"`
}

type TranscriptionConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	Model          string        `mapstructure:"model"`
	Language       string        `mapstructure:"language"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MaxUploadMB    int           `mapstructure:"max_upload_mb"`
	ChunkSeconds   int           `mapstructure:"chunk_seconds"`
}

type RulesConfig struct {
	Path           string `mapstructure:"path"`
	IterationLimit int    `mapstructure:"iteration_limit"`
}

type StorageConfig struct {
	MinFreeMB   int    `mapstructure:"min_free_mb"`
	CatalogPath string `mapstructure:"catalog_path"`
}

type ArchiveConfig struct {
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Region string `mapstructure:"s3_region"`
	S3Prefix string `mapstructure:"s3_prefix"`
}

type StatusFeedConfig struct {
	Addr string `mapstructure:"addr"`
}

type NotificationsConfig struct {
	Desktop bool `mapstructure:"desktop"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
}

const envPrefix = "MEETINGREC"

// Dir returns the per-user configuration directory.
func Dir(home string) string {
	return filepath.Join(home, ".meetingrec")
}

// DefaultPath returns the config file location used when no path is given.
func DefaultPath(home string) string {
	return filepath.Join(Dir(home), "config.yaml")
}

// Load resolves configuration from the YAML file, MEETINGREC_* environment
// variables, and defaults, in decreasing priority order of env, file, default.
func Load(cfgFile string) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	v := viper.New()
	setDefaults(v, home)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir(home))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if strings.TrimSpace(cfg.Transcription.APIKey) == "" {
		cfg.Transcription.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if strings.TrimSpace(cfg.Rules.Path) == "" {
		cfg.Rules.Path = firstExisting(
			filepath.Join(Dir(home), "corrections.rules"),
			filepath.Join(home, ".config", "meetingrec", "corrections.rules"),
		)
	}

	cfg.OutputDir = expandHome(cfg.OutputDir, home)
	cfg.Rules.Path = expandHome(cfg.Rules.Path, home)
	cfg.Storage.CatalogPath = expandHome(cfg.Storage.CatalogPath, home)
	cfg.Log.File = expandHome(cfg.Log.File, home)

	return cfg, nil
}

// Default returns the configuration produced when no file or env overrides exist.
func Default(home string) Config {
	v := viper.New()
	setDefaults(v, home)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper, home string) {
	inputFormat, micDevice := "pulse", "default"
	resolver, capture := "xdotool", "import"
	if runtime.GOOS == "darwin" {
		inputFormat, micDevice = "avfoundation", ":0"
		resolver, capture = "osascript", "screencapture"
	}

	v.SetDefault("output_dir", filepath.Join(home, "MeetingRec", "meetings"))
	v.SetDefault("folder_template", "{{.Year}}-{{.Month}}-{{.Day}}-{{.Hour}}-{{.Minute}}-{{.Second}}-meeting")

	v.SetDefault("audio.ffmpeg_command", "ffmpeg")
	v.SetDefault("audio.input_format", inputFormat)
	v.SetDefault("audio.mic_device", micDevice)
	v.SetDefault("audio.system_device", "")
	v.SetDefault("audio.format", "wav")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.mix", true)
	v.SetDefault("audio.chunk_size", 4096)
	v.SetDefault("audio.header_sync_interval", time.Second)

	v.SetDefault("screenshot.format", "png")
	v.SetDefault("screenshot.resolver_command", resolver)
	v.SetDefault("screenshot.capture_command", capture)

	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.api_base_url", "https://api.openai.com/v1")
	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.language", "en")
	v.SetDefault("transcription.temperature", 0.2)
	v.SetDefault("transcription.max_attempts", 4)
	v.SetDefault("transcription.initial_backoff", time.Second)
	v.SetDefault("transcription.max_backoff", 30*time.Second)
	v.SetDefault("transcription.attempt_timeout", 5*time.Minute)
	v.SetDefault("transcription.max_upload_mb", 25)
	v.SetDefault("transcription.chunk_seconds", 600)

	v.SetDefault("rules.path", "")
	v.SetDefault("rules.iteration_limit", 30)

	v.SetDefault("storage.min_free_mb", 200)
	v.SetDefault("storage.catalog_path", filepath.Join(Dir(home), "catalog.sqlite"))

	v.SetDefault("archive.s3_bucket", "")
	v.SetDefault("archive.s3_region", "")
	v.SetDefault("archive.s3_prefix", "meetings")

	v.SetDefault("status_feed.addr", "")
	v.SetDefault("notifications.desktop", true)

	v.SetDefault("log.format", "console")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

func expandHome(path, home string) string {
	path = strings.TrimSpace(path)
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}
