package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	FontsDir   string `toml:"fonts_dir"`
	JobsDB     string `toml:"jobs_db"`
}

// Recognition contains WhisperX transcription settings.
type Recognition struct {
	Model          string `toml:"model"`
	CUDAEnabled    bool   `toml:"cuda_enabled"`
	VADMethod      string `toml:"vad_method"`
	HuggingFace    string `toml:"hf_token"`
	SourceLanguage string `toml:"source_language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation contains machine translation backend settings.
type Translation struct {
	Provider       string  `toml:"provider"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Concurrency    int     `toml:"concurrency"`
	RetryAttempts  int     `toml:"retry_attempts"`
	DefaultTarget  string  `toml:"default_target"`
}

// Caption contains burn-in styling.
type Caption struct {
	FontName     string  `toml:"font_name"`
	FontSize     int     `toml:"font_size"`
	FontColor    string  `toml:"font_color"`
	WidthRatio   float64 `toml:"width_ratio"`
	BottomMargin int     `toml:"bottom_margin"`
	LineSpacing  int     `toml:"line_spacing"`
}

// Render contains encoder settings for the captioned output.
type Render struct {
	VideoCodec  string `toml:"video_codec"`
	AudioCodec  string `toml:"audio_codec"`
	PixelFormat string `toml:"pixel_format"`
	Preset      string `toml:"preset"`
	CRF         int    `toml:"crf"`
	MinFreeGiB  int    `toml:"min_free_gib"`
}

// Access contains download token settings.
type Access struct {
	SigningKey string `toml:"signing_key"`
	TTLSeconds int    `toml:"ttl_seconds"`
	BaseURL    string `toml:"base_url"`
}

// Storage selects where finished videos are published.
type Storage struct {
	Backend        string `toml:"backend"`
	MinioEndpoint  string `toml:"minio_endpoint"`
	MinioAccessKey string `toml:"minio_access_key"`
	MinioSecretKey string `toml:"minio_secret_key"`
	MinioBucket    string `toml:"minio_bucket"`
	MinioRegion    string `toml:"minio_region"`
	MinioUseSSL    bool   `toml:"minio_use_ssl"`
}

// Notifications contains ntfy delivery settings. An empty topic disables
// notifications.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for captioner.
//
// Configuration sections by subsystem:
//   - Paths: staging, output, log and font directories
//   - Recognition: WhisperX transcription
//   - Translation: machine translation backend and fan-out
//   - Caption: font and placement of burned-in captions
//   - Render: encoder settings and disk preflight
//   - Access: download token signing and lifetime
//   - Storage: local or MinIO publishing
//   - Notifications: ntfy completion and failure messages
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Recognition   Recognition   `toml:"recognition"`
	Translation   Translation   `toml:"translation"`
	Caption       Caption       `toml:"caption"`
	Render        Render        `toml:"render"`
	Access        Access        `toml:"access"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("captioner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories a render needs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir}
	if c.Paths.JobsDB != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.JobsDB))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// UVXBinary returns the uvx launcher used to run WhisperX.
func (c *Config) UVXBinary() string {
	return "uvx"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// TranslationTimeout returns the per-cue translation deadline.
func (c *Config) TranslationTimeout() time.Duration {
	return time.Duration(c.Translation.TimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of issued download tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Access.TTLSeconds) * time.Second
}

// RecognitionTimeout bounds one WhisperX run. Zero means unbounded.
func (c *Config) RecognitionTimeout() time.Duration {
	return time.Duration(c.Recognition.TimeoutSeconds) * time.Second
}

// NotificationTimeout bounds a single ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}
