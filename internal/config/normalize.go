package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRecognition()
	c.normalizeTranslation()
	c.normalizeCaption()
	c.normalizeRender()
	c.normalizeAccess()
	c.normalizeStorage()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.FontsDir) == "" {
		c.Paths.FontsDir = defaultFontsDir
	}
	if c.Paths.FontsDir, err = expandPath(c.Paths.FontsDir); err != nil {
		return fmt.Errorf("paths.fonts_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.JobsDB) == "" {
		c.Paths.JobsDB = defaultJobsDB
	}
	if c.Paths.JobsDB, err = expandPath(c.Paths.JobsDB); err != nil {
		return fmt.Errorf("paths.jobs_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeRecognition() {
	c.Recognition.Model = strings.TrimSpace(c.Recognition.Model)
	if c.Recognition.Model == "" {
		c.Recognition.Model = defaultWhisperXModel
	}
	c.Recognition.VADMethod = strings.ToLower(strings.TrimSpace(c.Recognition.VADMethod))
	if c.Recognition.VADMethod == "" {
		c.Recognition.VADMethod = defaultWhisperXVADMethod
	}
	c.Recognition.HuggingFace = strings.TrimSpace(c.Recognition.HuggingFace)
	if c.Recognition.HuggingFace == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Recognition.HuggingFace = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Recognition.HuggingFace = strings.TrimSpace(value)
		}
	}
	c.Recognition.SourceLanguage = strings.ToLower(strings.TrimSpace(c.Recognition.SourceLanguage))
	if c.Recognition.TimeoutSeconds < 0 {
		c.Recognition.TimeoutSeconds = 0
	}
}

func (c *Config) normalizeTranslation() {
	c.Translation.Provider = strings.ToLower(strings.TrimSpace(c.Translation.Provider))
	if c.Translation.Provider == "" {
		c.Translation.Provider = defaultTranslationProvider
	}
	c.Translation.APIKey = strings.TrimSpace(c.Translation.APIKey)
	if c.Translation.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Translation.APIKey = strings.TrimSpace(value)
		}
	}
	c.Translation.BaseURL = strings.TrimRight(strings.TrimSpace(c.Translation.BaseURL), "/")
	if c.Translation.BaseURL == "" {
		c.Translation.BaseURL = defaultTranslationBaseURL
	}
	c.Translation.Model = strings.TrimSpace(c.Translation.Model)
	if c.Translation.Model == "" {
		c.Translation.Model = defaultTranslationModel
	}
	if c.Translation.TimeoutSeconds <= 0 {
		c.Translation.TimeoutSeconds = defaultTranslationTimeout
	}
	if c.Translation.Concurrency <= 0 {
		c.Translation.Concurrency = defaultTranslationConcurrency
	}
	if c.Translation.RetryAttempts < 0 {
		c.Translation.RetryAttempts = 0
	}
	c.Translation.DefaultTarget = strings.TrimSpace(c.Translation.DefaultTarget)
	if c.Translation.DefaultTarget == "" {
		c.Translation.DefaultTarget = defaultTargetLanguage
	}
}

func (c *Config) normalizeCaption() {
	c.Caption.FontName = strings.TrimSpace(c.Caption.FontName)
	if c.Caption.FontName == "" {
		c.Caption.FontName = defaultFontName
	}
	c.Caption.FontColor = strings.ToLower(strings.TrimSpace(c.Caption.FontColor))
	if c.Caption.FontColor == "" {
		c.Caption.FontColor = defaultFontColor
	}
	if c.Caption.FontSize == 0 {
		c.Caption.FontSize = defaultFontSize
	}
	if c.Caption.WidthRatio == 0 {
		c.Caption.WidthRatio = defaultWidthRatio
	}
}

func (c *Config) normalizeRender() {
	c.Render.VideoCodec = strings.TrimSpace(c.Render.VideoCodec)
	if c.Render.VideoCodec == "" {
		c.Render.VideoCodec = defaultVideoCodec
	}
	c.Render.AudioCodec = strings.TrimSpace(c.Render.AudioCodec)
	if c.Render.AudioCodec == "" {
		c.Render.AudioCodec = defaultAudioCodec
	}
	c.Render.PixelFormat = strings.TrimSpace(c.Render.PixelFormat)
	if c.Render.PixelFormat == "" {
		c.Render.PixelFormat = defaultPixelFormat
	}
	c.Render.Preset = strings.TrimSpace(c.Render.Preset)
	if c.Render.MinFreeGiB < 0 {
		c.Render.MinFreeGiB = 0
	}
}

func (c *Config) normalizeAccess() {
	c.Access.SigningKey = strings.TrimSpace(c.Access.SigningKey)
	if c.Access.SigningKey == "" {
		if value, ok := os.LookupEnv("CAPTIONER_SIGNING_KEY"); ok {
			c.Access.SigningKey = strings.TrimSpace(value)
		}
	}
	c.Access.BaseURL = strings.TrimRight(strings.TrimSpace(c.Access.BaseURL), "/")
	if c.Access.BaseURL == "" {
		c.Access.BaseURL = defaultAccessBaseURL
	}
	if c.Access.TTLSeconds == 0 {
		c.Access.TTLSeconds = defaultTokenTTLSeconds
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	lookup := func(current *string, key string) {
		*current = strings.TrimSpace(*current)
		if *current != "" {
			return
		}
		if value, ok := os.LookupEnv(key); ok {
			*current = strings.TrimSpace(value)
		}
	}
	lookup(&c.Storage.MinioEndpoint, "MINIO_ENDPOINT")
	lookup(&c.Storage.MinioAccessKey, "MINIO_ACCESS_KEY")
	lookup(&c.Storage.MinioSecretKey, "MINIO_SECRET_KEY")
	lookup(&c.Storage.MinioBucket, "MINIO_BUCKET")
	if c.Storage.MinioBucket == "" {
		c.Storage.MinioBucket = defaultMinioBucket
	}
	c.Storage.MinioRegion = strings.TrimSpace(c.Storage.MinioRegion)
	if c.Storage.MinioRegion == "" {
		c.Storage.MinioRegion = defaultMinioRegion
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB < 0 {
		c.Logging.MaxSizeMB = 0
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}
