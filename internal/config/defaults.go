package config

const (
	defaultConfigPath             = "~/.config/captioner/config.toml"
	defaultStagingDir             = "~/.local/share/captioner/staging"
	defaultOutputDir              = "~/.local/share/captioner/output"
	defaultLogDir                 = "~/.local/share/captioner/logs"
	defaultFontsDir               = "~/.local/share/captioner/fonts"
	defaultJobsDB                 = "~/.local/share/captioner/jobs.db"
	defaultWhisperXModel          = "large-v3"
	defaultWhisperXVADMethod      = "silero"
	defaultTranslationProvider    = "openai"
	defaultTranslationBaseURL     = "https://api.openai.com/v1"
	defaultTranslationModel       = "gpt-4o-mini"
	defaultTranslationTimeout     = 30
	defaultTranslationConcurrency = 1
	defaultTranslationRetries     = 3
	defaultTargetLanguage         = "en"
	defaultFontName               = "Poppins-Bold.ttf"
	defaultFontSize               = 36
	defaultFontColor              = "black"
	defaultWidthRatio             = 0.9
	defaultBottomMargin           = 50
	defaultLineSpacing            = 5
	defaultVideoCodec             = "libx264"
	defaultAudioCodec             = "aac"
	defaultPixelFormat            = "yuv420p"
	defaultPreset                 = "medium"
	defaultCRF                    = 20
	defaultMinFreeGiB             = 2
	defaultTokenTTLSeconds        = 3600
	defaultAccessBaseURL          = "http://127.0.0.1:8000"
	defaultStorageBackend         = "local"
	defaultMinioBucket            = "captioner"
	defaultMinioRegion            = "us-east-1"
	defaultNtfyTimeout            = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogMaxSizeMB           = 50
	defaultLogMaxBackups          = 5
	defaultLogMaxAgeDays          = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			FontsDir:   defaultFontsDir,
			JobsDB:     defaultJobsDB,
		},
		Recognition: Recognition{
			Model:     defaultWhisperXModel,
			VADMethod: defaultWhisperXVADMethod,
		},
		Translation: Translation{
			Provider:       defaultTranslationProvider,
			BaseURL:        defaultTranslationBaseURL,
			Model:          defaultTranslationModel,
			TimeoutSeconds: defaultTranslationTimeout,
			Concurrency:    defaultTranslationConcurrency,
			RetryAttempts:  defaultTranslationRetries,
			DefaultTarget:  defaultTargetLanguage,
		},
		Caption: Caption{
			FontName:     defaultFontName,
			FontSize:     defaultFontSize,
			FontColor:    defaultFontColor,
			WidthRatio:   defaultWidthRatio,
			BottomMargin: defaultBottomMargin,
			LineSpacing:  defaultLineSpacing,
		},
		Render: Render{
			VideoCodec:  defaultVideoCodec,
			AudioCodec:  defaultAudioCodec,
			PixelFormat: defaultPixelFormat,
			Preset:      defaultPreset,
			CRF:         defaultCRF,
			MinFreeGiB:  defaultMinFreeGiB,
		},
		Access: Access{
			TTLSeconds: defaultTokenTTLSeconds,
			BaseURL:    defaultAccessBaseURL,
		},
		Storage: Storage{
			Backend:     defaultStorageBackend,
			MinioBucket: defaultMinioBucket,
			MinioRegion: defaultMinioRegion,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
