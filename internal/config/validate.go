package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateCaption(); err != nil {
		return err
	}
	if err := c.validateAccess(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	switch c.Translation.Provider {
	case "openai", "none":
	default:
		return fmt.Errorf("translation.provider must be one of openai, none (got %q)", c.Translation.Provider)
	}
	if c.Translation.Temperature < 0 || c.Translation.Temperature > 2 {
		return errors.New("translation.temperature must be between 0 and 2")
	}
	return ensurePositiveMap(map[string]int{
		"translation.timeout_seconds": c.Translation.TimeoutSeconds,
		"translation.concurrency":     c.Translation.Concurrency,
	})
}

func (c *Config) validateCaption() error {
	if c.Caption.FontSize <= 0 {
		return errors.New("caption.font_size must be positive")
	}
	if c.Caption.WidthRatio <= 0 || c.Caption.WidthRatio > 1 {
		return errors.New("caption.width_ratio must be in (0, 1]")
	}
	if c.Caption.BottomMargin < 0 {
		return errors.New("caption.bottom_margin must be >= 0")
	}
	if c.Caption.LineSpacing < 0 {
		return errors.New("caption.line_spacing must be >= 0")
	}
	return nil
}

func (c *Config) validateAccess() error {
	if c.Access.TTLSeconds <= 0 {
		return errors.New("access.ttl_seconds must be positive")
	}
	if key := c.Access.SigningKey; key != "" && len(key) < 16 {
		return errors.New("access.signing_key must be at least 16 characters (or unset to use an ephemeral key)")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "local":
		return nil
	case "minio":
		if c.Storage.MinioEndpoint == "" {
			return errors.New("storage.minio_endpoint must be set when storage.backend is minio (or set MINIO_ENDPOINT)")
		}
		if c.Storage.MinioAccessKey == "" || c.Storage.MinioSecretKey == "" {
			return errors.New("storage.minio_access_key and storage.minio_secret_key must be set when storage.backend is minio")
		}
		if c.Storage.MinioBucket == "" {
			return errors.New("storage.minio_bucket must be set when storage.backend is minio")
		}
		return nil
	default:
		return fmt.Errorf("storage.backend must be one of local, minio (got %q)", c.Storage.Backend)
	}
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL (got %q)", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
