package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"captioner/internal/config"
	"captioner/internal/services"
)

// Artifact describes a published file.
type Artifact struct {
	Name     string
	Location string
	Size     int64
	Checksum string
}

// Store publishes rendered outputs and resolves them for download.
type Store interface {
	// Publish takes ownership of the file at localPath and stores it as name.
	Publish(ctx context.Context, localPath, name string) (Artifact, error)
	// Locate returns a path or URL for name, or an error wrapping
	// services.ErrNotFound.
	Locate(ctx context.Context, name string) (string, error)
	Remove(ctx context.Context, name string) error
}

// New builds the store selected by cfg.Storage.Backend.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "open store", "config is nil", nil)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", "local":
		return NewLocal(cfg.Paths.OutputDir, logger)
	case "minio":
		return NewMinio(MinioOptions{
			Endpoint:   cfg.Storage.MinioEndpoint,
			AccessKey:  cfg.Storage.MinioAccessKey,
			SecretKey:  cfg.Storage.MinioSecretKey,
			Bucket:     cfg.Storage.MinioBucket,
			Region:     cfg.Storage.MinioRegion,
			UseSSL:     cfg.Storage.MinioUseSSL,
			PresignTTL: cfg.TokenTTL(),
		}, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "open store", fmt.Sprintf("unknown storage backend %q", cfg.Storage.Backend), nil)
	}
}

func checkName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("artifact name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("artifact name %q is not a file", name)
	case strings.ContainsAny(name, "/\\\x00"), filepath.Base(name) != name:
		return fmt.Errorf("artifact name %q must not contain a path", name)
	}
	return nil
}
