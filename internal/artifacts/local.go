package artifacts

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"captioner/internal/fileutil"
	"captioner/internal/logging"
	"captioner/internal/services"
)

// Local stores artifacts as files in one directory.
type Local struct {
	dir    string
	logger *slog.Logger
}

// NewLocal creates dir if needed and returns a store rooted there.
func NewLocal(dir string, logger *slog.Logger) (*Local, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "open local store", "output directory is empty", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "open local store", "create output directory", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Local{dir: dir, logger: logging.NewComponentLogger(logger, "artifacts")}, nil
}

// Dir is the store's root directory.
func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Publish(ctx context.Context, localPath, name string) (Artifact, error) {
	if err := checkName(name); err != nil {
		return Artifact{}, services.Wrap(services.ErrValidation, "artifacts", "publish", "", err)
	}
	target := filepath.Join(l.dir, name)
	sum := ""
	if filepath.Clean(localPath) != filepath.Clean(target) {
		moved, err := fileutil.MoveFile(localPath, target)
		if err != nil {
			return Artifact{}, services.Wrap(services.ErrTransient, "artifacts", "publish", "move into output directory", err)
		}
		sum = moved
	}
	info, err := os.Stat(target)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrTransient, "artifacts", "publish", "stat published file", err)
	}
	if sum == "" {
		if sum, err = fileutil.HashFile(target); err != nil {
			return Artifact{}, services.Wrap(services.ErrTransient, "artifacts", "publish", "hash published file", err)
		}
	}
	logging.WithContext(ctx, l.logger).Info("artifact published",
		logging.String("name", name),
		logging.String("path", target),
		logging.Int64("size_bytes", info.Size()),
	)
	return Artifact{Name: name, Location: target, Size: info.Size(), Checksum: sum}, nil
}

func (l *Local) Locate(_ context.Context, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", services.Wrap(services.ErrValidation, "artifacts", "locate", "", err)
	}
	target := filepath.Join(l.dir, name)
	info, err := os.Stat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", services.Wrap(services.ErrNotFound, "artifacts", "locate", "video not found: "+name, nil)
	case err != nil:
		return "", services.Wrap(services.ErrTransient, "artifacts", "locate", "", err)
	case info.IsDir():
		return "", services.Wrap(services.ErrNotFound, "artifacts", "locate", "video not found: "+name, nil)
	}
	return target, nil
}

func (l *Local) Remove(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return services.Wrap(services.ErrValidation, "artifacts", "remove", "", err)
	}
	if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrTransient, "artifacts", "remove", "", err)
	}
	return nil
}
