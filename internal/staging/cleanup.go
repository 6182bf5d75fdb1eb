package staging

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"captioner/internal/logging"
)

// Request summarizes the staging files of one request id.
type Request struct {
	ID      string
	Files   []string
	Size    int64
	ModTime time.Time
	Active  bool
}

// CleanStaleResult contains the outcome of a stale file cleanup.
type CleanStaleResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// List groups the request files in stagingDir by id, newest first. Unrelated
// files are ignored. A request is Active when another process holds its lock.
func List(stagingDir string) ([]Request, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	byID := make(map[string]*Request)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := RequestID(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		req := byID[id]
		if req == nil {
			req = &Request{ID: id}
			byID[id] = req
		}
		req.Files = append(req.Files, filepath.Join(stagingDir, entry.Name()))
		req.Size += info.Size()
		if info.ModTime().After(req.ModTime) {
			req.ModTime = info.ModTime()
		}
	}

	requests := make([]Request, 0, len(byID))
	for id, req := range byID {
		req.Active = isLocked(NewFiles(stagingDir, id).Lock)
		sort.Strings(req.Files)
		requests = append(requests, *req)
	}
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].ModTime.Equal(requests[j].ModTime) {
			return requests[i].ModTime.After(requests[j].ModTime)
		}
		return requests[i].ID < requests[j].ID
	})
	return requests, nil
}

// CleanStale removes the files of requests whose newest file is older than
// maxAge. Requests with a held lock are skipped regardless of age.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	requests, err := List(stagingDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, req := range requests {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: ctx.Err()})
			return result
		}
		if !req.ModTime.Before(cutoff) {
			continue
		}
		if req.Active {
			result.Skipped = append(result.Skipped, req.ID)
			continue
		}
		for _, path := range req.Files {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				logging.WarnWithContext(logger, "failed to remove stale staging file", "staging_cleanup_failed",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
				continue
			}
			result.Removed = append(result.Removed, path)
		}
		logger.Info("removed stale staging files",
			logging.String(logging.FieldJobID, req.ID),
			logging.Int("files", len(req.Files)),
			logging.Duration("age", time.Since(req.ModTime)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

func isLocked(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return false
	}
	if locked {
		_ = lock.Unlock()
		return false
	}
	return true
}
