package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"captioner/internal/artifacts"
	"captioner/internal/config"
	"captioner/internal/deps"
)

const gib = 1 << 30

// CheckTranslationAPI verifies that the OpenAI-compatible endpoint is
// reachable and accepts the key by listing models.
func CheckTranslationAPI(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Translation API"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/models", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(apiKey))

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "API reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
}

// CheckMinio verifies the configured bucket can be reached. A missing bucket
// passes because the first publish creates it.
func CheckMinio(ctx context.Context, cfg *config.Config) Result {
	const name = "MinIO"

	store, err := artifacts.NewMinio(artifacts.MinioOptions{
		Endpoint:  cfg.Storage.MinioEndpoint,
		AccessKey: cfg.Storage.MinioAccessKey,
		SecretKey: cfg.Storage.MinioSecretKey,
		Bucket:    cfg.Storage.MinioBucket,
		Region:    cfg.Storage.MinioRegion,
		UseSSL:    cfg.Storage.MinioUseSSL,
	}, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := store.BucketExists(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("bucket check failed (%v)", err)}
	}
	if !exists {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %q will be created", store.Bucket())}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %q reachable", store.Bucket())}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minGiB
// available to unprivileged users.
func CheckFreeSpace(name, path string, minGiB int) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize) //nolint:gosec
	freeGiB := float64(free) / gib
	if free < uint64(minGiB)*gib { //nolint:gosec
		return Result{Name: name, Detail: fmt.Sprintf("%s (%.1f GiB free, need %d GiB)", path, freeGiB, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%.1f GiB free)", path, freeGiB)}
}

// CheckSystemDeps evaluates the external binaries a render needs. Both the
// workflow and the doctor command use this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for audio extraction, decoding and encoding",
			VersionArgs: []string{"-hide_banner", "-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media inspection",
			VersionArgs: []string{"-hide_banner", "-version"},
		},
		{
			Name:        "uvx",
			Command:     cfg.UVXBinary(),
			Description: "Required for WhisperX-driven transcription",
			VersionArgs: []string{"--version"},
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}
