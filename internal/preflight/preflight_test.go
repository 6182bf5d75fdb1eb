package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/config"
	"captioner/internal/services"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 0); !result.Passed {
		t.Fatalf("zero requirement should pass, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, 1<<30); result.Passed {
		t.Fatal("an exabyte requirement should fail")
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("missing path should fail")
	}
}

func TestCheckTranslationAPI_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" || r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckTranslationAPI(context.Background(), srv.URL+"/", "good-key")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckTranslationAPI_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckTranslationAPI(context.Background(), srv.URL, "bad-key")
	if result.Passed || !strings.Contains(result.Detail, "invalid api key") {
		t.Fatalf("expected auth failure, got %+v", result)
	}
}

func TestCheckTranslationAPI_MissingFields(t *testing.T) {
	if result := CheckTranslationAPI(context.Background(), "", "key"); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
	if result := CheckTranslationAPI(context.Background(), "http://localhost", ""); result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func localConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.StagingDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Render.MinFreeGiB = 0
	cfg.Storage.Backend = "local"
	cfg.Translation.Provider = "none"
	return cfg
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := localConfig(t)

	results := RunAll(context.Background(), &cfg)
	// Should have staging + output directory checks
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if err := Failed(results); err != nil {
		t.Fatalf("Failed returned %v", err)
	}
}

func TestRunAll_IncludesTranslationWhenOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := localConfig(t)
	cfg.Translation.Provider = "openai"
	cfg.Translation.BaseURL = srv.URL
	cfg.Translation.APIKey = "test"

	results := RunAll(context.Background(), &cfg)
	found := false
	for _, r := range results {
		if r.Name == "Translation API" {
			found = true
			if !r.Passed {
				t.Errorf("translation check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected translation check in results")
	}
}

func TestFailedJoinsProblems(t *testing.T) {
	cfg := localConfig(t)
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "missing")

	err := Failed(RunAll(context.Background(), &cfg))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Output directory") {
		t.Fatalf("error should name the failing check: %v", err)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := localConfig(t)
	statuses := CheckSystemDeps(context.Background(), &cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	names := []string{statuses[0].Name, statuses[1].Name, statuses[2].Name}
	if strings.Join(names, ",") != "FFmpeg,FFprobe,uvx" {
		t.Fatalf("unexpected requirement order %v", names)
	}
}
