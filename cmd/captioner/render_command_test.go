package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"captioner/internal/services"
	"captioner/internal/testsupport"
)

func TestRenderRequiresSigningKey(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Access.SigningKey = ""
	writeTestConfig(t, env.configPath, env.cfg)

	source := filepath.Join(env.baseDir, "upload.mp4")
	testsupport.WriteSourceVideo(t, source, 4096)

	out, _, err := runCLI(t, []string{"render", "--skip-preflight", "--lang", "fr", source}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	requireContains(t, err.Error(), "signing_key")
	if out != "" {
		t.Fatalf("expected no output without a signing key, got %q", out)
	}

	entries, err := os.ReadDir(env.cfg.Paths.StagingDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected nothing staged, found %d entries", len(entries))
	}

	ledger := testsupport.MustOpenJobs(t, env.cfg)
	recorded, err := ledger.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(recorded) != 0 {
		t.Fatalf("expected no job recorded, got %d", len(recorded))
	}
}
