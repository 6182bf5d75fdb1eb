package main

import (
	"os"
	"testing"
	"time"

	"captioner/internal/staging"
)

func TestStagingListAndClean(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"staging", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "Staging directory is empty")

	files := staging.NewFiles(env.cfg.Paths.StagingDir, "crashed")
	old := time.Now().Add(-48 * time.Hour)
	for _, path := range []string{files.Audio, files.Subtitles} {
		if err := os.WriteFile(path, make([]byte, 2048), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	out, _, err = runCLI(t, []string{"staging", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "crashed")
	requireContains(t, out, "4.0 KiB")

	out, _, err = runCLI(t, []string{"staging", "clean", "--older-than", "72h"}, env.configPath)
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 0 files")

	out, _, err = runCLI(t, []string{"staging", "clean"}, env.configPath)
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 2 files")
	if _, err := os.Stat(files.Audio); !os.IsNotExist(err) {
		t.Fatalf("audio should be gone, stat err = %v", err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		5 << 20: "5.0 MiB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
