package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/config"
	"captioner/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("NO_COLOR", "1")
	for _, key := range []string{"OPENAI_API_KEY", "CAPTIONER_SIGNING_KEY", "HF_TOKEN", "HUGGING_FACE_HUB_TOKEN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithFont("gobold", 24, "white"),
	)

	configPath := filepath.Join(homeDir, ".config", "captioner", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    testsupport.BaseDir(cfg),
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
staging_dir = %q
output_dir = %q
log_dir = %q
fonts_dir = %q
jobs_db = %q

[translation]
provider = %q

[caption]
font_name = %q
font_size = %d
font_color = %q

[render]
min_free_gib = %d

[access]
signing_key = %q
base_url = "http://captioner.test"

[storage]
backend = "local"
`,
		cfg.Paths.StagingDir,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.Paths.FontsDir,
		cfg.Paths.JobsDB,
		cfg.Translation.Provider,
		cfg.Caption.FontName,
		cfg.Caption.FontSize,
		cfg.Caption.FontColor,
		cfg.Render.MinFreeGiB,
		cfg.Access.SigningKey,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
