package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"captioner/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Translation is disabled and storage is local unless an option says
// otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.FontsDir = filepath.Join(base, "fonts")
	cfgVal.Paths.JobsDB = filepath.Join(base, "jobs.db")
	cfgVal.Translation.Provider = "none"
	cfgVal.Storage.Backend = "local"
	cfgVal.Render.MinFreeGiB = 0
	cfgVal.Access.SigningKey = "test-signing-key-0123456789"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(builder.cfg.Paths.FontsDir, 0o755); err != nil {
		t.Fatalf("mkdir fonts dir: %v", err)
	}
	return builder.cfg
}

// WithFont sets the caption font on the test config.
func WithFont(name string, size int, color string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Caption.FontName = name
		b.cfg.Caption.FontSize = size
		b.cfg.Caption.FontColor = color
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default captioner external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "uvx"}
		}
		for _, name := range names {
			StubBinary(b.t, b.baseDir, name, "exit 0")
		}
	}
}

// StubBinary writes a /bin/sh script named name under baseDir/bin, prepends
// that directory to PATH for the rest of the test, and returns the path.
func StubBinary(t testing.TB, baseDir, name, body string) string {
	t.Helper()
	binDir := filepath.Join(baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}

	oldPath := os.Getenv("PATH")
	if filepath.SplitList(oldPath)[0] != binDir {
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
