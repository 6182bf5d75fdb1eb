package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/services"
)

func TestTokenIssueAndRedeem(t *testing.T) {
	env := setupCLITestEnv(t)
	video := filepath.Join(env.cfg.Paths.OutputDir, "abc_output.mp4")
	if err := os.WriteFile(video, []byte("video"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	out, _, err := runCLI(t, []string{"token", "issue", "abc_output.mp4"}, env.configPath)
	if err != nil {
		t.Fatalf("token issue: %v", err)
	}
	link := strings.TrimSpace(out)
	requireContains(t, link, "http://captioner.test/download_video?")
	requireContains(t, link, "filename=abc_output.mp4")

	out, _, err = runCLI(t, []string{"token", "redeem", "--url", link}, env.configPath)
	if err != nil {
		t.Fatalf("token redeem: %v", err)
	}
	if strings.TrimSpace(out) != video {
		t.Fatalf("redeem printed %q, want %q", out, video)
	}

	out, _, err = runCLI(t, []string{"token", "issue", "--json", "--ttl", "1m", "abc_output.mp4"}, env.configPath)
	if err != nil {
		t.Fatalf("token issue --json: %v", err)
	}
	var issued map[string]string
	if err := json.Unmarshal([]byte(out), &issued); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if issued["token"] == "" || issued["expires"] == "" {
		t.Fatalf("missing token fields: %v", issued)
	}

	// tampering with the filename invalidates the token
	_, _, err = runCLI(t, []string{"token", "redeem",
		"--filename", "other_output.mp4",
		"--token", issued["token"],
		"--expires", issued["expires"],
	}, env.configPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTokenRequiresSigningKey(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Access.SigningKey = ""
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"token", "issue", "abc_output.mp4"}, env.configPath)
	if err == nil {
		t.Fatal("expected an error without a signing key")
	}
	requireContains(t, err.Error(), "signing_key")
}
