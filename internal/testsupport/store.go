package testsupport

import (
	"testing"

	"captioner/internal/config"
	"captioner/internal/jobs"
)

// MustOpenJobs opens the jobs ledger for tests and registers cleanup.
func MustOpenJobs(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()
	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
