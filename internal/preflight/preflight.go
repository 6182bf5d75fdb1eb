package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"captioner/internal/config"
	"captioner/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	if cfg.Render.MinFreeGiB > 0 {
		results = append(results, CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, cfg.Render.MinFreeGiB))
	}

	switch cfg.Storage.Backend {
	case "minio":
		results = append(results, CheckMinio(ctx, cfg))
	default:
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}

	if cfg.Translation.Provider == "openai" {
		results = append(results, CheckTranslationAPI(ctx, cfg.Translation.BaseURL, cfg.Translation.APIKey))
	}

	return results
}

// Failed joins the failing results into one configuration error, or returns
// nil when every check passed.
func Failed(results []Result) error {
	var problems []string
	for _, r := range results {
		if !r.Passed {
			problems = append(problems, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "run checks", "",
		errors.New(strings.Join(problems, "; ")))
}
