package jobs

import "time"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage names recorded while a render runs.
const (
	StageSetup      = "setup"
	StageAudio      = "extract_audio"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
	StageRender     = "render"
	StagePublish    = "publish"
)

// Job is one ledger row.
type Job struct {
	ID              string
	SourcePath      string
	SourceHash      string
	TargetLang      string
	Status          Status
	Stage           string
	AudioPath       string
	SubtitlesPath   string
	TranslatedPath  string
	OutputPath      string
	ArtifactName    string
	CueCount        int
	TranslatedCount int
	FallbackCount   int
	ErrorKind       string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// Outcome is what a successful render reports back to the ledger.
type Outcome struct {
	AudioPath       string
	SubtitlesPath   string
	TranslatedPath  string
	OutputPath      string
	ArtifactName    string
	CueCount        int
	TranslatedCount int
	FallbackCount   int
}

// IsTerminal reports whether the job has finished, successfully or not.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Duration is the elapsed time from creation to completion, or to the last
// update for jobs still running.
func (j Job) Duration() time.Duration {
	end := j.UpdatedAt
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	if end.Before(j.CreatedAt) {
		return 0
	}
	return end.Sub(j.CreatedAt)
}
