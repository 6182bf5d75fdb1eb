package jobs

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job            Job
		status         string
		sourceHash     sql.NullString
		stage          sql.NullString
		audioPath      sql.NullString
		subtitlesPath  sql.NullString
		translatedPath sql.NullString
		outputPath     sql.NullString
		artifactName   sql.NullString
		errorKind      sql.NullString
		errorMessage   sql.NullString
		createdRaw     string
		updatedRaw     string
		completedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.SourcePath,
		&sourceHash,
		&job.TargetLang,
		&status,
		&stage,
		&audioPath,
		&subtitlesPath,
		&translatedPath,
		&outputPath,
		&artifactName,
		&job.CueCount,
		&job.TranslatedCount,
		&job.FallbackCount,
		&errorKind,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.SourceHash = sourceHash.String
	job.Stage = stage.String
	job.AudioPath = audioPath.String
	job.SubtitlesPath = subtitlesPath.String
	job.TranslatedPath = translatedPath.String
	job.OutputPath = outputPath.String
	job.ArtifactName = artifactName.String
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
