package model

import (
	"fmt"
	"time"
)

// ReportStatus is the lifecycle state of a daily report.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending_analysis"
	ReportStatusAnalyzed  ReportStatus = "analyzed"
	ReportStatusPublished ReportStatus = "published"
	ReportStatusArchived  ReportStatus = "archived"
	ReportStatusFailed    ReportStatus = "failed"
)

// Report is one voice-transcribed daily report for a project. Reports are
// append-only: the orchestrator advances Status but never deletes a report.
type Report struct {
	ID                string       `json:"id"`
	ProjectID         string       `json:"project_id"`
	SubmitterID       string       `json:"submitter_id"`
	ReportDate        time.Time    `json:"report_date"`
	RawTranscript     string       `json:"raw_transcript"`
	Status            ReportStatus `json:"status"`
	ExtractionVersion int          `json:"extraction_version"`
	FailureReason     string       `json:"failure_reason,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// ReportID derives the stable report identifier from date, submitter and
// submission timestamp. Two submissions by the same person on the same day
// stay distinct via the timestamp component.
func ReportID(reportDate time.Time, submitterID string, submittedAt time.Time) string {
	return fmt.Sprintf("%s-%s-%d", reportDate.Format("20060102"), submitterID, submittedAt.Unix())
}

// ArtifactPath returns the blob-store path for a generated report artifact,
// following the {projectId}/{year}/{month}/{day}/{reportId}/ convention.
func (r *Report) ArtifactPath(filename string) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s/%s",
		r.ProjectID, r.ReportDate.Year(), int(r.ReportDate.Month()), r.ReportDate.Day(), r.ID, filename)
}

// ProcessResult summarizes one processReport invocation.
type ProcessResult struct {
	ReportID        string       `json:"report_id"`
	Status          ReportStatus `json:"status"`
	EntitiesCreated int          `json:"entities_created"`
	EntitiesFlagged int          `json:"entities_flagged"`
	CacheHit        bool         `json:"cache_hit"`
}
