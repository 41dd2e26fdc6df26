package model

import "time"

// EntityStatus is the lifecycle state of a canonical person or vendor.
type EntityStatus string

const (
	EntityStatusActive   EntityStatus = "active"
	EntityStatusInactive EntityStatus = "inactive"
	EntityStatusMerged   EntityStatus = "merged"
)

// Person is the single canonical record for one real worker. Every spelling
// observed in a transcript maps to at most one non-merged Person.
type Person struct {
	ID              string       `json:"id"`
	CanonicalName   string       `json:"canonical_name"`
	NameVariants    []string     `json:"name_variants"`
	CurrentPosition string       `json:"current_position,omitempty"`
	DateFirstSeen   time.Time    `json:"date_first_seen"`
	DateLastSeen    time.Time    `json:"date_last_seen"`
	TotalReports    int          `json:"total_reports"`
	TotalHours      float64      `json:"total_hours"`
	Status          EntityStatus `json:"status"`
	MergedInto      string       `json:"merged_into,omitempty"`
}

// PersonHistory is one immutable fact linking a canonical person to one
// report. Exactly one row may exist per (person, report) pair.
type PersonHistory struct {
	ID             string    `json:"id"`
	PersonID       string    `json:"person_id"`
	ReportID       string    `json:"report_id"`
	RawName        string    `json:"raw_name"`
	HoursWorked    float64   `json:"hours_worked"`
	OvertimeHours  float64   `json:"overtime_hours"`
	TeamAssignment string    `json:"team_assignment,omitempty"`
	HealthStatus   string    `json:"health_status,omitempty"`
	SourceExcerpt  string    `json:"source_excerpt"`
	MatchScore     int       `json:"match_score"`
	NeedsReview    bool      `json:"needs_review"`
	CreatedAt      time.Time `json:"created_at"`
}

// Resolution is the outcome of resolving one extracted name against the
// canonical registry.
type Resolution struct {
	EntityID    string `json:"entity_id"`
	DisplayName string `json:"display_name"`
	Created     bool   `json:"created"`
	NeedsReview bool   `json:"needs_review"`
	Score       int    `json:"score"`
}
