package model

import "time"

// ConstraintCategory enumerates the allowed constraint categories. AI-provided
// values outside this set are coerced to CategoryOther with a review flag.
type ConstraintCategory string

const (
	CategoryDesign       ConstraintCategory = "design"
	CategoryMaterial     ConstraintCategory = "material"
	CategoryLabor        ConstraintCategory = "labor"
	CategoryEquipment    ConstraintCategory = "equipment"
	CategoryWeather      ConstraintCategory = "weather"
	CategoryCoordination ConstraintCategory = "coordination"
	CategoryInspection   ConstraintCategory = "inspection"
	CategoryOther        ConstraintCategory = "other"
)

// ConstraintSeverity enumerates allowed severities; unknown values coerce to
// SeverityMedium with a review flag.
type ConstraintSeverity string

const (
	SeverityLow      ConstraintSeverity = "low"
	SeverityMedium   ConstraintSeverity = "medium"
	SeverityHigh     ConstraintSeverity = "high"
	SeverityCritical ConstraintSeverity = "critical"
)

// WorkLogEntry records one unit of work from a report. PersonnelIDs hold
// resolved canonical ids, never raw extracted strings.
type WorkLogEntry struct {
	ID            string    `json:"id"`
	ReportID      string    `json:"report_id"`
	Team          string    `json:"team,omitempty"`
	Level         string    `json:"level,omitempty"`
	Description   string    `json:"description"`
	PersonnelIDs  []string  `json:"personnel_ids"`
	HoursWorked   float64   `json:"hours_worked"`
	SourceExcerpt string    `json:"source_excerpt"`
	NeedsReview   bool      `json:"needs_review"`
	CreatedAt     time.Time `json:"created_at"`
}

// ConstraintRecord is one constraint reported against a report.
type ConstraintRecord struct {
	ID               string             `json:"id"`
	ReportID         string             `json:"report_id"`
	Category         ConstraintCategory `json:"category"`
	Severity         ConstraintSeverity `json:"severity"`
	Status           string             `json:"status,omitempty"`
	CostImpact       float64            `json:"cost_impact"`
	ResolutionStatus string             `json:"resolution_status,omitempty"`
	SourceExcerpt    string             `json:"source_excerpt"`
	NeedsReview      bool               `json:"needs_review"`
	CreatedAt        time.Time          `json:"created_at"`
}
