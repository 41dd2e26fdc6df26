package model

import "time"

// LaborRollup totals hours and cost for a project window.
type LaborRollup struct {
	RegularHours    float64 `json:"regular_hours"`
	OvertimeHours   float64 `json:"overtime_hours"`
	DoubleTimeHours float64 `json:"double_time_hours"`
	LaborCost       float64 `json:"labor_cost"`
	PersonCount     int     `json:"person_count"`
}

// VendorRollup grades one vendor over a project window.
type VendorRollup struct {
	VendorID     string  `json:"vendor_id"`
	VendorName   string  `json:"vendor_name"`
	Deliveries   int     `json:"deliveries"`
	OnTimeRate   float64 `json:"on_time_rate"`
	IncidentCost float64 `json:"incident_cost"`
	Grade        string  `json:"grade"`
}

// ConstraintRollup totals constraint cost impact for one category.
type ConstraintRollup struct {
	Category   ConstraintCategory `json:"category"`
	Count      int                `json:"count"`
	CostImpact float64            `json:"cost_impact"`
}

// ProjectRollup is the full derived summary for a project window. It is
// recomputed from the append-only history tables and never reads its own
// prior output.
type ProjectRollup struct {
	ProjectID   string             `json:"project_id"`
	WindowStart time.Time          `json:"window_start"`
	WindowEnd   time.Time          `json:"window_end"`
	Labor       LaborRollup        `json:"labor"`
	Vendors     []VendorRollup     `json:"vendors"`
	Constraints []ConstraintRollup `json:"constraints"`
	ReportCount int                `json:"report_count"`
	ComputedAt  time.Time          `json:"computed_at"`
}
