package model

import "time"

// Extraction is the typed payload parsed from the completion-service response.
// Raw AI JSON is converted to this shape at the edge; nothing downstream
// touches the untyped response.
type Extraction struct {
	Personnel   []ExtractedPerson     `json:"personnel"`
	WorkLogs    []ExtractedWorkLog    `json:"workLogs"`
	Constraints []ExtractedConstraint `json:"constraints"`
	Vendors     []ExtractedVendor     `json:"vendors"`
	TimeSummary TimeSummary           `json:"timeSummary"`
}

// ExtractedPerson is one personnel mention from a transcript.
type ExtractedPerson struct {
	Name              string  `json:"name"`
	Position          string  `json:"position,omitempty"`
	Team              string  `json:"team,omitempty"`
	HoursWorked       float64 `json:"hoursWorked"`
	OvertimeHours     float64 `json:"overtimeHours"`
	HealthStatus      string  `json:"healthStatus,omitempty"`
	ExtractedFromText string  `json:"extractedFromText"`
}

// ExtractedWorkLog is one work activity mention.
type ExtractedWorkLog struct {
	Team              string   `json:"team,omitempty"`
	Level             string   `json:"level,omitempty"`
	Description       string   `json:"description"`
	Personnel         []string `json:"personnel"`
	HoursWorked       float64  `json:"hoursWorked"`
	ExtractedFromText string   `json:"extractedFromText"`
}

// ExtractedConstraint is one constraint mention. Category and Severity are
// free-form here; the recorder coerces them into the allowed enumerations.
type ExtractedConstraint struct {
	Category          string  `json:"category"`
	Severity          string  `json:"severity"`
	Status            string  `json:"status,omitempty"`
	CostImpact        float64 `json:"costImpact"`
	ExtractedFromText string  `json:"extractedFromText"`
}

// ExtractedVendor is one vendor delivery mention.
type ExtractedVendor struct {
	Company           string  `json:"company"`
	VendorType        string  `json:"vendorType,omitempty"`
	Materials         string  `json:"materials,omitempty"`
	DeliveryTime      string  `json:"deliveryTime,omitempty"`
	Issues            string  `json:"issues,omitempty"`
	CostImpact        float64 `json:"costImpact"`
	OnTime            bool    `json:"onTime"`
	ExtractedFromText string  `json:"extractedFromText"`
}

// TimeSummary holds shift-level hour totals for the report.
type TimeSummary struct {
	RegularHours    float64 `json:"regularHours"`
	OvertimeHours   float64 `json:"overtimeHours"`
	DoubleTimeHours float64 `json:"doubleTimeHours"`
	ShiftStart      string  `json:"shiftStart,omitempty"`
	ShiftEnd        string  `json:"shiftEnd,omitempty"`
}

// ExtractionAttempt is one call (or cache hit) against the completion service
// for a report. Attempts are never overwritten; superseded attempts are
// marked, not deleted.
type ExtractionAttempt struct {
	ID               string      `json:"id"`
	ReportID         string      `json:"report_id"`
	CacheKey         string      `json:"cache_key"`
	PromptVersion    string      `json:"prompt_version"`
	Model            string      `json:"model"`
	RawResponse      string      `json:"raw_response"`
	Payload          *Extraction `json:"payload,omitempty"`
	Confidence       float64     `json:"confidence"`
	ValidationPassed bool        `json:"validation_passed"`
	Superseded       bool        `json:"superseded"`
	InputTokens      int         `json:"input_tokens"`
	OutputTokens     int         `json:"output_tokens"`
	CostUSD          float64     `json:"cost_usd"`
	CreatedAt        time.Time   `json:"created_at"`
}
