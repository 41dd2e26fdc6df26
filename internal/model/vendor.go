package model

import "time"

// Vendor is the single canonical record for one supplier or subcontractor.
type Vendor struct {
	ID              string       `json:"id"`
	CanonicalName   string       `json:"canonical_name"`
	NameVariants    []string     `json:"name_variants"`
	VendorType      string       `json:"vendor_type,omitempty"`
	DateFirstSeen   time.Time    `json:"date_first_seen"`
	DateLastSeen    time.Time    `json:"date_last_seen"`
	TotalDeliveries int          `json:"total_deliveries"`
	Status          EntityStatus `json:"status"`
	MergedInto      string       `json:"merged_into,omitempty"`
}

// VendorDelivery is one immutable delivery fact per (vendor, report) pair.
type VendorDelivery struct {
	ID            string    `json:"id"`
	VendorID      string    `json:"vendor_id"`
	ReportID      string    `json:"report_id"`
	RawName       string    `json:"raw_name"`
	Materials     string    `json:"materials,omitempty"`
	DeliveryTime  string    `json:"delivery_time,omitempty"`
	Issues        string    `json:"issues,omitempty"`
	CostImpact    float64   `json:"cost_impact"`
	OnTime        bool      `json:"on_time"`
	SourceExcerpt string    `json:"source_excerpt"`
	MatchScore    int       `json:"match_score"`
	NeedsReview   bool      `json:"needs_review"`
	CreatedAt     time.Time `json:"created_at"`
}
