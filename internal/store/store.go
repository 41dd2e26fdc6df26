package store

import (
	"context"
	"time"

	"github.com/blueline-build/fieldreport-cli/internal/model"
)

// ReportFilter specifies criteria for listing reports.
type ReportFilter struct {
	ProjectID string             `json:"project_id,omitempty"`
	Status    model.ReportStatus `json:"status,omitempty"`
	Limit     int                `json:"limit,omitempty"`
	Offset    int                `json:"offset,omitempty"`
}

// Window bounds a project aggregation window by report date: Start inclusive,
// End exclusive, so adjacent windows never share a report. A zero Start or
// End leaves that side unbounded.
type Window struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Store defines the persistence interface for the report pipeline: reports,
// canonical entities, their append-only history, extraction attempts and
// derived rollups.
//
// The CreateXIfAbsent and AppendX operations must be safe under concurrent
// report processing: two goroutines creating the same normalized name must
// converge on a single canonical row, and a repeated history append for the
// same (entity, report) pair must be a no-op.
type Store interface {
	// Reports
	CreateReport(ctx context.Context, r *model.Report) error
	GetReport(ctx context.Context, reportID string) (*model.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error)
	UpdateReportStatus(ctx context.Context, reportID string, status model.ReportStatus, failureReason string) error
	BumpExtractionVersion(ctx context.Context, reportID string) (int, error)

	// Persons. Lookup is by normalized name; the normalized form of the
	// canonical name and every recorded variant participate in exact match.
	GetPerson(ctx context.Context, personID string) (*model.Person, error)
	FindPersonByName(ctx context.Context, normalized string) (*model.Person, error)
	ListActivePersons(ctx context.Context) ([]model.Person, error)
	CreatePersonIfAbsent(ctx context.Context, p *model.Person, normalized string) (*model.Person, bool, error)
	AddPersonVariant(ctx context.Context, personID, rawName, normalized string) error
	UpdatePersonSeen(ctx context.Context, personID string, seen time.Time, hours float64, position string) error
	MarkPersonMerged(ctx context.Context, fromID, intoID string) error

	// Person history, one row per (person, report).
	GetPersonHistory(ctx context.Context, personID, reportID string) (*model.PersonHistory, error)
	GetPersonHistoryByID(ctx context.Context, historyID string) (*model.PersonHistory, error)
	AppendPersonHistory(ctx context.Context, h *model.PersonHistory) (bool, error)
	ListPersonHistoryByReport(ctx context.Context, reportID string) ([]model.PersonHistory, error)
	ListPersonHistory(ctx context.Context, projectID string, w Window) ([]model.PersonHistory, error)
	ListFlaggedPersonHistory(ctx context.Context, before time.Time) ([]model.PersonHistory, error)
	ClearPersonHistoryReview(ctx context.Context, historyID string) error
	ReassignPersonHistory(ctx context.Context, historyID, newPersonID string) error
	ReassignAllPersonHistory(ctx context.Context, fromID, intoID string) error
	DeletePersonHistory(ctx context.Context, historyID string) error

	// Vendors
	GetVendor(ctx context.Context, vendorID string) (*model.Vendor, error)
	FindVendorByName(ctx context.Context, normalized string) (*model.Vendor, error)
	ListActiveVendors(ctx context.Context) ([]model.Vendor, error)
	CreateVendorIfAbsent(ctx context.Context, v *model.Vendor, normalized string) (*model.Vendor, bool, error)
	AddVendorVariant(ctx context.Context, vendorID, rawName, normalized string) error
	UpdateVendorSeen(ctx context.Context, vendorID string, seen time.Time, vendorType string) error
	MarkVendorMerged(ctx context.Context, fromID, intoID string) error

	// Vendor deliveries, one row per (vendor, report).
	GetVendorDelivery(ctx context.Context, vendorID, reportID string) (*model.VendorDelivery, error)
	GetVendorDeliveryByID(ctx context.Context, deliveryID string) (*model.VendorDelivery, error)
	AppendVendorDelivery(ctx context.Context, d *model.VendorDelivery) (bool, error)
	ListDeliveriesByReport(ctx context.Context, reportID string) ([]model.VendorDelivery, error)
	ListVendorDeliveries(ctx context.Context, projectID string, w Window) ([]model.VendorDelivery, error)
	ListFlaggedVendorDeliveries(ctx context.Context, before time.Time) ([]model.VendorDelivery, error)
	ClearVendorDeliveryReview(ctx context.Context, deliveryID string) error
	ReassignVendorDelivery(ctx context.Context, deliveryID, newVendorID string) error
	ReassignAllVendorDeliveries(ctx context.Context, fromID, intoID string) error
	DeleteVendorDelivery(ctx context.Context, deliveryID string) error

	// Work logs and constraints are replaced wholesale per report so that a
	// reprocess run never leaves stale rows behind.
	ReplaceWorkLogs(ctx context.Context, reportID string, entries []model.WorkLogEntry) error
	ListWorkLogs(ctx context.Context, reportID string) ([]model.WorkLogEntry, error)
	ReplaceConstraints(ctx context.Context, reportID string, recs []model.ConstraintRecord) error
	ListConstraints(ctx context.Context, reportID string) ([]model.ConstraintRecord, error)
	ListProjectConstraints(ctx context.Context, projectID string, w Window) ([]model.ConstraintRecord, error)

	// Team rosters
	UpsertTeamMember(ctx context.Context, projectID, team, personID string) error
	GetTeamRoster(ctx context.Context, projectID, team string) ([]string, error)

	// Extraction attempts
	FindAttemptByCacheKey(ctx context.Context, cacheKey string) (*model.ExtractionAttempt, error)
	CreateAttempt(ctx context.Context, a *model.ExtractionAttempt) error
	SupersedeAttempts(ctx context.Context, reportID string) error
	ListAttempts(ctx context.Context, reportID string) ([]model.ExtractionAttempt, error)

	// Rollups
	SaveRollup(ctx context.Context, r *model.ProjectRollup) error
	GetRollup(ctx context.Context, projectID string, w Window) (*model.ProjectRollup, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
