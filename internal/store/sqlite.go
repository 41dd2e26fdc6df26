package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/blueline-build/fieldreport-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id                 TEXT PRIMARY KEY,
	project_id         TEXT NOT NULL,
	submitter_id       TEXT NOT NULL,
	report_date        DATETIME NOT NULL,
	raw_transcript     TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending_analysis',
	extraction_version INTEGER NOT NULL DEFAULT 1,
	failure_reason     TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS persons (
	id               TEXT PRIMARY KEY,
	canonical_name   TEXT NOT NULL,
	normalized_name  TEXT NOT NULL UNIQUE,
	name_variants    TEXT NOT NULL DEFAULT '[]',
	current_position TEXT NOT NULL DEFAULT '',
	date_first_seen  DATETIME NOT NULL,
	date_last_seen   DATETIME NOT NULL,
	total_reports    INTEGER NOT NULL DEFAULT 0,
	total_hours      REAL NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'active',
	merged_into      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS person_variants (
	variant   TEXT PRIMARY KEY,
	person_id TEXT NOT NULL REFERENCES persons(id)
);

CREATE TABLE IF NOT EXISTS person_history (
	id              TEXT PRIMARY KEY,
	person_id       TEXT NOT NULL REFERENCES persons(id),
	report_id       TEXT NOT NULL REFERENCES reports(id),
	raw_name        TEXT NOT NULL,
	hours_worked    REAL NOT NULL DEFAULT 0,
	overtime_hours  REAL NOT NULL DEFAULT 0,
	team_assignment TEXT NOT NULL DEFAULT '',
	health_status   TEXT NOT NULL DEFAULT '',
	source_excerpt  TEXT NOT NULL,
	match_score     INTEGER NOT NULL DEFAULT 100,
	needs_review    INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL,
	UNIQUE(person_id, report_id)
);

CREATE TABLE IF NOT EXISTS vendors (
	id               TEXT PRIMARY KEY,
	canonical_name   TEXT NOT NULL,
	normalized_name  TEXT NOT NULL UNIQUE,
	name_variants    TEXT NOT NULL DEFAULT '[]',
	vendor_type      TEXT NOT NULL DEFAULT '',
	date_first_seen  DATETIME NOT NULL,
	date_last_seen   DATETIME NOT NULL,
	total_deliveries INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'active',
	merged_into      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS vendor_variants (
	variant   TEXT PRIMARY KEY,
	vendor_id TEXT NOT NULL REFERENCES vendors(id)
);

CREATE TABLE IF NOT EXISTS vendor_deliveries (
	id             TEXT PRIMARY KEY,
	vendor_id      TEXT NOT NULL REFERENCES vendors(id),
	report_id      TEXT NOT NULL REFERENCES reports(id),
	raw_name       TEXT NOT NULL,
	materials      TEXT NOT NULL DEFAULT '',
	delivery_time  TEXT NOT NULL DEFAULT '',
	issues         TEXT NOT NULL DEFAULT '',
	cost_impact    REAL NOT NULL DEFAULT 0,
	on_time        INTEGER NOT NULL DEFAULT 1,
	source_excerpt TEXT NOT NULL,
	match_score    INTEGER NOT NULL DEFAULT 100,
	needs_review   INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL,
	UNIQUE(vendor_id, report_id)
);

CREATE TABLE IF NOT EXISTS work_logs (
	id             TEXT PRIMARY KEY,
	report_id      TEXT NOT NULL REFERENCES reports(id),
	team           TEXT NOT NULL DEFAULT '',
	level          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL,
	personnel_ids  TEXT NOT NULL DEFAULT '[]',
	hours_worked   REAL NOT NULL DEFAULT 0,
	source_excerpt TEXT NOT NULL,
	needs_review   INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS report_constraints (
	id                TEXT PRIMARY KEY,
	report_id         TEXT NOT NULL REFERENCES reports(id),
	category          TEXT NOT NULL,
	severity          TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT '',
	cost_impact       REAL NOT NULL DEFAULT 0,
	resolution_status TEXT NOT NULL DEFAULT '',
	source_excerpt    TEXT NOT NULL,
	needs_review      INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS team_members (
	project_id TEXT NOT NULL,
	team       TEXT NOT NULL,
	person_id  TEXT NOT NULL,
	PRIMARY KEY (project_id, team, person_id)
);

CREATE TABLE IF NOT EXISTS extraction_attempts (
	id                TEXT PRIMARY KEY,
	report_id         TEXT NOT NULL REFERENCES reports(id),
	cache_key         TEXT NOT NULL,
	prompt_version    TEXT NOT NULL,
	model             TEXT NOT NULL,
	raw_response      TEXT NOT NULL,
	payload           TEXT,
	confidence        REAL NOT NULL DEFAULT 0,
	validation_passed INTEGER NOT NULL DEFAULT 0,
	superseded        INTEGER NOT NULL DEFAULT 0,
	input_tokens      INTEGER NOT NULL DEFAULT 0,
	output_tokens     INTEGER NOT NULL DEFAULT 0,
	cost_usd          REAL NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS project_rollups (
	project_id   TEXT NOT NULL,
	window_start DATETIME NOT NULL,
	window_end   DATETIME NOT NULL,
	payload      TEXT NOT NULL,
	computed_at  DATETIME NOT NULL,
	PRIMARY KEY (project_id, window_start, window_end)
);

CREATE INDEX IF NOT EXISTS idx_reports_project_date ON reports(project_id, report_date);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_person_history_report ON person_history(report_id);
CREATE INDEX IF NOT EXISTS idx_person_history_review ON person_history(needs_review, created_at);
CREATE INDEX IF NOT EXISTS idx_vendor_deliveries_report ON vendor_deliveries(report_id);
CREATE INDEX IF NOT EXISTS idx_vendor_deliveries_review ON vendor_deliveries(needs_review, created_at);
CREATE INDEX IF NOT EXISTS idx_work_logs_report ON work_logs(report_id);
CREATE INDEX IF NOT EXISTS idx_report_constraints_report ON report_constraints(report_id);
CREATE INDEX IF NOT EXISTS idx_attempts_cache_key ON extraction_attempts(cache_key);
CREATE INDEX IF NOT EXISTS idx_attempts_report ON extraction_attempts(report_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Reports

func (s *SQLiteStore) CreateReport(ctx context.Context, r *model.Report) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = model.ReportStatusPending
	}
	if r.ExtractionVersion == 0 {
		r.ExtractionVersion = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, project_id, submitter_id, report_date, raw_transcript, status, extraction_version, failure_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProjectID, r.SubmitterID, r.ReportDate, r.RawTranscript,
		string(r.Status), r.ExtractionVersion, r.FailureReason, r.CreatedAt, r.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert report %s", r.ID)
}

func (s *SQLiteStore) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, submitter_id, report_date, raw_transcript, status, extraction_version, failure_reason, created_at, updated_at
		 FROM reports WHERE id = ?`,
		reportID,
	)
	return scanReport(row)
}

func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT id, project_id, submitter_id, report_date, raw_transcript, status, extraction_version, failure_reason, created_at, updated_at
		 FROM reports WHERE 1=1`
	var args []any

	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY report_date DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) UpdateReportStatus(ctx context.Context, reportID string, status model.ReportStatus, failureReason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?`,
		string(status), failureReason, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update report status %s", reportID)
	}
	return checkRowsAffected(res, "report", reportID)
}

func (s *SQLiteStore) BumpExtractionVersion(ctx context.Context, reportID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET extraction_version = extraction_version + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), reportID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: bump extraction version %s", reportID)
	}
	if err := checkRowsAffected(res, "report", reportID); err != nil {
		return 0, err
	}

	var version int
	err = s.db.QueryRowContext(ctx, `SELECT extraction_version FROM reports WHERE id = ?`, reportID).Scan(&version)
	return version, eris.Wrapf(err, "sqlite: read extraction version %s", reportID)
}

// Persons

const personColumns = `id, canonical_name, name_variants, current_position, date_first_seen, date_last_seen, total_reports, total_hours, status, merged_into`

func (s *SQLiteStore) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = ?`, personID)
	return scanPerson(row)
}

// FindPersonByName resolves a normalized name to its canonical person,
// consulting both the canonical form and all recorded variants, and following
// merge pointers to the surviving record. Returns (nil, nil) when no person
// matches.
func (s *SQLiteStore) FindPersonByName(ctx context.Context, normalized string) (*model.Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons
		 WHERE normalized_name = ? OR id IN (SELECT person_id FROM person_variants WHERE variant = ?)
		 LIMIT 1`,
		normalized, normalized,
	)
	p, err := scanPerson(row)
	if err != nil || p == nil {
		return p, err
	}
	return s.followPersonMerge(ctx, p)
}

func (s *SQLiteStore) followPersonMerge(ctx context.Context, p *model.Person) (*model.Person, error) {
	for hops := 0; p.Status == model.EntityStatusMerged && p.MergedInto != "" && hops < 5; hops++ {
		next, err := s.GetPerson(ctx, p.MergedInto)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return p, nil
		}
		p = next
	}
	return p, nil
}

func (s *SQLiteStore) ListActivePersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE status = ? ORDER BY canonical_name`,
		string(model.EntityStatusActive),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active persons")
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	return persons, eris.Wrap(rows.Err(), "sqlite: list active persons iterate")
}

// CreatePersonIfAbsent inserts a person keyed by normalized name. When another
// writer got there first the insert is a no-op and the existing row is
// returned, so concurrent resolution of the same new name converges on one
// canonical record.
func (s *SQLiteStore) CreatePersonIfAbsent(ctx context.Context, p *model.Person, normalized string) (*model.Person, bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = model.EntityStatusActive
	}

	variantsJSON, err := json.Marshal(p.NameVariants)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: marshal name variants")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO persons (id, canonical_name, normalized_name, name_variants, current_position, date_first_seen, date_last_seen, total_reports, total_hours, status, merged_into)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(normalized_name) DO NOTHING`,
		p.ID, p.CanonicalName, normalized, string(variantsJSON), p.CurrentPosition,
		p.DateFirstSeen, p.DateLastSeen, p.TotalReports, p.TotalHours, string(p.Status), p.MergedInto,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: insert person %s", p.CanonicalName)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		existing, err := s.FindPersonByName(ctx, normalized)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, eris.Errorf("person not found after conflict: %s", normalized)
		}
		return existing, false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO person_variants (variant, person_id) VALUES (?, ?)`,
		normalized, p.ID,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: insert person variant %s", normalized)
	}
	return p, true, nil
}

func (s *SQLiteStore) AddPersonVariant(ctx context.Context, personID, rawName, normalized string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO person_variants (variant, person_id) VALUES (?, ?)`,
		normalized, personID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert person variant %s", normalized)
	}
	return s.appendVariantJSON(ctx, "persons", personID, rawName)
}

func (s *SQLiteStore) UpdatePersonSeen(ctx context.Context, personID string, seen time.Time, hours float64, position string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE persons SET
			total_reports = total_reports + 1,
			total_hours = total_hours + ?,
			date_last_seen = CASE WHEN date_last_seen < ? THEN ? ELSE date_last_seen END,
			current_position = CASE WHEN ? != '' THEN ? ELSE current_position END
		 WHERE id = ?`,
		hours, seen, seen, position, position, personID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update person seen %s", personID)
	}
	return checkRowsAffected(res, "person", personID)
}

func (s *SQLiteStore) MarkPersonMerged(ctx context.Context, fromID, intoID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE persons SET status = ?, merged_into = ? WHERE id = ?`,
		string(model.EntityStatusMerged), intoID, fromID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark person merged %s", fromID)
	}
	if err := checkRowsAffected(res, "person", fromID); err != nil {
		return err
	}
	// Future lookups of the merged spelling must land on the survivor.
	_, err = s.db.ExecContext(ctx,
		`UPDATE person_variants SET person_id = ? WHERE person_id = ?`,
		intoID, fromID,
	)
	return eris.Wrapf(err, "sqlite: repoint person variants %s", fromID)
}

// Person history

const personHistoryColumns = `id, person_id, report_id, raw_name, hours_worked, overtime_hours, team_assignment, health_status, source_excerpt, match_score, needs_review, created_at`

func (s *SQLiteStore) GetPersonHistory(ctx context.Context, personID, reportID string) (*model.PersonHistory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+personHistoryColumns+` FROM person_history WHERE person_id = ? AND report_id = ?`,
		personID, reportID,
	)
	return scanPersonHistory(row)
}

func (s *SQLiteStore) GetPersonHistoryByID(ctx context.Context, historyID string) (*model.PersonHistory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+personHistoryColumns+` FROM person_history WHERE id = ?`, historyID)
	return scanPersonHistory(row)
}

// AppendPersonHistory inserts one (person, report) fact. A second append for
// the same pair is a no-op; the returned bool reports whether a row was
// actually written so callers can keep counters idempotent.
func (s *SQLiteStore) AppendPersonHistory(ctx context.Context, h *model.PersonHistory) (bool, error) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO person_history (`+personHistoryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(person_id, report_id) DO NOTHING`,
		h.ID, h.PersonID, h.ReportID, h.RawName, h.HoursWorked, h.OvertimeHours,
		h.TeamAssignment, h.HealthStatus, h.SourceExcerpt, h.MatchScore, h.NeedsReview, h.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: append person history %s/%s", h.PersonID, h.ReportID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListPersonHistoryByReport(ctx context.Context, reportID string) ([]model.PersonHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+personHistoryColumns+` FROM person_history WHERE report_id = ? ORDER BY created_at`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list person history by report")
	}
	return collectPersonHistory(rows)
}

func (s *SQLiteStore) ListPersonHistory(ctx context.Context, projectID string, w Window) ([]model.PersonHistory, error) {
	query := `SELECT h.id, h.person_id, h.report_id, h.raw_name, h.hours_worked, h.overtime_hours, h.team_assignment, h.health_status, h.source_excerpt, h.match_score, h.needs_review, h.created_at
		 FROM person_history h JOIN reports r ON r.id = h.report_id
		 WHERE r.project_id = ?`
	args := []any{projectID}

	if !w.Start.IsZero() {
		query += ` AND r.report_date >= ?`
		args = append(args, w.Start)
	}
	if !w.End.IsZero() {
		query += ` AND r.report_date < ?`
		args = append(args, w.End)
	}
	query += ` ORDER BY r.report_date, h.created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list person history")
	}
	return collectPersonHistory(rows)
}

func (s *SQLiteStore) ListFlaggedPersonHistory(ctx context.Context, before time.Time) ([]model.PersonHistory, error) {
	query := `SELECT ` + personHistoryColumns + ` FROM person_history WHERE needs_review = 1`
	var args []any
	if !before.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, before)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list flagged person history")
	}
	return collectPersonHistory(rows)
}

func (s *SQLiteStore) ClearPersonHistoryReview(ctx context.Context, historyID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE person_history SET needs_review = 0 WHERE id = ?`, historyID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: clear person history review %s", historyID)
	}
	return checkRowsAffected(res, "person history", historyID)
}

func (s *SQLiteStore) ReassignPersonHistory(ctx context.Context, historyID, newPersonID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE person_history SET person_id = ?, needs_review = 0 WHERE id = ?`,
		newPersonID, historyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reassign person history %s", historyID)
	}
	return checkRowsAffected(res, "person history", historyID)
}

// ReassignAllPersonHistory moves every history row from one person to another
// during a merge. Rows whose (person, report) slot is already taken on the
// survivor are dropped rather than duplicated.
func (s *SQLiteStore) ReassignAllPersonHistory(ctx context.Context, fromID, intoID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin reassign person history")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM person_history WHERE person_id = ?
		 AND report_id IN (SELECT report_id FROM person_history WHERE person_id = ?)`,
		fromID, intoID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: drop duplicate person history %s", fromID)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE person_history SET person_id = ? WHERE person_id = ?`,
		intoID, fromID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reassign person history %s", fromID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit reassign person history")
}

func (s *SQLiteStore) DeletePersonHistory(ctx context.Context, historyID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM person_history WHERE id = ?`, historyID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete person history %s", historyID)
	}
	return checkRowsAffected(res, "person history", historyID)
}

// Vendors

const vendorColumns = `id, canonical_name, name_variants, vendor_type, date_first_seen, date_last_seen, total_deliveries, status, merged_into`

func (s *SQLiteStore) GetVendor(ctx context.Context, vendorID string) (*model.Vendor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = ?`, vendorID)
	return scanVendor(row)
}

func (s *SQLiteStore) FindVendorByName(ctx context.Context, normalized string) (*model.Vendor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors
		 WHERE normalized_name = ? OR id IN (SELECT vendor_id FROM vendor_variants WHERE variant = ?)
		 LIMIT 1`,
		normalized, normalized,
	)
	v, err := scanVendor(row)
	if err != nil || v == nil {
		return v, err
	}
	return s.followVendorMerge(ctx, v)
}

func (s *SQLiteStore) followVendorMerge(ctx context.Context, v *model.Vendor) (*model.Vendor, error) {
	for hops := 0; v.Status == model.EntityStatusMerged && v.MergedInto != "" && hops < 5; hops++ {
		next, err := s.GetVendor(ctx, v.MergedInto)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return v, nil
		}
		v = next
	}
	return v, nil
}

func (s *SQLiteStore) ListActiveVendors(ctx context.Context) ([]model.Vendor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE status = ? ORDER BY canonical_name`,
		string(model.EntityStatusActive),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active vendors")
	}
	defer rows.Close()

	var vendors []model.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, *v)
	}
	return vendors, eris.Wrap(rows.Err(), "sqlite: list active vendors iterate")
}

func (s *SQLiteStore) CreateVendorIfAbsent(ctx context.Context, v *model.Vendor, normalized string) (*model.Vendor, bool, error) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.Status == "" {
		v.Status = model.EntityStatusActive
	}

	variantsJSON, err := json.Marshal(v.NameVariants)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: marshal name variants")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO vendors (id, canonical_name, normalized_name, name_variants, vendor_type, date_first_seen, date_last_seen, total_deliveries, status, merged_into)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(normalized_name) DO NOTHING`,
		v.ID, v.CanonicalName, normalized, string(variantsJSON), v.VendorType,
		v.DateFirstSeen, v.DateLastSeen, v.TotalDeliveries, string(v.Status), v.MergedInto,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: insert vendor %s", v.CanonicalName)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		existing, err := s.FindVendorByName(ctx, normalized)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, eris.Errorf("vendor not found after conflict: %s", normalized)
		}
		return existing, false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO vendor_variants (variant, vendor_id) VALUES (?, ?)`,
		normalized, v.ID,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: insert vendor variant %s", normalized)
	}
	return v, true, nil
}

func (s *SQLiteStore) AddVendorVariant(ctx context.Context, vendorID, rawName, normalized string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO vendor_variants (variant, vendor_id) VALUES (?, ?)`,
		normalized, vendorID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert vendor variant %s", normalized)
	}
	return s.appendVariantJSON(ctx, "vendors", vendorID, rawName)
}

func (s *SQLiteStore) UpdateVendorSeen(ctx context.Context, vendorID string, seen time.Time, vendorType string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vendors SET
			total_deliveries = total_deliveries + 1,
			date_last_seen = CASE WHEN date_last_seen < ? THEN ? ELSE date_last_seen END,
			vendor_type = CASE WHEN ? != '' THEN ? ELSE vendor_type END
		 WHERE id = ?`,
		seen, seen, vendorType, vendorType, vendorID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update vendor seen %s", vendorID)
	}
	return checkRowsAffected(res, "vendor", vendorID)
}

func (s *SQLiteStore) MarkVendorMerged(ctx context.Context, fromID, intoID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vendors SET status = ?, merged_into = ? WHERE id = ?`,
		string(model.EntityStatusMerged), intoID, fromID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark vendor merged %s", fromID)
	}
	if err := checkRowsAffected(res, "vendor", fromID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE vendor_variants SET vendor_id = ? WHERE vendor_id = ?`,
		intoID, fromID,
	)
	return eris.Wrapf(err, "sqlite: repoint vendor variants %s", fromID)
}

// Vendor deliveries

const deliveryColumns = `id, vendor_id, report_id, raw_name, materials, delivery_time, issues, cost_impact, on_time, source_excerpt, match_score, needs_review, created_at`

func (s *SQLiteStore) GetVendorDelivery(ctx context.Context, vendorID, reportID string) (*model.VendorDelivery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM vendor_deliveries WHERE vendor_id = ? AND report_id = ?`,
		vendorID, reportID,
	)
	return scanDelivery(row)
}

func (s *SQLiteStore) GetVendorDeliveryByID(ctx context.Context, deliveryID string) (*model.VendorDelivery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM vendor_deliveries WHERE id = ?`, deliveryID)
	return scanDelivery(row)
}

func (s *SQLiteStore) AppendVendorDelivery(ctx context.Context, d *model.VendorDelivery) (bool, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO vendor_deliveries (`+deliveryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(vendor_id, report_id) DO NOTHING`,
		d.ID, d.VendorID, d.ReportID, d.RawName, d.Materials, d.DeliveryTime, d.Issues,
		d.CostImpact, d.OnTime, d.SourceExcerpt, d.MatchScore, d.NeedsReview, d.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: append vendor delivery %s/%s", d.VendorID, d.ReportID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListDeliveriesByReport(ctx context.Context, reportID string) ([]model.VendorDelivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM vendor_deliveries WHERE report_id = ? ORDER BY created_at`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list deliveries by report")
	}
	return collectDeliveries(rows)
}

func (s *SQLiteStore) ListVendorDeliveries(ctx context.Context, projectID string, w Window) ([]model.VendorDelivery, error) {
	query := `SELECT d.id, d.vendor_id, d.report_id, d.raw_name, d.materials, d.delivery_time, d.issues, d.cost_impact, d.on_time, d.source_excerpt, d.match_score, d.needs_review, d.created_at
		 FROM vendor_deliveries d JOIN reports r ON r.id = d.report_id
		 WHERE r.project_id = ?`
	args := []any{projectID}

	if !w.Start.IsZero() {
		query += ` AND r.report_date >= ?`
		args = append(args, w.Start)
	}
	if !w.End.IsZero() {
		query += ` AND r.report_date < ?`
		args = append(args, w.End)
	}
	query += ` ORDER BY r.report_date, d.created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vendor deliveries")
	}
	return collectDeliveries(rows)
}

func (s *SQLiteStore) ListFlaggedVendorDeliveries(ctx context.Context, before time.Time) ([]model.VendorDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM vendor_deliveries WHERE needs_review = 1`
	var args []any
	if !before.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, before)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list flagged vendor deliveries")
	}
	return collectDeliveries(rows)
}

func (s *SQLiteStore) ClearVendorDeliveryReview(ctx context.Context, deliveryID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vendor_deliveries SET needs_review = 0 WHERE id = ?`, deliveryID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: clear vendor delivery review %s", deliveryID)
	}
	return checkRowsAffected(res, "vendor delivery", deliveryID)
}

func (s *SQLiteStore) ReassignVendorDelivery(ctx context.Context, deliveryID, newVendorID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vendor_deliveries SET vendor_id = ?, needs_review = 0 WHERE id = ?`,
		newVendorID, deliveryID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reassign vendor delivery %s", deliveryID)
	}
	return checkRowsAffected(res, "vendor delivery", deliveryID)
}

func (s *SQLiteStore) ReassignAllVendorDeliveries(ctx context.Context, fromID, intoID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin reassign vendor deliveries")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM vendor_deliveries WHERE vendor_id = ?
		 AND report_id IN (SELECT report_id FROM vendor_deliveries WHERE vendor_id = ?)`,
		fromID, intoID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: drop duplicate vendor deliveries %s", fromID)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE vendor_deliveries SET vendor_id = ? WHERE vendor_id = ?`,
		intoID, fromID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reassign vendor deliveries %s", fromID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit reassign vendor deliveries")
}

func (s *SQLiteStore) DeleteVendorDelivery(ctx context.Context, deliveryID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vendor_deliveries WHERE id = ?`, deliveryID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete vendor delivery %s", deliveryID)
	}
	return checkRowsAffected(res, "vendor delivery", deliveryID)
}

// Work logs and constraints

func (s *SQLiteStore) ReplaceWorkLogs(ctx context.Context, reportID string, entries []model.WorkLogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace work logs")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM work_logs WHERE report_id = ?`, reportID); err != nil {
		return eris.Wrapf(err, "sqlite: delete work logs %s", reportID)
	}

	now := time.Now().UTC()
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		idsJSON, err := json.Marshal(e.PersonnelIDs)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal personnel ids")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO work_logs (id, report_id, team, level, description, personnel_ids, hours_worked, source_excerpt, needs_review, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, reportID, e.Team, e.Level, e.Description, string(idsJSON),
			e.HoursWorked, e.SourceExcerpt, e.NeedsReview, e.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert work log %s", e.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace work logs")
}

func (s *SQLiteStore) ListWorkLogs(ctx context.Context, reportID string) ([]model.WorkLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, report_id, team, level, description, personnel_ids, hours_worked, source_excerpt, needs_review, created_at
		 FROM work_logs WHERE report_id = ? ORDER BY created_at`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list work logs")
	}
	defer rows.Close()

	var entries []model.WorkLogEntry
	for rows.Next() {
		var e model.WorkLogEntry
		var idsJSON string
		if err := rows.Scan(&e.ID, &e.ReportID, &e.Team, &e.Level, &e.Description, &idsJSON,
			&e.HoursWorked, &e.SourceExcerpt, &e.NeedsReview, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan work log")
		}
		if err := json.Unmarshal([]byte(idsJSON), &e.PersonnelIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal personnel ids")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list work logs iterate")
}

func (s *SQLiteStore) ReplaceConstraints(ctx context.Context, reportID string, recs []model.ConstraintRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace constraints")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_constraints WHERE report_id = ?`, reportID); err != nil {
		return eris.Wrapf(err, "sqlite: delete constraints %s", reportID)
	}

	now := time.Now().UTC()
	for i := range recs {
		c := &recs[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO report_constraints (id, report_id, category, severity, status, cost_impact, resolution_status, source_excerpt, needs_review, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, reportID, string(c.Category), string(c.Severity), c.Status,
			c.CostImpact, c.ResolutionStatus, c.SourceExcerpt, c.NeedsReview, c.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert constraint %s", c.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace constraints")
}

const constraintColumns = `id, report_id, category, severity, status, cost_impact, resolution_status, source_excerpt, needs_review, created_at`

func (s *SQLiteStore) ListConstraints(ctx context.Context, reportID string) ([]model.ConstraintRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+constraintColumns+` FROM report_constraints WHERE report_id = ? ORDER BY created_at`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list constraints")
	}
	return collectConstraints(rows)
}

func (s *SQLiteStore) ListProjectConstraints(ctx context.Context, projectID string, w Window) ([]model.ConstraintRecord, error) {
	query := `SELECT c.id, c.report_id, c.category, c.severity, c.status, c.cost_impact, c.resolution_status, c.source_excerpt, c.needs_review, c.created_at
		 FROM report_constraints c JOIN reports r ON r.id = c.report_id
		 WHERE r.project_id = ?`
	args := []any{projectID}

	if !w.Start.IsZero() {
		query += ` AND r.report_date >= ?`
		args = append(args, w.Start)
	}
	if !w.End.IsZero() {
		query += ` AND r.report_date < ?`
		args = append(args, w.End)
	}
	query += ` ORDER BY r.report_date, c.created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list project constraints")
	}
	return collectConstraints(rows)
}

// Team rosters

func (s *SQLiteStore) UpsertTeamMember(ctx context.Context, projectID, team, personID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO team_members (project_id, team, person_id) VALUES (?, ?, ?)`,
		projectID, team, personID,
	)
	return eris.Wrapf(err, "sqlite: upsert team member %s/%s", team, personID)
}

func (s *SQLiteStore) GetTeamRoster(ctx context.Context, projectID, team string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_id FROM team_members WHERE project_id = ? AND team = ? ORDER BY person_id`,
		projectID, team,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get team roster")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan team member")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: get team roster iterate")
}

// Extraction attempts

const attemptColumns = `id, report_id, cache_key, prompt_version, model, raw_response, payload, confidence, validation_passed, superseded, input_tokens, output_tokens, cost_usd, created_at`

func (s *SQLiteStore) FindAttemptByCacheKey(ctx context.Context, cacheKey string) (*model.ExtractionAttempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM extraction_attempts
		 WHERE cache_key = ? AND validation_passed = 1 AND superseded = 0
		 ORDER BY created_at DESC LIMIT 1`,
		cacheKey,
	)
	return scanAttempt(row)
}

func (s *SQLiteStore) CreateAttempt(ctx context.Context, a *model.ExtractionAttempt) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var payloadJSON sql.NullString
	if a.Payload != nil {
		data, err := json.Marshal(a.Payload)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal attempt payload")
		}
		payloadJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_attempts (`+attemptColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ReportID, a.CacheKey, a.PromptVersion, a.Model, a.RawResponse, payloadJSON,
		a.Confidence, a.ValidationPassed, a.Superseded, a.InputTokens, a.OutputTokens, a.CostUSD, a.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert attempt %s", a.ID)
}

func (s *SQLiteStore) SupersedeAttempts(ctx context.Context, reportID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE extraction_attempts SET superseded = 1 WHERE report_id = ?`, reportID)
	return eris.Wrapf(err, "sqlite: supersede attempts %s", reportID)
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, reportID string) ([]model.ExtractionAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM extraction_attempts WHERE report_id = ? ORDER BY created_at`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close()

	var attempts []model.ExtractionAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, eris.Wrap(rows.Err(), "sqlite: list attempts iterate")
}

// Rollups

func (s *SQLiteStore) SaveRollup(ctx context.Context, r *model.ProjectRollup) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rollup")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_rollups (project_id, window_start, window_end, payload, computed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, window_start, window_end) DO UPDATE SET payload = excluded.payload, computed_at = excluded.computed_at`,
		r.ProjectID, r.WindowStart, r.WindowEnd, string(payload), r.ComputedAt,
	)
	return eris.Wrapf(err, "sqlite: save rollup %s", r.ProjectID)
}

func (s *SQLiteStore) GetRollup(ctx context.Context, projectID string, w Window) (*model.ProjectRollup, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM project_rollups WHERE project_id = ? AND window_start = ? AND window_end = ?`,
		projectID, w.Start, w.End,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get rollup %s", projectID)
	}

	var r model.ProjectRollup
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal rollup")
	}
	return &r, nil
}

// helpers

// appendVariantJSON adds a raw spelling to the display variant list on the
// entity row, skipping duplicates.
func (s *SQLiteStore) appendVariantJSON(ctx context.Context, table, id, rawName string) error {
	var variantsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT name_variants FROM `+table+` WHERE id = ?`, id).Scan(&variantsJSON)
	if err != nil {
		return eris.Wrapf(err, "sqlite: read name variants %s", id)
	}

	var variants []string
	if err := json.Unmarshal([]byte(variantsJSON), &variants); err != nil {
		return eris.Wrap(err, "sqlite: unmarshal name variants")
	}
	for _, v := range variants {
		if v == rawName {
			return nil
		}
	}
	variants = append(variants, rawName)

	updated, err := json.Marshal(variants)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal name variants")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE `+table+` SET name_variants = ? WHERE id = ?`, string(updated), id)
	return eris.Wrapf(err, "sqlite: update name variants %s", id)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReport(row scannable) (*model.Report, error) {
	var r model.Report
	err := row.Scan(&r.ID, &r.ProjectID, &r.SubmitterID, &r.ReportDate, &r.RawTranscript,
		&r.Status, &r.ExtractionVersion, &r.FailureReason, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan report")
	}
	return &r, nil
}

func scanPerson(row scannable) (*model.Person, error) {
	var p model.Person
	var variantsJSON string
	err := row.Scan(&p.ID, &p.CanonicalName, &variantsJSON, &p.CurrentPosition,
		&p.DateFirstSeen, &p.DateLastSeen, &p.TotalReports, &p.TotalHours, &p.Status, &p.MergedInto)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan person")
	}
	if err := json.Unmarshal([]byte(variantsJSON), &p.NameVariants); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal name variants")
	}
	return &p, nil
}

func scanVendor(row scannable) (*model.Vendor, error) {
	var v model.Vendor
	var variantsJSON string
	err := row.Scan(&v.ID, &v.CanonicalName, &variantsJSON, &v.VendorType,
		&v.DateFirstSeen, &v.DateLastSeen, &v.TotalDeliveries, &v.Status, &v.MergedInto)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan vendor")
	}
	if err := json.Unmarshal([]byte(variantsJSON), &v.NameVariants); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal name variants")
	}
	return &v, nil
}

func scanPersonHistory(row scannable) (*model.PersonHistory, error) {
	var h model.PersonHistory
	err := row.Scan(&h.ID, &h.PersonID, &h.ReportID, &h.RawName, &h.HoursWorked, &h.OvertimeHours,
		&h.TeamAssignment, &h.HealthStatus, &h.SourceExcerpt, &h.MatchScore, &h.NeedsReview, &h.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan person history")
	}
	return &h, nil
}

func collectPersonHistory(rows *sql.Rows) ([]model.PersonHistory, error) {
	defer rows.Close()
	var history []model.PersonHistory
	for rows.Next() {
		h, err := scanPersonHistory(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *h)
	}
	return history, eris.Wrap(rows.Err(), "sqlite: person history iterate")
}

func scanDelivery(row scannable) (*model.VendorDelivery, error) {
	var d model.VendorDelivery
	err := row.Scan(&d.ID, &d.VendorID, &d.ReportID, &d.RawName, &d.Materials, &d.DeliveryTime,
		&d.Issues, &d.CostImpact, &d.OnTime, &d.SourceExcerpt, &d.MatchScore, &d.NeedsReview, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan vendor delivery")
	}
	return &d, nil
}

func collectDeliveries(rows *sql.Rows) ([]model.VendorDelivery, error) {
	defer rows.Close()
	var deliveries []model.VendorDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, eris.Wrap(rows.Err(), "sqlite: vendor deliveries iterate")
}

func collectConstraints(rows *sql.Rows) ([]model.ConstraintRecord, error) {
	defer rows.Close()
	var recs []model.ConstraintRecord
	for rows.Next() {
		var c model.ConstraintRecord
		if err := rows.Scan(&c.ID, &c.ReportID, &c.Category, &c.Severity, &c.Status,
			&c.CostImpact, &c.ResolutionStatus, &c.SourceExcerpt, &c.NeedsReview, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan constraint")
		}
		recs = append(recs, c)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: constraints iterate")
}

func scanAttempt(row scannable) (*model.ExtractionAttempt, error) {
	var a model.ExtractionAttempt
	var payloadJSON sql.NullString
	err := row.Scan(&a.ID, &a.ReportID, &a.CacheKey, &a.PromptVersion, &a.Model, &a.RawResponse,
		&payloadJSON, &a.Confidence, &a.ValidationPassed, &a.Superseded,
		&a.InputTokens, &a.OutputTokens, &a.CostUSD, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan attempt")
	}
	if payloadJSON.Valid && payloadJSON.String != "" {
		a.Payload = &model.Extraction{}
		if err := json.Unmarshal([]byte(payloadJSON.String), a.Payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal attempt payload")
		}
	}
	return &a, nil
}
