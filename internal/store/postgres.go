package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/blueline-build/fieldreport-cli/internal/db"
	"github.com/blueline-build/fieldreport-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot resolution-path operations.
var preparedStatements = map[string]string{
	"find_person_by_name": `SELECT id, canonical_name, name_variants, current_position, date_first_seen, date_last_seen, total_reports, total_hours, status, merged_into FROM persons WHERE normalized_name = $1 OR id IN (SELECT person_id FROM person_variants WHERE variant = $1) LIMIT 1`,
	"find_vendor_by_name": `SELECT id, canonical_name, name_variants, vendor_type, date_first_seen, date_last_seen, total_deliveries, status, merged_into FROM vendors WHERE normalized_name = $1 OR id IN (SELECT vendor_id FROM vendor_variants WHERE variant = $1) LIMIT 1`,
	"get_person_history":  `SELECT id, person_id, report_id, raw_name, hours_worked, overtime_hours, team_assignment, health_status, source_excerpt, match_score, needs_review, created_at FROM person_history WHERE person_id = $1 AND report_id = $2`,
	"find_attempt":        `SELECT id, report_id, cache_key, prompt_version, model, raw_response, payload, confidence, validation_passed, superseded, input_tokens, output_tokens, cost_usd, created_at FROM extraction_attempts WHERE cache_key = $1 AND validation_passed AND NOT superseded ORDER BY created_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id                 TEXT PRIMARY KEY,
	project_id         TEXT NOT NULL,
	submitter_id       TEXT NOT NULL,
	report_date        TIMESTAMPTZ NOT NULL,
	raw_transcript     TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending_analysis',
	extraction_version INTEGER NOT NULL DEFAULT 1,
	failure_reason     TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS persons (
	id               TEXT PRIMARY KEY,
	canonical_name   TEXT NOT NULL,
	normalized_name  TEXT NOT NULL UNIQUE,
	name_variants    JSONB NOT NULL DEFAULT '[]',
	current_position TEXT NOT NULL DEFAULT '',
	date_first_seen  TIMESTAMPTZ NOT NULL,
	date_last_seen   TIMESTAMPTZ NOT NULL,
	total_reports    INTEGER NOT NULL DEFAULT 0,
	total_hours      DOUBLE PRECISION NOT NULL DEFAULT 0,
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
	hours_worked    DOUBLE PRECISION NOT NULL DEFAULT 0,
	overtime_hours  DOUBLE PRECISION NOT NULL DEFAULT 0,
	team_assignment TEXT NOT NULL DEFAULT '',
	health_status   TEXT NOT NULL DEFAULT '',
	source_excerpt  TEXT NOT NULL,
	match_score     INTEGER NOT NULL DEFAULT 100,
	needs_review    BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(person_id, report_id)
);

CREATE TABLE IF NOT EXISTS vendors (
	id               TEXT PRIMARY KEY,
	canonical_name   TEXT NOT NULL,
	normalized_name  TEXT NOT NULL UNIQUE,
	name_variants    JSONB NOT NULL DEFAULT '[]',
	vendor_type      TEXT NOT NULL DEFAULT '',
	date_first_seen  TIMESTAMPTZ NOT NULL,
	date_last_seen   TIMESTAMPTZ NOT NULL,
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
	cost_impact    DOUBLE PRECISION NOT NULL DEFAULT 0,
	on_time        BOOLEAN NOT NULL DEFAULT true,
	source_excerpt TEXT NOT NULL,
	match_score    INTEGER NOT NULL DEFAULT 100,
	needs_review   BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(vendor_id, report_id)
);

CREATE TABLE IF NOT EXISTS work_logs (
	id             TEXT PRIMARY KEY,
	report_id      TEXT NOT NULL REFERENCES reports(id),
	team           TEXT NOT NULL DEFAULT '',
	level          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL,
	personnel_ids  JSONB NOT NULL DEFAULT '[]',
	hours_worked   DOUBLE PRECISION NOT NULL DEFAULT 0,
	source_excerpt TEXT NOT NULL,
	needs_review   BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS report_constraints (
	id                TEXT PRIMARY KEY,
	report_id         TEXT NOT NULL REFERENCES reports(id),
	category          TEXT NOT NULL,
	severity          TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT '',
	cost_impact       DOUBLE PRECISION NOT NULL DEFAULT 0,
	resolution_status TEXT NOT NULL DEFAULT '',
	source_excerpt    TEXT NOT NULL,
	needs_review      BOOLEAN NOT NULL DEFAULT false,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
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
	payload           JSONB,
	confidence        DOUBLE PRECISION NOT NULL DEFAULT 0,
	validation_passed BOOLEAN NOT NULL DEFAULT false,
	superseded        BOOLEAN NOT NULL DEFAULT false,
	input_tokens      INTEGER NOT NULL DEFAULT 0,
	output_tokens     INTEGER NOT NULL DEFAULT 0,
	cost_usd          DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS project_rollups (
	project_id   TEXT NOT NULL,
	window_start TIMESTAMPTZ NOT NULL,
	window_end   TIMESTAMPTZ NOT NULL,
	payload      JSONB NOT NULL,
	computed_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Reports

func (s *PostgresStore) CreateReport(ctx context.Context, r *model.Report) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (id, project_id, submitter_id, report_date, raw_transcript, status, extraction_version, failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.ProjectID, r.SubmitterID, r.ReportDate, r.RawTranscript,
		string(r.Status), r.ExtractionVersion, r.FailureReason, r.CreatedAt, r.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert report %s", r.ID)
}

func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	var r model.Report
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, submitter_id, report_date, raw_transcript, status, extraction_version, failure_reason, created_at, updated_at
		 FROM reports WHERE id = $1`,
		reportID,
	).Scan(&r.ID, &r.ProjectID, &r.SubmitterID, &r.ReportDate, &r.RawTranscript,
		&r.Status, &r.ExtractionVersion, &r.FailureReason, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get report %s", reportID)
	}
	return &r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT id, project_id, submitter_id, report_date, raw_transcript, status, extraction_version, failure_reason, created_at, updated_at
		 FROM reports WHERE true`
	args := []any{}

	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query += fmt.Sprintf(` AND project_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY report_date DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.SubmitterID, &r.ReportDate, &r.RawTranscript,
			&r.Status, &r.ExtractionVersion, &r.FailureReason, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

func (s *PostgresStore) UpdateReportStatus(ctx context.Context, reportID string, status model.ReportStatus, failureReason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET status = $1, failure_reason = $2, updated_at = $3 WHERE id = $4`,
		string(status), failureReason, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update report status %s", reportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found: %s", reportID)
	}
	return nil
}

func (s *PostgresStore) BumpExtractionVersion(ctx context.Context, reportID string) (int, error) {
	var version int
	err := s.pool.QueryRow(ctx,
		`UPDATE reports SET extraction_version = extraction_version + 1, updated_at = $1 WHERE id = $2 RETURNING extraction_version`,
		time.Now().UTC(), reportID,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Errorf("report not found: %s", reportID)
	}
	return version, eris.Wrapf(err, "postgres: bump extraction version %s", reportID)
}

// Persons

func (s *PostgresStore) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = $1`, personID)
	return scanPgPerson(row)
}

func (s *PostgresStore) FindPersonByName(ctx context.Context, normalized string) (*model.Person, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons
		 WHERE normalized_name = $1 OR id IN (SELECT person_id FROM person_variants WHERE variant = $1)
		 LIMIT 1`,
		normalized,
	)
	p, err := scanPgPerson(row)
	if err != nil || p == nil {
		return p, err
	}
	for hops := 0; p.Status == model.EntityStatusMerged && p.MergedInto != "" && hops < 5; hops++ {
		next, err := s.GetPerson(ctx, p.MergedInto)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		p = next
	}
	return p, nil
}

func (s *PostgresStore) ListActivePersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+personColumns+` FROM persons WHERE status = $1 ORDER BY canonical_name`,
		string(model.EntityStatusActive),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active persons")
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		p, err := scanPgPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	return persons, eris.Wrap(rows.Err(), "postgres: list active persons iterate")
}

func (s *PostgresStore) CreatePersonIfAbsent(ctx context.Context, p *model.Person, normalized string) (*model.Person, bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = model.EntityStatusActive
	}

	variantsJSON, err := json.Marshal(p.NameVariants)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: marshal name variants")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO persons (id, canonical_name, normalized_name, name_variants, current_position, date_first_seen, date_last_seen, total_reports, total_hours, status, merged_into)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (normalized_name) DO NOTHING`,
		p.ID, p.CanonicalName, normalized, variantsJSON, p.CurrentPosition,
		p.DateFirstSeen, p.DateLastSeen, p.TotalReports, p.TotalHours, string(p.Status), p.MergedInto,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: insert person %s", p.CanonicalName)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.FindPersonByName(ctx, normalized)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, eris.Errorf("person not found after conflict: %s", normalized)
		}
		return existing, false, nil
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO person_variants (variant, person_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		normalized, p.ID,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: insert person variant %s", normalized)
	}
	return p, true, nil
}

func (s *PostgresStore) AddPersonVariant(ctx context.Context, personID, rawName, normalized string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO person_variants (variant, person_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		normalized, personID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert person variant %s", normalized)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE persons SET name_variants = name_variants || to_jsonb($1::text)
		 WHERE id = $2 AND NOT name_variants ? $1`,
		rawName, personID,
	)
	return eris.Wrapf(err, "postgres: update name variants %s", personID)
}

func (s *PostgresStore) UpdatePersonSeen(ctx context.Context, personID string, seen time.Time, hours float64, position string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET
			total_reports = total_reports + 1,
			total_hours = total_hours + $1,
			date_last_seen = GREATEST(date_last_seen, $2),
			current_position = CASE WHEN $3 != '' THEN $3 ELSE current_position END
		 WHERE id = $4`,
		hours, seen, position, personID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update person seen %s", personID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person not found: %s", personID)
	}
	return nil
}

func (s *PostgresStore) MarkPersonMerged(ctx context.Context, fromID, intoID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET status = $1, merged_into = $2 WHERE id = $3`,
		string(model.EntityStatusMerged), intoID, fromID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark person merged %s", fromID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person not found: %s", fromID)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE person_variants SET person_id = $1 WHERE person_id = $2`,
		intoID, fromID,
	)
	return eris.Wrapf(err, "postgres: repoint person variants %s", fromID)
}

// Person history

func (s *PostgresStore) GetPersonHistory(ctx context.Context, personID, reportID string) (*model.PersonHistory, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+personHistoryColumns+` FROM person_history WHERE person_id = $1 AND report_id = $2`,
		personID, reportID,
	)
	return scanPgPersonHistory(row)
}

func (s *PostgresStore) GetPersonHistoryByID(ctx context.Context, historyID string) (*model.PersonHistory, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+personHistoryColumns+` FROM person_history WHERE id = $1`, historyID)
	return scanPgPersonHistory(row)
}

func (s *PostgresStore) AppendPersonHistory(ctx context.Context, h *model.PersonHistory) (bool, error) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO person_history (`+personHistoryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (person_id, report_id) DO NOTHING`,
		h.ID, h.PersonID, h.ReportID, h.RawName, h.HoursWorked, h.OvertimeHours,
		h.TeamAssignment, h.HealthStatus, h.SourceExcerpt, h.MatchScore, h.NeedsReview, h.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: append person history %s/%s", h.PersonID, h.ReportID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListPersonHistoryByReport(ctx context.Context, reportID string) ([]model.PersonHistory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+personHistoryColumns+` FROM person_history WHERE report_id = $1 ORDER BY created_at`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list person history by report")
	}
	return collectPgPersonHistory(rows)
}

func (s *PostgresStore) ListPersonHistory(ctx context.Context, projectID string, w Window) ([]model.PersonHistory, error) {
	query := `SELECT h.id, h.person_id, h.report_id, h.raw_name, h.hours_worked, h.overtime_hours, h.team_assignment, h.health_status, h.source_excerpt, h.match_score, h.needs_review, h.created_at
		 FROM person_history h JOIN reports r ON r.id = h.report_id
		 WHERE r.project_id = $1`
	args := []any{projectID}

	if !w.Start.IsZero() {
		args = append(args, w.Start)
		query += fmt.Sprintf(` AND r.report_date >= $%d`, len(args))
	}
	if !w.End.IsZero() {
		args = append(args, w.End)
		query += fmt.Sprintf(` AND r.report_date < $%d`, len(args))
	}
	query += ` ORDER BY r.report_date, h.created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list person history")
	}
	return collectPgPersonHistory(rows)
}

func (s *PostgresStore) ListFlaggedPersonHistory(ctx context.Context, before time.Time) ([]model.PersonHistory, error) {
	query := `SELECT ` + personHistoryColumns + ` FROM person_history WHERE needs_review`
	var args []any
	if !before.IsZero() {
		args = append(args, before)
		query += ` AND created_at < $1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list flagged person history")
	}
	return collectPgPersonHistory(rows)
}

func (s *PostgresStore) ClearPersonHistoryReview(ctx context.Context, historyID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE person_history SET needs_review = false WHERE id = $1`, historyID)
	if err != nil {
		return eris.Wrapf(err, "postgres: clear person history review %s", historyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person history not found: %s", historyID)
	}
	return nil
}

func (s *PostgresStore) ReassignPersonHistory(ctx context.Context, historyID, newPersonID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE person_history SET person_id = $1, needs_review = false WHERE id = $2`,
		newPersonID, historyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reassign person history %s", historyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person history not found: %s", historyID)
	}
	return nil
}

func (s *PostgresStore) ReassignAllPersonHistory(ctx context.Context, fromID, intoID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin reassign person history")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM person_history WHERE person_id = $1
		 AND report_id IN (SELECT report_id FROM person_history WHERE person_id = $2)`,
		fromID, intoID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: drop duplicate person history %s", fromID)
	}
	_, err = tx.Exec(ctx,
		`UPDATE person_history SET person_id = $1 WHERE person_id = $2`,
		intoID, fromID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reassign person history %s", fromID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit reassign person history")
}

func (s *PostgresStore) DeletePersonHistory(ctx context.Context, historyID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM person_history WHERE id = $1`, historyID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete person history %s", historyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person history not found: %s", historyID)
	}
	return nil
}

// Vendors

func (s *PostgresStore) GetVendor(ctx context.Context, vendorID string) (*model.Vendor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, vendorID)
	return scanPgVendor(row)
}

func (s *PostgresStore) FindVendorByName(ctx context.Context, normalized string) (*model.Vendor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+vendorColumns+` FROM vendors
		 WHERE normalized_name = $1 OR id IN (SELECT vendor_id FROM vendor_variants WHERE variant = $1)
		 LIMIT 1`,
		normalized,
	)
	v, err := scanPgVendor(row)
	if err != nil || v == nil {
		return v, err
	}
	for hops := 0; v.Status == model.EntityStatusMerged && v.MergedInto != "" && hops < 5; hops++ {
		next, err := s.GetVendor(ctx, v.MergedInto)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		v = next
	}
	return v, nil
}

func (s *PostgresStore) ListActiveVendors(ctx context.Context) ([]model.Vendor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE status = $1 ORDER BY canonical_name`,
		string(model.EntityStatusActive),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active vendors")
	}
	defer rows.Close()

	var vendors []model.Vendor
	for rows.Next() {
		v, err := scanPgVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, *v)
	}
	return vendors, eris.Wrap(rows.Err(), "postgres: list active vendors iterate")
}

func (s *PostgresStore) CreateVendorIfAbsent(ctx context.Context, v *model.Vendor, normalized string) (*model.Vendor, bool, error) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.Status == "" {
		v.Status = model.EntityStatusActive
	}

	variantsJSON, err := json.Marshal(v.NameVariants)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: marshal name variants")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO vendors (id, canonical_name, normalized_name, name_variants, vendor_type, date_first_seen, date_last_seen, total_deliveries, status, merged_into)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (normalized_name) DO NOTHING`,
		v.ID, v.CanonicalName, normalized, variantsJSON, v.VendorType,
		v.DateFirstSeen, v.DateLastSeen, v.TotalDeliveries, string(v.Status), v.MergedInto,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: insert vendor %s", v.CanonicalName)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.FindVendorByName(ctx, normalized)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, eris.Errorf("vendor not found after conflict: %s", normalized)
		}
		return existing, false, nil
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO vendor_variants (variant, vendor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		normalized, v.ID,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: insert vendor variant %s", normalized)
	}
	return v, true, nil
}

func (s *PostgresStore) AddVendorVariant(ctx context.Context, vendorID, rawName, normalized string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vendor_variants (variant, vendor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		normalized, vendorID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert vendor variant %s", normalized)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE vendors SET name_variants = name_variants || to_jsonb($1::text)
		 WHERE id = $2 AND NOT name_variants ? $1`,
		rawName, vendorID,
	)
	return eris.Wrapf(err, "postgres: update name variants %s", vendorID)
}

func (s *PostgresStore) UpdateVendorSeen(ctx context.Context, vendorID string, seen time.Time, vendorType string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vendors SET
			total_deliveries = total_deliveries + 1,
			date_last_seen = GREATEST(date_last_seen, $1),
			vendor_type = CASE WHEN $2 != '' THEN $2 ELSE vendor_type END
		 WHERE id = $3`,
		seen, vendorType, vendorID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update vendor seen %s", vendorID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("vendor not found: %s", vendorID)
	}
	return nil
}

func (s *PostgresStore) MarkVendorMerged(ctx context.Context, fromID, intoID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vendors SET status = $1, merged_into = $2 WHERE id = $3`,
		string(model.EntityStatusMerged), intoID, fromID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark vendor merged %s", fromID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("vendor not found: %s", fromID)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE vendor_variants SET vendor_id = $1 WHERE vendor_id = $2`,
		intoID, fromID,
	)
	return eris.Wrapf(err, "postgres: repoint vendor variants %s", fromID)
}

// Vendor deliveries

func (s *PostgresStore) GetVendorDelivery(ctx context.Context, vendorID, reportID string) (*model.VendorDelivery, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM vendor_deliveries WHERE vendor_id = $1 AND report_id = $2`,
		vendorID, reportID,
	)
	return scanPgDelivery(row)
}

func (s *PostgresStore) GetVendorDeliveryByID(ctx context.Context, deliveryID string) (*model.VendorDelivery, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM vendor_deliveries WHERE id = $1`, deliveryID)
	return scanPgDelivery(row)
}

func (s *PostgresStore) AppendVendorDelivery(ctx context.Context, d *model.VendorDelivery) (bool, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO vendor_deliveries (`+deliveryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (vendor_id, report_id) DO NOTHING`,
		d.ID, d.VendorID, d.ReportID, d.RawName, d.Materials, d.DeliveryTime, d.Issues,
		d.CostImpact, d.OnTime, d.SourceExcerpt, d.MatchScore, d.NeedsReview, d.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: append vendor delivery %s/%s", d.VendorID, d.ReportID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListDeliveriesByReport(ctx context.Context, reportID string) ([]model.VendorDelivery, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+deliveryColumns+` FROM vendor_deliveries WHERE report_id = $1 ORDER BY created_at`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list deliveries by report")
	}
	return collectPgDeliveries(rows)
}

func (s *PostgresStore) ListVendorDeliveries(ctx context.Context, projectID string, w Window) ([]model.VendorDelivery, error) {
	query := `SELECT d.id, d.vendor_id, d.report_id, d.raw_name, d.materials, d.delivery_time, d.issues, d.cost_impact, d.on_time, d.source_excerpt, d.match_score, d.needs_review, d.created_at
		 FROM vendor_deliveries d JOIN reports r ON r.id = d.report_id
		 WHERE r.project_id = $1`
	args := []any{projectID}

	if !w.Start.IsZero() {
		args = append(args, w.Start)
		query += fmt.Sprintf(` AND r.report_date >= $%d`, len(args))
	}
	if !w.End.IsZero() {
		args = append(args, w.End)
		query += fmt.Sprintf(` AND r.report_date < $%d`, len(args))
	}
	query += ` ORDER BY r.report_date, d.created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vendor deliveries")
	}
	return collectPgDeliveries(rows)
}

func (s *PostgresStore) ListFlaggedVendorDeliveries(ctx context.Context, before time.Time) ([]model.VendorDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM vendor_deliveries WHERE needs_review`
	var args []any
	if !before.IsZero() {
		args = append(args, before)
		query += ` AND created_at < $1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list flagged vendor deliveries")
	}
	return collectPgDeliveries(rows)
}

func (s *PostgresStore) ClearVendorDeliveryReview(ctx context.Context, deliveryID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vendor_deliveries SET needs_review = false WHERE id = $1`, deliveryID)
	if err != nil {
		return eris.Wrapf(err, "postgres: clear vendor delivery review %s", deliveryID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("vendor delivery not found: %s", deliveryID)
	}
	return nil
}

func (s *PostgresStore) ReassignVendorDelivery(ctx context.Context, deliveryID, newVendorID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vendor_deliveries SET vendor_id = $1, needs_review = false WHERE id = $2`,
		newVendorID, deliveryID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reassign vendor delivery %s", deliveryID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("vendor delivery not found: %s", deliveryID)
	}
	return nil
}

func (s *PostgresStore) ReassignAllVendorDeliveries(ctx context.Context, fromID, intoID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin reassign vendor deliveries")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM vendor_deliveries WHERE vendor_id = $1
		 AND report_id IN (SELECT report_id FROM vendor_deliveries WHERE vendor_id = $2)`,
		fromID, intoID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: drop duplicate vendor deliveries %s", fromID)
	}
	_, err = tx.Exec(ctx,
		`UPDATE vendor_deliveries SET vendor_id = $1 WHERE vendor_id = $2`,
		intoID, fromID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reassign vendor deliveries %s", fromID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit reassign vendor deliveries")
}

func (s *PostgresStore) DeleteVendorDelivery(ctx context.Context, deliveryID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vendor_deliveries WHERE id = $1`, deliveryID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete vendor delivery %s", deliveryID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("vendor delivery not found: %s", deliveryID)
	}
	return nil
}

// Work logs and constraints

func (s *PostgresStore) ReplaceWorkLogs(ctx context.Context, reportID string, entries []model.WorkLogEntry) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM work_logs WHERE report_id = $1`, reportID); err != nil {
		return eris.Wrapf(err, "postgres: delete work logs %s", reportID)
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(entries))
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
			return eris.Wrap(err, "postgres: marshal personnel ids")
		}
		rows = append(rows, []any{e.ID, reportID, e.Team, e.Level, e.Description, idsJSON,
			e.HoursWorked, e.SourceExcerpt, e.NeedsReview, e.CreatedAt})
	}

	_, err := db.CopyFrom(ctx, s.pool, "work_logs",
		[]string{"id", "report_id", "team", "level", "description", "personnel_ids", "hours_worked", "source_excerpt", "needs_review", "created_at"},
		rows,
	)
	return eris.Wrapf(err, "postgres: replace work logs %s", reportID)
}

func (s *PostgresStore) ListWorkLogs(ctx context.Context, reportID string) ([]model.WorkLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, report_id, team, level, description, personnel_ids, hours_worked, source_excerpt, needs_review, created_at
		 FROM work_logs WHERE report_id = $1 ORDER BY created_at`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list work logs")
	}
	defer rows.Close()

	var entries []model.WorkLogEntry
	for rows.Next() {
		var e model.WorkLogEntry
		var idsJSON []byte
		if err := rows.Scan(&e.ID, &e.ReportID, &e.Team, &e.Level, &e.Description, &idsJSON,
			&e.HoursWorked, &e.SourceExcerpt, &e.NeedsReview, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan work log")
		}
		if err := json.Unmarshal(idsJSON, &e.PersonnelIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal personnel ids")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list work logs iterate")
}

func (s *PostgresStore) ReplaceConstraints(ctx context.Context, reportID string, recs []model.ConstraintRecord) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM report_constraints WHERE report_id = $1`, reportID); err != nil {
		return eris.Wrapf(err, "postgres: delete constraints %s", reportID)
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(recs))
	for i := range recs {
		c := &recs[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		rows = append(rows, []any{c.ID, reportID, string(c.Category), string(c.Severity), c.Status,
			c.CostImpact, c.ResolutionStatus, c.SourceExcerpt, c.NeedsReview, c.CreatedAt})
	}

	_, err := db.CopyFrom(ctx, s.pool, "report_constraints",
		[]string{"id", "report_id", "category", "severity", "status", "cost_impact", "resolution_status", "source_excerpt", "needs_review", "created_at"},
		rows,
	)
	return eris.Wrapf(err, "postgres: replace constraints %s", reportID)
}

func (s *PostgresStore) ListConstraints(ctx context.Context, reportID string) ([]model.ConstraintRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+constraintColumns+` FROM report_constraints WHERE report_id = $1 ORDER BY created_at`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list constraints")
	}
	return collectPgConstraints(rows)
}

func (s *PostgresStore) ListProjectConstraints(ctx context.Context, projectID string, w Window) ([]model.ConstraintRecord, error) {
	query := `SELECT c.id, c.report_id, c.category, c.severity, c.status, c.cost_impact, c.resolution_status, c.source_excerpt, c.needs_review, c.created_at
		 FROM report_constraints c JOIN reports r ON r.id = c.report_id
		 WHERE r.project_id = $1`
	args := []any{projectID}

	if !w.Start.IsZero() {
		args = append(args, w.Start)
		query += fmt.Sprintf(` AND r.report_date >= $%d`, len(args))
	}
	if !w.End.IsZero() {
		args = append(args, w.End)
		query += fmt.Sprintf(` AND r.report_date < $%d`, len(args))
	}
	query += ` ORDER BY r.report_date, c.created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list project constraints")
	}
	return collectPgConstraints(rows)
}

// Team rosters

func (s *PostgresStore) UpsertTeamMember(ctx context.Context, projectID, team, personID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO team_members (project_id, team, person_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		projectID, team, personID,
	)
	return eris.Wrapf(err, "postgres: upsert team member %s/%s", team, personID)
}

func (s *PostgresStore) GetTeamRoster(ctx context.Context, projectID, team string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT person_id FROM team_members WHERE project_id = $1 AND team = $2 ORDER BY person_id`,
		projectID, team,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get team roster")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan team member")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: get team roster iterate")
}

// Extraction attempts

func (s *PostgresStore) FindAttemptByCacheKey(ctx context.Context, cacheKey string) (*model.ExtractionAttempt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM extraction_attempts
		 WHERE cache_key = $1 AND validation_passed AND NOT superseded
		 ORDER BY created_at DESC LIMIT 1`,
		cacheKey,
	)
	return scanPgAttempt(row)
}

func (s *PostgresStore) CreateAttempt(ctx context.Context, a *model.ExtractionAttempt) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var payloadJSON []byte
	if a.Payload != nil {
		data, err := json.Marshal(a.Payload)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal attempt payload")
		}
		payloadJSON = data
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO extraction_attempts (`+attemptColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.ReportID, a.CacheKey, a.PromptVersion, a.Model, a.RawResponse, payloadJSON,
		a.Confidence, a.ValidationPassed, a.Superseded, a.InputTokens, a.OutputTokens, a.CostUSD, a.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert attempt %s", a.ID)
}

func (s *PostgresStore) SupersedeAttempts(ctx context.Context, reportID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE extraction_attempts SET superseded = true WHERE report_id = $1`, reportID)
	return eris.Wrapf(err, "postgres: supersede attempts %s", reportID)
}

func (s *PostgresStore) ListAttempts(ctx context.Context, reportID string) ([]model.ExtractionAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM extraction_attempts WHERE report_id = $1 ORDER BY created_at`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list attempts")
	}
	defer rows.Close()

	var attempts []model.ExtractionAttempt
	for rows.Next() {
		a, err := scanPgAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, eris.Wrap(rows.Err(), "postgres: list attempts iterate")
}

// Rollups

func (s *PostgresStore) SaveRollup(ctx context.Context, r *model.ProjectRollup) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rollup")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO project_rollups (project_id, window_start, window_end, payload, computed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (project_id, window_start, window_end) DO UPDATE SET payload = excluded.payload, computed_at = excluded.computed_at`,
		r.ProjectID, r.WindowStart, r.WindowEnd, payload, r.ComputedAt,
	)
	return eris.Wrapf(err, "postgres: save rollup %s", r.ProjectID)
}

func (s *PostgresStore) GetRollup(ctx context.Context, projectID string, w Window) (*model.ProjectRollup, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM project_rollups WHERE project_id = $1 AND window_start = $2 AND window_end = $3`,
		projectID, w.Start, w.End,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get rollup %s", projectID)
	}

	var r model.ProjectRollup
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal rollup")
	}
	return &r, nil
}

// helpers

func scanPgPerson(row scannable) (*model.Person, error) {
	var p model.Person
	var variantsJSON []byte
	err := row.Scan(&p.ID, &p.CanonicalName, &variantsJSON, &p.CurrentPosition,
		&p.DateFirstSeen, &p.DateLastSeen, &p.TotalReports, &p.TotalHours, &p.Status, &p.MergedInto)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan person")
	}
	if err := json.Unmarshal(variantsJSON, &p.NameVariants); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal name variants")
	}
	return &p, nil
}

func scanPgVendor(row scannable) (*model.Vendor, error) {
	var v model.Vendor
	var variantsJSON []byte
	err := row.Scan(&v.ID, &v.CanonicalName, &variantsJSON, &v.VendorType,
		&v.DateFirstSeen, &v.DateLastSeen, &v.TotalDeliveries, &v.Status, &v.MergedInto)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan vendor")
	}
	if err := json.Unmarshal(variantsJSON, &v.NameVariants); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal name variants")
	}
	return &v, nil
}

func scanPgPersonHistory(row scannable) (*model.PersonHistory, error) {
	var h model.PersonHistory
	err := row.Scan(&h.ID, &h.PersonID, &h.ReportID, &h.RawName, &h.HoursWorked, &h.OvertimeHours,
		&h.TeamAssignment, &h.HealthStatus, &h.SourceExcerpt, &h.MatchScore, &h.NeedsReview, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan person history")
	}
	return &h, nil
}

func collectPgPersonHistory(rows pgx.Rows) ([]model.PersonHistory, error) {
	defer rows.Close()
	var history []model.PersonHistory
	for rows.Next() {
		h, err := scanPgPersonHistory(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *h)
	}
	return history, eris.Wrap(rows.Err(), "postgres: person history iterate")
}

func scanPgDelivery(row scannable) (*model.VendorDelivery, error) {
	var d model.VendorDelivery
	err := row.Scan(&d.ID, &d.VendorID, &d.ReportID, &d.RawName, &d.Materials, &d.DeliveryTime,
		&d.Issues, &d.CostImpact, &d.OnTime, &d.SourceExcerpt, &d.MatchScore, &d.NeedsReview, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan vendor delivery")
	}
	return &d, nil
}

func collectPgDeliveries(rows pgx.Rows) ([]model.VendorDelivery, error) {
	defer rows.Close()
	var deliveries []model.VendorDelivery
	for rows.Next() {
		d, err := scanPgDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, eris.Wrap(rows.Err(), "postgres: vendor deliveries iterate")
}

func collectPgConstraints(rows pgx.Rows) ([]model.ConstraintRecord, error) {
	defer rows.Close()
	var recs []model.ConstraintRecord
	for rows.Next() {
		var c model.ConstraintRecord
		if err := rows.Scan(&c.ID, &c.ReportID, &c.Category, &c.Severity, &c.Status,
			&c.CostImpact, &c.ResolutionStatus, &c.SourceExcerpt, &c.NeedsReview, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan constraint")
		}
		recs = append(recs, c)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: constraints iterate")
}

func scanPgAttempt(row scannable) (*model.ExtractionAttempt, error) {
	var a model.ExtractionAttempt
	var payloadJSON []byte
	err := row.Scan(&a.ID, &a.ReportID, &a.CacheKey, &a.PromptVersion, &a.Model, &a.RawResponse,
		&payloadJSON, &a.Confidence, &a.ValidationPassed, &a.Superseded,
		&a.InputTokens, &a.OutputTokens, &a.CostUSD, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan attempt")
	}
	if len(payloadJSON) > 0 {
		a.Payload = &model.Extraction{}
		if err := json.Unmarshal(payloadJSON, a.Payload); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attempt payload")
		}
	}
	return &a, nil
}
