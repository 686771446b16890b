package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	sqlb "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/db/ent/schema"
	"github.com/joseph-ayodele/classdocs/internal/entity"
)

// jobTable and jobColumns come from the ent schema of record. scanJob reads
// the columns in field order.
var (
	jobTable   = schemaTable(schema.ConversionJob{})
	jobColumns = schemaColumns(schema.ConversionJob{})
)

func schemaTable(s ent.Interface) string {
	for _, a := range s.Annotations() {
		if ann, ok := a.(entsql.Annotation); ok && ann.Table != "" {
			return ann.Table
		}
	}
	panic("schema has no table annotation")
}

func schemaColumns(s ent.Interface) []string {
	fields := s.Fields()
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, f.Descriptor().Name)
	}
	return cols
}

// Dialect selects the SQL flavour of the job store. Queries are built with
// ent's dialect-aware builder, which quotes identifiers and binds parameters
// for it.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) builder() *sqlb.DialectBuilder {
	if d == DialectPostgres {
		return sqlb.Dialect(dialect.Postgres)
	}
	return sqlb.Dialect(dialect.SQLite)
}

// sqliteTimeLayout is fixed width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (d Dialect) timeArg(t time.Time) any {
	if d == DialectSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

type sqlJobRepository struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger
}

// NewSQLJobRepository returns a JobRepository over a migrated conversion_job
// table.
func NewSQLJobRepository(db *sql.DB, dialect Dialect, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &sqlJobRepository{db: db, dialect: dialect, log: log}
}

func (r *sqlJobRepository) Create(ctx context.Context, job *entity.Job) error {
	items, err := json.Marshal(job.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	status := job.Status
	if status == "" {
		status = constants.JobStatusPending
	}
	q, args := r.dialect.builder().Insert(jobTable).
		Columns("id", "owner", "items", "target_format", "destination", "title", "status", "created_at").
		Values(
			job.ID.String(), job.Owner, string(items), string(job.TargetFormat),
			job.Destination, job.Title, string(status), r.dialect.timeArg(job.CreatedAt),
		).
		Query()
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		r.log.Error("conversion_job insert failed", "job_id", job.ID, "error", err)
		return MapDBError(err)
	}
	r.log.Debug("conversion_job created", "job_id", job.ID, "format", job.TargetFormat)
	return nil
}

func (r *sqlJobRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	b := r.dialect.builder()
	q, args := b.Select(jobColumns...).
		From(b.Table(jobTable)).
		Where(sqlb.EQ("id", id.String())).
		Query()
	job, err := scanJob(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, MapDBError(err)
	}
	return job, nil
}

func (r *sqlJobRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]*entity.Job, error) {
	b := r.dialect.builder()
	q, args := b.Select(jobColumns...).
		From(b.Table(jobTable)).
		Where(sqlb.EQ("owner", owner)).
		OrderBy(sqlb.Desc("created_at"), sqlb.Desc("id")).
		Limit(normalizeLimit(limit)).
		Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close()

	out := make([]*entity.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, MapDBError(err)
	}
	return out, nil
}

func (r *sqlJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) (*entity.Job, error) {
	u := r.dialect.builder().Update(jobTable).
		Set("status", string(constants.JobStatusProcessing)).
		Set("started_at", r.dialect.timeArg(at))
	return r.transition(ctx, id, constants.JobStatusPending, u)
}

func (r *sqlJobRepository) Complete(ctx context.Context, id uuid.UUID, c Completion) (*entity.Job, error) {
	result, err := json.Marshal(c.Artifact)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	start, err := r.startTime(ctx, id)
	if err != nil {
		return nil, err
	}
	u := r.dialect.builder().Update(jobTable).
		Set("status", string(constants.JobStatusCompleted)).
		Set("result", string(result)).
		Set("completed_at", r.dialect.timeArg(c.At)).
		Set("processing_duration_ms", durationMs(start, c.At))
	if len(c.Placeholders) > 0 {
		b, err := json.Marshal(c.Placeholders)
		if err != nil {
			return nil, fmt.Errorf("encode placeholders: %w", err)
		}
		u.Set("placeholders", string(b))
	} else {
		u.SetNull("placeholders")
	}
	return r.transition(ctx, id, constants.JobStatusProcessing, u)
}

func (r *sqlJobRepository) Fail(ctx context.Context, id uuid.UUID, detail string, at time.Time) (*entity.Job, error) {
	start, err := r.startTime(ctx, id)
	if err != nil {
		return nil, err
	}
	u := r.dialect.builder().Update(jobTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("error_detail", detail).
		Set("completed_at", r.dialect.timeArg(at)).
		Set("processing_duration_ms", durationMs(start, at))
	return r.transition(ctx, id, constants.JobStatusProcessing, u)
}

// startTime loads the duration anchor for a terminal transition.
func (r *sqlJobRepository) startTime(ctx context.Context, id uuid.UUID) (time.Time, error) {
	job, err := r.Get(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if job.StartedAt != nil {
		return *job.StartedAt, nil
	}
	return job.CreatedAt, nil
}

// transition applies u only while the row is still in status from. When no
// row matches it tells a missing job apart from a disallowed edge.
func (r *sqlJobRepository) transition(ctx context.Context, id uuid.UUID, from constants.JobStatus, u *sqlb.UpdateBuilder) (*entity.Job, error) {
	q, args := u.Where(sqlb.And(
		sqlb.EQ("id", id.String()),
		sqlb.EQ("status", string(from)),
	)).Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		r.log.Error("conversion_job update failed", "job_id", id, "error", err)
		return nil, MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, MapDBError(err)
	}
	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		r.log.Warn("conversion_job transition rejected", "job_id", id, "status", job.Status)
		return nil, ErrInvalidTransition
	}
	return job, nil
}

func durationMs(start, end time.Time) int64 {
	d := end.Sub(start).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*entity.Job, error) {
	var (
		job                               entity.Job
		items                             string
		format, status                    string
		result, errorDetail, placeholders sql.NullString
		createdAt                         dbTime
		startedAt, completedAt            dbTime
		duration                          sql.NullInt64
	)
	err := row.Scan(
		&job.ID, &job.Owner, &items, &format, &job.Destination, &job.Title, &status,
		&result, &errorDetail, &placeholders,
		&createdAt, &startedAt, &completedAt, &duration,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, MapDBError(err)
	}

	job.TargetFormat = constants.Format(format)
	job.Status = constants.JobStatus(status)
	if err := json.Unmarshal([]byte(items), &job.Items); err != nil {
		return nil, fmt.Errorf("decode items for job %s: %w", job.ID, err)
	}
	if result.Valid {
		var art entity.Artifact
		if err := json.Unmarshal([]byte(result.String), &art); err != nil {
			return nil, fmt.Errorf("decode result for job %s: %w", job.ID, err)
		}
		job.Result = &art
	}
	if errorDetail.Valid {
		d := errorDetail.String
		job.ErrorDetail = &d
	}
	if placeholders.Valid && placeholders.String != "" {
		if err := json.Unmarshal([]byte(placeholders.String), &job.Placeholders); err != nil {
			return nil, fmt.Errorf("decode placeholders for job %s: %w", job.ID, err)
		}
	}
	job.CreatedAt = createdAt.Time
	job.StartedAt = startedAt.ptr()
	job.CompletedAt = completedAt.ptr()
	if duration.Valid {
		d := duration.Int64
		job.ProcessingDurationMs = &d
	}
	return &job, nil
}

// dbTime scans timestamps stored natively (postgres) or as RFC 3339 text
// (sqlite).
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime{}
		return nil
	case time.Time:
		*t = dbTime{Time: v.UTC(), Valid: true}
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if v, err := time.Parse(layout, s); err == nil {
			*t = dbTime{Time: v.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
