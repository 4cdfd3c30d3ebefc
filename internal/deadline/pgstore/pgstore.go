// Package pgstore provides PostgreSQL implementations of deadline.Store and
// deadline.Source.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/plazos/internal/claim"
	"github.com/linnemanlabs/plazos/internal/deadline"
	"github.com/linnemanlabs/plazos/internal/policy"
)

var tracer = otel.Tracer("github.com/linnemanlabs/plazos/internal/deadline/pgstore")

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE raised when an insert collides with the
// alerts_unresolved_key partial index.
const uniqueViolation = "23505"

// Store persists alerts, claim snapshots and coverage windows in PostgreSQL.
// The pool is owned by the caller.
type Store struct {
	pool *pgxpool.Pool
}

// New pings the database, applies the schema, and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, kind, severity, message, ref_type, ref_id, deadline,
	resolved, notified, created_at, updated_at, resolved_at`

// FindUnresolved returns the unresolved alert for the dedup key, if any.
func (s *Store) FindUnresolved(ctx context.Context, kind deadline.Kind, refType deadline.RefType, refID string) (*deadline.Alert, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.FindUnresolved", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE kind = $1 AND ref_type = $2 AND ref_id = $3 AND NOT resolved`
	a, err := scanAlertRow(s.pool.QueryRow(ctx, query, string(kind), string(refType), refID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// Create inserts a new alert. The partial unique index turns a concurrent
// double-insert into deadline.ErrDuplicateAlert.
func (s *Store) Create(ctx context.Context, a *deadline.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.Create", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := s.pool.Exec(ctx, query,
		a.ID, string(a.Kind), string(a.Severity), a.Message, string(a.RefType), a.RefID,
		a.Deadline, a.Resolved, a.Notified, a.CreatedAt, a.UpdatedAt, a.ResolvedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return deadline.ErrDuplicateAlert
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing alert.
func (s *Store) Update(ctx context.Context, a *deadline.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.Update", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET severity = $2, message = $3, deadline = $4, notified = $5, updated_at = $6
		 WHERE id = $1`,
		a.ID, string(a.Severity), a.Message, a.Deadline, a.Notified, a.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return deadline.ErrNotFound
	}
	return nil
}

// List returns alerts matching the filter, newest first.
func (s *Store) List(ctx context.Context, f deadline.Filter) ([]*deadline.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts`
	var (
		conds []string
		args  []any
	)
	if f.Kind != nil {
		args = append(args, string(*f.Kind))
		conds = append(conds, "kind = $"+strconv.Itoa(len(args)))
	}
	if f.Severity != nil {
		args = append(args, string(*f.Severity))
		conds = append(conds, "severity = $"+strconv.Itoa(len(args)))
	}
	if f.Resolved != nil {
		args = append(args, *f.Resolved)
		conds = append(conds, "resolved = $"+strconv.Itoa(len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*deadline.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

// CountUnresolved aggregates unresolved alerts by severity in one query.
func (s *Store) CountUnresolved(ctx context.Context) (deadline.SeverityCounts, error) {
	ctx, span := tracer.Start(ctx, "pgstore.CountUnresolved", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT severity, COUNT(*) FROM alerts WHERE NOT resolved GROUP BY severity`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return deadline.SeverityCounts{}, fmt.Errorf("count unresolved: %w", err)
	}
	defer rows.Close()

	var c deadline.SeverityCounts
	for rows.Next() {
		var (
			severity string
			n        int
		)
		if err := rows.Scan(&severity, &n); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return deadline.SeverityCounts{}, fmt.Errorf("scan count: %w", err)
		}
		switch deadline.Severity(severity) {
		case deadline.SeverityCritical:
			c.Critical = n
		case deadline.SeverityWarning:
			c.Warning = n
		case deadline.SeverityInfo:
			c.Info = n
		}
		c.Total += n
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return deadline.SeverityCounts{}, fmt.Errorf("iterate counts: %w", err)
	}
	return c, nil
}

// Resolve marks one alert resolved, freeing its slot in the partial index.
func (s *Store) Resolve(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "pgstore.Resolve", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET resolved = TRUE, resolved_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND NOT resolved`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("resolve alert: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: distinguish unknown ID from already-resolved.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM alerts WHERE id = $1)`, id).Scan(&exists); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("check alert: %w", err)
	}
	if !exists {
		return deadline.ErrNotFound
	}
	return deadline.ErrAlreadyResolved
}

// ResolveAll marks every unresolved alert resolved.
func (s *Store) ResolveAll(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ResolveAll", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET resolved = TRUE, resolved_at = NOW(), updated_at = NOW()
		 WHERE NOT resolved`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("resolve all: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const claimColumns = `id, case_code, state, reported_at, sent_to_insurer_at,
	signature_received_at, settlement_amount, invalid_reason, closed_at, created_at, updated_at`

// OpenClaims returns every claim not in a terminal state, ordered by ID.
func (s *Store) OpenClaims(ctx context.Context) ([]*claim.Claim, error) {
	ctx, span := tracer.Start(ctx, "pgstore.OpenClaims", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE state NOT IN ($1, $2) ORDER BY id`,
		string(claim.StateClosed), string(claim.StateInvalid),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var out []*claim.Claim
	for rows.Next() {
		var (
			c     claim.Claim
			state string
		)
		err := rows.Scan(
			&c.ID, &c.CaseCode, &state, &c.ReportedAt, &c.SentToInsurerAt,
			&c.SignatureReceivedAt, &c.SettlementAmount, &c.InvalidReason,
			&c.ClosedAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		c.State = claim.State(state)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return out, nil
}

// OpenCoverages returns every OPEN coverage window, ordered by ID.
func (s *Store) OpenCoverages(ctx context.Context) ([]*policy.Coverage, error) {
	ctx, span := tracer.Start(ctx, "pgstore.OpenCoverages", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, policy_number, valid_from, valid_until, state, created_at, updated_at
		 FROM policy_coverages WHERE state = $1 ORDER BY id`,
		string(policy.WindowOpen),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query coverages: %w", err)
	}
	defer rows.Close()

	var out []*policy.Coverage
	for rows.Next() {
		var (
			cv    policy.Coverage
			state string
		)
		if err := rows.Scan(&cv.ID, &cv.PolicyNumber, &cv.ValidFrom, &cv.ValidUntil, &state, &cv.CreatedAt, &cv.UpdatedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan coverage: %w", err)
		}
		cv.State = policy.WindowState(state)
		out = append(out, &cv)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate coverages: %w", err)
	}
	return out, nil
}

// scanAlertRow scans a single row into an Alert. Returns (nil, nil) when no
// row is found.
func scanAlertRow(row pgx.Row) (*deadline.Alert, error) {
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func scanAlert(row pgx.Row) (*deadline.Alert, error) {
	var (
		a        deadline.Alert
		kind     string
		severity string
		refType  string
	)
	err := row.Scan(
		&a.ID, &kind, &severity, &a.Message, &refType, &a.RefID, &a.Deadline,
		&a.Resolved, &a.Notified, &a.CreatedAt, &a.UpdatedAt, &a.ResolvedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	a.Kind = deadline.Kind(kind)
	a.Severity = deadline.Severity(severity)
	a.RefType = deadline.RefType(refType)
	return &a, nil
}
