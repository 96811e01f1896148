// Package pgstore provides a PostgreSQL implementation of assess.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/fieldtriage/internal/assess"
)

var tracer = otel.Tracer("github.com/linnemanlabs/fieldtriage/internal/assess/pgstore")

//go:embed schema.sql
var schema string

// Store persists session records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Get retrieves a session record by ID.
func (s *Store) Get(ctx context.Context, id string) (*assess.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT id, created_at, fields, observations FROM assessment_sessions WHERE id = $1`

	rec := &assess.Record{}
	var fieldsJSON, obsJSON []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.CreatedAt, &fieldsJSON, &obsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("select session: %w", err)
	}

	if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("unmarshal fields: %w", err)
	}
	if err := json.Unmarshal(obsJSON, &rec.Observations); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("unmarshal observations: %w", err)
	}
	return rec, true, nil
}

// Put inserts or updates a session record (upsert on id).
func (s *Store) Put(ctx context.Context, rec *assess.Record) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	fields := rec.Fields
	if fields == nil {
		fields = map[assess.FieldID]assess.FieldValue{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	obs := rec.Observations
	if obs == nil {
		obs = []assess.Observation{}
	}
	obsJSON, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observations: %w", err)
	}

	query := `INSERT INTO assessment_sessions (id, created_at, fields, observations, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (id) DO UPDATE SET
		fields       = EXCLUDED.fields,
		observations = EXCLUDED.observations,
		updated_at   = now()`

	if _, err := s.pool.Exec(ctx, query, rec.ID, rec.CreatedAt, fieldsJSON, obsJSON); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Delete removes a session record. Deleting a missing ID is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "pgstore.Delete", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DELETE"),
	))
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM assessment_sessions WHERE id = $1`, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
