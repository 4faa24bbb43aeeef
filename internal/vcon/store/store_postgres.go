package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"vcon/pkg/vcon"
)

// The document column is TEXT rather than JSONB: JSONB reorders keys, which
// would break signature verification of stored documents.
//
//go:embed schema.sql
var schema string

const pgUniqueViolation = "23505"

// PostgresStore persists documents in the vcons table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the vcons table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure vcon schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, v *vcon.Vcon) error {
	id, doc, err := encode(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vcons (uuid, version, created_at, signed, document)
		VALUES ($1, $2, $3, $4, $5)
	`, id, v.Version(), v.CreatedAt(), v.IsSigned(), doc)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("create vcon: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, v *vcon.Vcon) error {
	id, doc, err := encode(v)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE vcons
		SET version = $2, created_at = $3, signed = $4, document = $5, updated_at = now()
		WHERE uuid = $1
	`, id, v.Version(), v.CreatedAt(), v.IsSigned(), doc)
	if err != nil {
		return fmt.Errorf("update vcon: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update vcon: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*vcon.Vcon, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM vcons WHERE uuid = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get vcon: %w", err)
	}
	return decode(id, doc)
}

// GetMany loads all requested documents in one round trip.
func (s *PostgresStore) GetMany(ctx context.Context, ids []string) (map[string]*vcon.Vcon, error) {
	out := make(map[string]*vcon.Vcon, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT uuid, document FROM vcons WHERE uuid = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get vcons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan vcon: %w", err)
		}
		v, err := decode(id, doc)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get vcons: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vcons WHERE uuid = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vcon: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete vcon: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
