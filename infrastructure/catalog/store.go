// Package catalog persists capability advertisements in SQLite so that
// documentation tooling can read them without constructing capabilities.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/infrastructure/catalog/migrations"
	"github.com/reglet-dev/capkit/internal/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an identifier with no stored definition.
var ErrNotFound = errors.New("capability definition not found")

var _ ports.CatalogStore = (*Store)(nil)

// Store is a SQLite-backed ports.CatalogStore.
type Store struct {
	db *sql.DB
}

// Open opens the catalog at path, creating it if needed, and applies the
// embedded migrations. ":memory:" opens a private in-memory catalog.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("catalog path is required")
	}
	if path != ":memory:" {
		path = filepath.Clean(path)
	}
	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, db, migrations.FS, ""); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores def, replacing any previous definition with the same identifier.
// A zero UpdatedAt is set to the current time.
func (s *Store) Put(ctx context.Context, def entities.CapabilityDefinition) error {
	if err := def.ID.Validate(); err != nil {
		return err
	}
	updatedAt := def.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO capabilities (id, description, runtime, entry_point, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   description = excluded.description,
		   runtime = excluded.runtime,
		   entry_point = excluded.entry_point,
		   updated_at = excluded.updated_at`,
		string(def.ID), def.Description, def.Runtime, def.EntryPoint, updatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("put capability %s: %w", def.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM capability_functions WHERE capability_id = ?`, string(def.ID)); err != nil {
		return fmt.Errorf("clear functions of %s: %w", def.ID, err)
	}
	for i, fn := range def.Functions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO capability_functions (capability_id, position, name, description, input_schema, output_schema)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			string(def.ID), i, fn.Name, fn.Description, nullJSON(fn.InputSchema), nullJSON(fn.OutputSchema),
		); err != nil {
			return fmt.Errorf("put function %s.%s: %w", def.ID, fn.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put: %w", err)
	}
	return nil
}

// Get returns the definition stored under id.
func (s *Store) Get(ctx context.Context, id entities.CapabilityID) (entities.CapabilityDefinition, error) {
	var (
		def       entities.CapabilityDefinition
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, description, runtime, entry_point, updated_at FROM capabilities WHERE id = ?`,
		string(id),
	).Scan(&def.ID, &def.Description, &def.Runtime, &def.EntryPoint, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return def, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return def, fmt.Errorf("get capability %s: %w", id, err)
	}
	def.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	fns, err := s.functions(ctx, id)
	if err != nil {
		return def, err
	}
	def.Functions = fns
	return def, nil
}

// List returns every stored definition ordered by identifier.
func (s *Store) List(ctx context.Context) ([]entities.CapabilityDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, runtime, entry_point, updated_at FROM capabilities ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	defer rows.Close()

	var defs []entities.CapabilityDefinition
	for rows.Next() {
		var (
			def       entities.CapabilityDefinition
			updatedAt int64
		)
		if err := rows.Scan(&def.ID, &def.Description, &def.Runtime, &def.EntryPoint, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan capability: %w", err)
		}
		def.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate capabilities: %w", err)
	}
	rows.Close()

	for i := range defs {
		fns, err := s.functions(ctx, defs[i].ID)
		if err != nil {
			return nil, err
		}
		defs[i].Functions = fns
	}
	return defs, nil
}

// Delete removes the definition stored under id. Deleting an absent
// identifier is not an error.
func (s *Store) Delete(ctx context.Context, id entities.CapabilityID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM capability_functions WHERE capability_id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete functions of %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM capabilities WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete capability %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *Store) functions(ctx context.Context, id entities.CapabilityID) ([]entities.FunctionDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, input_schema, output_schema
		   FROM capability_functions
		  WHERE capability_id = ?
		  ORDER BY position ASC`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("list functions of %s: %w", id, err)
	}
	defer rows.Close()

	fns := []entities.FunctionDefinition{}
	for rows.Next() {
		var (
			fn            entities.FunctionDefinition
			input, output sql.NullString
		)
		if err := rows.Scan(&fn.Name, &fn.Description, &input, &output); err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		if input.Valid {
			fn.InputSchema = json.RawMessage(input.String)
		}
		if output.Valid {
			fn.OutputSchema = json.RawMessage(output.String)
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
