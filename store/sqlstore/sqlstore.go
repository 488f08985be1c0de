// Package sqlstore implements store.Store on database/sql. The schema and
// queries are portable between the sqlite and mysql drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/store"
)

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

const schema = `CREATE TABLE IF NOT EXISTS objects (
	kind VARCHAR(191) NOT NULL,
	link_id VARCHAR(64) NOT NULL,
	name VARCHAR(255) NOT NULL DEFAULT '',
	data TEXT NOT NULL,
	PRIMARY KEY (kind, link_id)
)`

// Store is a SQL-backed object store.
type Store struct {
	db *sql.DB
}

// Open connects to dsn with driver and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New creates a store on an open database.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, ref archetype.Reference) (archetype.Object, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM objects WHERE kind = ? AND link_id = ?",
		ref.Kind, ref.LinkID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", ref, err)
	}
	e, err := store.Decode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ref, err)
	}
	return e, nil
}

func (s *Store) Save(ctx context.Context, obj archetype.Object) error {
	data, err := store.Encode(obj)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", obj.Reference(), err)
	}
	name := ""
	if e, ok := obj.(*archetype.Entity); ok {
		name = e.Name()
	}
	if _, err := s.db.ExecContext(ctx,
		"REPLACE INTO objects (kind, link_id, name, data) VALUES (?, ?, ?, ?)",
		obj.Kind(), obj.LinkID(), name, string(data),
	); err != nil {
		return fmt.Errorf("saving %s: %w", obj.Reference(), err)
	}
	store.MarkSaved(obj)
	return nil
}

func (s *Store) Remove(ctx context.Context, ref archetype.Reference) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM objects WHERE kind = ? AND link_id = ?",
		ref.Kind, ref.LinkID,
	)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", ref, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, ref)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, patterns ...string) ([]archetype.Object, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	clauses := make([]string, len(patterns))
	args := make([]any, len(patterns))
	for i, p := range patterns {
		clauses[i] = "kind LIKE ?"
		args[i] = strings.ReplaceAll(p, "*", "%")
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, data FROM objects WHERE "+strings.Join(clauses, " OR ")+" ORDER BY name, link_id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("finding %v: %w", patterns, err)
	}
	defer rows.Close()

	var out []archetype.Object
	for rows.Next() {
		var kind, data string
		if err := rows.Scan(&kind, &data); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		// LIKE is case-insensitive on some collations.
		if !archetype.MatchesAny(kind, patterns...) {
			continue
		}
		e, err := store.Decode([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", kind, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return out, nil
}
