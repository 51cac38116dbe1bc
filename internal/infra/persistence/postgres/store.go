// Package postgres implements the persistence gateway on PostgreSQL, with
// the same JSON row layout as the sqlite backend stored in JSONB columns.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"brewcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertions.
var (
	_ domain.Gateway   = (*Store)(nil)
	_ domain.RowLister = (*Store)(nil)
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/brewcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a PostgreSQL-backed persistence gateway.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed gateway using the provided DSN (falls
// back to defaultDSN), pings the server, and ensures the schema.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS entities (
			tbl TEXT NOT NULL,
			key BIGINT NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (tbl, key)
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			tbl TEXT NOT NULL,
			inv_key BIGINT NOT NULL,
			entity_key BIGINT NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (tbl, inv_key)
		)`,
		`CREATE TABLE IF NOT EXISTS sequences (
			name TEXT PRIMARY KEY,
			next BIGINT NOT NULL
		)`,
	} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func nextKey(tx *sql.Tx, name string) (int64, error) {
	var key int64
	err := tx.QueryRow(
		`INSERT INTO sequences(name,next) VALUES($1,1)
		 ON CONFLICT(name) DO UPDATE SET next=sequences.next+1
		 RETURNING next`, name).Scan(&key)
	if err != nil {
		return 0, fmt.Errorf("allocate key %s: %w", name, err)
	}
	return key, nil
}

func (s *Store) readRow(table domain.Table, key int64) (map[string]any, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM entities WHERE tbl=$1 AND key=$2`, string(table), key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("row %d not found in %q", key, table)
	}
	if err != nil {
		return nil, fmt.Errorf("select row: %w", err)
	}
	var row map[string]any
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, fmt.Errorf("decode row %s/%d: %w", table, key, err)
	}
	return row, nil
}

// ReadColumn returns one column of an entity row; nil when the column was
// never written.
func (s *Store) ReadColumn(table domain.Table, key int64, column string) (any, error) {
	row, err := s.readRow(table, key)
	if err != nil {
		return nil, err
	}
	return row[column], nil
}

// WriteColumn updates one column of an existing entity row.
func (s *Store) WriteColumn(table domain.Table, key int64, column string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, err := s.readRow(table, key)
	if err != nil {
		return err
	}
	row[column] = value
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row %s/%d: %w", table, key, err)
	}
	if _, err := s.db.Exec(`UPDATE entities SET payload=$1 WHERE tbl=$2 AND key=$3`, payload, string(table), key); err != nil {
		return fmt.Errorf("update row %s/%d: %w", table, key, err)
	}
	return nil
}

// InsertRow persists a new entity row under a key from the table's sequence.
func (s *Store) InsertRow(table domain.Table, columns map[string]any) (retKey int64, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(columns)
	if err != nil {
		return 0, fmt.Errorf("encode row: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	key, err := nextKey(tx, "entities:"+string(table))
	if err != nil {
		retErr = err
		return 0, retErr
	}
	if _, err := tx.Exec(`INSERT INTO entities(tbl,key,payload) VALUES($1,$2,$3)`, string(table), key, payload); err != nil {
		retErr = fmt.Errorf("insert row: %w", err)
		return 0, retErr
	}
	if err := tx.Commit(); err != nil {
		retErr = fmt.Errorf("commit: %w", err)
		return 0, retErr
	}
	return key, nil
}

// ReadInventory returns a column of the entity's inventory row, nil when no
// row exists.
func (s *Store) ReadInventory(table domain.Table, entityKey int64, column string) (any, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM inventory WHERE tbl=$1 AND entity_key=$2`, string(table), entityKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select inventory: %w", err)
	}
	var row map[string]any
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, fmt.Errorf("decode inventory %s/%d: %w", table, entityKey, err)
	}
	return row[column], nil
}

// WriteInventory updates the entity's inventory row, creating it when
// needed, and returns the inventory row key.
func (s *Store) WriteInventory(table domain.Table, entityKey, inventoryKey int64, column string, value any) (retKey int64, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	invKey := inventoryKey
	row := map[string]any{}
	if invKey == 0 {
		err := tx.QueryRow(`SELECT inv_key FROM inventory WHERE tbl=$1 AND entity_key=$2`, string(table), entityKey).Scan(&invKey)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			retErr = fmt.Errorf("select inventory key: %w", err)
			return 0, retErr
		}
	}
	if invKey == 0 {
		invKey, err = nextKey(tx, "inventory:"+string(table))
		if err != nil {
			retErr = err
			return 0, retErr
		}
		if _, err := tx.Exec(`INSERT INTO inventory(tbl,inv_key,entity_key,payload) VALUES($1,$2,$3,$4)`,
			string(table), invKey, entityKey, []byte("{}")); err != nil {
			retErr = fmt.Errorf("insert inventory: %w", err)
			return 0, retErr
		}
	} else {
		var payload []byte
		err := tx.QueryRow(`SELECT payload FROM inventory WHERE tbl=$1 AND inv_key=$2`, string(table), invKey).Scan(&payload)
		if errors.Is(err, sql.ErrNoRows) {
			retErr = fmt.Errorf("inventory row %d not found in %q", invKey, table)
			return 0, retErr
		}
		if err != nil {
			retErr = fmt.Errorf("select inventory: %w", err)
			return 0, retErr
		}
		if err := json.Unmarshal(payload, &row); err != nil {
			retErr = fmt.Errorf("decode inventory: %w", err)
			return 0, retErr
		}
	}
	row[column] = value
	payload, err := json.Marshal(row)
	if err != nil {
		retErr = fmt.Errorf("encode inventory: %w", err)
		return 0, retErr
	}
	if _, err := tx.Exec(`UPDATE inventory SET payload=$1 WHERE tbl=$2 AND inv_key=$3`, payload, string(table), invKey); err != nil {
		retErr = fmt.Errorf("update inventory: %w", err)
		return 0, retErr
	}
	if err := tx.Commit(); err != nil {
		retErr = fmt.Errorf("commit: %w", err)
		return 0, retErr
	}
	return invKey, nil
}

// Keys returns the keys of a table sorted ascending, excluding soft-deleted
// rows unless includeDeleted is set.
func (s *Store) Keys(table domain.Table, includeDeleted bool) ([]int64, error) {
	rows, err := s.Rows(table, includeDeleted)
	if err != nil {
		return nil, err
	}
	keys := make([]int64, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// Rows exports full rows keyed by entity key.
func (s *Store) Rows(table domain.Table, includeDeleted bool) (map[int64]map[string]any, error) {
	rows, err := s.db.Query(`SELECT key, payload FROM entities WHERE tbl=$1`, string(table))
	if err != nil {
		return nil, fmt.Errorf("select rows: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[int64]map[string]any)
	for rows.Next() {
		var key int64
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var row map[string]any
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, fmt.Errorf("decode row %s/%d: %w", table, key, err)
		}
		if !includeDeleted {
			if deleted, _ := row[domain.ColumnDeleted].(bool); deleted {
				continue
			}
		}
		out[key] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
