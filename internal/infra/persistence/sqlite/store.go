// Package sqlite implements the persistence gateway on a local SQLite file.
// Each entity row is stored as a JSON payload keyed by (table, key); keys are
// allocated from a sequence table so they are never reused, even after an
// external hard removal.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"brewcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertions.
var (
	_ domain.Gateway   = (*Store)(nil)
	_ domain.RowLister = (*Store)(nil)
)

// Store is a SQLite-backed persistence gateway. Writes are serialized by an
// internal mutex; the core assumes a single writer.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database file and ensures the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "brewcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS entities (
			tbl TEXT NOT NULL,
			key INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (tbl, key)
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			tbl TEXT NOT NULL,
			inv_key INTEGER NOT NULL,
			entity_key INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (tbl, inv_key)
		)`,
		`CREATE TABLE IF NOT EXISTS sequences (
			name TEXT PRIMARY KEY,
			next INTEGER NOT NULL
		)`,
	} {
		if _, err := db.Exec(ddl); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

func nextKey(tx *sql.Tx, name string) (int64, error) {
	var key int64
	err := tx.QueryRow(
		`INSERT INTO sequences(name,next) VALUES(?,1)
		 ON CONFLICT(name) DO UPDATE SET next=next+1
		 RETURNING next`, name).Scan(&key)
	if err != nil {
		return 0, fmt.Errorf("allocate key %s: %w", name, err)
	}
	return key, nil
}

func (s *Store) readRow(table domain.Table, key int64) (map[string]any, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM entities WHERE tbl=? AND key=?`, string(table), key).Scan(&payload)
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
	if _, err := s.db.Exec(`UPDATE entities SET payload=? WHERE tbl=? AND key=?`, payload, string(table), key); err != nil {
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
	if _, err := tx.Exec(`INSERT INTO entities(tbl,key,payload) VALUES(?,?,?)`, string(table), key, payload); err != nil {
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
	err := s.db.QueryRow(`SELECT payload FROM inventory WHERE tbl=? AND entity_key=?`, string(table), entityKey).Scan(&payload)
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
		err := tx.QueryRow(`SELECT inv_key FROM inventory WHERE tbl=? AND entity_key=?`, string(table), entityKey).Scan(&invKey)
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
		if _, err := tx.Exec(`INSERT INTO inventory(tbl,inv_key,entity_key,payload) VALUES(?,?,?,?)`,
			string(table), invKey, entityKey, []byte("{}")); err != nil {
			retErr = fmt.Errorf("insert inventory: %w", err)
			return 0, retErr
		}
	} else {
		var payload []byte
		err := tx.QueryRow(`SELECT payload FROM inventory WHERE tbl=? AND inv_key=?`, string(table), invKey).Scan(&payload)
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
	if _, err := tx.Exec(`UPDATE inventory SET payload=? WHERE tbl=? AND inv_key=?`, payload, string(table), invKey); err != nil {
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
	rows, err := s.db.Query(`SELECT key, payload FROM entities WHERE tbl=?`, string(table))
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

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
