// Package sqlitestore keeps a variable scope in a SQLite table.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/ppipada/filebridge-go/encdec"
)

// Store is a varstore.Scope backed by SQLite. Values are stored as JSON text.
type Store struct {
	db  *sql.DB
	cfg Config
	// Serializes write-queries.
	mu sync.Mutex
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	dataSourceName := MemoryDBBaseDir
	if cfg.BaseDir != MemoryDBBaseDir {
		// Idempotent - harmless if it already exists.
		if err := os.MkdirAll(cfg.BaseDir, 0o770); err != nil {
			return nil, err
		}
		dataSourceName = filepath.Join(cfg.BaseDir, cfg.DBFileName) +
			"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	if cfg.BaseDir == MemoryDBBaseDir {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(2)
		db.SetMaxIdleConns(2)
	}

	s := &Store{db: db, cfg: cfg}
	slog.Info("sqlitestore bootstrap", "dbPath", dataSourceName, "table", cfg.Table)
	if err := s.bootstrap(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get implements varstore.Scope.
func (s *Store) Get(name string) (any, bool, error) {
	return s.GetContext(context.Background(), name)
}

// Set implements varstore.Scope.
func (s *Store) Set(name string, value any) error {
	return s.SetContext(context.Background(), name, value)
}

func (s *Store) GetContext(ctx context.Context, name string) (any, bool, error) {
	const sqlGet = `SELECT value FROM %s WHERE name=?`
	var raw string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(sqlGet, quote(s.cfg.Table)), name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlitestore: get %q: %w", name, err)
	}
	v, err := encdec.ParsePayload(raw)
	if err != nil {
		return nil, false, fmt.Errorf("sqlitestore: corrupt value for %q: %w", name, err)
	}
	return v, true, nil
}

// SetContext upserts value under name.
func (s *Store) SetContext(ctx context.Context, name string, value any) error {
	if name == "" {
		return errors.New("sqlitestore: empty variable name")
	}
	raw, err := encdec.MarshalPayload(value)
	if err != nil {
		return fmt.Errorf("sqlitestore: set %q: %w", name, err)
	}

	const sqlUpsert = `INSERT INTO %s(name,value,updated_at) VALUES(?,?,?)
		ON CONFLICT(name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at;`
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(sqlUpsert, quote(s.cfg.Table)),
		name, raw, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlitestore: set %q: %w", name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	const sqlDel = `DELETE FROM %s WHERE name=?`
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(sqlDel, quote(s.cfg.Table)), name)
	return err
}

// Names returns all stored variable names in ascending order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	const sqlNames = `SELECT name FROM %s ORDER BY name`
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(sqlNames, quote(s.cfg.Table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// All returns every stored variable.
func (s *Store) All(ctx context.Context) (map[string]any, error) {
	const sqlAll = `SELECT name, value FROM %s`
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(sqlAll, quote(s.cfg.Table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		v, err := encdec.ParsePayload(raw)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: corrupt value for %q: %w", name, err)
		}
		out[name] = v
	}
	return out, rows.Err()
}

// Replace swaps the whole table content for data in one transaction. A nil map empties the table.
func (s *Store) Replace(ctx context.Context, data map[string]any) (err error) {
	encoded := make(map[string]string, len(data))
	for name, v := range data {
		if name == "" {
			return errors.New("sqlitestore: empty variable name")
		}
		raw, err := encdec.MarshalPayload(v)
		if err != nil {
			return fmt.Errorf("sqlitestore: set %q: %w", name, err)
		}
		encoded[name] = raw
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, quote(s.cfg.Table))); err != nil {
		return err
	}
	const sqlInsert = `INSERT INTO %s(name,value,updated_at) VALUES(?,?,?)`
	now := time.Now().UnixMilli()
	for name, raw := range encoded {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(sqlInsert, quote(s.cfg.Table)), name, raw, now); err != nil {
			return fmt.Errorf("sqlitestore: set %q: %w", name, err)
		}
	}
	return tx.Commit()
}

func (s *Store) bootstrap(ctx context.Context) error {
	const sqlCreateTable = `CREATE TABLE IF NOT EXISTS %s(
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(sqlCreateTable, quote(s.cfg.Table)))
	return err
}

func validateConfig(c Config) error {
	if c.BaseDir == "" {
		return errors.New("sqlitestore: DB BaseDir incorrect")
	}
	if c.BaseDir == MemoryDBBaseDir && c.DBFileName != "" {
		return errors.New("sqlitestore: DB filename should be empty for memory db")
	}
	if c.BaseDir != MemoryDBBaseDir && c.DBFileName == "" {
		return errors.New("sqlitestore: DB filename incorrect")
	}
	if strings.TrimSpace(c.Table) == "" {
		return errors.New("sqlitestore: empty table name")
	}
	return nil
}

func quote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
