// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteKV keeps ledger data in a single SQLite table.
type SQLiteKV struct {
	db *sql.DB
}

// OpenSQLite opens (creating when needed) the database at path.
func OpenSQLite(path string) (*SQLiteKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteKV{db: db}, nil
}

func initSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS ledger_kv (
		k BLOB PRIMARY KEY,
		v BLOB NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

func (s *SQLiteKV) Get(key []byte) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRow("SELECT v FROM ledger_kv WHERE k = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query failed: %w", err)
	}
	return v, true, nil
}

func (s *SQLiteKV) Put(key, value []byte) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO ledger_kv (k, v) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (s *SQLiteKV) Delete(key []byte) error {
	if _, err := s.db.Exec("DELETE FROM ledger_kv WHERE k = ?", key); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Iterate reads the matching rows up front so fn may query the store.
func (s *SQLiteKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	query := "SELECT k, v FROM ledger_kv WHERE k >= ?"
	args := []interface{}{prefix}
	if end := prefixEnd(prefix); end != nil {
		query += " AND k < ?"
		args = append(args, end)
	}
	query += " ORDER BY k"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	type row struct{ k, v []byte }
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.k, &r.v); err != nil {
			rows.Close()
			return fmt.Errorf("scan failed: %w", err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, r := range all {
		if err := fn(r.k, r.v); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
