package db

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// OpenSQLite 는 로컬 SQLite 파일을 열고 스키마를 보장한다.
// 쓰기는 단일 연결로 직렬화한다.
func OpenSQLite(path string) (*sql.DB, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" || p == "." {
		return nil, errors.New("missing sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}

	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(d); err != nil {
		_ = d.Close()
		return nil, err
	}

	d.SetMaxOpenConns(1)
	d.SetMaxIdleConns(1)
	return d, nil
}

func initSchema(d *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS chat_cache (
			user_key      TEXT PRIMARY KEY,
			chats_json    TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := d.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
