package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	workspaceDir = ".meridian"
	dbFile       = "meridian.db"
)

// Config locates the database. The file lives at <Workspace>/.meridian/meridian.db.
type Config struct {
	Workspace string
}

func root(workspace string) string {
	if workspace == "" {
		return "."
	}
	return workspace
}

// EnsureWorkspace creates the .meridian directory if missing and returns it.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(root(workspace), workspaceDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open opens the workspace database with foreign keys enforced and a busy
// timeout. Transactions take the write lock up front so concurrent CLI and
// server writers queue instead of failing on lock upgrade.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", Path(cfg.Workspace))
	return sql.Open("sqlite", dsn)
}

// Path returns the database file for the workspace.
func Path(workspace string) string {
	return filepath.Join(root(workspace), workspaceDir, dbFile)
}
