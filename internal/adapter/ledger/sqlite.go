package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS downloaded_models (
			id            TEXT PRIMARY KEY,
			downloaded_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

// SQLite is the append-only record of downloaded model ids. Ids listed under
// downloaded_models in configuration are folded into every read.
type SQLite struct {
	db   *sql.DB
	seed map[string]struct{}
	path string
}

func Open(path string, seed []string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations() {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate ledger %s: %w", path, err)
		}
	}

	l := &SQLite{db: db, path: path, seed: make(map[string]struct{}, len(seed))}
	for _, id := range seed {
		if id = strings.TrimSpace(id); id != "" {
			l.seed[id] = struct{}{}
		}
	}
	return l, nil
}

func (l *SQLite) Path() string {
	return l.path
}

func (l *SQLite) IsDownloaded(ctx context.Context, id string) (bool, error) {
	if _, ok := l.seed[id]; ok {
		return true, nil
	}
	var one int
	err := l.db.QueryRowContext(ctx, `SELECT 1 FROM downloaded_models WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkDownloaded is idempotent.
func (l *SQLite) MarkDownloaded(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("empty model id")
	}
	_, err := l.db.ExecContext(ctx, `INSERT OR IGNORE INTO downloaded_models (id) VALUES (?)`, id)
	return err
}

func (l *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id FROM downloaded_models`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{}, len(l.seed))
	for id := range l.seed {
		set[id] = struct{}{}
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *SQLite) Close() error {
	return l.db.Close()
}
