package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/IshaanNene/sheetscrape/internal/types"
)

// SQLiteSink mirrors every table into a SQLite database. Columns are TEXT;
// a table written again in a later run is replaced.
type SQLiteSink struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteSink opens (or creates) the database at path.
func NewSQLiteSink(ctx context.Context, path string, logger *slog.Logger) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("create output dir: %w", err)}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &types.StorageError{Backend: "sqlite", Err: err}
	}

	return &SQLiteSink{
		db:     db,
		path:   path,
		logger: logger.With("component", "sqlite_sink"),
	}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) WriteTable(ctx context.Context, t *Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.StorageError{Backend: "sqlite", Table: t.Name, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = sqlIdent(c) + " TEXT"
		marks[i] = "?"
	}

	stmts := []string{
		"DROP TABLE IF EXISTS " + sqlIdent(t.Name),
		fmt.Sprintf("CREATE TABLE %s (%s)", sqlIdent(t.Name), strings.Join(cols, ", ")),
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return &types.StorageError{Backend: "sqlite", Table: t.Name, Err: err}
		}
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", sqlIdent(t.Name), strings.Join(marks, ", ")))
	if err != nil {
		return &types.StorageError{Backend: "sqlite", Table: t.Name, Err: err}
	}
	defer insert.Close()

	for _, row := range t.Rows {
		args := make([]any, len(row))
		for i, v := range row {
			if v != nil {
				args[i] = CellText(v)
			}
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return &types.StorageError{Backend: "sqlite", Table: t.Name, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &types.StorageError{Backend: "sqlite", Table: t.Name, Err: err}
	}
	s.logger.Debug("table mirrored", "table", t.Name, "rows", len(t.Rows))
	return nil
}

func (s *SQLiteSink) Close() error {
	s.logger.Info("sqlite sink closing", "path", s.path)
	return s.db.Close()
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
