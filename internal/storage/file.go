package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/sheetscrape/internal/types"
)

// --- CSV Storage ---

// CSVSink writes every table to its own CSV file in a directory.
type CSVSink struct {
	dir    string
	mu     sync.Mutex
	files  int
	logger *slog.Logger
}

// NewCSVSink creates a CSV sink rooted at dir.
func NewCSVSink(dir string, logger *slog.Logger) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "csv", Err: fmt.Errorf("create output dir: %w", err)}
	}
	return &CSVSink{
		dir:    dir,
		logger: logger.With("component", "csv_sink"),
	}, nil
}

func (s *CSVSink) Name() string { return "csv" }

// WriteTable writes <dir>/<table>.csv, replacing any previous file.
func (s *CSVSink) WriteTable(_ context.Context, t *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fileName(t.Name)+".csv")
	f, err := os.Create(path)
	if err != nil {
		return &types.StorageError{Backend: "csv", Table: t.Name, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return &types.StorageError{Backend: "csv", Table: t.Name, Err: err}
	}
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = CellText(v)
		}
		if err := w.Write(rec); err != nil {
			return &types.StorageError{Backend: "csv", Table: t.Name, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &types.StorageError{Backend: "csv", Table: t.Name, Err: err}
	}

	s.files++
	s.logger.Debug("CSV written", "path", path, "rows", len(t.Rows))
	return nil
}

func (s *CSVSink) Close() error {
	s.logger.Info("CSV sink closed", "dir", s.dir, "files", s.files)
	return nil
}

// fileName makes a table name safe for a file system.
func fileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "table"
	}
	return name
}

// --- JSONL Storage ---

// JSONLSink writes every row as one JSON object per line.
type JSONLSink struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

type jsonlLine struct {
	Table     string        `json:"table"`
	WrittenAt time.Time     `json:"written_at"`
	Row       *types.Record `json:"row"`
}

// NewJSONLSink creates a new JSONL file sink (streaming writes).
func NewJSONLSink(outputPath string, logger *slog.Logger) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("create output dir: %w", err)}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("create output file: %w", err)}
	}

	return &JSONLSink{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_sink"),
	}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) WriteTable(_ context.Context, t *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, row := range t.Rows {
		rec := types.NewRecord()
		for i, col := range t.Columns {
			rec.Set(col, row[i])
		}
		if err := s.enc.Encode(jsonlLine{Table: t.Name, WrittenAt: now, Row: rec}); err != nil {
			return &types.StorageError{Backend: "jsonl", Table: t.Name, Err: err}
		}
		s.count++
	}

	if err := s.file.Sync(); err != nil {
		return &types.StorageError{Backend: "jsonl", Table: t.Name, Err: err}
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("JSONL sink closing", "path", s.path, "rows", s.count)
	return s.file.Close()
}
