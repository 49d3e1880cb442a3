package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/IshaanNene/sheetscrape/internal/types"
)

const defaultSheet = "Sheet1"

// ExcelSink writes one worksheet per table into a single workbook. The
// workbook is saved after every table so a crash loses at most one site.
type ExcelSink struct {
	path   string
	file   *excelize.File
	sheets int
	mu     sync.Mutex
	logger *slog.Logger
}

// NewExcelSink creates the workbook for path. The file itself is written
// on the first WriteTable.
func NewExcelSink(path string, logger *slog.Logger) (*ExcelSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &types.StorageError{Backend: "xlsx", Err: fmt.Errorf("create output dir: %w", err)}
	}

	return &ExcelSink{
		path:   path,
		file:   excelize.NewFile(),
		logger: logger.With("component", "xlsx_sink"),
	}, nil
}

func (s *ExcelSink) Name() string { return "xlsx" }

// WriteTable adds t as a new worksheet named t.Name and saves the workbook.
func (s *ExcelSink) WriteTable(_ context.Context, t *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := SheetName(t.Name)
	if err := s.addSheet(name); err != nil {
		return &types.StorageError{Backend: "xlsx", Table: name, Err: err}
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := s.file.SetSheetRow(name, "A1", &header); err != nil {
		return &types.StorageError{Backend: "xlsx", Table: name, Err: err}
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return &types.StorageError{Backend: "xlsx", Table: name, Err: err}
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = cellValue(v)
		}
		if err := s.file.SetSheetRow(name, cell, &values); err != nil {
			return &types.StorageError{Backend: "xlsx", Table: name, Err: err}
		}
	}

	if err := s.file.SaveAs(s.path); err != nil {
		return &types.StorageError{Backend: "xlsx", Table: name, Err: fmt.Errorf("save workbook: %w", err)}
	}

	s.logger.Info("sheet saved", "sheet", name, "rows", len(t.Rows), "path", s.path)
	return nil
}

// addSheet reuses the default sheet for the first table.
func (s *ExcelSink) addSheet(name string) error {
	if s.sheets == 0 {
		if err := s.file.SetSheetName(defaultSheet, name); err != nil {
			return err
		}
		s.sheets++
		return nil
	}
	if idx, _ := s.file.GetSheetIndex(name); idx >= 0 {
		return fmt.Errorf("sheet %q already exists", name)
	}
	if _, err := s.file.NewSheet(name); err != nil {
		return err
	}
	s.sheets++
	return nil
}

func (s *ExcelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sheets == 0 {
		s.logger.Warn("no sheets written, workbook not saved", "path", s.path)
	} else {
		s.logger.Info("workbook closed", "path", s.path, "sheets", s.sheets)
	}
	return s.file.Close()
}

// cellValue keeps scalars typed and renders everything else as text.
func cellValue(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case string, bool, int, int64, float64:
		return val
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return CellText(val)
	}
}
