package storage

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/sheetscrape/internal/config"
)

// Open builds the run's sink: the workbook at output, plus every optional
// mirror enabled in cfg. Any sink that cannot be opened fails the whole
// call, and the ones already opened are closed again.
func Open(ctx context.Context, output string, cfg *config.SinkSettings, runID string, logger *slog.Logger) (Sink, error) {
	xlsx, err := NewExcelSink(output, logger)
	if err != nil {
		return nil, err
	}
	sinks := []Sink{xlsx}

	fail := func(err error) (Sink, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, err
	}

	if cfg.CSVDir != "" {
		s, err := NewCSVSink(cfg.CSVDir, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if cfg.JSONLPath != "" {
		s, err := NewJSONLSink(cfg.JSONLPath, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if cfg.SQLitePath != "" {
		s, err := NewSQLiteSink(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if cfg.MongoURI != "" {
		s, err := NewMongoSink(ctx, cfg.MongoURI, cfg.MongoDatabase, runID, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if len(sinks) == 1 {
		return xlsx, nil
	}
	return NewMultiSink(sinks, logger), nil
}
