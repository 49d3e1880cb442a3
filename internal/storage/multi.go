package storage

import (
	"context"
	"log/slog"
)

// MultiSink writes tables to several sinks. The first sink is the primary
// one: its error is returned, the others are only logged.
type MultiSink struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMultiSink creates a sink that fans out to sinks.
func NewMultiSink(sinks []Sink, logger *slog.Logger) *MultiSink {
	return &MultiSink{
		sinks:  sinks,
		logger: logger.With("component", "multi_sink"),
	}
}

func (s *MultiSink) Name() string { return "multi" }

// Sinks returns the underlying sinks.
func (s *MultiSink) Sinks() []Sink { return s.sinks }

func (s *MultiSink) WriteTable(ctx context.Context, t *Table) error {
	var primaryErr error
	for i, sink := range s.sinks {
		if err := sink.WriteTable(ctx, t); err != nil {
			s.logger.Error("sink write failed", "sink", sink.Name(), "table", t.Name, "error", err)
			if i == 0 {
				primaryErr = err
			}
		}
	}
	return primaryErr
}

func (s *MultiSink) Close() error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			s.logger.Error("sink close failed", "sink", sink.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
