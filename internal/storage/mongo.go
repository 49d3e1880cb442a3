package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/sheetscrape/internal/types"
)

// MongoSink mirrors every table into a collection of the same name.
type MongoSink struct {
	client *mongo.Client
	db     *mongo.Database
	runID  string
	count  int
	logger *slog.Logger
}

// NewMongoSink connects to uri and writes into database. Every document
// carries runID so runs can be told apart.
func NewMongoSink(ctx context.Context, uri, database, runID string, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoSink{
		client: client,
		db:     client.Database(database),
		runID:  runID,
		logger: logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) WriteTable(ctx context.Context, t *Table) error {
	if len(t.Rows) == 0 {
		return nil
	}

	docs := tableDocs(t, s.runID, time.Now().UTC())

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.db.Collection(t.Name).InsertMany(ctx, docs); err != nil {
		return &types.StorageError{Backend: "mongodb", Table: t.Name, Err: fmt.Errorf("insert: %w", err)}
	}

	s.count += len(docs)
	s.logger.Debug("rows stored in mongodb", "collection", t.Name, "count", len(docs), "total", s.count)
	return nil
}

func (s *MongoSink) Close() error {
	s.logger.Info("mongodb sink closing", "total_rows", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// tableDocs builds one ordered document per row.
func tableDocs(t *Table, runID string, at time.Time) []any {
	docs := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		doc := make(bson.D, 0, len(t.Columns)+2)
		doc = append(doc, bson.E{Key: "_run_id", Value: runID}, bson.E{Key: "_written_at", Value: at})
		for j, col := range t.Columns {
			doc = append(doc, bson.E{Key: col, Value: mongoValue(row[j])})
		}
		docs[i] = doc
	}
	return docs
}

func mongoValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int, int64, float64:
		return val
	default:
		return CellText(val)
	}
}
