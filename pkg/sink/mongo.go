package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/bpdoc/pkg/document"
)

// MongoConfig configures a Mongo sink.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string // Defaults to "documents"
}

// Mongo stores each document as a structured MongoDB document keyed by
// artifact path, so exports can be inspected with ordinary Mongo queries.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoDocument struct {
	ID   string            `bson:"_id"`
	File string            `bson:"file"`
	Body document.Document `bson:"body"`
}

type mongoIndex struct {
	ID   string         `bson:"_id"`
	File string         `bson:"file"`
	Body document.Index `bson:"body"`
}

// NewMongo connects to MongoDB and verifies the connection.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	db := strings.TrimSpace(cfg.Database)
	if db == "" {
		return nil, fmt.Errorf("mongo database is required")
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = "documents"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, coll: client.Database(db).Collection(collection)}, nil
}

// Name returns "mongo".
func (m *Mongo) Name() string { return "mongo" }

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Write decodes doc and upserts it.
func (m *Mongo) Write(ctx context.Context, path string, doc []byte) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	d, err := document.Unmarshal(doc)
	if err != nil {
		return err
	}
	return m.replace(ctx, path, mongoDocument{ID: path, File: document.OutputPath(path), Body: *d})
}

// WriteIndex decodes the index and upserts it.
func (m *Mongo) WriteIndex(ctx context.Context, doc []byte) error {
	idx, err := document.UnmarshalIndex(doc)
	if err != nil {
		return err
	}
	return m.replace(ctx, indexID, mongoIndex{ID: indexID, File: document.IndexFile, Body: idx})
}

// Remove deletes a document.
func (m *Mongo) Remove(ctx context.Context, path string) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": path})
	return mongoError(err)
}

// ReadIndex returns the stored index, re-encoded canonically.
func (m *Mongo) ReadIndex(ctx context.Context) ([]byte, error) {
	var rec mongoIndex
	err := m.coll.FindOne(ctx, bson.M{"_id": indexID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoIndex
	}
	if err != nil {
		return nil, mongoError(err)
	}
	return document.MarshalIndex(rec.Body)
}

func (m *Mongo) replace(ctx context.Context, id string, rec any) error {
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": id}, rec, options.Replace().SetUpsert(true))
	return mongoError(err)
}

// mongoError marks network errors and timeouts retryable.
func mongoError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return Retryable(err)
	}
	return err
}

var (
	_ Sink        = (*Mongo)(nil)
	_ IndexReader = (*Mongo)(nil)
)
