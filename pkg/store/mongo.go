package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoCollection holds result documents.
const DefaultMongoCollection = "results"

// MongoStore keeps each result as one document, so the three artifacts are
// replaced atomically.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type resultDoc struct {
	Key       string    `bson:"_id"`
	Orderings string    `bson:"orderings"`
	Groups    string    `bson:"groups"`
	Layers    string    `bson:"layers"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore connects to uri and uses the results collection of
// database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(DefaultMongoCollection),
	}, nil
}

// Save implements ResultStore.
func (s *MongoStore) Save(ctx context.Context, key string, a *Artifacts) error {
	enc, err := encode(a)
	if err != nil {
		return err
	}
	doc := resultDoc{
		Key:       key,
		Orderings: string(enc.orderings),
		Groups:    string(enc.groups),
		Layers:    string(enc.layers),
		UpdatedAt: time.Now().UTC(),
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load implements ResultStore.
func (s *MongoStore) Load(ctx context.Context, key string) (*Artifacts, bool, error) {
	var doc resultDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	if doc.Orderings == "" || doc.Layers == "" {
		return nil, false, nil
	}
	a, err := decode(key, encoded{
		orderings: []byte(doc.Orderings),
		groups:    []byte(doc.Groups),
		layers:    []byte(doc.Layers),
	})
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// Delete implements ResultStore.
func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ ResultStore = (*MongoStore)(nil)
