package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB is the read-only database surface the dispatcher executes against
type MongoDB interface {
	// Find runs a find-many and returns every document in cursor order. limit <= 0 means no limit.
	Find(ctx context.Context, collection string, filter, projection bson.D, limit int64) ([]bson.D, error)
	ListCollectionNames(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	Name() string
}

type mongoClient struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDB connects to uri and selects database. The connection is verified with a ping.
func NewMongoDB(ctx context.Context, uri, database string) (MongoDB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName("insightdb"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to mongodb")
	}

	m := &mongoClient{
		client: client,
		db:     client.Database(database),
	}
	if err := m.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return m, nil
}

func (m *mongoClient) Name() string {
	return m.db.Name()
}

func (m *mongoClient) Find(ctx context.Context, collection string, filter, projection bson.D, limit int64) ([]bson.D, error) {
	if filter == nil {
		filter = bson.D{}
	}

	opts := options.Find()
	if len(projection) > 0 {
		opts.SetProjection(projection)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := m.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find documents", goerr.V("collection", collection))
	}

	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, goerr.Wrap(err, "failed to read cursor", goerr.V("collection", collection))
	}

	return docs, nil
}

func (m *mongoClient) ListCollectionNames(ctx context.Context) ([]string, error) {
	names, err := m.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list collections", goerr.V("database", m.db.Name()))
	}
	return names, nil
}

func (m *mongoClient) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return goerr.Wrap(err, "failed to ping mongodb")
	}
	return nil
}

func (m *mongoClient) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return goerr.Wrap(err, "failed to disconnect from mongodb")
	}
	return nil
}
