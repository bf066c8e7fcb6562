package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/m-mizutani/gt"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMongoDBFind(t *testing.T) {
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI is not set")
	}

	ctx := context.Background()
	db, err := adapter.NewMongoDB(ctx, uri, "sample_mflix")
	gt.NoError(t, err)
	defer func() {
		gt.NoError(t, db.Close(ctx))
	}()
	gt.Equal(t, db.Name(), "sample_mflix")

	names, err := db.ListCollectionNames(ctx)
	gt.NoError(t, err)
	gt.True(t, len(names) > 0)

	docs, err := db.Find(ctx, "users",
		bson.D{{Key: "name", Value: "Robert Baratheon"}},
		bson.D{{Key: "email", Value: 1}, {Key: "_id", Value: 0}},
		0,
	)
	gt.NoError(t, err)
	gt.A(t, docs).Length(1)

	limited, err := db.Find(ctx, "movies", bson.D{}, nil, 3)
	gt.NoError(t, err)
	gt.A(t, limited).Length(3)
}
