package policy_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/policy"
	"github.com/m-mizutani/gt"
	"go.mongodb.org/mongo-driver/bson"
)

const denyPolicy = `package insightdb.filter

deny contains msg if {
	input.collection == "users"
	some key, _ in input.filter
	key == "password"
	msg := "password lookups are not allowed"
}

deny contains msg if {
	count(input.filter) == 0
	input.collection == "comments"
	msg := "unfiltered scans of comments are not allowed"
}
`

func TestLoadEmptyDirectory(t *testing.T) {
	f, err := policy.Load(context.Background(), t.TempDir())
	gt.NoError(t, err)
	gt.Nil(t, f)

	// nil filter allows everything
	gt.NoError(t, f.Evaluate(context.Background(), policy.Input{Collection: "users"}))
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "filter.rego"), []byte(denyPolicy), 0644))

	f, err := policy.Load(ctx, dir)
	gt.NoError(t, err)
	gt.V(t, f).NotNil()

	t.Run("allowed", func(t *testing.T) {
		err := f.Evaluate(ctx, policy.Input{
			Collection: "users",
			Filter:     bson.D{{Key: "name", Value: "Robert Baratheon"}},
			Question:   "What is the email of Robert Baratheon?",
		})
		gt.NoError(t, err)
	})

	t.Run("denied by field", func(t *testing.T) {
		err := f.Evaluate(ctx, policy.Input{
			Collection: "users",
			Filter:     bson.D{{Key: "password", Value: bson.D{{Key: "$exists", Value: true}}}},
		})
		gt.True(t, errors.Is(err, policy.ErrDenied))
		gt.S(t, err.Error()).Contains("password lookups are not allowed")
	})

	t.Run("denied by empty filter", func(t *testing.T) {
		err := f.Evaluate(ctx, policy.Input{Collection: "comments"})
		gt.True(t, errors.Is(err, policy.ErrDenied))
		gt.S(t, err.Error()).Contains("unfiltered scans")
	})

	t.Run("empty filter elsewhere is fine", func(t *testing.T) {
		gt.NoError(t, f.Evaluate(ctx, policy.Input{Collection: "movies", Filter: bson.D{}}))
	})
}

func TestNewRejectsBrokenModule(t *testing.T) {
	_, err := policy.New(context.Background(), map[string]string{
		"broken.rego": "package insightdb.filter\n\ndeny contains msg if {",
	})
	gt.Error(t, err)
}
