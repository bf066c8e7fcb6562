// Package filter turns model-written MongoDB query text into a bson filter.
//
// The accepted language is a closed subset of the mongo shell syntax: object and array
// literals, strings, numbers, booleans, null, ObjectId/ISODate/Date constructors, regex
// literals and a fixed set of query operators. Nothing is ever evaluated as code; any text
// outside the grammar is rejected with ErrInvalidFilter.
package filter

import (
	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrInvalidFilter is returned for any text outside the filter grammar
	ErrInvalidFilter = goerr.New("invalid filter")

	// ErrOperatorNotAllowed is returned for a '$' key that is not a permitted query operator.
	// It wraps ErrInvalidFilter.
	ErrOperatorNotAllowed = goerr.Wrap(ErrInvalidFilter, "operator not allowed")
)

const maxDepth = 32

// Query is the structured form of a synthesized query
type Query struct {
	// Collection is set when the text used the db.<collection>.find(...) form
	Collection string
	Filter     bson.D
	Projection bson.D
}

// operators is the whitelist of query operators accepted inside a filter.
// Operators that run server-side code or expressions ($where, $expr, $function, $accumulator) are absent.
var operators = []string{
	"$eq", "$ne", "$gt", "$gte", "$lt", "$lte", "$in", "$nin",
	"$and", "$or", "$nor", "$not", "$exists", "$regex", "$options",
	"$all", "$size", "$elemMatch", "$type",
}

var allowedOperators = func() map[string]bool {
	m := make(map[string]bool, len(operators))
	for _, op := range operators {
		m[op] = true
	}
	return m
}()

// Parse converts query text into a Query
func Parse(text string) (*Query, error) {
	p := &parser{src: text}
	return p.parseQuery()
}

// AllowedOperators returns the operator whitelist
func AllowedOperators() []string {
	ops := make([]string, len(operators))
	copy(ops, operators)
	return ops
}
