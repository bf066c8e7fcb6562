package filter

import (
	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// checkOperand validates the value shape required by an operator key
func checkOperand(key string, value any) error {
	switch key {
	case "$and", "$or", "$nor":
		arr, ok := value.(bson.A)
		if !ok || len(arr) == 0 {
			return goerr.Wrap(ErrInvalidFilter, key+" requires a non-empty array of objects")
		}
		for _, v := range arr {
			if _, ok := v.(bson.D); !ok {
				return goerr.Wrap(ErrInvalidFilter, key+" requires a non-empty array of objects")
			}
		}

	case "$in", "$nin", "$all":
		if _, ok := value.(bson.A); !ok {
			return goerr.Wrap(ErrInvalidFilter, key+" requires an array")
		}

	case "$not":
		switch value.(type) {
		case bson.D, primitive.Regex:
		default:
			return goerr.Wrap(ErrInvalidFilter, "$not requires an object or a regular expression")
		}

	case "$elemMatch":
		if _, ok := value.(bson.D); !ok {
			return goerr.Wrap(ErrInvalidFilter, "$elemMatch requires an object")
		}

	case "$exists":
		switch value.(type) {
		case bool, int32, int64:
		default:
			return goerr.Wrap(ErrInvalidFilter, "$exists requires a boolean")
		}

	case "$size":
		switch value.(type) {
		case int32, int64:
		default:
			return goerr.Wrap(ErrInvalidFilter, "$size requires an integer")
		}

	case "$regex":
		switch value.(type) {
		case string, primitive.Regex:
		default:
			return goerr.Wrap(ErrInvalidFilter, "$regex requires a string or a regular expression")
		}

	case "$options":
		if _, ok := value.(string); !ok {
			return goerr.Wrap(ErrInvalidFilter, "$options requires a string")
		}
	}

	return nil
}
