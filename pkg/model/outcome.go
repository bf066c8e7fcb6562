package model

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// FailureKind classifies why a query could not produce documents
type FailureKind string

const (
	FailureCollectionUnresolved FailureKind = "collection_unresolved"
	FailureFilterParse          FailureKind = "filter_parse"
	FailureQueryExecution       FailureKind = "query_execution"
	// FailureRouting is a router that could not run, e.g. its model or embedding call failed
	FailureRouting FailureKind = "routing"
)

// MessageCollectionUnspecified is the failure message when no collection could be picked for a question
const MessageCollectionUnspecified = "collection unspecified"

// Outcome is the result of running one synthesized query: documents on success, a message on failure.
// It lives for a single turn.
type Outcome struct {
	Success    bool
	Collection string
	Documents  []bson.D
	// Truncated is set when the result was cut at the configured document limit
	Truncated bool

	Kind    FailureKind
	Message string
}

// Succeeded builds a success outcome
func Succeeded(collection string, docs []bson.D, truncated bool) *Outcome {
	if docs == nil {
		docs = []bson.D{}
	}
	return &Outcome{
		Success:    true,
		Collection: collection,
		Documents:  docs,
		Truncated:  truncated,
	}
}

// Failed builds a failure outcome
func Failed(kind FailureKind, message string) *Outcome {
	return &Outcome{
		Kind:    kind,
		Message: message,
	}
}

// Render converts the outcome into the text handed to the answer prompt.
// Every document is rendered as relaxed Extended JSON.
func (o *Outcome) Render() string {
	if !o.Success {
		msg := "Error executing MongoDB query: " + o.Message
		if o.Kind == FailureCollectionUnresolved {
			msg += ". Please specify a collection (e.g., comments, movies, theaters, users)."
		}
		return msg
	}

	docs := make([]string, 0, len(o.Documents))
	for _, doc := range o.Documents {
		docs = append(docs, renderDocument(doc))
	}

	result := "Query result: [" + strings.Join(docs, ", ") + "]"
	if o.Truncated {
		result += fmt.Sprintf(" (truncated to the first %d documents)", len(o.Documents))
	}
	return result
}

func renderDocument(doc bson.D) string {
	raw, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return fmt.Sprintf("%v", doc)
	}
	return string(raw)
}
