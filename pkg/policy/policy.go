// Package policy evaluates operator-supplied Rego rules against parsed filters before they
// reach the database.
package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
	"go.mongodb.org/mongo-driver/bson"
)

// Query is the rule set every filter is evaluated against
const Query = "data.insightdb.filter.deny"

var (
	// ErrDenied is returned when at least one deny rule matched
	ErrDenied = goerr.New("query denied by policy")
)

// Input is the document exposed to rules as `input`
type Input struct {
	Collection string
	Filter     bson.D
	Question   string
}

// Filter holds the prepared deny query
type Filter struct {
	query *rego.PreparedEvalQuery
}

type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Load reads every .rego file in dir. It returns nil when the directory holds no policy.
func Load(ctx context.Context, dir string) (*Filter, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return nil, nil
	}

	modules := make(map[string]string, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules[file] = string(data)
	}

	return New(ctx, modules)
}

// New prepares a Filter from in-memory modules keyed by file name
func New(ctx context.Context, modules map[string]string) (*Filter, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+2)
	options = append(options, rego.Query(Query), rego.EnablePrintStatements(true))
	for name, src := range modules {
		options = append(options, rego.Module(name, src))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare policy query", goerr.V("query", Query))
	}

	return &Filter{query: &prepared}, nil
}

// Evaluate runs the deny rules. A nil Filter allows everything.
func (f *Filter) Evaluate(ctx context.Context, input Input) error {
	if f == nil {
		return nil
	}

	doc, err := toInput(input)
	if err != nil {
		return err
	}

	rs, err := f.query.Eval(ctx, rego.EvalInput(doc), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return goerr.Wrap(err, "failed to evaluate policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil
	}

	values, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return goerr.New("deny rule must be a set", goerr.V("value", rs[0].Expressions[0].Value))
	}
	if len(values) == 0 {
		return nil
	}

	reasons := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			reasons = append(reasons, s)
			continue
		}
		raw, _ := json.Marshal(v)
		reasons = append(reasons, string(raw))
	}
	sort.Strings(reasons)

	return goerr.Wrap(ErrDenied, strings.Join(reasons, "; "),
		goerr.V("collection", input.Collection),
		goerr.V("reasons", reasons),
	)
}

// toInput converts the bson filter into plain JSON values so rules can walk it
func toInput(input Input) (map[string]any, error) {
	filterDoc := input.Filter
	if filterDoc == nil {
		filterDoc = bson.D{}
	}

	raw, err := bson.MarshalExtJSON(filterDoc, false, false)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode filter for policy")
	}

	var filterValue map[string]any
	if err := json.Unmarshal(raw, &filterValue); err != nil {
		return nil, goerr.Wrap(err, "failed to decode filter for policy")
	}

	return map[string]any{
		"collection": input.Collection,
		"filter":     filterValue,
		"question":   input.Question,
	}, nil
}
