package model

import (
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Field describes one field of a collection. Nested documents carry their own fields.
type Field struct {
	Name   string  `yaml:"name" json:"name"`
	Type   string  `yaml:"type" json:"type"`
	Fields []Field `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Collection describes one queryable collection
type Collection struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []Field `yaml:"fields" json:"fields"`
}

// Schema is the static description of the database shown to the model.
// The order of Collections is also the routing priority order.
type Schema struct {
	Database    string       `yaml:"database" json:"database"`
	Collections []Collection `yaml:"collections" json:"collections"`
}

// DefaultSchema returns the descriptor of the sample_mflix database
func DefaultSchema() *Schema {
	return &Schema{
		Database: "sample_mflix",
		Collections: []Collection{
			{
				Name:        "comments",
				Description: "Comments that users left on movies, with author name, email, text and date",
				Fields: []Field{
					{Name: "name", Type: "string"},
					{Name: "email", Type: "string"},
					{Name: "movie_id", Type: "ObjectId"},
					{Name: "text", Type: "string"},
					{Name: "date", Type: "datetime"},
				},
			},
			{
				Name:        "movies",
				Description: "Movies with their title, release year, cast members and genres",
				Fields: []Field{
					{Name: "title", Type: "string"},
					{Name: "year", Type: "int"},
					{Name: "cast", Type: "list"},
					{Name: "genres", Type: "list"},
				},
			},
			{
				Name:        "theaters",
				Description: "Movie theaters and their street address, city and state",
				Fields: []Field{
					{Name: "theaterId", Type: "int"},
					{Name: "location", Fields: []Field{
						{Name: "address", Type: "string"},
						{Name: "city", Type: "string"},
						{Name: "state", Type: "string"},
					}},
				},
			},
			{
				Name:        "users",
				Description: "Registered user accounts with name, email and password",
				Fields: []Field{
					{Name: "name", Type: "string"},
					{Name: "email", Type: "string"},
					{Name: "password", Type: "string"},
				},
			},
		},
	}
}

// LoadSchema reads a schema descriptor from a YAML file
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read schema file", goerr.V("path", path))
	}

	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, goerr.Wrap(err, "failed to parse schema file", goerr.V("path", path))
	}

	if err := schema.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid schema file", goerr.V("path", path))
	}

	return &schema, nil
}

// Validate checks that the schema names a database and at least one uniquely named collection
func (s *Schema) Validate() error {
	if s.Database == "" {
		return goerr.New("database name is empty")
	}
	if len(s.Collections) == 0 {
		return goerr.New("no collection defined", goerr.V("database", s.Database))
	}

	seen := make(map[string]bool, len(s.Collections))
	for _, c := range s.Collections {
		if c.Name == "" {
			return goerr.New("collection name is empty")
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return goerr.New("duplicated collection", goerr.V("name", c.Name))
		}
		seen[key] = true

		if len(c.Fields) == 0 {
			return goerr.New("collection has no field", goerr.V("name", c.Name))
		}
	}
	return nil
}

// Names returns the collection names in priority order
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.Collections))
	for _, c := range s.Collections {
		names = append(names, c.Name)
	}
	return names
}

// Render serializes the schema into the block given to the query prompt, e.g.
//
//	Collections in sample_mflix:
//	- users: { name: string, email: string, password: string }
func (s *Schema) Render() string {
	var b strings.Builder
	b.WriteString("Collections in ")
	b.WriteString(s.Database)
	b.WriteString(":\n")
	for _, c := range s.Collections {
		b.WriteString("- ")
		b.WriteString(c.Name)
		b.WriteString(": ")
		renderFields(&b, c.Fields)
		b.WriteString("\n")
	}
	return b.String()
}

// Summary is the short placeholder used in the answer prompt instead of the full descriptor
func (s *Schema) Summary() string {
	return "Collections in " + s.Database
}

func renderFields(b *strings.Builder, fields []Field) {
	b.WriteString("{ ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		if len(f.Fields) > 0 {
			renderFields(b, f.Fields)
		} else {
			b.WriteString(f.Type)
		}
	}
	b.WriteString(" }")
}
