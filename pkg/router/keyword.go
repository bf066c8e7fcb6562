package router

import (
	"context"
	"strings"
)

// Keyword routes by case-insensitive substring match of collection names.
// Names are checked in the order given and the first match wins.
type Keyword struct {
	names []string
}

func NewKeyword(names ...string) *Keyword {
	return &Keyword{names: names}
}

func (k *Keyword) Route(_ context.Context, question string) (string, error) {
	if name, ok := k.match(question); ok {
		return name, nil
	}
	return "", ErrCollectionUnresolved
}

func (k *Keyword) match(question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, name := range k.names {
		if strings.Contains(lower, strings.ToLower(name)) {
			return name, true
		}
	}
	return "", false
}
