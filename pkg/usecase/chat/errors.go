package chat

import "github.com/m-mizutani/goerr/v2"

var (
	// TagModelInvocation marks failures of the language model call. They abort the turn.
	TagModelInvocation = goerr.NewTag("model_invocation")

	ErrEmptyQuestion = goerr.New("question is empty")
)
