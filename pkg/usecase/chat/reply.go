package chat

import "github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"

type ReplyKind string

const (
	ReplyAnswer ReplyKind = "answer"
	ReplyError  ReplyKind = "error"
)

// MessageNotConnected is the reply when a question arrives before a database is connected
const MessageNotConnected = "Please connect to a database first."

// Reply is what the user surface shows for one turn. Model failures are reported here
// as an error reply rather than as a Go error.
type Reply struct {
	Kind ReplyKind
	Text string

	// Query and Outcome are set when the pipeline got that far
	Query   string
	Outcome *model.Outcome

	Err error
}

func errorReply(err error, text string) *Reply {
	return &Reply{
		Kind: ReplyError,
		Text: text,
		Err:  err,
	}
}
