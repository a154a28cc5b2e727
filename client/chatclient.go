package client

import (
	"fmt"
	"strings"
)

// Roles used in a transcript.  These match the role strings used on
// the wire by OpenAI-compatible chat completion APIs.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatClient defines the interface for chat operations.
// Implementations (such as openai.AzureChatClient and mock.Client)
// return exactly one reply for the given transcript or fail.
type ChatClient interface {
	CompleteChat(messages []ChatMsg, params Params) (Reply, error)
}

// ChatMsg represents a single chat message.
type ChatMsg struct {
	Role    string
	Content string
}

// Params are the sampling parameters sent with every completion
// request.
type Params struct {
	Temperature      float32
	TopP             float32
	MaxTokens        int
	FrequencyPenalty float32
	PresencePenalty  float32
	Stop             []string
	Stream           bool
}

// DefaultParams returns the fixed request parameters used by the chat
// loop.
func DefaultParams() Params {
	return Params{
		Temperature: 0.7,
		TopP:        0.95,
		MaxTokens:   800,
	}
}

// Reply is the optional text of an assistant reply.  The zero value
// is EmptyReply.
type Reply struct {
	content string
	ok      bool
}

// EmptyReply is returned when the gateway answered but produced no
// usable text (no choices, or a missing or blank message).
var EmptyReply = Reply{}

// NewReply trims txt and returns it as a Reply.  A blank txt yields
// EmptyReply.
func NewReply(txt string) Reply {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return EmptyReply
	}
	return Reply{content: txt, ok: true}
}

// IsEmpty returns true if the reply carries no text.
func (r Reply) IsEmpty() bool {
	return !r.ok
}

// Content returns the reply text, or "" for EmptyReply.
func (r Reply) Content() string {
	return r.content
}

func (r Reply) String() string {
	if !r.ok {
		return "<empty reply>"
	}
	return r.content
}

// GatewayError is returned by a ChatClient when a completion call
// fails.  Msg is the most specific message available for the
// failure; Err is the underlying error.
type GatewayError struct {
	Msg string
	Err error
}

func (e *GatewayError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown gateway error"
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError wraps err with a formatted message.
func NewGatewayError(err error, format string, args ...interface{}) *GatewayError {
	return &GatewayError{Msg: fmt.Sprintf(format, args...), Err: err}
}
