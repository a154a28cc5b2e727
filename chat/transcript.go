package chat

import (
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/azchat/client"
	"github.com/tiktoken-go/tokenizer"
)

// Transcript is the ordered conversation sent to the gateway on every
// call.  It starts with one system message and only ever grows.
//
// XXX nothing trims or summarizes old turns, so a long enough session
// will eventually exceed the deployment's context window.
type Transcript struct {
	msgs []client.ChatMsg
	// codec estimates the size of the transcript; see InitTokenizer.
	codec tokenizer.Codec
}

// NewTranscript returns a transcript holding only the system primer.
func NewTranscript(primer string) *Transcript {
	return &Transcript{
		msgs: []client.ChatMsg{
			{Role: client.RoleSystem, Content: primer},
		},
	}
}

// Append adds one message to the end of the transcript.
func (tr *Transcript) Append(role, content string) {
	tr.msgs = append(tr.msgs, client.ChatMsg{Role: role, Content: content})
}

// Messages returns a copy of the transcript.
func (tr *Transcript) Messages() []client.ChatMsg {
	out := make([]client.ChatMsg, len(tr.msgs))
	copy(out, tr.msgs)
	return out
}

// Len returns the number of messages, including the system primer.
func (tr *Transcript) Len() int {
	return len(tr.msgs)
}

// InitTokenizer loads the cl100k codec used by TokenCount.
func (tr *Transcript) InitTokenizer() (err error) {
	tr.codec, err = tokenizer.Get(tokenizer.Cl100kBase)
	return
}

// TokenCount returns the number of cl100k tokens in the content of
// every message.
func (tr *Transcript) TokenCount() (count int, err error) {
	defer Return(&err)
	if tr.codec == nil {
		err = tr.InitTokenizer()
		Ck(err)
	}
	for _, msg := range tr.msgs {
		_, tokens, err := tr.codec.Encode(msg.Content)
		Ck(err)
		count += len(tokens)
	}
	return
}
