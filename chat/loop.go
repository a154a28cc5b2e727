package chat

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/azchat/client"
	"github.com/stevegt/azchat/sessionlog"
	"github.com/stevegt/azchat/util"
)

// DefaultExitWords end the conversation when typed at the prompt.
var DefaultExitWords = []string{"終了", "exit"}

// Text shown to the user and written to the log.
const (
	Prompt        = "You: "
	MsgGenerating = "AI is generating a response..."
	MsgFarewell   = "Ending the conversation. Goodbye!"
	MsgUserExit   = "Conversation ended by the user."
	MsgInputEnded = "Conversation ended: end of input."
	MsgEmptyReply = "No valid response was received from the AI."
)

// Loop reads user input, sends the transcript to the gateway, and
// prints and logs each reply until the user types an exit word.
type Loop struct {
	Session *Session
	Client  client.ChatClient
	Params  client.Params
	// ExitWords are matched case-insensitively against trimmed input.
	ExitWords []string
	// TokenLimit, if positive, triggers a one-time warning once the
	// transcript grows past it.
	TokenLimit int

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	warned bool
}

// NewLoop returns a Loop with the default parameters and exit words.
func NewLoop(session *Session, cc client.ChatClient, stdin io.Reader, stdout, stderr io.Writer) *Loop {
	return &Loop{
		Session:   session,
		Client:    cc,
		Params:    client.DefaultParams(),
		ExitWords: DefaultExitWords,
		Stdin:     stdin,
		Stdout:    stdout,
		Stderr:    stderr,
	}
}

// Start prints the banner and writes the startup log entry.
func (lp *Loop) Start() {
	Fpf(lp.Stdout, "Starting a conversation with Azure OpenAI. Type %s to quit.\n", quoteWords(lp.ExitWords))
	Fpf(lp.Stdout, "The conversation log is saved to %s\n", lp.Session.Log.Path)
	lp.Session.Log.Log(sessionlog.RoleSystem, Spf("Conversation session started (session %s)", lp.Session.ID))
}

// Run starts the session and loops until an exit word or the end of
// input.  Gateway and log failures never end the loop; the only error
// returned is a failure to read input.
func (lp *Loop) Run() (err error) {
	lp.Start()
	reader := bufio.NewReader(lp.Stdin)
	for {
		Fpf(lp.Stdout, Prompt)
		line, rerr := reader.ReadString('\n')
		if rerr != nil && rerr != io.EOF {
			Fpf(lp.Stdout, "\n")
			lp.exit(Spf("Conversation ended: error reading input: %v", rerr))
			return fmt.Errorf("reading input: %w", rerr)
		}
		if rerr == io.EOF && line == "" {
			Fpf(lp.Stdout, "\n")
			lp.exit(MsgInputEnded)
			return nil
		}
		line = strings.TrimRight(line, "\r\n")
		if lp.Step(line) {
			return nil
		}
	}
}

// Step handles one line of input.  It returns true if the line was an
// exit word and the session has ended.
func (lp *Loop) Step(input string) (done bool) {
	if lp.IsExit(input) {
		lp.exit(MsgUserExit)
		return true
	}
	lp.dispatch(input)
	return false
}

// IsExit returns true if input is one of the loop's exit words.
func (lp *Loop) IsExit(input string) bool {
	return util.FoldInSlice(input, lp.ExitWords)
}

func (lp *Loop) exit(reason string) {
	Fpf(lp.Stdout, "%s\n", MsgFarewell)
	lp.Session.Log.Log(sessionlog.RoleSystem, reason)
}

// dispatch sends one user message and handles the outcome.
func (lp *Loop) dispatch(input string) {
	s := lp.Session
	s.Transcript.Append(client.RoleUser, input)
	s.Log.Log(client.RoleUser, input)

	Fpf(lp.Stdout, "%s\n", MsgGenerating)
	reply, err := lp.complete()
	if err != nil {
		Fpf(lp.Stderr, "error: %v\n", err)
		s.Log.Log(sessionlog.RoleSystem, Spf("error: %v", err))
		return
	}
	if reply.IsEmpty() {
		Fpf(lp.Stdout, "%s\n", MsgEmptyReply)
		s.Log.Log(sessionlog.RoleSystem, MsgEmptyReply)
		return
	}
	Fpf(lp.Stdout, "AI: %s\n", reply.Content())
	s.Transcript.Append(client.RoleAssistant, reply.Content())
	s.Log.Log(client.RoleAssistant, reply.Content())
	lp.checkTokens()
}

// complete calls the gateway, converting a panic in the client into an
// error so that no single call can end the session.
func (lp *Loop) complete() (reply client.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	Debug("sending %d messages", lp.Session.Transcript.Len())
	return lp.Client.CompleteChat(lp.Session.Transcript.Messages(), lp.Params)
}

func (lp *Loop) checkTokens() {
	if lp.TokenLimit <= 0 || lp.warned {
		return
	}
	count, err := lp.Session.Transcript.TokenCount()
	if err != nil {
		Debug("token count failed: %v", err)
		return
	}
	Debug("transcript tokens: %d", count)
	if count > lp.TokenLimit {
		Fpf(lp.Stderr, "warning: the conversation is about %d tokens, over the limit of %d; the deployment may start rejecting requests\n", count, lp.TokenLimit)
		lp.warned = true
	}
}

func quoteWords(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = Spf("'%s'", w)
	}
	return strings.Join(quoted, " or ")
}
