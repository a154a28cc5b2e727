package chat

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stevegt/azchat/sessionlog"
)

// DefaultPrimer is the system message that starts every transcript
// unless configuration overrides it.
const DefaultPrimer = "You are a helpful AI assistant."

// Session binds one run of the program to its transcript and log
// file.  It is created once at startup and owned by the Loop.
type Session struct {
	ID         string
	Started    time.Time
	Transcript *Transcript
	Log        *sessionlog.Logger
}

// NewSession creates a session started at start, with a transcript
// primed with primer and a log file in logDir.  Log write failures
// are reported on stderr.
func NewSession(primer, logDir string, start time.Time, stderr io.Writer) *Session {
	if primer == "" {
		primer = DefaultPrimer
	}
	return &Session{
		ID:         uuid.NewString(),
		Started:    start,
		Transcript: NewTranscript(primer),
		Log:        sessionlog.New(logDir, start, stderr),
	}
}

// Close ends the session's use of its log file.
func (s *Session) Close() error {
	return s.Log.Close()
}
