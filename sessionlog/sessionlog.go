package sessionlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/flock"
	. "github.com/stevegt/goadapt"
)

// TimeFormat is the ISO-8601 layout used for entry timestamps and the
// log file name.  Times are always rendered in UTC.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Prefix and Suffix bracket the start time in a log file name.
const (
	Prefix = "conversation_log_"
	Suffix = ".txt"
)

// RoleSystem is the synthetic role used for lifecycle and error
// notices.
const RoleSystem = "System"

// FileName returns the log file name for a session started at start.
// Colons are replaced with hyphens so the name is valid on every
// filesystem.
func FileName(start time.Time) string {
	ts := start.UTC().Format(TimeFormat)
	return Prefix + strings.ReplaceAll(ts, ":", "-") + Suffix
}

// FormatEntry renders one log line, including the trailing newline.
func FormatEntry(ts time.Time, role, content string) string {
	return fmt.Sprintf("%s [%s]: %s\n", ts.UTC().Format(TimeFormat), strings.ToUpper(role), content)
}

// Logger appends entries to a single session log file.  The zero
// value is not usable; call New.
type Logger struct {
	// Path is the log file path, fixed for the life of the Logger.
	Path string
	// Stderr receives diagnostics when a write fails.
	Stderr io.Writer
	// Now is the clock; tests may replace it.
	Now func() time.Time

	last time.Time
	lock *flock.Flock
}

// New returns a Logger writing to FileName(start) in dir.  The file is
// not created until the first entry is written.
func New(dir string, start time.Time, stderr io.Writer) *Logger {
	if dir == "" {
		dir = "."
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	path := filepath.Join(dir, FileName(start))
	return &Logger{
		Path:   path,
		Stderr: stderr,
		Now:    time.Now,
		lock:   flock.New(path + ".lock"),
	}
}

// Log appends one entry.  A failure is reported on l.Stderr and
// returned; it is never fatal to the caller.
func (l *Logger) Log(role, content string) (err error) {
	ts := l.stamp()
	line := FormatEntry(ts, role, content)
	err = l.append(line)
	if err != nil {
		Fpf(l.Stderr, "error writing to log file %s: %v\n", l.Path, err)
	}
	return
}

// stamp returns the timestamp for the next entry.  Timestamps are
// strictly increasing at millisecond resolution.
func (l *Logger) stamp() time.Time {
	ts := l.Now().UTC().Truncate(time.Millisecond)
	if !l.last.IsZero() && !ts.After(l.last) {
		ts = l.last.Add(time.Millisecond)
	}
	l.last = ts
	return ts
}

func (l *Logger) append(line string) (err error) {
	defer Return(&err)
	err = l.lock.Lock()
	Ck(err)
	defer l.lock.Unlock()
	fh, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	Ck(err)
	defer fh.Close()
	_, err = fh.WriteString(line)
	Ck(err)
	return
}

// Close releases the lock and removes the lock file.  The log file
// itself is left in place.
func (l *Logger) Close() (err error) {
	err = l.lock.Close()
	if err != nil {
		return
	}
	err = os.Remove(l.lock.Path())
	if os.IsNotExist(err) {
		err = nil
	}
	return
}

// Entry is one parsed log line.
type Entry struct {
	Timestamp time.Time
	Role      string
	Content   string
}

// entryRe matches the first line of an entry.  The log format has no
// escaping, so a content line that itself looks like an entry header,
// e.g. a reply quoting a log line, is read back as a separate entry.
var entryRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z) \[([^\]]*)\]: ?(.*)$`)

// ParseLog reads entries from r.  A line that does not start with a
// timestamp and role is a continuation of the previous entry's
// content.  Lines before the first entry are ignored.
func ParseLog(r io.Reader) (entries []Entry, err error) {
	defer Return(&err)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var entry *Entry
	for scanner.Scan() {
		line := scanner.Text()
		m := entryRe.FindStringSubmatch(line)
		if m != nil {
			if entry != nil {
				entries = append(entries, *entry)
			}
			var ts time.Time
			ts, err = time.Parse(time.RFC3339Nano, m[1])
			Ck(err)
			entry = &Entry{Timestamp: ts, Role: m[2], Content: m[3]}
			continue
		}
		if entry == nil {
			Debug("skipping preamble line: %q", line)
			continue
		}
		entry.Content += "\n" + line
	}
	err = scanner.Err()
	Ck(err)
	if entry != nil {
		entries = append(entries, *entry)
	}
	return
}

// ReadLog parses the log file at path.
func ReadLog(path string) (entries []Entry, err error) {
	defer Return(&err)
	fh, err := os.Open(path)
	Ck(err)
	defer fh.Close()
	entries, err = ParseLog(fh)
	Ck(err)
	return
}

// CheckOrder returns an error naming the first entry whose timestamp
// is not after its predecessor's.
func CheckOrder(entries []Entry) error {
	for i := 1; i < len(entries); i++ {
		if !entries[i].Timestamp.After(entries[i-1].Timestamp) {
			return fmt.Errorf("entry %d (%s) is not after entry %d (%s)", i+1,
				entries[i].Timestamp.Format(TimeFormat), i, entries[i-1].Timestamp.Format(TimeFormat))
		}
	}
	return nil
}
