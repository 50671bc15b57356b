package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a journal entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Scope names the part of the gradebook an entry is about.
type Scope string

const (
	ScopeSession  Scope = "session"
	ScopeSubjects Scope = "subjects"
	ScopeStudents Scope = "students"
	ScopeGrades   Scope = "grades"
	ScopeLive     Scope = "live"
)

// Entry is one journal line read back from disk.
type Entry struct {
	Time    time.Time
	Level   Level
	Scope   Scope
	Message string
}

// Problem is true for warnings and errors.
func (e Entry) Problem() bool {
	return e.Level == LevelWarn || e.Level == LevelError
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %-5s %-8s %s", e.Time.Local().Format("15:04:05"), e.Level, e.Scope, e.Message)
}

// Logbook is the session journal: what the user changed in subjects, students
// and grades, which backend calls failed and when the live channel came and
// went. One entry per line:
//
//	2026-10-16T09:30:00Z ERROR grades   Saving grade for subject=1 student=7 failed: ...
type Logbook struct {
	path string
	mu   sync.Mutex
}

// New creates a journal backed by path, creating its directory.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	return &Logbook{path: path}, nil
}

// Path returns the file backing this journal.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Record appends one entry. Backend messages can span lines; they are
// flattened so every entry stays on one line.
func (l *Logbook) Record(level Level, scope Scope, format string, args ...any) {
	if l == nil {
		return
	}
	if scope == "" {
		scope = ScopeSession
	}
	message := strings.Join(strings.Fields(fmt.Sprintf(format, args...)), " ")
	line := fmt.Sprintf("%s %-5s %-8s %s\n", time.Now().UTC().Format(time.RFC3339), level, scope, message)

	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Summary describes the whole journal.
type Summary struct {
	Total    int
	Problems int
}

// Recent returns up to n of the newest entries, oldest first, and a summary of
// everything in the journal.
func (l *Logbook) Recent(n int) ([]Entry, Summary) {
	var summary Summary
	if l == nil || n <= 0 {
		return nil, summary
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, summary
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		entry := parseEntry(scanner.Text())
		summary.Total++
		if entry.Problem() {
			summary.Problems++
		}
		entries = append(entries, entry)
		if len(entries) > n {
			entries = entries[1:]
		}
	}
	return entries, summary
}

// parseEntry reads a line written by Record. Lines it cannot split are kept
// whole as the message.
func parseEntry(line string) Entry {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Entry{Level: LevelInfo, Scope: ScopeSession, Message: line}
	}
	ts, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		return Entry{Level: LevelInfo, Scope: ScopeSession, Message: line}
	}
	return Entry{
		Time:    ts,
		Level:   Level(fields[1]),
		Scope:   Scope(fields[2]),
		Message: strings.Join(fields[3:], " "),
	}
}
