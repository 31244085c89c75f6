// Package conversation owns the conversation state machine and the
// per-process session: persona, memory, bounded turn history, and dialog
// log persistence.
package conversation

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
	"github.com/lokutor-ai/localvoice-agent/pkg/contracts"
	"github.com/lokutor-ai/localvoice-agent/pkg/logging"
)

// MaxHistory bounds the number of retained turns, default 16.
const MaxHistory = 16

// defaultPersona is substituted whenever config/system_prompt.txt is
// missing or unreadable, per spec §6.
const defaultPersona = "You are a helpful and concise voice assistant. Use short sentences suitable for speech."

// Session carries one running host process's conversation: persona prefix,
// mutable memory list, and the last MaxHistory turns of history.
type Session struct {
	mu      sync.RWMutex
	ID      string
	Persona string
	Memory  []string
	History []contracts.Message

	dialogLog *DialogLog
	memoryLog string
	log       logging.Logger
}

// NewSession returns a fresh session with a generated ID, loading the
// persona from configDir/system_prompt.txt (falling back to a hardcoded
// default when the file is missing or unreadable) and any standing memory
// entries from configDir/memory.log.
func NewSession(logsDir, configDir string, log logging.Logger) (*Session, error) {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	s := &Session{
		ID:      uuid.NewString(),
		Persona: defaultPersona,
		log:     log,
	}

	if configDir != "" {
		s.Persona = loadPersona(configDir, log)
		s.memoryLog = filepath.Join(configDir, "memory.log")
		s.Memory = loadMemoryLog(s.memoryLog, log)
	}

	dl, err := OpenDialogLog(logsDir, s.ID)
	if err != nil {
		return nil, err
	}
	s.dialogLog = dl
	return s, nil
}

// loadPersona reads configDir/system_prompt.txt. A missing file is silent
// (expected); any other read error is logged with ErrConfigUnreadable and
// the default persona is used either way.
func loadPersona(configDir string, log logging.Logger) string {
	path := filepath.Join(configDir, "system_prompt.txt")
	text, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("system prompt unreadable, using default persona", "path", path, "error", fmt.Errorf("%w: %v", apperrors.ErrConfigUnreadable, err))
		}
		return defaultPersona
	}
	trimmed := strings.TrimSpace(string(text))
	if trimmed == "" {
		return defaultPersona
	}
	return trimmed
}

// loadMemoryLog reads newline-delimited memory entries from path, ignoring
// blank lines. A missing file is created empty per spec §6; any other read
// error is logged and treated as no standing memory.
func loadMemoryLog(path string, log logging.Logger) []string {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if cerr := os.MkdirAll(filepath.Dir(path), 0o755); cerr == nil {
				os.WriteFile(path, nil, 0o644)
			}
			return nil
		}
		log.Warn("memory log unreadable", "path", path, "error", fmt.Errorf("%w: %v", apperrors.ErrConfigUnreadable, err))
		return nil
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			entries = append(entries, line)
		}
	}
	return entries
}

// AddMessage appends a turn, bounding history to MaxHistory, and persists
// it to the dialog log.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, contracts.Message{Role: role, Content: content})
	if len(s.History) > MaxHistory {
		s.History = s.History[len(s.History)-MaxHistory:]
	}
	if s.dialogLog != nil {
		s.dialogLog.Append(role, content)
	}
}

// AddMemory appends a memory entry without deduplication: repeated entries
// are stored as separate lines rather than merged or deduplicated. If the
// session was constructed with a configDir, the entry is also appended to
// memory.log so it survives process restarts.
func (s *Session) AddMemory(entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Memory = append(s.Memory, entry)
	if s.memoryLog == "" {
		return
	}
	f, err := os.OpenFile(s.memoryLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.log.Warn("failed to persist memory entry", "path", s.memoryLog, "error", err)
		return
	}
	defer f.Close()
	fmt.Fprintln(f, entry)
}

// ListMemory returns a snapshot copy of the memory list.
func (s *Session) ListMemory() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.Memory))
	copy(out, s.Memory)
	return out
}

// ClearContext empties the turn history without touching memory.
func (s *Session) ClearContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = nil
}

// ContextCopy returns a snapshot of the current turn history, prefixed with
// the persona as a system message.
func (s *Session) ContextCopy() []contracts.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contracts.Message, 0, len(s.History)+1)
	out = append(out, contracts.Message{Role: "system", Content: s.Persona})
	out = append(out, s.History...)
	return out
}

// SetPersona overrides the system persona text.
func (s *Session) SetPersona(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Persona = text
}

// Close flushes and closes the dialog log.
func (s *Session) Close() error {
	if s.dialogLog != nil {
		return s.dialogLog.Close()
	}
	return nil
}

// DialogLog appends per-session plain text lines formatted
// "[DD-MM-HH-MM-SS] ROLE: text" to logs/dialog_<timestamp>.log.
type DialogLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenDialogLog creates a new timestamped dialog log file under dir.
func OpenDialogLog(dir, sessionID string) (*DialogLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("dialog_%s.log", time.Now().UTC().Format("2006-01-02_15-04-05"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &DialogLog{f: f}, nil
}

// Append writes one formatted line for the given role and text.
func (d *DialogLog) Append(role, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	line := fmt.Sprintf("[%s] %s: %s\n", time.Now().UTC().Format("02-01-15-04-05"), role, text)
	d.f.WriteString(line)
}

// Close closes the underlying file.
func (d *DialogLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}
