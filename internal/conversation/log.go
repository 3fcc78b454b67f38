package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/domain"
)

// Log is an ordered, append-only conversation. Readers may call All at any
// time; entries are values and never change after Append.
type Log struct {
	mu         sync.RWMutex
	entries    []domain.Entry
	generation uint64
	now        func() time.Time
}

func NewLog() *Log { return &Log{now: time.Now} }

// Append stores e, filling in the ID and timestamp when unset, and returns
// the stored entry.
func (l *Log) Append(e domain.Entry) domain.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(e)
}

// AppendTracked appends e and returns the generation it was stored under,
// for use with AppendIf.
func (l *Log) AppendTracked(e domain.Entry) (domain.Entry, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(e), l.generation
}

// AppendIf appends e only if no Clear happened since gen was read. It reports
// whether the entry was stored.
func (l *Log) AppendIf(gen uint64, e domain.Entry) (domain.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.generation != gen {
		return domain.Entry{}, false
	}
	return l.appendLocked(e), true
}

func (l *Log) appendLocked(e domain.Entry) domain.Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	l.entries = append(l.entries, e)
	return e
}

// Clear discards every entry at once.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.generation++
}

// All returns the entries in insertion order.
func (l *Log) All() []domain.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Generation increases on every Clear.
func (l *Log) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.generation
}
