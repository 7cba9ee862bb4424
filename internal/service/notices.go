package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is immediate user-facing feedback for one operation, delivered at
// the call site in addition to the shared error slot.
type Notice struct {
	Level   Level     `json:"level"`
	Op      string    `json:"op"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notices. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notice)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

// NoticeLog keeps the most recent notices in a fixed-size ring and logs each
// one as it arrives.
type NoticeLog struct {
	log *slog.Logger

	mu    sync.Mutex
	ring  []Notice
	next  int
	count int
}

// NewNoticeLog creates a NoticeLog holding up to size notices.
func NewNoticeLog(size int, log *slog.Logger) *NoticeLog {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &NoticeLog{log: log, ring: make([]Notice, size)}
}

// Notify records n, overwriting the oldest notice when full.
func (l *NoticeLog) Notify(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	level := slog.LevelInfo
	switch n.Level {
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	l.log.Log(context.Background(), level, n.Message, slog.String("op", n.Op), slog.String("kind", "notice"))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring[l.next] = n
	l.next = (l.next + 1) % len(l.ring)
	if l.count < len(l.ring) {
		l.count++
	}
}

// Recent returns the retained notices, oldest first.
func (l *NoticeLog) Recent() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Notice, 0, l.count)
	start := (l.next - l.count + len(l.ring)) % len(l.ring)
	for i := 0; i < l.count; i++ {
		out = append(out, l.ring[(start+i)%len(l.ring)])
	}
	return out
}
