package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

const narrationSource = "narration"

// Observer is notified about every narrated line.
type Observer interface {
	ObserveLine(text string, level slog.Level)
}

// Sink writes human-readable progress narration through slog.
// It is safe for concurrent use.
type Sink struct {
	logger *slog.Logger

	mu        sync.RWMutex
	observers []Observer
}

func NewSink(logger *slog.Logger, observers ...Observer) *Sink {
	return &Sink{
		logger:    logger.With("source", narrationSource),
		observers: observers,
	}
}

// AddObserver registers an observer for lines written from now on.
func (s *Sink) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, o)
}

// WriteLine logs one narration line. Blank separator lines are not logged.
func (s *Sink) WriteLine(text string, level slog.Level) {
	line := strings.TrimLeft(text, "\n")
	if strings.TrimSpace(line) != "" {
		s.logger.Log(context.Background(), level, line)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.observers {
		o.ObserveLine(text, level)
	}
}
