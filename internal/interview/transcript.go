package interview

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TranscriptEvent is one logged interview message.
type TranscriptEvent struct {
	Timestamp     string `json:"ts"`
	SessionID     string `json:"session_id"`
	JobTitle      string `json:"job_title,omitempty"`
	Role          string `json:"role"`
	Stage         string `json:"stage"`
	FollowUpCount int    `json:"follow_up_count"`
	Text          string `json:"text"`
}

// TranscriptLogger records interview messages for later review.
type TranscriptLogger interface {
	// Log enqueues an event. It never blocks the turn path; events are
	// dropped when the queue is full.
	Log(event TranscriptEvent)
	// Close flushes pending events and stops the writer.
	Close() error
}

// NopTranscriptLogger discards all events.
type NopTranscriptLogger struct{}

func (NopTranscriptLogger) Log(TranscriptEvent) {}
func (NopTranscriptLogger) Close() error        { return nil }

// TranscriptConfig controls NDJSON transcript logging.
type TranscriptConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// ndjsonTranscriptLogger appends one JSON line per event to a per-session
// file (and optionally a global combined file) from a background goroutine.
type ndjsonTranscriptLogger struct {
	cfg    TranscriptConfig
	queue  chan TranscriptEvent
	done   chan struct{}
	closer sync.Once
	logger *slog.Logger
}

// NewTranscriptLogger creates a transcript logger for cfg. When neither the
// per-session nor the global transcript is enabled, a no-op logger is
// returned.
func NewTranscriptLogger(cfg TranscriptConfig, logger *slog.Logger) (TranscriptLogger, error) {
	if !cfg.Enabled && !cfg.GlobalEnabled {
		return NopTranscriptLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create transcript dir: %w", err)
		}
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global transcript dir: %w", err)
		}
	}

	l := &ndjsonTranscriptLogger{
		cfg:    cfg,
		queue:  make(chan TranscriptEvent, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l, nil
}

func (l *ndjsonTranscriptLogger) Log(event TranscriptEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("transcript queue full, dropping event", "session_id", event.SessionID)
	}
}

func (l *ndjsonTranscriptLogger) Close() error {
	l.closer.Do(func() {
		close(l.queue)
		<-l.done
	})
	return nil
}

func (l *ndjsonTranscriptLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("failed to marshal transcript event", "error", err)
			continue
		}
		line = append(line, '\n')

		if l.cfg.Enabled {
			path := filepath.Join(l.cfg.Dir, sanitizeSessionID(event.SessionID)+".ndjson")
			if err := appendLine(path, line); err != nil {
				l.logger.Warn("failed to write session transcript", "path", path, "error", err)
			}
		}
		if l.cfg.GlobalEnabled {
			if err := appendLine(l.cfg.GlobalPath, line); err != nil {
				l.logger.Warn("failed to write global transcript", "path", l.cfg.GlobalPath, "error", err)
			}
		}
	}
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// sanitizeSessionID keeps transcript file names flat: session IDs are opaque
// caller-supplied strings and must not traverse directories.
func sanitizeSessionID(id string) string {
	safe := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			safe = append(safe, r)
		default:
			safe = append(safe, '_')
		}
	}
	if len(safe) == 0 {
		return "session"
	}
	return string(safe)
}
