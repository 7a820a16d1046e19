package interview

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTranscriptLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewTranscriptLogger(TranscriptConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(TranscriptEvent{
		SessionID: "sess-1",
		JobTitle:  "Software Engineer",
		Role:      "user",
		Stage:     "asking_follow_ups",
		Text:      "I led the migration project.",
	})

	path := filepath.Join(dir, "sess-1.ndjson")
	line := waitForLogLine(t, path)
	var got TranscriptEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal transcript line: %v", err)
	}
	if got.Text != "I led the migration project." {
		t.Fatalf("unexpected Text: %q", got.Text)
	}
	if got.Timestamp == "" {
		t.Fatal("expected timestamp to be populated")
	}
}

func TestTranscriptLoggerGlobalFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	globalPath := filepath.Join(dir, "all.ndjson")
	logger, err := NewTranscriptLogger(TranscriptConfig{
		GlobalEnabled: true,
		GlobalPath:    globalPath,
		QueueSize:     16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(TranscriptEvent{SessionID: "a", Role: "model", Text: "one"})
	logger.Log(TranscriptEvent{SessionID: "b", Role: "model", Text: "two"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		data, _ := os.ReadFile(globalPath)
		if strings.Contains(string(data), `"text":"two"`) {
			if !strings.Contains(string(data), `"text":"one"`) {
				t.Fatal("global transcript missing the first event")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for global transcript, have: %q", string(data))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestTranscriptLoggerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := NewTranscriptLogger(TranscriptConfig{}, nil)
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	if _, ok := logger.(NopTranscriptLogger); !ok {
		t.Fatalf("expected noop logger when disabled, got %T", logger)
	}
}

func TestSanitizeSessionID(t *testing.T) {
	t.Parallel()

	if got := sanitizeSessionID("../../etc/passwd"); strings.ContainsAny(got, "./") {
		t.Fatalf("sanitized ID still contains path characters: %q", got)
	}
	if got := sanitizeSessionID(""); got != "session" {
		t.Fatalf("empty ID should fall back to %q, got %q", "session", got)
	}
	if got := sanitizeSessionID("sess_42-A"); got != "sess_42-A" {
		t.Fatalf("safe ID must pass through unchanged, got %q", got)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for transcript file %s", path)
	return ""
}
