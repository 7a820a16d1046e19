package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/mockmate/interviewd/internal/domain"
	"github.com/mockmate/interviewd/internal/interview"
	"github.com/mockmate/interviewd/internal/store"
)

// stubGenerator satisfies interview.Generator without any network I/O.
type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubGenerator) GenerateContent(_ context.Context, _ string, _ []domain.Turn, _ int) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *stubGenerator) StreamContent(_ context.Context, _ string, _ []domain.Turn, onChunk func(string)) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	half := len(g.reply) / 2
	for _, chunk := range []string{g.reply[:half], g.reply[half:]} {
		if chunk != "" {
			onChunk(chunk)
		}
	}
	return g.reply, nil
}

func newTestRouter(t *testing.T, gen interview.Generator) (chi.Router, *store.Memory) {
	t.Helper()
	repo := store.NewMemory()
	svc, err := interview.NewService(repo, gen, nil, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	r := chi.NewRouter()
	NewInterviewHandler(svc).RegisterRoutes(r)
	return r, repo
}

func postTurn(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/interview", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleTurnSuccess(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, &stubGenerator{reply: "Tell me about yourself."})
	rec := postTurn(t, r, `{"sessionId":"sess-1","jobTitle":"Software Engineer","userResponse":"start interview"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var res turnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Response != "Tell me about yourself." {
		t.Errorf("unexpected response text %q", res.Response)
	}
	if res.InterviewStage != domain.StageFirstCoreQuestion {
		t.Errorf("expected stage %q, got %q", domain.StageFirstCoreQuestion, res.InterviewStage)
	}
	if len(res.History) != 1 || res.History[0].Role != "model" {
		t.Errorf("expected one model history turn, got %+v", res.History)
	}
}

func TestHandleTurnMissingField(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "never"}
	r, repo := newTestRouter(t, gen)

	bodies := []string{
		`{"jobTitle":"Software Engineer","userResponse":"hi"}`,
		`{"sessionId":"sess-1","userResponse":"hi"}`,
		`{"sessionId":"sess-1","jobTitle":"Software Engineer"}`,
		`{"sessionId":"","jobTitle":"Software Engineer","userResponse":"hi"}`,
	}
	for _, body := range bodies {
		rec := postTurn(t, r, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), msgMissingField) {
			t.Errorf("body %s: expected %q in response, got %s", body, msgMissingField, rec.Body.String())
		}
	}
	if repo.Len() != 0 {
		t.Errorf("invalid requests must not create sessions, store has %d", repo.Len())
	}
	if gen.calls != 0 {
		t.Errorf("invalid requests must not call the gateway, got %d calls", gen.calls)
	}
}

func TestHandleTurnEmptyUserResponseAccepted(t *testing.T) {
	t.Parallel()

	// An empty userResponse is a present-but-blank answer, not a missing field.
	r, _ := newTestRouter(t, &stubGenerator{reply: "ok"})
	rec := postTurn(t, r, `{"sessionId":"sess-1","jobTitle":"Software Engineer","userResponse":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for blank answer, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleTurnInvalidBody(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, &stubGenerator{reply: "never"})
	rec := postTurn(t, r, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestHandleTurnUpstreamFailure(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, &stubGenerator{err: errors.New("model unavailable")})
	rec := postTurn(t, r, `{"sessionId":"sess-1","jobTitle":"Software Engineer","userResponse":"start interview"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgUpstreamFailure) {
		t.Errorf("expected %q in response, got %s", msgUpstreamFailure, rec.Body.String())
	}
}

func TestHandleTurnUnknownStage(t *testing.T) {
	t.Parallel()

	r, repo := newTestRouter(t, &stubGenerator{reply: "never"})
	if err := repo.WithSession(context.Background(), "sess-1", func(s *domain.Session) error {
		s.Stage = "haunted"
		return nil
	}); err != nil {
		t.Fatalf("seeding session failed: %v", err)
	}

	rec := postTurn(t, r, `{"sessionId":"sess-1","jobTitle":"Software Engineer","userResponse":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgUnknownStage) {
		t.Errorf("expected %q in response, got %s", msgUnknownStage, rec.Body.String())
	}
}

func TestStreamHandlerTurnOverWebSocket(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()
	svc, err := interview.NewService(repo, &stubGenerator{reply: "Tell me about yourself."}, nil, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	srv := httptest.NewServer(NewStreamHandler(svc, "*", true))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer func() { _ = ws.Close(websocket.StatusNormalClosure, "done") }()

	req := `{"sessionId":"sess-1","jobTitle":"Software Engineer","userResponse":"start interview"}`
	if err := ws.Write(ctx, websocket.MessageText, []byte(req)); err != nil {
		t.Fatalf("websocket write failed: %v", err)
	}

	var streamed strings.Builder
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			t.Fatalf("websocket read failed: %v", err)
		}
		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("failed to decode frame: %v", err)
		}
		switch frame.Type {
		case "chunk":
			streamed.WriteString(frame.Text)
		case "result":
			if frame.Response != "Tell me about yourself." {
				t.Errorf("unexpected result response %q", frame.Response)
			}
			if streamed.String() != frame.Response {
				t.Errorf("streamed chunks %q do not reassemble %q", streamed.String(), frame.Response)
			}
			if frame.InterviewStage != string(domain.StageFirstCoreQuestion) {
				t.Errorf("unexpected stage %q", frame.InterviewStage)
			}
			return
		case "error":
			t.Fatalf("unexpected error frame: %s", frame.Error)
		default:
			t.Fatalf("unexpected frame type %q", frame.Type)
		}
	}
}

func TestStreamHandlerMissingFieldFrame(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()
	svc, err := interview.NewService(repo, &stubGenerator{reply: "never"}, nil, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	srv := httptest.NewServer(NewStreamHandler(svc, "*", true))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer func() { _ = ws.Close(websocket.StatusNormalClosure, "done") }()

	if err := ws.Write(ctx, websocket.MessageText, []byte(`{"jobTitle":"Software Engineer"}`)); err != nil {
		t.Fatalf("websocket write failed: %v", err)
	}

	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("websocket read failed: %v", err)
	}
	var frame wsFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	if frame.Type != "error" || frame.Error != msgMissingField {
		t.Errorf("expected error frame %q, got %+v", msgMissingField, frame)
	}
}
