package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/mockmate/interviewd/internal/domain"
)

// Chunk is one incremental piece of a streamed generation. Streamed payloads
// are not uniform across API versions: some carry a top-level text field,
// others only the nested candidate/part structure. Text resolves whichever
// form is present and returns "" for shapes it cannot interpret, so a bad
// chunk costs its own contribution and nothing else.
type Chunk struct {
	text       string
	candidates []candidate
}

// Text returns the chunk's text contribution.
func (c Chunk) Text() string {
	if c.text != "" {
		return c.text
	}
	if len(c.candidates) > 0 && len(c.candidates[0].Content.Parts) > 0 {
		return c.candidates[0].Content.Parts[0].Text
	}
	return ""
}

// streamPayload is the decoded form of one SSE data line.
type streamPayload struct {
	Text       string      `json:"text"`
	Candidates []candidate `json:"candidates"`
}

// GenerateContentStream invokes the streaming generation endpoint and yields
// chunks in arrival order. History handling matches GenerateContent. Only
// transport and decode-framing failures terminate the sequence with an
// error; unintelligible individual chunks yield an empty Chunk instead.
func (c *Client) GenerateContentStream(ctx context.Context, instruction string, history []domain.Turn) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		contents, err := buildContents(instruction, history)
		if err != nil {
			yield(Chunk{}, err)
			return
		}

		data, err := json.Marshal(generateRequest{Contents: contents})
		if err != nil {
			yield(Chunk{}, fmt.Errorf("gemini: marshal request: %w", err))
			return
		}

		ctx, cancel := c.ensureDeadline(ctx)
		defer cancel()

		url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, c.model, c.apiKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			yield(Chunk{}, fmt.Errorf("gemini: create request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := c.httpClient.Do(req)
		if err != nil {
			yield(Chunk{}, fmt.Errorf("gemini: stream request failed: %w", err))
			return
		}
		defer func() { _ = res.Body.Close() }()

		if res.StatusCode < 200 || res.StatusCode >= 300 {
			buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
			yield(Chunk{}, &StatusError{StatusCode: res.StatusCode, Body: string(buf)})
			return
		}

		scanner := bufio.NewScanner(res.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" || payload == "[DONE]" {
				continue
			}

			var decoded streamPayload
			if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
				// Unrecoverable chunk shape: contribute nothing, keep draining.
				if !yield(Chunk{}, nil) {
					return
				}
				continue
			}
			if !yield(Chunk{text: decoded.Text, candidates: decoded.Candidates}, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Chunk{}, fmt.Errorf("gemini: stream read failed: %w", err))
		}
	}
}

// DrainStream concatenates every chunk of seq in arrival order into one
// string. The first stream error aborts the drain.
func DrainStream(seq iter.Seq2[Chunk, error]) (string, error) {
	var sb strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return "", err
		}
		sb.WriteString(chunk.Text())
	}
	return sb.String(), nil
}

// StreamContent drains a streaming generation into one string, invoking
// onChunk for each non-empty text contribution before it is folded in.
func (c *Client) StreamContent(ctx context.Context, instruction string, history []domain.Turn, onChunk func(string)) (string, error) {
	var sb strings.Builder
	for chunk, err := range c.GenerateContentStream(ctx, instruction, history) {
		if err != nil {
			return "", err
		}
		text := chunk.Text()
		if text == "" {
			continue
		}
		if onChunk != nil {
			onChunk(text)
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
