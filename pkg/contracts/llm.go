package contracts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
)

// HTTPLLM talks to the local LLM worker, generalizing the teacher's plain
// net/http chat-completion client to a non-streaming and a streaming
// (SSE "data: "-prefixed) loopback endpoint.
type HTTPLLM struct {
	respondURL string
	streamURL  string
	client     *http.Client
}

// NewHTTPLLM returns an adapter targeting :8003/chat and :8003/chat-stream.
func NewHTTPLLM() *HTTPLLM {
	base := fmt.Sprintf("http://127.0.0.1:%d", LLMPort)
	return &HTTPLLM{
		respondURL: base + "/chat",
		streamURL:  base + "/chat-stream",
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

// Respond performs a non-streaming chat completion.
func (l *HTTPLLM) Respond(messages []Message) (string, map[string]any, error) {
	payload, err := json.Marshal(map[string]any{"messages": messages, "stream": false})
	if err != nil {
		return "", nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.respondURL, bytes.NewReader(payload))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: llm request: %v", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", nil, fmt.Errorf("%w: llm error (status %d): %s", apperrors.ErrTransport, resp.StatusCode, errBody)
	}

	var result struct {
		Text    string         `json:"text"`
		Metrics map[string]any `json:"metrics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil, fmt.Errorf("llm response decode: %w", err)
	}
	return result.Text, result.Metrics, nil
}

// RespondStream opens the SSE-style chat-stream endpoint and decodes each
// "data: "-prefixed line into a TokenEvent, pushed to the returned channel
// by a background reader goroutine. The channel is closed after Complete
// or Error, or when the body ends without one (treated as a transport
// failure by the caller).
func (l *HTTPLLM) RespondStream(messages []Message, chunkThreshold int, sentenceBoundary bool) (<-chan TokenEvent, error) {
	payload, err := json.Marshal(map[string]any{
		"messages":          messages,
		"stream":            true,
		"chunk_threshold":   chunkThreshold,
		"sentence_boundary": sentenceBoundary,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, l.streamURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: llm stream request: %v", apperrors.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: llm stream error (status %d): %s", apperrors.ErrTransport, resp.StatusCode, errBody)
	}

	events := make(chan TokenEvent, 16)
	go func() {
		defer resp.Body.Close()
		defer close(events)

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}
			var ev TokenEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				continue
			}
			events <- ev
			if ev.EventType == EventComplete || ev.EventType == EventError {
				return
			}
		}
	}()

	return events, nil
}
