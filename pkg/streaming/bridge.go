// Package streaming implements the buffered-chunking bridge between the
// LLM worker's token stream and the TTS adapter.
package streaming

import (
	"fmt"
	"strings"

	"github.com/lokutor-ai/localvoice-agent/pkg/contracts"
	"github.com/lokutor-ai/localvoice-agent/pkg/logging"
	"github.com/lokutor-ai/localvoice-agent/pkg/metrics"
	"github.com/lokutor-ai/localvoice-agent/pkg/perf"
)

// ChunkOptions tunes the chunking rule.
type ChunkOptions struct {
	// MinChunkSize is the accumulator length that triggers emission.
	// Default 80. Zero streams every token as its own TTS submission.
	MinChunkSize int
	// SentenceBoundary additionally allows emission whenever the
	// accumulator ends in '.', '?', or '!'.
	SentenceBoundary bool
}

// DefaultChunkOptions returns the standard chunking configuration.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{MinChunkSize: 80}
}

// Bridge consumes a Token Event stream and forwards sentence/size-chunked
// text to a TTSAdapter in strict order.
type Bridge struct {
	log logging.Logger
}

// New returns a Bridge. A nil logger is replaced with a no-op logger.
func New(log logging.Logger) *Bridge {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &Bridge{log: log}
}

func endsSentence(s string) bool {
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '?', '!':
		return true
	}
	return false
}

// Run drains a token event stream, buffering content into chunks dispatched
// to tts as they cross the configured size or sentence boundary. It returns
// the full response text accumulated from Chunk/Complete events. If the
// stream yields an Error event mid-flight, Run retries the whole response
// once via llm.Respond (messages) before falling back to speaking whatever
// partial text had already accumulated; llm may be nil if no fallback is
// available, in which case it goes straight to the partial-text fallback.
func (b *Bridge) Run(tokens <-chan contracts.TokenEvent, llm contracts.LLMAdapter, messages []contracts.Message, tts contracts.TTSAdapter, opts ChunkOptions, bd *perf.Breakdown) (string, error) {
	var accumulator strings.Builder
	var full strings.Builder
	chunksEmitted := 0

	emit := func() error {
		text := accumulator.String()
		if text == "" {
			return nil
		}
		accumulator.Reset()
		chunksEmitted++
		if err := tts.Speak(text); err != nil {
			return err
		}
		metrics.TTSChunksTotal.Inc()
		return nil
	}

	for ev := range tokens {
		switch ev.EventType {
		case contracts.EventFirstToken:
			if bd != nil {
				bd.Since(perf.LLMFirstTokenElapsed, "llm_request_start")
			}

		case contracts.EventChunk:
			accumulator.WriteString(ev.Content)
			full.WriteString(ev.Content)

			shouldEmit := opts.MinChunkSize == 0 || accumulator.Len() >= opts.MinChunkSize
			if !shouldEmit && opts.SentenceBoundary {
				shouldEmit = endsSentence(accumulator.String())
			}
			if shouldEmit {
				if err := emit(); err != nil {
					return full.String(), fmt.Errorf("tts dispatch failed: %w", err)
				}
			}

		case contracts.EventComplete:
			// full_text is authoritative for the return value even if it
			// diverges from the concatenated chunks (see Open Question 1);
			// chunks already dispatched to TTS are never recalled.
			if ev.FullText != "" && ev.FullText != full.String() {
				b.log.Warn("llm complete.full_text diverges from concatenated chunks",
					"full_text_len", len(ev.FullText), "chunks_len", full.Len())
				full.Reset()
				full.WriteString(ev.FullText)
			}
			if err := emit(); err != nil {
				return full.String(), fmt.Errorf("tts dispatch failed on final chunk: %w", err)
			}
			b.log.Info("stream complete", "chunks_emitted", chunksEmitted, "metrics", ev.Metrics)
			return full.String(), nil

		case contracts.EventError:
			b.log.Warn("llm stream error, attempting non-streaming fallback", "message", ev.Message)
			if llm != nil {
				text, _, ferr := llm.Respond(messages)
				if ferr == nil {
					if text != "" {
						if serr := tts.Speak(text); serr != nil {
							return text, fmt.Errorf("tts dispatch failed on fallback response: %w", serr)
						}
					}
					return text, nil
				}
				b.log.Warn("non-streaming fallback also failed, speaking partial text", "error", ferr)
			}
			_ = emit()
			return full.String(), fmt.Errorf("llm stream error: %s", ev.Message)
		}
	}

	// Channel closed without a terminal event: treat as a transport drop.
	_ = emit()
	return full.String(), fmt.Errorf("llm stream closed without a terminal event")
}

// RunOrFallback calls llm.RespondStream and drives Run; if the stream fails
// to start, it falls back to llm.Respond and a single Speak call with the
// whole response as a single TTS submission.
func (b *Bridge) RunOrFallback(llm contracts.LLMAdapter, messages []contracts.Message, tts contracts.TTSAdapter, opts ChunkOptions, bd *perf.Breakdown) (string, error) {
	if bd != nil {
		bd.Mark("llm_request_start")
	}

	tokens, err := llm.RespondStream(messages, opts.MinChunkSize, opts.SentenceBoundary)
	if err != nil {
		b.log.Warn("llm stream failed to start, falling back to whole-response", "error", err)
		text, _, ferr := llm.Respond(messages)
		if ferr != nil {
			return "", fmt.Errorf("whole-response fallback also failed: %w", ferr)
		}
		if text == "" {
			return "", nil
		}
		if serr := tts.Speak(text); serr != nil {
			return text, fmt.Errorf("tts dispatch failed in fallback path: %w", serr)
		}
		return text, nil
	}

	return b.Run(tokens, llm, messages, tts, opts, bd)
}
