package contracts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
)

// minUtteranceBytes is 0.5s of 16kHz/16-bit mono PCM.
const minUtteranceBytes = audio.SampleRate * 2 / 2

// HTTPSTT talks to the local STT worker over HTTP, generalizing the
// teacher's GroqSTT multipart-upload client to a loopback endpoint.
type HTTPSTT struct {
	url    string
	client *http.Client
}

// NewHTTPSTT returns an adapter targeting http://127.0.0.1:<STTPort>/transcribe.
func NewHTTPSTT() *HTTPSTT {
	return &HTTPSTT{
		url:    fmt.Sprintf("http://127.0.0.1:%d/transcribe", STTPort),
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Transcribe uploads pcm as a WAV file. Inputs under 0.5s short-circuit to
// "" with no request, since the worker would reject it anyway.
func (s *HTTPSTT) Transcribe(pcm []byte) (string, error) {
	if len(pcm) < minUtteranceBytes {
		return "", nil
	}

	wavData := audio.NewWavBuffer(pcm)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: stt request: %v", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: stt transcription error (status %d): %s", apperrors.ErrTransport, resp.StatusCode, errBody)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("stt response decode: %w", err)
	}
	if result.Text == "" {
		return "", apperrors.ErrEmptyTranscription
	}
	return result.Text, nil
}
