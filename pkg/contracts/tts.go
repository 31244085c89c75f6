package contracts

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
)

// PlaybackSink accepts synthesized PCM for output on the shared audio
// device, implemented by audio.DeviceSource.
type PlaybackSink interface {
	WritePlayback(pcm []byte) error
}

// WSTTS talks to the local TTS worker over a WebSocket, directly
// generalizing the teacher's LokutorTTS client: binary frames are audio,
// text frames carry EOS/ERR: sentinels.
type WSTTS struct {
	host string
	sink PlaybackSink

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSTTS returns an adapter targeting ws://127.0.0.1:<TTSPort>/ws. sink
// receives every binary audio frame the worker streams back; nil drops
// audio on the floor (useful for workers that only exercise the text
// sentinel protocol in tests).
func NewWSTTS(sink PlaybackSink) *WSTTS {
	return &WSTTS{host: fmt.Sprintf("127.0.0.1:%d", TTSPort), sink: sink}
}

func (t *WSTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: "ws", Host: t.host, Path: "/ws"}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to tts worker: %v", apperrors.ErrTransport, err)
	}
	t.conn = conn
	return conn, nil
}

// Speak blocks until the worker's EOS/ERR: sentinel closes out the segment,
// matching the teacher's StreamSynthesize read loop. Binary audio frames
// received along the way are forwarded to sink for playback.
func (t *WSTTS) Speak(text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]any{"op": "speak", "text": text}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("%w: tts synthesis request: %v", apperrors.ErrTransport, err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("%w: tts read: %v", apperrors.ErrTransport, err)
		}
		switch messageType {
		case websocket.MessageBinary:
			if t.sink != nil {
				if err := t.sink.WritePlayback(payload); err != nil {
					return fmt.Errorf("writing tts audio to playback sink: %w", err)
				}
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("tts synthesis error: %s", msg)
			}
		}
	}
}

// Warmup precomputes model state on the worker side.
func (t *WSTTS) Warmup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return wsjson.Write(ctx, conn, map[string]any{"op": "warmup"})
}

// Stop aborts playback on the current device.
func (t *WSTTS) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, t.conn, map[string]any{"op": "stop"})
}

// Close releases the underlying connection.
func (t *WSTTS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
