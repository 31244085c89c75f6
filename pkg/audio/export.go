package audio

import (
	"fmt"
	"os"
	"path/filepath"
)

// ExportWAV writes pcm as a debug WAV file under dir, named by the given tag.
// Used by pkg/conversation's Controller to persist each captured utterance
// for offline transcription-quality troubleshooting.
func ExportWAV(dir, tag string, pcm []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("utterance_%s.wav", tag))
	wav := NewWavBuffer(pcm)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
