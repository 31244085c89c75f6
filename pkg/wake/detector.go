// Package wake implements the 1-second sliding-window wake-word detector:
// a 3-stage ONNX pipeline (melspectrogram → embedding → wakeword) gated by
// the noise floor and VAD, with a cooldown to prevent re-triggering on a
// single utterance.
package wake

import (
	"fmt"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
	"github.com/lokutor-ai/localvoice-agent/pkg/logging"
)

const (
	chunkSamples  = 1280 // 80ms @ 16kHz, the model's native step size
	melBins       = 32
	nMelFrames    = 5
	melWindowSize = 76
	melStepSize   = 8
	embeddingDim  = 96
	nEmbedFrames  = 16
	recentWindow  = 5

	// Threshold is the default wake-word confidence cutoff.
	Threshold = 0.77
	// Cooldown suppresses further detections after a hit.
	Cooldown = 2 * time.Second

	// scoreWindowSize smooths frame-alignment jitter around the true peak.
	scoreWindowSize = 5
)

// Event is emitted when the wakeword score exceeds Threshold.
type Event struct {
	Scores map[string]float64
	Window []int16
}

// Config names the three ONNX model files the pipeline loads.
type Config struct {
	MelspecModel   string
	EmbeddingModel string
	WakewordModel  string
	WakewordName   string
}

// Detector runs the openWakeWord-style pipeline over frames fed in by the
// shared audio loop. It owns no capture device of its own.
type Detector struct {
	cfg Config
	log logging.Logger

	ring *Ring

	melspecSess *ort.AdvancedSession
	melspecIn   *ort.Tensor[float32]
	melspecOut  *ort.Tensor[float32]

	embedSess *ort.AdvancedSession
	embedIn   *ort.Tensor[float32]
	embedOut  *ort.Tensor[float32]

	wwSess *ort.AdvancedSession
	wwIn   *ort.Tensor[float32]
	wwOut  *ort.Tensor[float32]

	mu         sync.Mutex
	enabled    bool
	lastDetect time.Time

	melBuffer   []float32
	embedBuffer []float32
	audioRem    []int16

	scoreWindow [scoreWindowSize]float32
	scoreIdx    int
}

// Open loads the three ONNX sessions and returns a disabled Detector.
// Missing model files are fatal, returned as a ResourceMissingError.
func Open(cfg Config, log logging.Logger) (*Detector, error) {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	for _, path := range []string{cfg.MelspecModel, cfg.EmbeddingModel, cfg.WakewordModel} {
		if path == "" {
			return nil, &apperrors.ResourceMissingError{Path: "<unset wake model path>"}
		}
	}

	d := &Detector{
		cfg:         cfg,
		log:         log,
		ring:        NewRing(),
		embedBuffer: make([]float32, nEmbedFrames*embeddingDim),
		melBuffer:   make([]float32, 0, 300*melBins),
		audioRem:    make([]int16, 0, chunkSamples*2),
	}

	var err error
	if d.melspecIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, chunkSamples)); err != nil {
		return nil, fmt.Errorf("%w: melspec input tensor: %v", apperrors.ErrResourceMissing, err)
	}
	if d.melspecOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, nMelFrames, melBins)); err != nil {
		return nil, err
	}
	msIn, msOut, err := ort.GetInputOutputInfo(cfg.MelspecModel)
	if err != nil {
		return nil, &apperrors.ResourceMissingError{Path: cfg.MelspecModel}
	}
	if d.melspecSess, err = ort.NewAdvancedSession(cfg.MelspecModel,
		[]string{msIn[0].Name}, []string{msOut[0].Name},
		[]ort.Value{d.melspecIn}, []ort.Value{d.melspecOut}, nil); err != nil {
		return nil, err
	}

	if d.embedIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, melWindowSize, melBins, 1)); err != nil {
		return nil, err
	}
	if d.embedOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, 1, embeddingDim)); err != nil {
		return nil, err
	}
	emIn, emOut, err := ort.GetInputOutputInfo(cfg.EmbeddingModel)
	if err != nil {
		return nil, &apperrors.ResourceMissingError{Path: cfg.EmbeddingModel}
	}
	if d.embedSess, err = ort.NewAdvancedSession(cfg.EmbeddingModel,
		[]string{emIn[0].Name}, []string{emOut[0].Name},
		[]ort.Value{d.embedIn}, []ort.Value{d.embedOut}, nil); err != nil {
		return nil, err
	}

	if d.wwIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, nEmbedFrames, embeddingDim)); err != nil {
		return nil, err
	}
	if d.wwOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return nil, err
	}
	wwIn, wwOut, err := ort.GetInputOutputInfo(cfg.WakewordModel)
	if err != nil {
		return nil, &apperrors.ResourceMissingError{Path: cfg.WakewordModel}
	}
	if d.wwSess, err = ort.NewAdvancedSession(cfg.WakewordModel,
		[]string{wwIn[0].Name}, []string{wwOut[0].Name},
		[]ort.Value{d.wwIn}, []ort.Value{d.wwOut}, nil); err != nil {
		return nil, err
	}

	return d, nil
}

// Close releases the ONNX sessions and tensors.
func (d *Detector) Close() {
	if d.melspecSess != nil {
		d.melspecSess.Destroy()
	}
	if d.melspecIn != nil {
		d.melspecIn.Destroy()
	}
	if d.melspecOut != nil {
		d.melspecOut.Destroy()
	}
	if d.embedSess != nil {
		d.embedSess.Destroy()
	}
	if d.embedIn != nil {
		d.embedIn.Destroy()
	}
	if d.embedOut != nil {
		d.embedOut.Destroy()
	}
	if d.wwSess != nil {
		d.wwSess.Destroy()
	}
	if d.wwIn != nil {
		d.wwIn.Destroy()
	}
	if d.wwOut != nil {
		d.wwOut.Destroy()
	}
}

// Enable turns detection on. Detectors start disabled until the caller's
// capture lifecycle confirms it is safe to listen for the wake word.
func (d *Detector) Enable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = true
}

// Disable turns detection off (e.g. while the controller owns the mic).
func (d *Detector) Disable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = false
}

func (d *Detector) inCooldown(now time.Time) bool {
	return !d.lastDetect.IsZero() && now.Sub(d.lastDetect) < Cooldown
}

// Detect runs the three-stage scoring pipeline against one frame. threshold and speech
// are the noise-floor threshold and VAD decision the audio loop already
// computed for this frame, so they are not recomputed here.
func (d *Detector) Detect(frame audio.Frame, threshold float64, speech bool) (*Event, error) {
	samples := frame.Samples()
	d.ring.Append(samples)

	d.mu.Lock()
	enabled := d.enabled
	now := time.Now()
	cooldown := d.inCooldown(now)
	d.mu.Unlock()

	if !enabled {
		return nil, nil
	}
	if cooldown {
		return nil, nil
	}
	if frame.RMS() <= threshold {
		return nil, nil
	}
	if !speech {
		return nil, nil
	}

	d.audioRem = append(d.audioRem, samples...)

	var fired *Event
	for len(d.audioRem) >= chunkSamples {
		chunk := d.audioRem[:chunkSamples]
		n := copy(d.audioRem, d.audioRem[chunkSamples:])
		d.audioRem = d.audioRem[:n]

		if err := d.runMelspec(chunk); err != nil {
			return nil, err
		}

		newEmbed, err := d.runEmbedding()
		if err != nil {
			return nil, err
		}
		if !newEmbed {
			continue
		}

		score, err := d.runWakeword()
		if err != nil {
			return nil, err
		}

		maxScore := d.pushScore(score)
		if float64(maxScore) > Threshold {
			d.mu.Lock()
			d.lastDetect = time.Now()
			d.scoreWindow = [scoreWindowSize]float32{}
			d.mu.Unlock()

			name := d.cfg.WakewordName
			if name == "" {
				name = "wakeword"
			}
			fired = &Event{
				Scores: map[string]float64{name: float64(maxScore)},
				Window: d.ring.Window(),
			}
			break
		}
	}

	return fired, nil
}

func (d *Detector) runMelspec(chunk []int16) error {
	in := d.melspecIn.GetData()
	for i, v := range chunk {
		in[i] = float32(v)
	}
	if err := d.melspecSess.Run(); err != nil {
		return fmt.Errorf("melspec inference: %w", err)
	}
	out := d.melspecOut.GetData()
	for f := 0; f < nMelFrames; f++ {
		for b := 0; b < melBins; b++ {
			idx := f*melBins + b
			if idx < len(out) {
				d.melBuffer = append(d.melBuffer, out[idx]/10.0+2.0)
			}
		}
	}
	return nil
}

func (d *Detector) runEmbedding() (bool, error) {
	totalMel := len(d.melBuffer) / melBins
	newEmbed := false

	for totalMel >= melWindowSize {
		in := d.embedIn.GetData()
		copy(in, d.melBuffer[:melWindowSize*melBins])
		if err := d.embedSess.Run(); err != nil {
			return false, fmt.Errorf("embedding inference: %w", err)
		}
		out := d.embedOut.GetData()

		copy(d.embedBuffer, d.embedBuffer[embeddingDim:])
		copy(d.embedBuffer[(nEmbedFrames-1)*embeddingDim:], out[:embeddingDim])
		newEmbed = true

		n := copy(d.melBuffer, d.melBuffer[melStepSize*melBins:])
		d.melBuffer = d.melBuffer[:n]
		totalMel = len(d.melBuffer) / melBins
	}

	if totalMel > melWindowSize {
		excess := (totalMel - melWindowSize) * melBins
		n := copy(d.melBuffer, d.melBuffer[excess:])
		d.melBuffer = d.melBuffer[:n]
	}

	return newEmbed, nil
}

func (d *Detector) runWakeword() (float32, error) {
	in := d.wwIn.GetData()
	padSlots := nEmbedFrames - recentWindow
	for i := 0; i < padSlots*embeddingDim; i++ {
		in[i] = 0
	}
	copy(in[padSlots*embeddingDim:], d.embedBuffer[padSlots*embeddingDim:])
	if err := d.wwSess.Run(); err != nil {
		return 0, fmt.Errorf("wakeword inference: %w", err)
	}
	return d.wwOut.GetData()[0], nil
}

func (d *Detector) pushScore(score float32) float32 {
	d.scoreWindow[d.scoreIdx%scoreWindowSize] = score
	d.scoreIdx++
	var maxScore float32
	for _, s := range d.scoreWindow {
		if s > maxScore {
			maxScore = s
		}
	}
	return maxScore
}
