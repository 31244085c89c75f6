// Package metrics exposes Prometheus instrumentation for stage latency and
// error counts across the pipeline. Where the data goes (a telemetry sink)
// is out of scope; only the in-process gauges/histograms/counters live here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WakeEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_wake_events_total",
		Help: "Total wake-word detections that passed cooldown and threshold",
	})

	TurnsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agent_turns_active",
		Help: "Conversation turns currently in flight (0 or 1)",
	})

	TurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_turns_total",
		Help: "Total completed conversation turns",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_stage_duration_seconds",
		Help:    "Per-stage latency (capture, transcribe, respond)",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0, 10.0},
	}, []string{"stage"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_errors_total",
		Help: "Error counts by stage and error kind",
	}, []string{"stage", "kind"})

	AudioFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_audio_frames_total",
		Help: "Total 30ms audio frames read from the frame source",
	})

	VADSpeechFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_vad_speech_frames_total",
		Help: "Frames classified as speech by the VAD gate",
	})

	TTSChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_tts_chunks_total",
		Help: "Total text chunks dispatched to the TTS adapter",
	})

	SupervisorServiceUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agent_supervisor_service_up",
		Help: "1 if the named worker service is currently healthy",
	}, []string{"service"})
)
