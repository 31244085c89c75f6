package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
	"github.com/lokutor-ai/localvoice-agent/pkg/contracts"
	"github.com/lokutor-ai/localvoice-agent/pkg/conversation"
	"github.com/lokutor-ai/localvoice-agent/pkg/indexer"
	"github.com/lokutor-ai/localvoice-agent/pkg/logging"
	"github.com/lokutor-ai/localvoice-agent/pkg/metrics"
	"github.com/lokutor-ai/localvoice-agent/pkg/noisefloor"
	"github.com/lokutor-ai/localvoice-agent/pkg/perf"
	"github.com/lokutor-ai/localvoice-agent/pkg/supervisor"
	"github.com/lokutor-ai/localvoice-agent/pkg/vad"
	"github.com/lokutor-ai/localvoice-agent/pkg/wake"
)

// frameReadBackoff is how long the audio loop pauses after a recoverable
// frame-read error before retrying, to avoid a hot spin against a device
// that is misbehaving but not yet declared lost.
const frameReadBackoff = 50 * time.Millisecond

func main() {
	indexFlag := flag.Bool("index", false, "run the document indexer and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Println("note: no .env file found, using system environment variables")
	}

	if *indexFlag {
		if err := runIndexer(); err != nil {
			fmt.Fprintln(os.Stderr, "indexing failed:", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func runIndexer() error {
	_, err := indexer.Run(&indexer.ManifestBuilder{}, "config/search_config.json", "config/faiss_index")
	return err
}

func run() error {
	log, closeLog, err := logging.NewZapLogger("logs/app.jsonl", "agent")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer closeLog()

	rec, err := perf.NewRecorder("logs/performance.jsonl")
	if err != nil {
		return fmt.Errorf("opening performance log: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(log)
	specs := []supervisor.ServiceSpec{
		{Name: "tts", Command: envOr("TTS_WORKER_CMD", "tts-worker"), HealthURL: fmt.Sprintf("http://127.0.0.1:%d/health", contracts.TTSPort)},
		{Name: "stt", Command: envOr("STT_WORKER_CMD", "stt-worker"), HealthURL: fmt.Sprintf("http://127.0.0.1:%d/health", contracts.STTPort)},
		{Name: "llm", Command: envOr("LLM_WORKER_CMD", "llm-worker"), HealthURL: fmt.Sprintf("http://127.0.0.1:%d/health", contracts.LLMPort)},
	}
	if err := sup.Start(ctx, specs); err != nil {
		return fmt.Errorf("starting workers: %w", err)
	}
	defer sup.Shutdown(context.Background())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: envOr("METRICS_ADDR", ":9090"), Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	defer metricsServer.Close()

	source, err := audio.OpenDeviceSource(log)
	if err != nil {
		return fmt.Errorf("opening audio device: %w", err)
	}
	defer source.Close()

	kwdChime := loadChime(log)

	floor := noisefloor.NewDefault()
	gate := vad.New(vad.ModeAggressive, log)

	det, err := wake.Open(wake.Config{
		MelspecModel:   envOr("WAKE_MELSPEC_MODEL", "models/melspectrogram.onnx"),
		EmbeddingModel: envOr("WAKE_EMBEDDING_MODEL", "models/embedding.onnx"),
		WakewordModel:  envOr("WAKE_WAKEWORD_MODEL", "models/wakeword.onnx"),
		WakewordName:   envOr("WAKE_WAKEWORD_NAME", "hey_assistant"),
	}, log)
	if err != nil {
		return fmt.Errorf("opening wake detector: %w", err)
	}
	defer det.Close()
	det.Enable()

	conv, err := conversation.NewConversation(source, gate, floor, det,
		contracts.NewHTTPSTT(), contracts.NewHTTPLLM(), contracts.NewWSTTS(source),
		"logs", "config", log, rec)
	if err != nil {
		return fmt.Errorf("starting conversation: %w", err)
	}
	defer conv.Close()

	log.Info("voice agent listening for the wake word")

	for ctx.Err() == nil {
		frame, err := source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, apperrors.ErrDeviceLost) {
				log.Error("audio device lost, shutting down", "error", err)
				return fmt.Errorf("audio device lost: %w", err)
			}
			log.Warn("frame read failed", "error", err)
			metrics.Errors.WithLabelValues("capture", "transport").Inc()
			time.Sleep(frameReadBackoff)
			continue
		}
		if len(frame) != audio.FrameBytes {
			log.Warn("malformed audio frame, dropping", "bytes", len(frame), "error", apperrors.ErrMalformedFrame)
			metrics.Errors.WithLabelValues("capture", "malformed_frame").Inc()
			continue
		}
		metrics.AudioFramesTotal.Inc()

		speech := gate.Speech(frame, floor.Threshold())
		floor.Update(frame, speech)
		if speech {
			metrics.VADSpeechFrames.Inc()
		}

		event, err := det.Detect(frame, floor.Threshold(), speech)
		if err != nil {
			log.Error("wake detection failed", "error", err)
			continue
		}
		if event == nil {
			continue
		}

		metrics.WakeEventsTotal.Inc()
		log.Info("wake word detected")
		if kwdChime != nil {
			if err := source.WritePlayback(kwdChime); err != nil {
				log.Warn("wake chime playback failed", "error", err)
			}
		}
		conv.HandleWake(ctx)
	}

	log.Info("shutting down")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadChime reads config/sounds/kwd_success.wav and strips its header,
// returning raw PCM ready for DeviceSource.WritePlayback. A missing or
// unreadable chime is non-fatal: the wake word still fires, just silently.
func loadChime(log logging.Logger) []byte {
	data, err := os.ReadFile(envOr("KWD_CHIME_PATH", "config/sounds/kwd_success.wav"))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("wake chime unreadable", "error", fmt.Errorf("%w: %v", apperrors.ErrConfigUnreadable, err))
		}
		return nil
	}
	if len(data) <= audio.HeaderBytes {
		log.Warn("wake chime file too short to contain PCM data")
		return nil
	}
	return data[audio.HeaderBytes:]
}
