// Package supervisor owns the lifecycle of the local STT, LLM, and TTS
// worker processes: spawn in order, wait for each to answer its health
// check, and tear everything down in reverse order on failure or shutdown.
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
	"github.com/lokutor-ai/localvoice-agent/pkg/logging"
	"github.com/lokutor-ai/localvoice-agent/pkg/metrics"
)

// pollInterval and readyTimeout match whisper-control's waitForHealth loop.
// Declared as vars (not const) so tests can shrink them instead of waiting
// out the real timeout.
var (
	pollInterval = 1 * time.Second
	readyTimeout = 30 * time.Second
)

// ServiceSpec describes one worker process to spawn and how to probe it.
type ServiceSpec struct {
	Name          string
	Command       string
	Args          []string
	HealthURL     string
	ShutdownGrace time.Duration
}

// ServiceHandle is the running state of one spawned service.
type ServiceHandle struct {
	Spec ServiceSpec
	cmd  *exec.Cmd
}

// Supervisor starts services in the order given, waits for each to become
// healthy before starting the next, and tears down in reverse start order.
type Supervisor struct {
	mu      sync.Mutex
	handles []*ServiceHandle
	log     logging.Logger
	client  *http.Client
}

// New returns a Supervisor. A nil logger discards all log output.
func New(log logging.Logger) *Supervisor {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &Supervisor{
		log:    log,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

// Start spawns each service in specs, in order, waiting for readiness
// between each. If any service fails to spawn or never becomes healthy
// within readyTimeout, every previously started service is torn down in
// reverse order and a ServiceInitializationError is returned.
func (s *Supervisor) Start(ctx context.Context, specs []ServiceSpec) error {
	for _, spec := range specs {
		h, err := s.spawn(ctx, spec)
		if err != nil {
			s.teardown(context.Background())
			return &apperrors.ServiceInitializationError{Service: spec.Name, Cause: err}
		}

		s.mu.Lock()
		s.handles = append(s.handles, h)
		s.mu.Unlock()

		if err := s.waitHealthy(ctx, spec); err != nil {
			s.teardown(context.Background())
			return &apperrors.ServiceInitializationError{Service: spec.Name, Cause: err}
		}
		s.log.Info("service ready", "service", spec.Name)
	}
	return nil
}

func (s *Supervisor) spawn(ctx context.Context, spec ServiceSpec) (*ServiceHandle, error) {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDependencyMissing, err)
	}
	return &ServiceHandle{Spec: spec, cmd: cmd}, nil
}

// waitHealthy polls spec.HealthURL at pollInterval until it answers 200 or
// readyTimeout elapses, matching whisper-control's waitForHealth loop.
func (s *Supervisor) waitHealthy(ctx context.Context, spec ServiceSpec) error {
	if spec.HealthURL == "" {
		return nil
	}
	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.healthOK(spec.HealthURL) {
			metrics.SupervisorServiceUp.WithLabelValues(spec.Name).Set(1)
			return nil
		}
		time.Sleep(pollInterval)
	}
	metrics.SupervisorServiceUp.WithLabelValues(spec.Name).Set(0)
	return apperrors.ErrStartupTimeout
}

func (s *Supervisor) healthOK(url string) bool {
	resp, err := s.client.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ProbeAll concurrently re-checks every running service's health endpoint,
// returning the first error (if any) via errgroup's fail-fast propagation.
func (s *Supervisor) ProbeAll(ctx context.Context) error {
	s.mu.Lock()
	handles := append([]*ServiceHandle(nil), s.handles...)
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		h := h
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if h.Spec.HealthURL == "" {
				return nil
			}
			if !s.healthOK(h.Spec.HealthURL) {
				metrics.SupervisorServiceUp.WithLabelValues(h.Spec.Name).Set(0)
				return fmt.Errorf("%s: %w", h.Spec.Name, apperrors.ErrDependencyMissing)
			}
			metrics.SupervisorServiceUp.WithLabelValues(h.Spec.Name).Set(1)
			return nil
		})
	}
	return g.Wait()
}

// Shutdown stops every running service in reverse start order, giving each
// its configured grace period before the process is killed.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	return s.teardown(ctx)
}

func (s *Supervisor) teardown(ctx context.Context) error {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	var firstErr error
	for i := len(handles) - 1; i >= 0; i-- {
		h := handles[i]
		if h.cmd == nil || h.cmd.Process == nil {
			continue
		}
		grace := h.Spec.ShutdownGrace
		if grace == 0 {
			grace = 5 * time.Second
		}
		s.log.Info("stopping service", "service", h.Spec.Name)
		metrics.SupervisorServiceUp.WithLabelValues(h.Spec.Name).Set(0)
		if err := h.cmd.Process.Signal(os.Interrupt); err != nil && firstErr == nil {
			firstErr = err
		}

		done := make(chan error, 1)
		go func() { done <- h.cmd.Wait() }()

		select {
		case <-done:
		case <-time.After(grace):
			s.log.Warn("service did not exit in time, killing", "service", h.Spec.Name)
			h.cmd.Process.Kill()
			<-done
		}
	}
	return firstErr
}
