// Package heartbeat reports server liveness to an external monitor.
package heartbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/theblitlabs/parity-ml/internal/monitoring/health"
	"github.com/theblitlabs/parity-ml/internal/monitoring/metrics"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

type HeartbeatConfig struct {
	URL          string
	InstanceID   string
	BaseInterval time.Duration
	MaxBackoff   time.Duration
	BaseBackoff  time.Duration
	MaxRetries   int
	Timeout      time.Duration
}

// StatusProvider exposes what the monitor wants to know about the server.
type StatusProvider interface {
	ActiveSessions() int
	Overall() health.Status
}

type MetricsProvider interface {
	GetSystemMetrics() metrics.SystemMetrics
}

type Payload struct {
	InstanceID     string        `json:"instance_id"`
	Status         health.Status `json:"status"`
	ActiveSessions int           `json:"active_sessions"`
	Timestamp      int64         `json:"timestamp"`
	Uptime         int64         `json:"uptime"`
	Memory         int64         `json:"memory_usage"`
	CPU            float64       `json:"cpu_usage"`
}

type HeartbeatService struct {
	config              HeartbeatConfig
	client              *http.Client
	scheduler           *gocron.Scheduler
	mu                  sync.Mutex
	started             bool
	startTime           time.Time
	status              StatusProvider
	metrics             MetricsProvider
	job                 *gocron.Job
	consecutiveFailures int
	sleep               func(time.Duration)
}

func NewHeartbeatService(config HeartbeatConfig, status StatusProvider, metricsProvider MetricsProvider) *HeartbeatService {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.BaseInterval <= 0 {
		config.BaseInterval = 30 * time.Second
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = config.BaseInterval
	}
	if config.MaxBackoff < config.BaseBackoff {
		config.MaxBackoff = 5 * config.BaseBackoff
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &HeartbeatService{
		config:    config,
		client:    &http.Client{Timeout: config.Timeout},
		scheduler: gocron.NewScheduler(time.UTC),
		startTime: time.Now(),
		status:    status,
		metrics:   metricsProvider,
		sleep:     time.Sleep,
	}
}

// Start sends one heartbeat immediately and then schedules the rest.
func (h *HeartbeatService) Start() error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.mu.Unlock()

	log := logger.WithComponent("heartbeat")
	log.Debug().
		Str("url", h.config.URL).
		Dur("interval", h.config.BaseInterval).
		Msg("Starting heartbeat service")

	if err := h.SendWithRetry(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to send initial heartbeat after retries")
	}

	h.scheduler.SingletonMode()
	job, err := h.scheduler.Every(h.config.BaseInterval).WaitForSchedule().Do(h.heartbeatTask)
	if err != nil {
		return fmt.Errorf("failed to schedule heartbeat job: %w", err)
	}

	h.mu.Lock()
	h.job = job
	h.mu.Unlock()

	h.scheduler.StartAsync()
	return nil
}

func (h *HeartbeatService) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return
	}
	h.scheduler.Stop()
	h.started = false
}

func (h *HeartbeatService) heartbeatTask() {
	log := logger.WithComponent("heartbeat")

	err := h.SendWithRetry(context.Background())

	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.config.BaseInterval
	if err != nil {
		h.consecutiveFailures++
		next = h.backoff()
		log.Warn().
			Err(err).
			Int("consecutive_failures", h.consecutiveFailures).
			Dur("next_retry", next).
			Msg("Heartbeat failed, will retry with backoff")
	} else {
		h.consecutiveFailures = 0
	}

	if h.job == nil {
		return
	}
	current := time.Until(h.job.NextRun())
	if current < time.Duration(float64(next)*0.9) || current > time.Duration(float64(next)*1.1) {
		h.scheduler.RemoveByReference(h.job)
		if job, err := h.scheduler.Every(next).WaitForSchedule().Do(h.heartbeatTask); err == nil {
			h.job = job
		}
	}
}

// backoff grows linearly with consecutive failures up to MaxBackoff.
// Callers hold h.mu.
func (h *HeartbeatService) backoff() time.Duration {
	d := time.Duration(float64(h.config.BaseBackoff) * float64(h.consecutiveFailures))
	if d > h.config.MaxBackoff {
		d = h.config.MaxBackoff
	}
	return d
}

func (h *HeartbeatService) SendWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= h.config.MaxRetries; attempt++ {
		if lastErr = h.Send(ctx); lastErr == nil {
			return nil
		}
		if attempt < h.config.MaxRetries {
			h.sleep(time.Duration(attempt) * time.Second)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", h.config.MaxRetries, lastErr)
}

func (h *HeartbeatService) payload() Payload {
	p := Payload{
		InstanceID:     h.config.InstanceID,
		Status:         h.status.Overall(),
		ActiveSessions: h.status.ActiveSessions(),
		Timestamp:      time.Now().Unix(),
		Uptime:         int64(time.Since(h.startTime).Seconds()),
	}
	if h.metrics != nil {
		m := h.metrics.GetSystemMetrics()
		p.Memory = m.MemoryUsed
		p.CPU = m.CPUPercent
	}
	return p
}

// Send posts a single heartbeat. Any status other than 200 is an error.
func (h *HeartbeatService) Send(ctx context.Context) error {
	log := logger.WithComponent("heartbeat")

	payload := h.payload()
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ParityML/1.0")
	req.Header.Set("X-Instance-ID", h.config.InstanceID)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send heartbeat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("heartbeat request failed with status %d: %s", resp.StatusCode, string(msg))
	}

	log.Debug().
		Str("status", string(payload.Status)).
		Int("active_sessions", payload.ActiveSessions).
		Float64("cpu", payload.CPU).
		Int64("memory", payload.Memory).
		Msg("Heartbeat sent successfully")
	return nil
}
