package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/theblitlabs/parity-ml/pkg/logger"
)

// Status represents the health status of a component
type Status string

const (
	// StatusOK indicates the component is healthy
	StatusOK Status = "OK"
	// StatusWarning indicates the component has issues but is still functional
	StatusWarning Status = "WARNING"
	// StatusError indicates the component is not functioning
	StatusError Status = "ERROR"
)

// ComponentHealth represents the health status of a system component
type ComponentHealth struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Message     string    `json:"message"`
	LastChecked time.Time `json:"last_checked"`
}

// CheckFunc checks one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// HealthChecker monitors the health of the artifact store, the catalog
// database and anything else registered with it.
type HealthChecker struct {
	components map[string]*ComponentHealth
	checks     map[string]CheckFunc
	mu         sync.RWMutex
	checkFreq  time.Duration
	timeout    time.Duration
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(checkFreq time.Duration) *HealthChecker {
	if checkFreq == 0 {
		checkFreq = 30 * time.Second
	}

	return &HealthChecker{
		components: make(map[string]*ComponentHealth),
		checks:     make(map[string]CheckFunc),
		checkFreq:  checkFreq,
		timeout:    5 * time.Second,
	}
}

// Register adds a named check. Registering the same name twice replaces it.
func (hc *HealthChecker) Register(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// Start runs the checks every checkFreq until ctx is done.
func (hc *HealthChecker) Start(ctx context.Context) {
	log := logger.WithComponent("health_checker")
	log.Info().Dur("frequency", hc.checkFreq).Msg("Starting health checker")

	ticker := time.NewTicker(hc.checkFreq)
	go func() {
		defer ticker.Stop()

		hc.CheckAll(ctx)

		for {
			select {
			case <-ticker.C:
				hc.CheckAll(ctx)
			case <-ctx.Done():
				log.Info().Msg("Health checker stopped")
				return
			}
		}
	}()
}

// CheckAll runs all health checks
func (hc *HealthChecker) CheckAll(ctx context.Context) {
	hc.mu.RLock()
	checks := make(map[string]CheckFunc, len(hc.checks))
	for name, check := range hc.checks {
		checks[name] = check
	}
	hc.mu.RUnlock()

	for name, check := range checks {
		hc.check(ctx, name, check)
	}
}

func (hc *HealthChecker) check(ctx context.Context, name string, check CheckFunc) {
	log := logger.WithComponent("health_checker." + name)

	checkCtx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	health := &ComponentHealth{
		Name:        name,
		Status:      StatusOK,
		Message:     "healthy",
		LastChecked: time.Now(),
	}
	if err := check(checkCtx); err != nil {
		health.Status = StatusError
		health.Message = err.Error()
		log.Error().Err(err).Msg("Health check failed")
	} else {
		log.Debug().Msg("Health check passed")
	}

	hc.mu.Lock()
	hc.components[name] = health
	hc.mu.Unlock()
}

// GetAllHealth returns the health status of all components
func (hc *HealthChecker) GetAllHealth() []ComponentHealth {
	hc.mu.RLock()
	result := make([]ComponentHealth, 0, len(hc.components))
	for _, v := range hc.components {
		result = append(result, *v)
	}
	hc.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// GetComponentHealth returns the health status of a specific component
func (hc *HealthChecker) GetComponentHealth(name string) *ComponentHealth {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	if component, exists := hc.components[name]; exists {
		componentCopy := *component
		return &componentCopy
	}

	return nil
}

// Overall folds every component into the worst observed status.
func (hc *HealthChecker) Overall() Status {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	overall := StatusOK
	for _, c := range hc.components {
		switch c.Status {
		case StatusError:
			return StatusError
		case StatusWarning:
			overall = StatusWarning
		}
	}
	return overall
}
