package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pressline.sync/internal/core/domain"
	"pressline.sync/internal/core/ports"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Latency   string       `json:"latency,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version"`
	CheckedAt  time.Time                  `json:"checked_at"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthService reports on the mirror's dependencies. The push channel and
// the poll backend are the load-bearing pair: losing the push channel alone
// only degrades latency, since polling bridges the gap.
type HealthService struct {
	connState func() domain.ConnectionState
	snap      ports.Snapshotter
	db        *gorm.DB      // nil when the archive is disabled
	redis     *redis.Client // nil when redis fanout is disabled
	version   string
}

func NewHealthService(connState func() domain.ConnectionState, snap ports.Snapshotter, db *gorm.DB, redisClient *redis.Client, version string) *HealthService {
	if version == "" {
		version = "0.0.1"
	}
	return &HealthService{
		connState: connState,
		snap:      snap,
		db:        db,
		redis:     redisClient,
		version:   version,
	}
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:     HealthStatusHealthy,
		Version:    s.version,
		CheckedAt:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}

	push := s.checkPushChannel()
	report.Components["push"] = push

	backend := s.checkBackend(ctx)
	report.Components["backend"] = backend
	if backend.Status != HealthStatusHealthy {
		report.Status = HealthStatusUnhealthy
	} else if push.Status != HealthStatusHealthy {
		// Poll path still converges; stale-but-correct.
		report.Status = HealthStatusDegraded
	}

	if s.db != nil {
		dbHealth := s.checkDatabase(ctx)
		report.Components["archive"] = dbHealth
		if dbHealth.Status != HealthStatusHealthy && report.Status == HealthStatusHealthy {
			report.Status = HealthStatusDegraded
		}
	}

	if s.redis != nil {
		redisHealth := s.checkRedis(ctx)
		report.Components["redis"] = redisHealth
		if redisHealth.Status != HealthStatusHealthy && report.Status == HealthStatusHealthy {
			report.Status = HealthStatusDegraded
		}
	}

	return report
}

// SimpleHealthCheck returns a terse status string and an HTTP status code
// for probe endpoints.
func (s *HealthService) SimpleHealthCheck(ctx context.Context) (string, int) {
	report := s.CheckHealth(ctx)
	switch report.Status {
	case HealthStatusUnhealthy:
		return "unhealthy", http.StatusServiceUnavailable
	case HealthStatusDegraded:
		return "degraded", http.StatusOK
	default:
		return "ok", http.StatusOK
	}
}

func (s *HealthService) checkPushChannel() ComponentHealth {
	state := s.connState()
	h := ComponentHealth{
		Message:   string(state),
		CheckedAt: time.Now(),
	}
	switch state {
	case domain.ConnConnected:
		h.Status = HealthStatusHealthy
	case domain.ConnConnecting, domain.ConnReconnecting:
		h.Status = HealthStatusDegraded
	default:
		h.Status = HealthStatusUnhealthy
	}
	return h
}

func (s *HealthService) checkBackend(ctx context.Context) ComponentHealth {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.snap.FetchStats(checkCtx)
	h := ComponentHealth{
		Latency:   time.Since(start).String(),
		CheckedAt: time.Now(),
	}
	if err != nil {
		h.Status = HealthStatusUnhealthy
		h.Message = fmt.Sprintf("stats fetch failed: %v", err)
		return h
	}
	h.Status = HealthStatusHealthy
	return h
}

func (s *HealthService) checkDatabase(ctx context.Context) ComponentHealth {
	start := time.Now()
	h := ComponentHealth{CheckedAt: time.Now()}

	sqlDB, err := s.db.DB()
	if err != nil {
		h.Status = HealthStatusUnhealthy
		h.Message = fmt.Sprintf("db handle unavailable: %v", err)
		return h
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		h.Status = HealthStatusUnhealthy
		h.Message = fmt.Sprintf("ping failed: %v", err)
		return h
	}
	h.Status = HealthStatusHealthy
	h.Latency = time.Since(start).String()
	return h
}

func (s *HealthService) checkRedis(ctx context.Context) ComponentHealth {
	start := time.Now()
	h := ComponentHealth{CheckedAt: time.Now()}

	if err := s.redis.Ping(ctx).Err(); err != nil {
		h.Status = HealthStatusUnhealthy
		h.Message = fmt.Sprintf("ping failed: %v", err)
		return h
	}
	h.Status = HealthStatusHealthy
	h.Latency = time.Since(start).String()
	return h
}
