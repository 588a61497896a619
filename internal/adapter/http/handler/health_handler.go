package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"chainpay-reconciler/internal/core/ports"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 3 * time.Second

type dependencyHealth struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck pings every dependency in parallel, each bounded by its own
// timeout. Any failure turns the whole report degraded with a 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			mu      sync.Mutex
			deps    = make(map[string]dependencyHealth, len(checkers))
			healthy = true
		)

		var g errgroup.Group
		for _, checker := range checkers {
			g.Go(func() error {
				ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
				defer cancel()

				start := time.Now()
				err := checker.Ping(ctx)
				dh := dependencyHealth{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
				if err != nil {
					dh.Status, dh.Error = "unhealthy", err.Error()
				}

				mu.Lock()
				defer mu.Unlock()
				deps[checker.Name()] = dh
				if err != nil {
					healthy = false
				}
				return nil
			})
		}
		_ = g.Wait()

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
			"checked_at":   formatTime(time.Now()),
		})
	}
}
