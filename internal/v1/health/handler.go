package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/open-collab/gateway/internal/v1/bus"
	"github.com/open-collab/gateway/internal/v1/logging"
	"go.uber.org/zap"
)

// OrdererChecker checks the health of the orderer backend
type OrdererChecker interface {
	Check(ctx context.Context, addr string) string
}

// DefaultOrdererChecker is the default implementation of OrdererChecker
type DefaultOrdererChecker struct{}

// Check verifies gRPC connectivity to the orderer using the standard health check protocol
func (c *DefaultOrdererChecker) Check(ctx context.Context, addr string) string {
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		logging.Error(ctx, "Failed to connect to orderer for health check", zap.Error(err), zap.String("addr", addr))
		return "unhealthy"
	}
	defer func() { _ = conn.Close() }()

	healthClient := healthpb.NewHealthClient(conn)

	resp, err := healthClient.Check(ctx, &healthpb.HealthCheckRequest{
		Service: "", // Empty string checks overall server health
	})
	if err != nil {
		logging.Error(ctx, "Orderer health check RPC failed", zap.Error(err))
		return "unhealthy"
	}

	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		logging.Warn(ctx, "Orderer is not serving", zap.String("status", resp.Status.String()))
		return "unhealthy"
	}

	return "healthy"
}

// TenantChecker checks the health of the tenant manager.
type TenantChecker interface {
	Check(ctx context.Context, addr string) string
}

// DefaultTenantChecker is the default implementation of TenantChecker.
type DefaultTenantChecker struct{}

// Check verifies HTTP connectivity to the tenant manager's own health
// endpoint.
func (c *DefaultTenantChecker) Check(ctx context.Context, addr string) string {
	url := addr
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}
	url = strings.TrimSuffix(url, "/") + "/healthz"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logging.Error(ctx, "Failed to build tenant manager health check request", zap.Error(err))
		return "unhealthy"
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logging.Error(ctx, "Tenant manager health check failed", zap.Error(err), zap.String("addr", addr))
		return "unhealthy"
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.Warn(ctx, "Tenant manager is not healthy", zap.Int("status", resp.StatusCode))
		return "unhealthy"
	}
	return "healthy"
}

// Handler manages health check endpoints
type Handler struct {
	redisService   *bus.Service
	ordererAddr    string
	ordererEnabled bool
	ordererChecker OrdererChecker
	tenantAddr     string
	tenantEnabled  bool
	tenantChecker  TenantChecker
}

// NewHandler creates a new health check handler
func NewHandler(redisService *bus.Service) *Handler {
	ordererAddr := os.Getenv("ORDERER_ADDR")
	if ordererAddr == "" {
		ordererAddr = "localhost:50051" // Default for local development
	}

	ordererHealthCheck := os.Getenv("ORDERER_HEALTH_CHECK_ENABLED")
	ordererEnabled := ordererHealthCheck != "false" // Enabled by default

	tenantAddr := os.Getenv("TENANT_MANAGER_ADDR")
	tenantHealthCheck := os.Getenv("TENANT_HEALTH_CHECK_ENABLED")
	tenantEnabled := tenantAddr != "" && tenantHealthCheck != "false"

	return &Handler{
		redisService:   redisService,
		ordererAddr:    ordererAddr,
		ordererEnabled: ordererEnabled,
		ordererChecker: &DefaultOrdererChecker{},
		tenantAddr:     tenantAddr,
		tenantEnabled:  tenantEnabled,
		tenantChecker:  &DefaultTenantChecker{},
	}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 only if all critical dependencies are healthy
// Returns 503 if any dependency is unhealthy
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	// Check Redis connectivity
	redisStatus := h.checkRedis(ctx)
	checks["redis"] = redisStatus
	if redisStatus != "healthy" {
		allHealthy = false
	}

	// Check orderer connectivity (if enabled)
	if h.ordererEnabled {
		ordererStatus := h.checkOrderer(ctx)
		checks["orderer"] = ordererStatus
		if ordererStatus != "healthy" {
			allHealthy = false
		}
	}

	// Check tenant manager connectivity (if enabled)
	if h.tenantEnabled {
		tenantStatus := h.checkTenantManager(ctx)
		checks["tenant_manager"] = tenantStatus
		if tenantStatus != "healthy" {
			allHealthy = false
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

// checkRedis verifies Redis connectivity using PING command
func (h *Handler) checkRedis(ctx context.Context) string {
	// If Redis is not enabled (single-instance mode), consider it healthy
	if h.redisService == nil {
		return "healthy"
	}

	// Try to ping Redis
	if err := h.redisService.Ping(ctx); err != nil {
		logging.Error(ctx, "Redis health check failed", zap.Error(err))
		return "unhealthy"
	}

	return "healthy"
}

// checkOrderer verifies gRPC connectivity to the orderer using the standard health check protocol
func (h *Handler) checkOrderer(ctx context.Context) string {
	if h.ordererChecker == nil {
		// Fallback for tests that construct the struct directly without a checker.
		return "unhealthy"
	}
	return h.ordererChecker.Check(ctx, h.ordererAddr)
}

// checkTenantManager verifies HTTP connectivity to the tenant manager.
func (h *Handler) checkTenantManager(ctx context.Context) string {
	if h.tenantChecker == nil {
		return "unhealthy"
	}
	return h.tenantChecker.Check(ctx, h.tenantAddr)
}

// HealthCheckResponse is a generic health check response for backward compatibility
type HealthCheckResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for better formatting
func (r ReadinessResponse) MarshalJSON() ([]byte, error) {
	type Alias ReadinessResponse
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(&r),
	})
}
