// Package tenant implements gateway.TenantManager against the tenant
// authority's HTTP API: an independent token check beyond the claims
// signature TokenLib already verified, so a tenant can revoke a still
// unexpired token.
package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"

	"github.com/open-collab/gateway/internal/v1/metrics"
)

// Client satisfies gateway.TenantManager.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	cb      *gobreaker.CircuitBreaker
}

// NewClient builds a Client against addr, which may be a bare "host:port"
// (the format TENANT_MANAGER_ADDR validates against) or a full URL; a bare
// host:port is assumed plaintext HTTP.
func NewClient(addr string) *Client {
	baseURL := addr
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 50 * time.Millisecond
	rc.RetryWaitMax = 500 * time.Millisecond
	rc.Logger = nil

	st := gobreaker.Settings{
		Name:        "tenant-manager",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("tenant-manager").Set(stateVal)
		},
	}

	return &Client{http: rc, baseURL: baseURL, cb: gobreaker.NewCircuitBreaker(st)}
}

// StatusError is returned by VerifyToken when the tenant authority itself
// rejects a token, carrying the upstream HTTP status code so a caller can
// propagate it rather than assume a fixed one.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string { return e.Message }

// StatusCode satisfies gateway.StatusCoder.
func (e *StatusError) StatusCode() int { return e.Status }

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyErrorResponse struct {
	Message string `json:"message"`
}

// VerifyToken asks the tenant authority whether token is currently valid
// for tenantID. A 2xx response means valid; 401/403 means the tenant
// itself rejected it (distinct from a transport/internal fault).
func (c *Client) VerifyToken(ctx context.Context, tenantID, token string) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.doVerify(ctx, tenantID, token)
	})
	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("tenant-manager").Inc()
		return fmt.Errorf("tenant manager circuit breaker open")
	}
	return err
}

func (c *Client) doVerify(ctx context.Context, tenantID, token string) error {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return fmt.Errorf("marshal verify request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/tenants/%s/verify", c.baseURL, tenantID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call tenant manager: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed verifyErrorResponse
	_ = json.Unmarshal(raw, &parsed)
	if parsed.Message == "" {
		parsed.Message = fmt.Sprintf("tenant manager returned status %d", resp.StatusCode)
	}
	return &StatusError{Status: resp.StatusCode, Message: parsed.Message}
}
