// Package registry implements gateway.ClientRegistry against Redis: the
// durable, cross-replica record of which clients are attached to which
// document, so a client connected through one gateway replica is visible
// to clients connected through another.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/open-collab/gateway/internal/v1/gateway"
	"github.com/open-collab/gateway/internal/v1/metrics"
)

// Store satisfies gateway.ClientRegistry using one Redis hash per document,
// keyed "registry:{tenantId}/{documentId}", with clientId as the hash field
// and a JSON-encoded gateway.ClientDescriptor as the value.
type Store struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewStore wraps an already-connected Redis client.
func NewStore(client *redis.Client) *Store {
	st := gobreaker.Settings{
		Name:        "client-registry",
		MaxRequests: 5,
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
			metrics.CircuitBreakerState.WithLabelValues("client-registry").Set(stateVal)
		},
	}
	return &Store{client: client, cb: gobreaker.NewCircuitBreaker(st)}
}

func key(tenantID, documentID string) string {
	return fmt.Sprintf("registry:%s/%s", tenantID, documentID)
}

// GetClients returns every client currently registered for the document,
// across every replica.
func (s *Store) GetClients(ctx context.Context, tenantID, documentID string) ([]gateway.ClientDescriptor, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.HGetAll(ctx, key(tenantID, documentID)).Result()
	})
	if err != nil {
		return nil, wrapBreakerErr(err)
	}

	fields := res.(map[string]string)
	out := make([]gateway.ClientDescriptor, 0, len(fields))
	for clientID, raw := range fields {
		var d gateway.ClientDescriptor
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("decode client descriptor for %s: %w", clientID, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// AddClient registers client as present on the document, overwriting any
// existing entry for the same clientId (e.g. a reconnect).
func (s *Store) AddClient(ctx context.Context, tenantID, documentID string, client gateway.ClientDescriptor) error {
	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("encode client descriptor: %w", err)
	}

	_, err = s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.HSet(ctx, key(tenantID, documentID), client.ClientID, data).Err()
	})
	if err != nil {
		return wrapBreakerErr(err)
	}
	return nil
}

// RemoveClient drops clientId from the document's registry. Removing a
// clientId that isn't present is not an error.
func (s *Store) RemoveClient(ctx context.Context, tenantID, documentID, clientID string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.HDel(ctx, key(tenantID, documentID), clientID).Err()
	})
	if err != nil {
		return wrapBreakerErr(err)
	}
	return nil
}

func wrapBreakerErr(err error) error {
	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("client-registry").Inc()
		return fmt.Errorf("client registry circuit breaker open")
	}
	return err
}
