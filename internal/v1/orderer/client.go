package orderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/open-collab/gateway/internal/v1/logging"
	"github.com/open-collab/gateway/internal/v1/metrics"
	"github.com/open-collab/gateway/internal/v1/sanitize"
)

// grpcConn is the subset of *grpc.ClientConn the Client needs, narrowed so
// tests can substitute a fake without dialing a real server.
type grpcConn interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
	NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error)
}

// Client is the document-scoped handle to the orderer backend, shared by
// every writer client currently attached to the same tenant/document.
// It satisfies gateway.Orderer.
type Client struct {
	conn       grpcConn
	cb         *gobreaker.CircuitBreaker
	tenantID   string
	documentID string

	mu                   sync.RWMutex
	maxMessageSize       int
	serviceConfiguration map[string]any
}

func newClient(conn grpcConn, tenantID, documentID string) *Client {
	name := fmt.Sprintf("orderer:%s/%s", tenantID, documentID)
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
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
			metrics.CircuitBreakerState.WithLabelValues("orderer").Set(stateVal)
		},
	}
	return &Client{
		conn:       conn,
		cb:         gobreaker.NewCircuitBreaker(st),
		tenantID:   tenantID,
		documentID: documentID,
	}
}

// Connect registers clientID with the backend and, best-effort, opens a
// server-streaming watch for asynchronous backend faults affecting it.
// onError fires at most once, the first time that stream yields a fault
// or closes unexpectedly.
func (c *Client) Connect(ctx context.Context, clientID string, onError func(error)) error {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		req := &connectRequest{TenantID: c.tenantID, DocumentID: c.documentID, ClientID: clientID}
		reply := &connectResponse{}
		if err := c.conn.Invoke(ctx, methodConnect, req, reply, grpc.CallContentSubtype(codecName)); err != nil {
			return nil, err
		}
		return reply, nil
	})
	if err != nil {
		return wrapBreakerErr(err)
	}

	cr := resp.(*connectResponse)
	c.mu.Lock()
	c.maxMessageSize = cr.MaxMessageSize
	c.serviceConfiguration = cr.ServiceConfiguration
	c.mu.Unlock()

	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: watchFaultsStreamName, ServerStreams: true}, methodWatchFaults, grpc.CallContentSubtype(codecName))
	if err != nil {
		logging.Warn(ctx, "orderer fault watch unavailable, async faults will go unreported")
		return nil
	}
	if err := stream.SendMsg(&watchFaultsRequest{TenantID: c.tenantID, DocumentID: c.documentID, ClientID: clientID}); err != nil {
		return nil
	}
	if err := stream.CloseSend(); err != nil {
		return nil
	}
	go watchFaults(stream, onError)
	return nil
}

func watchFaults(stream grpc.ClientStream, onError func(error)) {
	var msg faultMessage
	err := stream.RecvMsg(&msg)
	switch {
	case err == nil:
		onError(errors.New(msg.Reason))
	case errors.Is(err, io.EOF):
		// Backend closed the watch cleanly; not a fault.
	default:
		onError(err)
	}
}

// Order forwards a batch of sanitized ops to the backend for total
// ordering. Callers treat this as fire-and-forget.
func (c *Client) Order(ctx context.Context, ops []sanitize.Op) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		req := &orderRequest{TenantID: c.tenantID, DocumentID: c.documentID, Ops: ops}
		reply := &orderResponse{}
		return reply, c.conn.Invoke(ctx, methodOrder, req, reply, grpc.CallContentSubtype(codecName))
	})
	if err != nil {
		metrics.OrdererOpsSubmitted.WithLabelValues("error").Inc()
		return wrapBreakerErr(err)
	}
	metrics.OrdererOpsSubmitted.WithLabelValues("ok").Inc()
	return nil
}

// Disconnect tells the backend clientID is gone. It must be idempotent:
// a second call for an already-disconnected client is not an error from
// the gateway's perspective.
func (c *Client) Disconnect(ctx context.Context, clientID string) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		req := &disconnectRequest{TenantID: c.tenantID, DocumentID: c.documentID, ClientID: clientID}
		reply := &disconnectResponse{}
		return reply, c.conn.Invoke(ctx, methodDisconnect, req, reply, grpc.CallContentSubtype(codecName))
	})
	if err != nil {
		return wrapBreakerErr(err)
	}
	return nil
}

func (c *Client) MaxMessageSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxMessageSize
}

func (c *Client) ServiceConfiguration() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serviceConfiguration
}

func wrapBreakerErr(err error) error {
	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("orderer").Inc()
		return status.Error(codes.Unavailable, "orderer circuit breaker open")
	}
	return err
}
