// Package nats exposes the gateway's COMMS connection as a provider for publish and request/reply.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/invocation-gateway/pkg/commsutil"
	"github.com/morezero/invocation-gateway/pkg/provider"
)

const (
	Name    = "nats"
	Version = "1.0.0"

	defaultRequestTimeout = 5 * time.Second
)

// Client wraps the shared connection for one invocation.
type Client struct {
	nc *comms.Conn
}

// Close is a no-op; the connection belongs to the gateway.
func (c *Client) Close() error { return nil }

// New returns the nats provider bound to nc.
func New(nc *comms.Conn) *provider.Provider {
	return &provider.Provider{
		Name:        Name,
		Version:     Version,
		Description: "Publish and request/reply on COMMS subjects",
		New: func(_ context.Context, _ provider.Config) (provider.Client, error) {
			if nc == nil || nc.IsClosed() {
				return nil, errors.New("nats: connection not available")
			}
			return &Client{nc: nc}, nil
		},
		Operations: map[string]provider.Operation{
			"publish": provider.Bind(publish),
			"request": provider.Bind(request),
		},
	}
}

// PublishInput is the publish request. Data is sent as JSON.
type PublishInput struct {
	Subject string      `json:"subject"`
	Data    interface{} `json:"data,omitempty"`
}

// PublishOutput is the publish response.
type PublishOutput struct {
	Subject string `json:"subject"`
	Bytes   int    `json:"bytes"`
}

func publish(_ context.Context, c *Client, in PublishInput) (interface{}, error) {
	if in.Subject == "" {
		return nil, errors.New("nats: subject is required")
	}
	data, err := commsutil.EncodePayload(in.Data)
	if err != nil {
		return nil, fmt.Errorf("nats: encode data: %w", err)
	}
	if err := c.nc.Publish(in.Subject, data); err != nil {
		return nil, err
	}
	return PublishOutput{Subject: in.Subject, Bytes: len(data)}, nil
}

// RequestInput is the request/reply request.
type RequestInput struct {
	Subject   string      `json:"subject"`
	Data      interface{} `json:"data,omitempty"`
	TimeoutMs int         `json:"timeoutMs,omitempty"`
}

// RequestOutput carries the reply, decoded as JSON when possible, otherwise as a string.
type RequestOutput struct {
	Subject string      `json:"subject"`
	Reply   interface{} `json:"reply"`
}

func request(ctx context.Context, c *Client, in RequestInput) (interface{}, error) {
	if in.Subject == "" {
		return nil, errors.New("nats: subject is required")
	}
	data, err := commsutil.EncodePayload(in.Data)
	if err != nil {
		return nil, fmt.Errorf("nats: encode data: %w", err)
	}

	timeout := defaultRequestTimeout
	if in.TimeoutMs > 0 {
		timeout = time.Duration(in.TimeoutMs) * time.Millisecond
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(reqCtx, in.Subject, data)
	if err != nil {
		return nil, err
	}

	var reply interface{}
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		reply = string(msg.Data)
	}
	return RequestOutput{Subject: in.Subject, Reply: reply}, nil
}
