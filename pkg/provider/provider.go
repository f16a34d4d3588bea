// Package provider implements the capability-indexed catalog that maps (provider, operation) names
// to typed operations, resolved at request time.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Config is the per-call input for building a provider client.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Client is a provider handle built for a single invocation.
type Client interface {
	Close() error
}

// Factory builds a fresh client. Construction may fail.
type Factory func(ctx context.Context, cfg Config) (Client, error)

// Provider is one registered backend and the operations it exposes.
type Provider struct {
	Name        string
	Version     string
	Description string
	New         Factory
	Operations  map[string]Operation
}

// OperationNames returns the sorted operation names.
func (p *Provider) OperationNames() []string {
	names := make([]string, 0, len(p.Operations))
	for name := range p.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operation is a bound, typed provider operation.
type Operation struct {
	decode func(params map[string]interface{}) (interface{}, error)
	call   func(ctx context.Context, client Client, input interface{}) (interface{}, error)
}

// Decode converts raw params into the operation's input type.
func (o Operation) Decode(params map[string]interface{}) (interface{}, error) {
	return o.decode(params)
}

// Call runs the operation on client with an input previously returned by Decode.
func (o Operation) Call(ctx context.Context, client Client, input interface{}) (interface{}, error) {
	return o.call(ctx, client, input)
}

// Bind turns a typed function into an Operation. Params are decoded into P with unknown fields
// rejected; a client that is not a C is reported as ErrClientMismatch.
func Bind[C Client, P any](fn func(ctx context.Context, client C, in P) (interface{}, error)) Operation {
	return Operation{
		decode: func(params map[string]interface{}) (interface{}, error) {
			var in P
			if len(params) == 0 {
				return in, nil
			}
			data, err := json.Marshal(params)
			if err != nil {
				return nil, err
			}
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.DisallowUnknownFields()
			dec.UseNumber()
			if err := dec.Decode(&in); err != nil {
				return nil, err
			}
			return in, nil
		},
		call: func(ctx context.Context, client Client, input interface{}) (interface{}, error) {
			c, ok := client.(C)
			if !ok {
				return nil, fmt.Errorf("%w: got %T", ErrClientMismatch, client)
			}
			in, ok := input.(P)
			if !ok {
				return nil, fmt.Errorf("provider: input of type %T does not match operation", input)
			}
			return fn(ctx, c, in)
		},
	}
}

// NopCloser adapts a value without resources into a Client.
type NopCloser struct{}

// Close does nothing.
func (NopCloser) Close() error { return nil }
