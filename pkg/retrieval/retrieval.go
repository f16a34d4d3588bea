// Package retrieval answers GetResult requests against the result store.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morezero/invocation-gateway/pkg/invocation"
	"github.com/morezero/invocation-gateway/pkg/metrics"
)

const logPrefix = "retrieval:retrieval"

// ErrMissingCorrelationID is returned when GetResult is called without an id.
var ErrMissingCorrelationID = errors.New("correlationId is required")

// ResultReader is the consumer side of the result store: reads, clears and discards.
type ResultReader interface {
	Get(correlationID string, clear bool) (*invocation.Outcome, bool)
	Delete(correlationID string) bool
	Len() int
}

// GetResultInput is the input for Get.
type GetResultInput struct {
	CorrelationID string `json:"correlationId"`
	Clear         bool   `json:"clear,omitempty"`
}

// Result is the answer to a GetResult request. When Found is false the result is the structured
// not-found payload rather than an error.
type Result struct {
	CorrelationID string
	Found         bool
	Outcome       *invocation.Outcome
}

// NotFoundMessage is the error text reported for an unknown correlation id.
func NotFoundMessage(correlationID string) string {
	return fmt.Sprintf("No response found for correlation_id: %s", correlationID)
}

type notFoundJSON struct {
	CorrelationID string `json:"correlationId"`
	Error         string `json:"error"`
	NotFound      bool   `json:"notFound"`
}

// MarshalJSON emits the stored outcome, or the not-found payload.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Found || r.Outcome == nil {
		return json.Marshal(notFoundJSON{
			CorrelationID: r.CorrelationID,
			Error:         NotFoundMessage(r.CorrelationID),
			NotFound:      true,
		})
	}
	return json.Marshal(r.Outcome)
}

// UnmarshalJSON decodes either shape.
func (r *Result) UnmarshalJSON(data []byte) error {
	var shape struct {
		CorrelationID string `json:"correlationId"`
		NotFound      bool   `json:"notFound"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	if shape.NotFound {
		*r = Result{CorrelationID: shape.CorrelationID}
		return nil
	}
	var o invocation.Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return err
	}
	*r = Result{CorrelationID: o.CorrelationID, Found: true, Outcome: &o}
	return nil
}

// Service reads outcomes by correlation id.
type Service struct {
	store   ResultReader
	metrics *metrics.Metrics
}

// NewService creates a Service over store. m may be nil.
func NewService(store ResultReader, m *metrics.Metrics) *Service {
	return &Service{store: store, metrics: m}
}

// Get returns the outcome stored for input.CorrelationID, removing it when Clear is set. An unknown
// id is not an error: the Result reports Found=false.
func (s *Service) Get(_ context.Context, input *GetResultInput) (*Result, error) {
	if input == nil || input.CorrelationID == "" {
		return nil, ErrMissingCorrelationID
	}

	outcome, found := s.store.Get(input.CorrelationID, input.Clear)
	s.metrics.ResultLookup(found)
	if !found {
		slog.Debug(fmt.Sprintf("%s - no result for correlation_id=%s", logPrefix, input.CorrelationID))
		return &Result{CorrelationID: input.CorrelationID}, nil
	}

	if input.Clear {
		s.metrics.SetStoreEntries(s.store.Len())
		slog.Debug(fmt.Sprintf("%s - returned and cleared correlation_id=%s", logPrefix, input.CorrelationID))
	}
	return &Result{CorrelationID: input.CorrelationID, Found: true, Outcome: outcome}, nil
}

// Discard drops the outcome stored for correlationID without returning it. The Result reports
// whether anything was stored; an unknown id is not an error.
func (s *Service) Discard(_ context.Context, correlationID string) (*Result, error) {
	if correlationID == "" {
		return nil, ErrMissingCorrelationID
	}
	if !s.store.Delete(correlationID) {
		return &Result{CorrelationID: correlationID}, nil
	}
	s.metrics.SetStoreEntries(s.store.Len())
	slog.Debug(fmt.Sprintf("%s - discarded correlation_id=%s", logPrefix, correlationID))
	return &Result{CorrelationID: correlationID, Found: true}, nil
}
