// Package events defines the outcome notification and the publishers that deliver it.
package events

import (
	"encoding/json"

	"github.com/morezero/invocation-gateway/pkg/invocation"
)

// OutcomeEvent is emitted once per completed sync invocation, after the outcome is stored.
type OutcomeEvent struct {
	Client        string      `json:"client"`
	Method        string      `json:"method"`
	CorrelationID string      `json:"correlationId"`
	Response      interface{} `json:"response,omitempty"`
	Error         string      `json:"error,omitempty"`
	HasError      bool        `json:"hasError,omitempty"`
}

// NewOutcomeEvent builds the notification for a stored outcome.
func NewOutcomeEvent(o *invocation.Outcome) *OutcomeEvent {
	if o.HasError {
		return &OutcomeEvent{
			Client:        o.Client,
			Method:        o.Method,
			CorrelationID: o.CorrelationID,
			Error:         o.Err,
			HasError:      true,
		}
	}
	return &OutcomeEvent{
		Client:        o.Client,
		Method:        o.Method,
		CorrelationID: o.CorrelationID,
		Response:      o.Response,
	}
}

// MarshalJSON keeps "response" on success even when the payload is null.
func (e OutcomeEvent) MarshalJSON() ([]byte, error) {
	type alias OutcomeEvent
	if e.HasError {
		return json.Marshal(alias(e))
	}
	return json.Marshal(struct {
		Client        string      `json:"client"`
		Method        string      `json:"method"`
		CorrelationID string      `json:"correlationId"`
		Response      interface{} `json:"response"`
	}{e.Client, e.Method, e.CorrelationID, e.Response})
}
