package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/morezero/invocation-gateway/pkg/invocation"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	err := pub.PublishOutcome(context.Background(), &OutcomeEvent{
		Client:        "storage",
		Method:        "listBuckets",
		CorrelationID: "abc",
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var captured *OutcomeEvent

	pub := NewCallbackPublisher(func(_ context.Context, event *OutcomeEvent) error {
		captured = event
		return nil
	})

	event := &OutcomeEvent{
		Client:        "storage",
		Method:        "listBuckets",
		CorrelationID: "abc",
		Response:      map[string]interface{}{"Buckets": []interface{}{}},
	}

	if err := pub.PublishOutcome(context.Background(), event); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if captured == nil {
		t.Fatal("expected callback to be called")
	}
	if captured.CorrelationID != "abc" {
		t.Errorf("expected correlation id abc, got %s", captured.CorrelationID)
	}
}

func TestNewOutcomeEvent(t *testing.T) {
	req := &invocation.Request{Client: "storage", Method: "listBuckets", CorrelationID: "abc"}

	ok := NewOutcomeEvent(invocation.Succeeded(req, map[string]interface{}{"Buckets": []interface{}{}}))
	if ok.HasError || ok.Error != "" {
		t.Errorf("events:publisher_test - success event carries error: %+v", ok)
	}
	if ok.Client != "storage" || ok.Method != "listBuckets" || ok.CorrelationID != "abc" {
		t.Errorf("events:publisher_test - identity not copied: %+v", ok)
	}

	failed := NewOutcomeEvent(invocation.Failed(req, errors.New("Test error")))
	if !failed.HasError || failed.Error != "Test error" {
		t.Errorf("events:publisher_test - failure event = %+v", failed)
	}
	if failed.Response != nil {
		t.Errorf("events:publisher_test - failure event has response")
	}
}

func TestOutcomeEvent_MarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		event OutcomeEvent
		want  string
	}{
		{
			name:  "success",
			event: OutcomeEvent{Client: "storage", Method: "listBuckets", CorrelationID: "abc", Response: map[string]interface{}{"Buckets": []interface{}{}}},
			want:  `{"client":"storage","method":"listBuckets","correlationId":"abc","response":{"Buckets":[]}}`,
		},
		{
			name:  "null response",
			event: OutcomeEvent{Client: "nats", Method: "publish", CorrelationID: "n1"},
			want:  `{"client":"nats","method":"publish","correlationId":"n1","response":null}`,
		},
		{
			name:  "failure",
			event: OutcomeEvent{Client: "storage", Method: "listBuckets", CorrelationID: "abc", Error: "Test error", HasError: true},
			want:  `{"client":"storage","method":"listBuckets","correlationId":"abc","error":"Test error","hasError":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("events:publisher_test - marshal failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("events:publisher_test - got %s, want %s", got, tt.want)
			}
		})
	}
}
