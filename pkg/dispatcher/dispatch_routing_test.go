package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/morezero/invocation-gateway/pkg/invocation"
	"github.com/morezero/invocation-gateway/pkg/invoker"
	"github.com/morezero/invocation-gateway/pkg/provider"
	"github.com/morezero/invocation-gateway/pkg/retrieval"
)

const routingPrefix = "dispatcher:dispatch_routing_test"

type fakeSubmitter struct {
	got *invocation.Request
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, req *invocation.Request) (string, error) {
	f.got = req
	if f.err != nil {
		return "", f.err
	}
	if req.CorrelationID != "" {
		return req.CorrelationID, nil
	}
	return "generated", nil
}

type fakeResults struct {
	stored map[string]*invocation.Outcome
}

func (f *fakeResults) Get(_ context.Context, in *retrieval.GetResultInput) (*retrieval.Result, error) {
	if in.CorrelationID == "" {
		return nil, retrieval.ErrMissingCorrelationID
	}
	o, ok := f.stored[in.CorrelationID]
	if !ok {
		return &retrieval.Result{CorrelationID: in.CorrelationID}, nil
	}
	if in.Clear {
		delete(f.stored, in.CorrelationID)
	}
	return &retrieval.Result{CorrelationID: in.CorrelationID, Found: true, Outcome: o}, nil
}

type fakeLister []provider.Descriptor

func (f fakeLister) Describe() []provider.Descriptor { return f }

func newTestDispatcher() (*Dispatcher, *fakeSubmitter, *fakeResults) {
	sub := &fakeSubmitter{}
	req := &invocation.Request{Client: "storage", Method: "listBuckets", CorrelationID: "abc"}
	res := &fakeResults{stored: map[string]*invocation.Outcome{
		"abc": invocation.Succeeded(req, map[string]interface{}{"Buckets": []interface{}{}}),
	}}
	lister := fakeLister{{Name: "storage", Version: "1.0.0", Operations: []string{"listBuckets"}}}
	d := NewDispatcher(Params{
		Invoker:   sub,
		Results:   res,
		Providers: lister,
		Health: func(context.Context) interface{} {
			return map[string]interface{}{"status": "healthy"}
		},
	})
	return d, sub, res
}

// roundTrip marshals the response the way the transport does and decodes it generically.
func roundTrip(t *testing.T, resp *GatewayResponse) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("%s - marshal failed: %v", routingPrefix, err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("%s - unmarshal failed: %v", routingPrefix, err)
	}
	return out
}

// TestDispatch_UnknownMethod verifies that unknown methods return METHOD_NOT_FOUND.
func TestDispatch_UnknownMethod(t *testing.T) {
	// Dispatcher with no dependencies - only testing the unknown method branch
	disp := NewDispatcher(Params{})

	req := &GatewayRequest{
		ID:     "test-1",
		Method: "nonexistent",
		Params: json.RawMessage(`{}`),
	}

	resp := disp.Dispatch(context.Background(), req)

	if resp.Ok {
		t.Errorf("%s - expected Ok=false for unknown method", routingPrefix)
	}
	if resp.ID != "test-1" {
		t.Errorf("%s - expected ID=test-1, got %s", routingPrefix, resp.ID)
	}
	if resp.Error == nil {
		t.Fatalf("%s - expected error, got nil", routingPrefix)
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("%s - expected METHOD_NOT_FOUND, got %s", routingPrefix, resp.Error.Code)
	}
	if resp.Error.Retryable {
		t.Errorf("%s - METHOD_NOT_FOUND should not be retryable", routingPrefix)
	}
}

func TestDispatch_UnknownMethodPreservesRequestID(t *testing.T) {
	disp := NewDispatcher(Params{})

	for _, id := range []string{"req-1", "req-2", "unique-abc-123", ""} {
		resp := disp.Dispatch(context.Background(), &GatewayRequest{
			ID:     id,
			Method: "unknown",
			Params: json.RawMessage(`{}`),
		})
		if resp.ID != id {
			t.Errorf("%s - expected ID=%q, got %q", routingPrefix, id, resp.ID)
		}
	}
}

func TestDispatch_Invoke(t *testing.T) {
	disp, sub, _ := newTestDispatcher()

	resp := disp.Dispatch(context.Background(), &GatewayRequest{
		ID:     "r1",
		Method: "invoke",
		Params: json.RawMessage(`{"client":"storage","method":"listBuckets","sync":true,"correlationId":"abc","params":{"Bucket":"b"}}`),
	})

	if !resp.Ok {
		t.Fatalf("%s - expected ok, got %+v", routingPrefix, resp.Error)
	}
	accepted, ok := resp.Result.(*InvokeAccepted)
	if !ok {
		t.Fatalf("%s - unexpected result type %T", routingPrefix, resp.Result)
	}
	if accepted.CorrelationID != "abc" || !accepted.Accepted {
		t.Errorf("%s - unexpected result %+v", routingPrefix, accepted)
	}
	if sub.got == nil || !sub.got.Sync || sub.got.Client != "storage" || sub.got.Params["Bucket"] != "b" {
		t.Errorf("%s - submitted request not decoded: %+v", routingPrefix, sub.got)
	}
}

func TestDispatch_InvokeInjectsContext(t *testing.T) {
	disp, sub, _ := newTestDispatcher()

	resp := disp.Dispatch(context.Background(), &GatewayRequest{
		ID:     "r1",
		Method: "invoke",
		Params: json.RawMessage(`{"client":"storage","method":"listBuckets"}`),
		Ctx:    &InvocationContext{CorrelationID: "from-ctx", Region: "eu-west-1"},
	})

	if !resp.Ok {
		t.Fatalf("%s - expected ok, got %+v", routingPrefix, resp.Error)
	}
	if sub.got.CorrelationID != "from-ctx" || sub.got.Region != "eu-west-1" {
		t.Errorf("%s - context not injected: %+v", routingPrefix, sub.got)
	}

	// Explicit params win over ctx.
	disp.Dispatch(context.Background(), &GatewayRequest{
		ID:     "r2",
		Method: "invoke",
		Params: json.RawMessage(`{"client":"storage","method":"listBuckets","correlationId":"explicit","region":"us-west-2"}`),
		Ctx:    &InvocationContext{CorrelationID: "from-ctx", Region: "eu-west-1"},
	})
	if sub.got.CorrelationID != "explicit" || sub.got.Region != "us-west-2" {
		t.Errorf("%s - params overridden by ctx: %+v", routingPrefix, sub.got)
	}
}

func TestDispatch_InvokeErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"invalid", fmt.Errorf("%w: client is required", invoker.ErrInvalidRequest), CodeInvalidArgument, false},
		{"closed", invoker.ErrClosed, CodeUnavailable, true},
		{"other", errors.New("boom"), CodeInternal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disp, sub, _ := newTestDispatcher()
			sub.err = tt.err

			resp := disp.Dispatch(context.Background(), &GatewayRequest{
				ID:     "r1",
				Method: "invoke",
				Params: json.RawMessage(`{"method":"listBuckets"}`),
			})
			if resp.Ok || resp.Error == nil {
				t.Fatalf("%s - expected error response", routingPrefix)
			}
			if resp.Error.Code != tt.code || resp.Error.Retryable != tt.retryable {
				t.Errorf("%s - got %+v, want code %s retryable %t", routingPrefix, resp.Error, tt.code, tt.retryable)
			}
		})
	}
}

func TestDispatch_InvalidParams_ReturnsINVALID_ARGUMENT(t *testing.T) {
	disp, _, _ := newTestDispatcher()

	for _, method := range []string{"invoke", "getResult"} {
		for _, params := range []string{`not-json`, `[1,2]`, ``} {
			resp := disp.Dispatch(context.Background(), &GatewayRequest{
				ID:     "bad",
				Method: method,
				Params: json.RawMessage(params),
			})
			if resp.Ok || resp.Error == nil || resp.Error.Code != CodeInvalidArgument {
				t.Errorf("%s - %s with %q: expected INVALID_ARGUMENT, got %+v", routingPrefix, method, params, resp.Error)
			}
		}
	}
}

func TestDispatch_GetResult(t *testing.T) {
	disp, _, _ := newTestDispatcher()

	resp := disp.Dispatch(context.Background(), &GatewayRequest{
		ID:     "g1",
		Method: "getResult",
		Params: json.RawMessage(`{"correlationId":"abc","clear":true}`),
	})
	if !resp.Ok {
		t.Fatalf("%s - expected ok, got %+v", routingPrefix, resp.Error)
	}
	result := roundTrip(t, resp)["result"].(map[string]interface{})
	if result["correlationId"] != "abc" || result["method"] != "listBuckets" {
		t.Errorf("%s - unexpected result %v", routingPrefix, result)
	}

	// Cleared on the first read.
	resp = disp.Dispatch(context.Background(), &GatewayRequest{
		ID:     "g2",
		Method: "getResult",
		Params: json.RawMessage(`{"correlationId":"abc"}`),
	})
	if !resp.Ok {
		t.Fatalf("%s - not-found must still be ok, got %+v", routingPrefix, resp.Error)
	}
	result = roundTrip(t, resp)["result"].(map[string]interface{})
	if result["notFound"] != true || result["error"] != "No response found for correlation_id: abc" {
		t.Errorf("%s - unexpected not-found result %v", routingPrefix, result)
	}
}

func TestDispatch_GetResultMissingID(t *testing.T) {
	disp, _, _ := newTestDispatcher()

	resp := disp.Dispatch(context.Background(), &GatewayRequest{
		ID:     "g1",
		Method: "getResult",
		Params: json.RawMessage(`{}`),
	})
	if resp.Ok || resp.Error.Code != CodeInvalidArgument {
		t.Errorf("%s - expected INVALID_ARGUMENT, got %+v", routingPrefix, resp.Error)
	}
}

func TestDispatch_Providers(t *testing.T) {
	disp, _, _ := newTestDispatcher()

	resp := disp.Dispatch(context.Background(), &GatewayRequest{ID: "p1", Method: "providers"})
	if !resp.Ok {
		t.Fatalf("%s - expected ok", routingPrefix)
	}
	providers := roundTrip(t, resp)["result"].(map[string]interface{})["providers"].([]interface{})
	if len(providers) != 1 {
		t.Fatalf("%s - expected 1 provider, got %d", routingPrefix, len(providers))
	}
	if providers[0].(map[string]interface{})["name"] != "storage" {
		t.Errorf("%s - unexpected provider %v", routingPrefix, providers[0])
	}
}

func TestDispatch_Health(t *testing.T) {
	disp, _, _ := newTestDispatcher()

	resp := disp.Dispatch(context.Background(), &GatewayRequest{ID: "h1", Method: "health"})
	if !resp.Ok {
		t.Fatalf("%s - expected ok", routingPrefix)
	}
	if roundTrip(t, resp)["result"].(map[string]interface{})["status"] != "healthy" {
		t.Errorf("%s - unexpected health %v", routingPrefix, resp.Result)
	}

	// Without a health func a static status is reported.
	resp = NewDispatcher(Params{}).Dispatch(context.Background(), &GatewayRequest{ID: "h2", Method: "health"})
	if !resp.Ok || roundTrip(t, resp)["result"].(map[string]interface{})["status"] != "ok" {
		t.Errorf("%s - unexpected default health %+v", routingPrefix, resp)
	}
}
