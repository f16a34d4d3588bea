package dispatcher

import (
	"encoding/json"
	"testing"
)

func TestGatewayRequest_Unmarshal(t *testing.T) {
	raw := `{
		"id": "req-1",
		"type": "invoke",
		"method": "invoke",
		"params": {"client": "storage", "method": "listBuckets", "sync": true},
		"ctx": {"tenantId": "tenant-1", "correlationId": "abc"}
	}`

	var req GatewayRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if req.ID != "req-1" {
		t.Errorf("expected id req-1, got %s", req.ID)
	}
	if req.Method != "invoke" {
		t.Errorf("expected method invoke, got %s", req.Method)
	}
	if req.Ctx == nil {
		t.Fatal("expected ctx, got nil")
	}
	if req.Ctx.CorrelationID != "abc" {
		t.Errorf("expected abc, got %s", req.Ctx.CorrelationID)
	}
}

func TestGatewayResponse_Marshal(t *testing.T) {
	resp := &GatewayResponse{
		ID:     "req-1",
		Ok:     true,
		Result: &InvokeAccepted{CorrelationID: "abc", Accepted: true},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if decoded["ok"] != true {
		t.Errorf("expected ok=true, got %v", decoded["ok"])
	}
	result, ok := decoded["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %v", decoded["result"])
	}
	if result["correlationId"] != "abc" || result["accepted"] != true {
		t.Errorf("unexpected result %v", result)
	}
	if _, present := decoded["error"]; present {
		t.Error("error should be omitted on success")
	}
}

func TestGatewayResponse_Error(t *testing.T) {
	resp := &GatewayResponse{
		ID: "req-2",
		Ok: false,
		Error: &ErrorDetail{
			Code:      CodeInvalidArgument,
			Message:   "client is required",
			Retryable: false,
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded GatewayResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if decoded.Ok {
		t.Error("expected ok=false")
	}
	if decoded.Error == nil {
		t.Fatal("expected error, got nil")
	}
	if decoded.Error.Code != CodeInvalidArgument {
		t.Errorf("expected INVALID_ARGUMENT, got %s", decoded.Error.Code)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		code      string
		message   string
		retryable bool
	}{
		{CodeMethodNotFound, "Unknown method: x", false},
		{CodeInvalidArgument, "Failed to parse invoke params", false},
		{CodeUnavailable, "invoker is closed", true},
		{CodeInternal, "boom", true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			resp := errorResponse("id-1", tt.code, tt.message, tt.retryable)
			if resp.Ok || resp.ID != "id-1" {
				t.Errorf("dispatcher:dispatcher_test - unexpected envelope %+v", resp)
			}
			if resp.Error.Code != tt.code || resp.Error.Message != tt.message || resp.Error.Retryable != tt.retryable {
				t.Errorf("dispatcher:dispatcher_test - unexpected error %+v", resp.Error)
			}
		})
	}
}
