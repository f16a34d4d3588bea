// Package dispatcher routes incoming COMMS messages to gateway methods.
package dispatcher

import "encoding/json"

// GatewayRequest is the JSON envelope for incoming COMMS gateway requests.
type GatewayRequest struct {
	ID     string             `json:"id"`
	Type   string             `json:"type,omitempty"`
	Method string             `json:"method"`
	Params json.RawMessage    `json:"params"`
	Ctx    *InvocationContext `json:"ctx,omitempty"`
}

// GatewayResponse is the JSON envelope for COMMS gateway responses.
type GatewayResponse struct {
	ID     string       `json:"id"`
	Ok     bool         `json:"ok"`
	Result interface{}  `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Retryable bool        `json:"retryable"`
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	TenantID      string `json:"tenantId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Region        string `json:"region,omitempty"`
}

// Error codes carried in ErrorDetail.Code.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeMethodNotFound  = "METHOD_NOT_FOUND"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeUnavailable     = "UNAVAILABLE"
	CodeInternal        = "INTERNAL_ERROR"
)

// InvokeAccepted is the result of the invoke method.
type InvokeAccepted struct {
	CorrelationID string `json:"correlationId"`
	Accepted      bool   `json:"accepted"`
}

// ProvidersResult is the result of the providers method.
type ProvidersResult struct {
	Providers interface{} `json:"providers"`
}
