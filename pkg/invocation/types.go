// Package invocation defines the request, outcome and error types shared by the gateway components.
package invocation

import (
	"encoding/json"
	"time"
)

// Request is one Invoke call: run Method on provider Client with Params.
type Request struct {
	Client        string                 `json:"client"`
	Method        string                 `json:"method"`
	Params        map[string]interface{} `json:"params,omitempty"`
	Region        string                 `json:"region,omitempty"`
	Sync          bool                   `json:"sync,omitempty"`
	CorrelationID string                 `json:"correlationId,omitempty"`
}

// Outcome is the terminal result of one invocation. Exactly one of Response or Err is meaningful:
// a failed outcome has HasError set, a successful one carries Response (which may be nil).
type Outcome struct {
	CorrelationID string
	Client        string
	Method        string
	Response      interface{}
	Err           string
	ErrKind       Kind
	HasError      bool
	CompletedAt   time.Time
}

// Succeeded builds a success outcome for req.
func Succeeded(req *Request, response interface{}) *Outcome {
	return &Outcome{
		CorrelationID: req.CorrelationID,
		Client:        req.Client,
		Method:        req.Method,
		Response:      response,
		CompletedAt:   time.Now().UTC(),
	}
}

// Failed builds a failure outcome for req. The error kind is taken from err when it is an *Error,
// otherwise it is reported as an execution failure.
func Failed(req *Request, err error) *Outcome {
	kind := KindExecution
	if invErr, ok := AsError(err); ok {
		kind = invErr.Kind
	}
	return &Outcome{
		CorrelationID: req.CorrelationID,
		Client:        req.Client,
		Method:        req.Method,
		Err:           err.Error(),
		ErrKind:       kind,
		HasError:      true,
		CompletedAt:   time.Now().UTC(),
	}
}

// outcomeJSON is the wire shape of a failed outcome.
type outcomeJSON struct {
	CorrelationID string      `json:"correlationId"`
	Client        string      `json:"client"`
	Method        string      `json:"method"`
	Response      interface{} `json:"response,omitempty"`
	Error         string      `json:"error,omitempty"`
	ErrorKind     Kind        `json:"errorKind,omitempty"`
	HasError      bool        `json:"hasError,omitempty"`
	CompletedAt   string      `json:"completedAt,omitempty"`
}

// MarshalJSON always emits "response" on success (null included) and "error"/"hasError" on failure.
func (o Outcome) MarshalJSON() ([]byte, error) {
	completed := ""
	if !o.CompletedAt.IsZero() {
		completed = o.CompletedAt.Format(time.RFC3339Nano)
	}
	if o.HasError {
		return json.Marshal(outcomeJSON{
			CorrelationID: o.CorrelationID,
			Client:        o.Client,
			Method:        o.Method,
			Error:         o.Err,
			ErrorKind:     o.ErrKind,
			HasError:      true,
			CompletedAt:   completed,
		})
	}
	// Response is not omitempty here: a nil payload is still a success.
	return json.Marshal(struct {
		CorrelationID string      `json:"correlationId"`
		Client        string      `json:"client"`
		Method        string      `json:"method"`
		Response      interface{} `json:"response"`
		CompletedAt   string      `json:"completedAt,omitempty"`
	}{o.CorrelationID, o.Client, o.Method, o.Response, completed})
}

// UnmarshalJSON decodes either outcome shape.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw outcomeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Outcome{
		CorrelationID: raw.CorrelationID,
		Client:        raw.Client,
		Method:        raw.Method,
		Response:      raw.Response,
		Err:           raw.Error,
		ErrKind:       raw.ErrorKind,
		HasError:      raw.HasError,
	}
	if raw.CompletedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, raw.CompletedAt)
		if err != nil {
			return err
		}
		o.CompletedAt = t
	}
	return nil
}
