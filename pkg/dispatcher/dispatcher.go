package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morezero/invocation-gateway/pkg/invocation"
	"github.com/morezero/invocation-gateway/pkg/invoker"
	"github.com/morezero/invocation-gateway/pkg/provider"
	"github.com/morezero/invocation-gateway/pkg/retrieval"
)

const logPrefix = "dispatcher:dispatch"

// Submitter schedules invocations.
type Submitter interface {
	Submit(ctx context.Context, req *invocation.Request) (string, error)
}

// ResultGetter answers GetResult requests.
type ResultGetter interface {
	Get(ctx context.Context, input *retrieval.GetResultInput) (*retrieval.Result, error)
}

// ProviderLister lists the registered providers.
type ProviderLister interface {
	Describe() []provider.Descriptor
}

// HealthFunc reports gateway health for the health method.
type HealthFunc func(ctx context.Context) interface{}

// Params wires a Dispatcher.
type Params struct {
	Invoker   Submitter
	Results   ResultGetter
	Providers ProviderLister
	Health    HealthFunc
}

// Dispatcher routes COMMS requests to gateway methods.
type Dispatcher struct {
	invoker   Submitter
	results   ResultGetter
	providers ProviderLister
	health    HealthFunc
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(p Params) *Dispatcher {
	return &Dispatcher{
		invoker:   p.Invoker,
		results:   p.Results,
		providers: p.Providers,
		health:    p.Health,
	}
}

// Dispatch routes a request to the appropriate gateway method and returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *GatewayRequest) *GatewayResponse {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s", logPrefix, req.Method, req.ID))

	switch req.Method {
	case "invoke":
		return d.handleInvoke(ctx, req)
	case "getResult":
		return d.handleGetResult(ctx, req)
	case "providers":
		return d.handleProviders(ctx, req)
	case "health":
		return d.handleHealth(ctx, req)
	default:
		return &GatewayResponse{
			ID: req.ID,
			Ok: false,
			Error: &ErrorDetail{
				Code:      CodeMethodNotFound,
				Message:   fmt.Sprintf("Unknown method: %s", req.Method),
				Retryable: false,
			},
		}
	}
}

func (d *Dispatcher) handleInvoke(ctx context.Context, req *GatewayRequest) *GatewayResponse {
	var input invocation.Request
	if err := json.Unmarshal(req.Params, &input); err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse invoke params", false)
	}
	// Inject context
	if req.Ctx != nil {
		if input.CorrelationID == "" {
			input.CorrelationID = req.Ctx.CorrelationID
		}
		if input.Region == "" {
			input.Region = req.Ctx.Region
		}
	}

	id, err := d.invoker.Submit(ctx, &input)
	if err != nil {
		return invokeErrorToResponse(req.ID, err)
	}
	return &GatewayResponse{ID: req.ID, Ok: true, Result: &InvokeAccepted{CorrelationID: id, Accepted: true}}
}

func (d *Dispatcher) handleGetResult(ctx context.Context, req *GatewayRequest) *GatewayResponse {
	var input retrieval.GetResultInput
	if err := json.Unmarshal(req.Params, &input); err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse getResult params", false)
	}

	result, err := d.results.Get(ctx, &input)
	if err != nil {
		if errors.Is(err, retrieval.ErrMissingCorrelationID) {
			return errorResponse(req.ID, CodeInvalidArgument, err.Error(), false)
		}
		return errorResponse(req.ID, CodeInternal, err.Error(), true)
	}
	return &GatewayResponse{ID: req.ID, Ok: true, Result: result}
}

func (d *Dispatcher) handleProviders(_ context.Context, req *GatewayRequest) *GatewayResponse {
	return &GatewayResponse{ID: req.ID, Ok: true, Result: &ProvidersResult{Providers: d.providers.Describe()}}
}

func (d *Dispatcher) handleHealth(ctx context.Context, req *GatewayRequest) *GatewayResponse {
	var result interface{} = map[string]string{"status": "ok"}
	if d.health != nil {
		result = d.health(ctx)
	}
	return &GatewayResponse{ID: req.ID, Ok: true, Result: result}
}

// --- helpers ---

func errorResponse(id, code, message string, retryable bool) *GatewayResponse {
	return &GatewayResponse{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

func invokeErrorToResponse(id string, err error) *GatewayResponse {
	switch {
	case errors.Is(err, invoker.ErrInvalidRequest):
		return errorResponse(id, CodeInvalidArgument, err.Error(), false)
	case errors.Is(err, invoker.ErrClosed):
		return errorResponse(id, CodeUnavailable, err.Error(), true)
	}
	return errorResponse(id, CodeInternal, err.Error(), true)
}
