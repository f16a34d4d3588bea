// Package invoker runs provider operations off the calling path and records their outcomes.
//
// Submit validates a request, assigns a correlation id and hands the invocation to a bounded
// worker pool. When the request asks for it (sync=true) the outcome is written to the result
// store and then announced through the event publisher.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/morezero/invocation-gateway/pkg/events"
	"github.com/morezero/invocation-gateway/pkg/invocation"
	"github.com/morezero/invocation-gateway/pkg/metrics"
	"github.com/morezero/invocation-gateway/pkg/provider"
)

const (
	logPrefix = "invoker:invoker"

	DefaultPoolSize = 64
)

var (
	// ErrInvalidRequest is returned by Submit for requests that cannot be scheduled.
	ErrInvalidRequest = errors.New("invalid invocation request")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("invoker is closed")
)

// ResultStore is where sync outcomes are written.
type ResultStore interface {
	Put(correlationID string, outcome *invocation.Outcome)
	Len() int
}

// Params configures an Invoker.
type Params struct {
	Catalog   *provider.Catalog
	Store     ResultStore
	Publisher events.EventPublisher
	// Credentials are passed to every provider factory. Region is the default when a request has none.
	Credentials provider.Config
	// PoolSize bounds concurrent invocations. Defaults to DefaultPoolSize.
	PoolSize int
	// Timeout bounds a single operation call. Zero means no limit.
	Timeout time.Duration
	Metrics *metrics.Metrics
	// NewID generates correlation ids. Defaults to random UUIDs.
	NewID func() string
}

// Invoker schedules and executes invocations.
type Invoker struct {
	catalog     *provider.Catalog
	store       ResultStore
	publisher   events.EventPublisher
	credentials provider.Config
	timeout     time.Duration
	metrics     *metrics.Metrics
	newID       func() string

	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	// runCtx outlives the submitting request; it is cancelled only when Close gives up waiting.
	runCtx context.Context
	cancel context.CancelFunc
}

// NewInvoker creates an Invoker.
func NewInvoker(p Params) *Invoker {
	size := p.PoolSize
	if size <= 0 {
		size = DefaultPoolSize
	}
	publisher := p.Publisher
	if publisher == nil {
		publisher = &events.NoOpPublisher{}
	}
	newID := p.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Invoker{
		catalog:     p.Catalog,
		store:       p.Store,
		publisher:   publisher,
		credentials: p.Credentials,
		timeout:     p.Timeout,
		metrics:     p.Metrics,
		newID:       newID,
		sem:         semaphore.NewWeighted(int64(size)),
		runCtx:      runCtx,
		cancel:      cancel,
	}
}

// Submit validates req and schedules it. It returns the correlation id without waiting for the
// invocation to run. req is not modified.
func (i *Invoker) Submit(_ context.Context, req *invocation.Request) (string, error) {
	r, err := i.prepare(req)
	if err != nil {
		return "", err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return "", ErrClosed
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		if err := i.sem.Acquire(i.runCtx, 1); err != nil {
			slog.Warn(fmt.Sprintf("%s - dropped invocation %s.%s correlation_id=%s: %v",
				logPrefix, r.Client, r.Method, r.CorrelationID, err))
			return
		}
		defer i.sem.Release(1)
		if pending := i.run(i.runCtx, r); pending != nil {
			// The timed-out call is still running; its slot stays taken until it returns.
			<-pending
			slog.Info(fmt.Sprintf("%s - timed-out %s.%s correlation_id=%s returned, slot released",
				logPrefix, r.Client, r.Method, r.CorrelationID))
		}
	}()

	slog.Debug(fmt.Sprintf("%s - accepted %s.%s correlation_id=%s sync=%t", logPrefix, r.Client, r.Method, r.CorrelationID, r.Sync))
	return r.CorrelationID, nil
}

// Execute runs req to completion on the calling goroutine and returns its outcome. Nothing is
// stored or published.
func (i *Invoker) Execute(ctx context.Context, req *invocation.Request) (*invocation.Outcome, error) {
	r, err := i.prepare(req)
	if err != nil {
		return nil, err
	}
	outcome, _ := i.execute(ctx, r)
	return outcome, nil
}

// Close stops accepting submissions and waits for scheduled invocations. If ctx ends first the
// remaining invocations are cancelled and ctx.Err() is returned.
func (i *Invoker) Close(ctx context.Context) error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		i.cancel()
		slog.Info(fmt.Sprintf("%s - drained all invocations", logPrefix))
		return nil
	case <-ctx.Done():
		i.cancel()
		slog.Warn(fmt.Sprintf("%s - gave up waiting for invocations: %v", logPrefix, ctx.Err()))
		return ctx.Err()
	}
}

func (i *Invoker) prepare(req *invocation.Request) (*invocation.Request, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	if req.Client == "" {
		return nil, fmt.Errorf("%w: client is required", ErrInvalidRequest)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("%w: method is required", ErrInvalidRequest)
	}
	r := *req
	if r.CorrelationID == "" {
		r.CorrelationID = i.newID()
	}
	if r.Region == "" {
		r.Region = i.credentials.Region
	}
	return &r, nil
}

// run executes r and, for sync requests, stores then publishes the outcome. The returned channel
// is non-nil when the operation outlived its timeout; it closes once the operation returns.
func (i *Invoker) run(ctx context.Context, r *invocation.Request) <-chan struct{} {
	outcome, pending := i.execute(ctx, r)

	if !r.Sync {
		if outcome.HasError {
			slog.Info(fmt.Sprintf("%s - %s.%s correlation_id=%s failed (not recorded): %s",
				logPrefix, r.Client, r.Method, r.CorrelationID, outcome.Err))
		} else {
			slog.Info(fmt.Sprintf("%s - %s.%s correlation_id=%s completed (not recorded)",
				logPrefix, r.Client, r.Method, r.CorrelationID))
		}
		return pending
	}

	if i.store != nil {
		i.store.Put(r.CorrelationID, outcome)
		i.metrics.SetStoreEntries(i.store.Len())
	}

	err := i.publisher.PublishOutcome(ctx, events.NewOutcomeEvent(outcome))
	i.metrics.EventPublished(err)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish outcome for correlation_id=%s: %v", logPrefix, r.CorrelationID, err))
	}
	return pending
}

func (i *Invoker) execute(ctx context.Context, r *invocation.Request) (*invocation.Outcome, <-chan struct{}) {
	i.metrics.InvocationStarted()
	defer i.metrics.InvocationFinished()
	start := time.Now()

	response, pending, err := i.call(ctx, r)

	var outcome *invocation.Outcome
	kind := ""
	if err != nil {
		outcome = invocation.Failed(r, err)
		kind = string(outcome.ErrKind)
		slog.Error(fmt.Sprintf("%s - %s.%s correlation_id=%s %s error: %v",
			logPrefix, r.Client, r.Method, r.CorrelationID, outcome.ErrKind, err))
	} else {
		outcome = invocation.Succeeded(r, response)
	}
	i.metrics.ObserveInvocation(providerLabel(r.Client), r.Method, kind, time.Since(start))
	return outcome, pending
}

// call resolves, decodes and runs the operation, classifying any failure. When the timeout fires
// before the operation returns, pending is closed once it finally does.
func (i *Invoker) call(ctx context.Context, r *invocation.Request) (interface{}, <-chan struct{}, error) {
	p, op, err := i.catalog.Lookup(r.Client, r.Method)
	if err != nil {
		return nil, nil, err
	}

	input, err := op.Decode(r.Params)
	if err != nil {
		return nil, nil, invocation.NewArgumentError(p.Name, r.Method, err)
	}

	cfg := i.credentials
	cfg.Region = r.Region

	if i.timeout <= 0 {
		resp, err := invoke(ctx, p, op, cfg, input)
		if err != nil {
			return nil, nil, invocation.NewExecutionError(p.Name, r.Method, err)
		}
		return resp, nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	type result struct {
		resp interface{}
		err  error
	}
	done := make(chan result, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		resp, err := invoke(callCtx, p, op, cfg, input)
		done <- result{resp, err}
	}()

	var res result
	var pending <-chan struct{}
	select {
	case res = <-done:
	case <-callCtx.Done():
		select {
		case res = <-done:
		default:
			res.err = callCtx.Err()
			pending = finished
		}
	}
	if res.err == nil {
		return res.resp, nil, nil
	}
	// An operation that gave up because of the deadline is reported as a timeout.
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, pending, invocation.NewExecutionError(p.Name, r.Method,
			fmt.Errorf("invocation timed out after %s", i.timeout))
	}
	return nil, pending, invocation.NewExecutionError(p.Name, r.Method, res.err)
}

// invoke builds a client, runs the operation and closes the client. Panics become errors.
func invoke(ctx context.Context, p *provider.Provider, op provider.Operation, cfg provider.Config, input interface{}) (resp interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()

	client, err := p.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			slog.Warn(fmt.Sprintf("%s - failed to close %s client: %v", logPrefix, p.Name, cerr))
		}
	}()

	return op.Call(ctx, client, input)
}

// providerLabel strips any version range so metric cardinality stays per provider.
func providerLabel(ref string) string {
	name, _, _ := strings.Cut(ref, "@")
	return name
}
