// Package server orchestrates all components: NATS client, optional backends, invoker, result
// store, dispatcher and the HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/morezero/invocation-gateway/internal/config"
	"github.com/morezero/invocation-gateway/internal/logging"
	"github.com/morezero/invocation-gateway/pkg/commsutil"
	"github.com/morezero/invocation-gateway/pkg/dispatcher"
	"github.com/morezero/invocation-gateway/pkg/events"
	"github.com/morezero/invocation-gateway/pkg/invoker"
	"github.com/morezero/invocation-gateway/pkg/metrics"
	"github.com/morezero/invocation-gateway/pkg/provider"
	"github.com/morezero/invocation-gateway/pkg/providers/postgres"
	redisprovider "github.com/morezero/invocation-gateway/pkg/providers/redis"
	"github.com/morezero/invocation-gateway/pkg/resultstore"
	"github.com/morezero/invocation-gateway/pkg/retrieval"
)

const logPrefix = "server:server"

// Server is the invocation-gateway orchestrator.
type Server struct {
	cfg *config.Config
	nc  *comms.Conn

	pool *pgxpool.Pool
	rdb  *goredis.Client

	catalog  *provider.Catalog
	store    *resultstore.Store
	invoker  *invoker.Invoker
	results  *retrieval.Service
	disp     *dispatcher.Dispatcher
	metrics  *metrics.Metrics
	registry *prometheus.Registry

	sub        *comms.Subscription
	httpServer *http.Server
	started    time.Time
}

// New builds a Server on an established COMMS connection. Optional backends named in cfg are
// connected here and closed by Shutdown.
func New(ctx context.Context, cfg *config.Config, nc *comms.Conn) (*Server, error) {
	s := &Server{cfg: cfg, nc: nc, started: time.Now()}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		s.pool = pool
	}

	if cfg.RedisURL != "" {
		rdb, err := redisprovider.NewClient(cfg.RedisURL)
		if err != nil {
			s.closeBackends()
			return nil, fmt.Errorf("%s - failed to configure redis: %w", logPrefix, err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			s.closeBackends()
			return nil, fmt.Errorf("%s - failed to ping redis: %w", logPrefix, err)
		}
		s.rdb = rdb
		slog.Info(fmt.Sprintf("%s - Connected to redis", logPrefix))
	}

	backends := Backends{Comms: nc}
	if s.pool != nil {
		backends.Postgres = s.pool
	}
	if s.rdb != nil {
		backends.Redis = s.rdb
	}
	catalog, err := BuildCatalog(backends)
	if err != nil {
		s.closeBackends()
		return nil, err
	}
	s.catalog = catalog

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = metrics.New(s.registry)

	s.store = resultstore.New(resultstore.Options{
		Capacity: cfg.ResultStoreCapacity,
		Shards:   cfg.ResultStoreShards,
		TTL:      cfg.ResultTTL,
		OnEvict: func(_ string, reason resultstore.EvictReason) {
			s.metrics.StoreEvicted(string(reason))
		},
	})

	var publisher events.EventPublisher = &events.NoOpPublisher{}
	if nc != nil {
		publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{ResponseSubject: cfg.EventSubject})
	}

	s.invoker = invoker.NewInvoker(invoker.Params{
		Catalog:     catalog,
		Store:       s.store,
		Publisher:   publisher,
		Credentials: cfg.Credentials(),
		PoolSize:    cfg.WorkerPoolSize,
		Timeout:     cfg.InvokeTimeout,
		Metrics:     s.metrics,
	})
	s.results = retrieval.NewService(s.store, s.metrics)
	s.disp = dispatcher.NewDispatcher(dispatcher.Params{
		Invoker:   s.invoker,
		Results:   s.results,
		Providers: catalog,
		Health:    func(ctx context.Context) interface{} { return s.Health(ctx) },
	})

	slog.Info(fmt.Sprintf("%s - Built gateway with %d providers", logPrefix, catalog.Len()))
	return s, nil
}

// Subscribe starts answering gateway requests on the configured COMMS subject.
func (s *Server) Subscribe(ctx context.Context) error {
	subject := s.cfg.GatewaySubject
	if subject == "" {
		subject = commsutil.SubjectGateway
	}
	requestTimeout := s.cfg.RequestTimeout

	sub, err := s.nc.Subscribe(subject, func(msg *comms.Msg) {
		var req dispatcher.GatewayRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode request: %v", logPrefix, err))
			resp := &dispatcher.GatewayResponse{
				Ok: false,
				Error: &dispatcher.ErrorDetail{
					Code:    dispatcher.CodeInvalidRequest,
					Message: "Failed to decode request",
				},
			}
			data, _ := json.Marshal(resp)
			msg.Respond(data)
			return
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		resp := s.disp.Dispatch(reqCtx, &req)

		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
			return
		}
		msg.Respond(data)
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
	}
	s.sub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, subject))
	return nil
}

// ListenHTTP starts the HTTP API in the background.
func (s *Server) ListenHTTP() {
	addr := s.cfg.ListenAddr()
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()
}

// Shutdown stops intake, drains in-flight invocations and releases every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.invoker.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	s.store.Close()
	if s.nc != nil && !s.nc.IsClosed() {
		if err := s.nc.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closeBackends()

	return errors.Join(errs...)
}

func (s *Server) closeBackends() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to close redis: %v", logPrefix, err))
		}
	}
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.SetDefault(logging.NewLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel))
	slog.Info(fmt.Sprintf("%s - Starting invocation-gateway", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}

	s, err := New(ctx, cfg, nc)
	if err != nil {
		nc.Close()
		return err
	}

	if err := s.Subscribe(ctx); err != nil {
		s.Shutdown(ctx)
		return err
	}
	s.ListenHTTP()

	slog.Info(fmt.Sprintf("%s - Invocation gateway is ready", logPrefix))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - Shutdown finished with errors: %v", logPrefix, err))
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}
