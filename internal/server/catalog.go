package server

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/morezero/invocation-gateway/pkg/provider"
	natsprovider "github.com/morezero/invocation-gateway/pkg/providers/nats"
	"github.com/morezero/invocation-gateway/pkg/providers/postgres"
	redisprovider "github.com/morezero/invocation-gateway/pkg/providers/redis"
	"github.com/morezero/invocation-gateway/pkg/providers/storage"
)

// Backends are the connections the built-in providers are bound to. Postgres and Redis are
// registered only when their connection is set.
type Backends struct {
	Storage  *storage.Backend
	Comms    *comms.Conn
	Postgres *pgxpool.Pool
	Redis    goredis.UniversalClient
}

// BuildCatalog registers the built-in providers for b.
func BuildCatalog(b Backends) (*provider.Catalog, error) {
	backend := b.Storage
	if backend == nil {
		backend = storage.NewBackend()
	}

	providers := []*provider.Provider{
		storage.New(backend),
		natsprovider.New(b.Comms),
	}
	if b.Postgres != nil {
		providers = append(providers, postgres.New(b.Postgres))
	}
	if b.Redis != nil {
		providers = append(providers, redisprovider.New(b.Redis))
	}

	catalog := provider.NewCatalog()
	for _, p := range providers {
		if err := catalog.Register(p); err != nil {
			return nil, fmt.Errorf("%s - failed to register provider %s: %w", logPrefix, p.Name, err)
		}
	}
	return catalog, nil
}

// DescribeBuiltins lists every built-in provider, including the optional ones, without binding
// them to live connections.
func DescribeBuiltins() []provider.Descriptor {
	catalog := provider.NewCatalog()
	catalog.MustRegister(storage.New(storage.NewBackend()))
	catalog.MustRegister(natsprovider.New(nil))
	catalog.MustRegister(postgres.New(nil))
	catalog.MustRegister(redisprovider.New(nil))
	return catalog.Describe()
}
