package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/morezero/invocation-gateway/pkg/invocation"
	"github.com/morezero/invocation-gateway/pkg/semver"
)

const logPrefix = "provider:catalog"

// ErrClientMismatch is returned when an operation is handed a client of another provider.
var ErrClientMismatch = errors.New("provider: client type does not match operation")

// Catalog indexes providers by name and version. Safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	providers map[string]map[string]*Provider
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{providers: make(map[string]map[string]*Provider)}
}

// Register adds a provider. The (name, version) pair must be unique.
func (c *Catalog) Register(p *Provider) error {
	if p == nil {
		return fmt.Errorf("%s - nil provider", logPrefix)
	}
	if !semver.ValidateProviderName(p.Name) {
		return fmt.Errorf("%s - invalid provider name %q", logPrefix, p.Name)
	}
	if err := semver.ValidateVersion(p.Version); err != nil {
		return fmt.Errorf("%s - provider %s: %w", logPrefix, p.Name, err)
	}
	if p.New == nil {
		return fmt.Errorf("%s - provider %s@%s has no factory", logPrefix, p.Name, p.Version)
	}
	if len(p.Operations) == 0 {
		return fmt.Errorf("%s - provider %s@%s has no operations", logPrefix, p.Name, p.Version)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	versions, ok := c.providers[p.Name]
	if !ok {
		versions = make(map[string]*Provider)
		c.providers[p.Name] = versions
	}
	if _, exists := versions[p.Version]; exists {
		return fmt.Errorf("%s - provider %s@%s already registered", logPrefix, p.Name, p.Version)
	}
	versions[p.Version] = p

	slog.Info(fmt.Sprintf("%s - Registered provider %s@%s (%d operations)", logPrefix, p.Name, p.Version, len(p.Operations)))
	return nil
}

// MustRegister is Register that panics on error, for static wiring.
func (c *Catalog) MustRegister(p *Provider) {
	if err := c.Register(p); err != nil {
		panic(err)
	}
}

// Resolve returns the provider matching ref ("name" or "name@range").
func (c *Catalog) Resolve(ref string) (*Provider, error) {
	parsed, err := semver.ParseProviderRef(ref)
	if err != nil {
		return nil, invocation.NewResolutionError(ref, "", "unknown provider %q", ref)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	versions, ok := c.providers[parsed.Name]
	if !ok || len(versions) == 0 {
		return nil, invocation.NewResolutionError(parsed.Name, "", "unknown provider %q", parsed.Name)
	}

	if semver.IsExactVersion(parsed.Range) {
		if p, ok := versions[parsed.Range]; ok {
			return p, nil
		}
	}

	candidates := make([]string, 0, len(versions))
	for v := range versions {
		candidates = append(candidates, v)
	}
	best := semver.ResolveVersion(candidates, parsed.Range)
	if best == "" {
		return nil, invocation.NewResolutionError(parsed.Name, "", "no version of provider %q matches %q", parsed.Name, parsed.Range)
	}
	return versions[best], nil
}

// Lookup resolves ref and the named operation on it.
func (c *Catalog) Lookup(ref, operation string) (*Provider, Operation, error) {
	p, err := c.Resolve(ref)
	if err != nil {
		return nil, Operation{}, err
	}
	op, ok := p.Operations[operation]
	if !ok {
		return nil, Operation{}, invocation.NewResolutionError(p.Name, operation,
			"provider %q has no operation %q", p.Name, operation)
	}
	return p, op, nil
}

// Descriptor describes one registered provider version.
type Descriptor struct {
	// Ref is the exact reference ("name@version") that selects this version.
	Ref         string   `json:"ref"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Operations  []string `json:"operations"`
}

// Describe lists all providers sorted by name, then version.
func (c *Catalog) Describe() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Descriptor, 0, len(c.providers))
	for _, versions := range c.providers {
		for _, p := range versions {
			out = append(out, Descriptor{
				Ref:         semver.BuildProviderRef(p.Name, p.Version),
				Name:        p.Name,
				Version:     p.Version,
				Description: p.Description,
				Operations:  p.OperationNames(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Len returns the number of registered provider versions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, versions := range c.providers {
		n += len(versions)
	}
	return n
}
