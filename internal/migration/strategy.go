package migration

import (
	"context"
	"sync"
	"vmigrate/internal/model"
	"vmigrate/internal/platform"
)

// Step is one named phase of a migration procedure. Weight is the share of
// overall job progress the step contributes; a strategy's weights sum to 100.
type Step struct {
	Name   string
	Weight int
	Run    func(ctx context.Context) error
}

// Request carries everything a strategy needs to build its step sequence.
// SetTargetNode lets the plan record the placement node it resolves on the
// job before the transfer phases begin.
type Request struct {
	VMName        string
	VM            model.InventoryItem
	Source        model.Provider
	Destination   model.Provider
	TargetNode    string
	SetTargetNode func(node string) error
}

// Strategy builds the ordered migration steps for one provider pair.
type Strategy interface {
	Steps(req *Request) []Step
}

type pair struct {
	src model.ProviderKind
	dst model.ProviderKind
}

// Registry maps provider pairs to their migration strategy.
type Registry struct {
	mu         sync.RWMutex
	strategies map[pair]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[pair]Strategy)}
}

func (r *Registry) Register(src, dst model.ProviderKind, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[pair{src, dst}] = s
}

func (r *Registry) For(src, dst model.ProviderKind) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[pair{src, dst}]
	return s, ok
}

// DefaultRegistry wires up the supported provider pairs.
func DefaultRegistry(factory platform.Factory) *Registry {
	r := NewRegistry()
	r.Register(model.ProviderVCenter, model.ProviderProxmox, NewVCenterProxmox(factory, nil))
	return r
}
