package shipper

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry manages registered shipping carriers.
type Registry struct {
	shippers map[string]Shipper
	mu       sync.RWMutex
}

// NewRegistry creates a new shipper registry.
func NewRegistry() *Registry {
	return &Registry{
		shippers: make(map[string]Shipper),
	}
}

// Register adds a shipper to the registry, replacing any shipper with the same name.
func (r *Registry) Register(s Shipper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shippers[s.Name()] = s
}

// Get returns a shipper by name.
func (r *Registry) Get(name string) (Shipper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.shippers[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCarrierNotFound, name)
}

// Names returns the names of all registered shippers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.shippers))
	for name := range r.shippers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered shippers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shippers)
}

// GetQuotes fetches quotes in parallel from the carriers named in
// req.Options.Carriers, or from every registered carrier when none are named.
// A failing carrier does not fail the others; its error is returned alongside
// the successful responses.
func (r *Registry) GetQuotes(ctx context.Context, req *QuoteRequest) ([]*QuoteResponse, []error) {
	names := req.Options.Carriers
	if len(names) == 0 {
		names = r.Names()
	}
	if len(names) == 0 {
		return nil, []error{ErrCarrierNotFound}
	}

	results := make([]*QuoteResponse, 0, len(names))
	errs := make([]error, 0)
	mu := &sync.Mutex{}

	g, ctx := errgroup.WithContext(ctx)

	for _, name := range names {
		g.Go(func() error {
			s, err := r.Get(name)
			if err != nil {
				mu.Lock()
				errs = append(errs, &CarrierError{Carrier: name, Err: err})
				mu.Unlock()
				return nil
			}

			resp, err := s.GetQuote(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, &CarrierError{Carrier: name, Err: err})
				return nil // keep the group alive for the other carriers
			}
			results = append(results, resp)
			return nil
		})
	}

	_ = g.Wait()
	return results, errs
}
