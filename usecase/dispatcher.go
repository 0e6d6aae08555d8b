package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fastygo/taskpulse/domain"
)

// QueryHandler answers a named read-only query.
type QueryHandler func(ctx context.Context, params interface{}) (interface{}, error)

// ErrQueryNotRegistered is returned for names nobody registered.
var ErrQueryNotRegistered = domain.NewError(domain.ErrCodeNotFound, "query not registered")

// Dispatcher routes read models (calendar views, trends) by name so transports
// do not depend on the use cases that produce them.
type Dispatcher struct {
	queries map[string]QueryHandler
	mu      sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		queries: make(map[string]QueryHandler),
	}
}

// RegisterQuery binds name to handler. Registering a name twice is a wiring bug and panics.
func (d *Dispatcher) RegisterQuery(name string, handler QueryHandler) {
	if handler == nil {
		panic(fmt.Sprintf("dispatcher: nil handler for query %q", name))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.queries[name]; dup {
		panic(fmt.Sprintf("dispatcher: query %q registered twice", name))
	}
	d.queries[name] = handler
}

func (d *Dispatcher) ExecuteQuery(ctx context.Context, name string, params interface{}) (interface{}, error) {
	d.mu.RLock()
	handler, ok := d.queries[name]
	d.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(ErrQueryNotRegistered.Code, ErrQueryNotRegistered.Message, fmt.Errorf("query %s", name))
	}
	return handler(ctx, params)
}

// Queries lists registered names in sorted order.
func (d *Dispatcher) Queries() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.queries))
	for name := range d.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
