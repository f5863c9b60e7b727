package node

import (
	"fmt"
	"math"
	"sync"
)

// DefaultMaxNodes is the registry capacity when none is configured.
const DefaultMaxNodes = math.MaxUint8

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxNodes sets the registry capacity. Values below 1 keep the default.
func WithMaxNodes(limit int) RegistryOption {
	return func(r *Registry) {
		if limit > 0 {
			r.maxNodes = limit
		}
	}
}

// Registry is the ordered collection of every node a device exposes.
//
// Enumeration order equals registration order. Nodes are never removed.
// The registry holds references only; nodes are owned by whoever built them.
//
// All public methods are thread-safe.
type Registry struct {
	nodes    []*Node
	maxNodes int
	mu       sync.RWMutex // Protects nodes
	logger   Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		maxNodes: DefaultMaxNodes,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry, creating it on first use.
// opts apply only to the call that creates it; later calls ignore them.
// Components should still receive the registry by injection rather than
// calling Default themselves.
func Default(opts ...RegistryOption) *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(opts...)
	})
	return defaultRegistry
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register appends a node to the registry.
//
// The node is either fully registered or not at all. Register fails with
// ErrDuplicateID when the id is taken, ErrCapacityExceeded when the
// registry is full and ErrAlreadyRegistered when the node already belongs
// to a registry.
func (r *Registry) Register(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n.registered {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, n.id)
	}
	for _, existing := range r.nodes {
		if existing.id == n.id {
			return fmt.Errorf("%w: %s", ErrDuplicateID, n.id)
		}
	}
	if len(r.nodes) >= r.maxNodes {
		return fmt.Errorf("%w: limit is %d", ErrCapacityExceeded, r.maxNodes)
	}

	n.registered = true
	r.nodes = append(r.nodes, n)

	r.logger.Debug("node registered", "id", n.id, "type", n.typ, "count", len(r.nodes))
	return nil
}

// NewNode constructs a node and registers it.
func (r *Registry) NewNode(id, typ string, opts ...Option) (*Node, error) {
	n, err := New(id, typ, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Register(n); err != nil {
		return nil, err
	}
	return n, nil
}

// FindByID returns the first node registered with id.
// The match is exact and case-sensitive.
func (r *Registry) FindByID(id string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.nodes {
		if n.id == id {
			return n, true
		}
	}
	return nil, false
}

// ForEach calls visit once per node in registration order.
//
// The visitor runs without the registry lock held and sees the nodes
// registered when ForEach was called. Visitors must not register nodes.
func (r *Registry) ForEach(visit func(n *Node)) {
	for _, n := range r.Nodes() {
		visit(n)
	}
}

// ForEachErr is like ForEach but stops at the first error.
func (r *Registry) ForEachErr(visit func(n *Node) error) error {
	for _, n := range r.Nodes() {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// Nodes returns the registered nodes in registration order.
// The returned slice is a copy; the nodes are shared.
func (r *Registry) Nodes() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]*Node, len(r.nodes))
	copy(nodes, r.nodes)
	return nodes
}

// Count returns the number of registered nodes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// MaxNodes returns the registry capacity.
func (r *Registry) MaxNodes() int {
	return r.maxNodes
}
