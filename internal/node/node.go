package node

import (
	"context"
	"fmt"
	"sync"
)

// PropertyHandler receives a value for a single subscribed property.
// It returns true when the value was accepted.
type PropertyHandler func(value string) bool

// InputHandler is a node-level fallback that receives any property update
// not consumed by a specific subscription. It returns true when accepted.
type InputHandler func(property, value string) bool

// Subscription binds a property name to its handler.
// A nil Handler means the property is declared but has no dedicated handler;
// updates for it are passed to the node's fallback.
type Subscription struct {
	Property string
	Handler  PropertyHandler
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithInputHandler sets the node's fallback input handler.
func WithInputHandler(h InputHandler) Option {
	return func(n *Node) {
		n.inputHandler = h
	}
}

// WithSetup sets the hook run once when the device boots.
// Nodes typically declare their subscriptions here.
func WithSetup(fn func(ctx context.Context, n *Node) error) Option {
	return func(n *Node) {
		n.setup = fn
	}
}

// WithLoop sets the hook run on every scheduler tick.
func WithLoop(fn func(ctx context.Context, n *Node)) Option {
	return func(n *Node) {
		n.loop = fn
	}
}

// WithReadyToOperate sets the hook run once the transport is connected
// and all subscriptions have been advertised.
func WithReadyToOperate(fn func(ctx context.Context, n *Node)) Option {
	return func(n *Node) {
		n.readyToOperate = fn
	}
}

// Node is a logical unit of device functionality.
//
// Identity (id and type) is immutable. The subscription table is ordered by
// registration and is expected to be populated during setup.
type Node struct {
	id  string
	typ string

	subscriptions  []Subscription
	subscribeToAll bool
	inputHandler   InputHandler
	mu             sync.RWMutex // Protects subscriptions and subscribeToAll

	setup          func(ctx context.Context, n *Node) error
	loop           func(ctx context.Context, n *Node)
	readyToOperate func(ctx context.Context, n *Node)

	// registered is owned by Registry and guarded by its mutex.
	registered bool
}

// New creates a node without registering it.
// Use Registry.NewNode to construct and register in one step.
func New(id, typ string, opts ...Option) (*Node, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := ValidateType(typ); err != nil {
		return nil, err
	}

	n := &Node{
		id:  id,
		typ: typ,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// ID returns the node id.
func (n *Node) ID() string {
	return n.id
}

// Type returns the node type.
func (n *Node) Type() string {
	return n.typ
}

// Subscribe declares interest in a property and binds its handler.
// A nil handler declares the property but rejects every value for it.
// Subscribing twice to the same property returns ErrDuplicateProperty and
// leaves the table unchanged.
func (n *Node) Subscribe(property string, handler PropertyHandler) error {
	if err := ValidateProperty(property); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, s := range n.subscriptions {
		if s.Property == property {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateProperty, n.id, property)
		}
	}

	n.subscriptions = append(n.subscriptions, Subscription{
		Property: property,
		Handler:  handler,
	})
	return nil
}

// SubscribeToAll makes the node receive every property update addressed to it.
func (n *Node) SubscribeToAll() {
	n.mu.Lock()
	n.subscribeToAll = true
	n.mu.Unlock()
}

// IsSubscribedToAll reports whether SubscribeToAll has been called.
func (n *Node) IsSubscribedToAll() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.subscribeToAll
}

// SubscriptionCount returns the number of property subscriptions.
func (n *Node) SubscriptionCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscriptions)
}

// Subscriptions returns the subscription table in registration order.
// The returned slice is a copy.
func (n *Node) Subscriptions() []Subscription {
	n.mu.RLock()
	defer n.mu.RUnlock()

	subs := make([]Subscription, len(n.subscriptions))
	copy(subs, n.subscriptions)
	return subs
}

// Properties returns the subscribed property names in registration order.
func (n *Node) Properties() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	props := make([]string, 0, len(n.subscriptions))
	for _, s := range n.subscriptions {
		props = append(props, s.Property)
	}
	return props
}

// HasFallback reports whether the node was built with an input handler.
func (n *Node) HasFallback() bool {
	return n.inputHandler != nil
}

// Dispatch routes an inbound property update to the handler that owns it.
//
// The first subscription matching property decides the result; one
// without a handler rejects. The fallback input handler only sees
// properties no subscription matches. Without either the update is
// Unhandled. Dispatch never panics on unmatched input.
func (n *Node) Dispatch(property, value string) Result {
	if h, ok := n.lookup(property); ok {
		if h == nil {
			return Rejected
		}
		return resultOf(h(value))
	}
	if n.inputHandler != nil {
		return resultOf(n.inputHandler(property, value))
	}
	return Unhandled
}

// HandleInput dispatches an update and reports whether it was accepted.
// Unhandled and Rejected updates both return false.
func (n *Node) HandleInput(property, value string) bool {
	return n.Dispatch(property, value) == Accepted
}

// lookup returns the handler of the first matching subscription.
// The lock is released before the handler runs so handlers may call
// back into the node.
func (n *Node) lookup(property string) (PropertyHandler, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, s := range n.subscriptions {
		if s.Property == property {
			return s.Handler, true
		}
	}
	return nil, false
}

// RunSetup runs the setup hook, if any.
func (n *Node) RunSetup(ctx context.Context) error {
	if n.setup == nil {
		return nil
	}
	if err := n.setup(ctx, n); err != nil {
		return fmt.Errorf("setting up node %s: %w", n.id, err)
	}
	return nil
}

// RunLoop runs the loop hook, if any.
func (n *Node) RunLoop(ctx context.Context) {
	if n.loop != nil {
		n.loop(ctx, n)
	}
}

// RunReadyToOperate runs the ready-to-operate hook, if any.
func (n *Node) RunReadyToOperate(ctx context.Context) {
	if n.readyToOperate != nil {
		n.readyToOperate(ctx, n)
	}
}
