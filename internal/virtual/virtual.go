// Package virtual builds nodes declared in configuration.
//
// A virtual node accepts values for its declared properties, optionally
// restricted to an enum, and echoes each accepted value to the property's
// state topic so controllers see the new state.
package virtual

import (
	"context"
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-nodes/internal/node"
)

// Publisher publishes property state. *boot.Runner satisfies it.
type Publisher interface {
	SetProperty(nodeID, property, value string, retained bool) error
}

// Logger defines the logging interface used by virtual nodes.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Build registers one node per spec in reg, in spec order.
//
// Property subscriptions are declared in each node's setup hook, so they
// exist once the device has booted. Build fails on the first invalid spec;
// nodes registered before it stay registered.
func Build(reg *node.Registry, specs []config.NodeConfig, pub Publisher, logger Logger) ([]*node.Node, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	nodes := make([]*node.Node, 0, len(specs))
	for i, spec := range specs {
		if err := validate(spec); err != nil {
			return nodes, fmt.Errorf("nodes[%d]: %w", i, err)
		}

		v := &virtualNode{spec: spec, pub: pub, logger: logger}
		opts := []node.Option{node.WithSetup(v.setup)}
		if h := v.fallback(); h != nil {
			opts = append(opts, node.WithInputHandler(h))
		}

		n, err := reg.NewNode(spec.ID, spec.Type, opts...)
		if err != nil {
			return nodes, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func validate(spec config.NodeConfig) error {
	if err := node.ValidateID(spec.ID); err != nil {
		return err
	}
	if err := node.ValidateType(spec.Type); err != nil {
		return err
	}
	seen := make(map[string]bool, len(spec.Properties))
	for _, p := range spec.Properties {
		if err := node.ValidateProperty(p.ID); err != nil {
			return err
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: %s/%s", node.ErrDuplicateProperty, spec.ID, p.ID)
		}
		seen[p.ID] = true
	}
	switch spec.Fallback {
	case "", config.FallbackNone, config.FallbackAccept, config.FallbackReject:
	default:
		return fmt.Errorf("unknown fallback %q", spec.Fallback)
	}
	return nil
}

type virtualNode struct {
	spec   config.NodeConfig
	pub    Publisher
	logger Logger
}

func (v *virtualNode) setup(_ context.Context, n *node.Node) error {
	for _, p := range v.spec.Properties {
		if err := n.Subscribe(p.ID, v.propertyHandler(p)); err != nil {
			return err
		}
	}
	if v.spec.SubscribeAll {
		n.SubscribeToAll()
	}
	return nil
}

// propertyHandler accepts values allowed by p and echoes them.
func (v *virtualNode) propertyHandler(p config.PropertyConfig) node.PropertyHandler {
	return func(value string) bool {
		if len(p.Values) > 0 && !slices.Contains(p.Values, value) {
			v.logger.Debug("value not allowed", "node", v.spec.ID, "property", p.ID, "value", value)
			return false
		}
		v.echo(p.ID, value, p.Retained)
		return true
	}
}

func (v *virtualNode) fallback() node.InputHandler {
	switch v.spec.Fallback {
	case config.FallbackAccept:
		return func(property, value string) bool {
			v.echo(property, value, false)
			return true
		}
	case config.FallbackReject:
		return func(string, string) bool {
			return false
		}
	default:
		return nil
	}
}

// echo publishes an accepted value. A failed publish does not undo the
// acceptance.
func (v *virtualNode) echo(property, value string, retained bool) {
	if v.pub == nil {
		return
	}
	if err := v.pub.SetProperty(v.spec.ID, property, value, retained); err != nil {
		v.logger.Warn("echoing property failed", "node", v.spec.ID, "property", property, "error", err)
	}
}
