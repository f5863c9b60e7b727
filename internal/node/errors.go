package node

import "errors"

// Domain errors for the node package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, node.ErrDuplicateID) {
//	    // a node with this id is already registered
//	}
var (
	// ErrNodeNotFound is returned by collaborators when a node id is not registered.
	ErrNodeNotFound = errors.New("node: not found")

	// ErrDuplicateID is returned when registering a node whose id is already taken.
	ErrDuplicateID = errors.New("node: duplicate id")

	// ErrDuplicateProperty is returned when subscribing twice to the same property.
	ErrDuplicateProperty = errors.New("node: duplicate property subscription")

	// ErrCapacityExceeded is returned when the registry is full.
	ErrCapacityExceeded = errors.New("node: registry capacity exceeded")

	// ErrAlreadyRegistered is returned when a node is registered a second time.
	ErrAlreadyRegistered = errors.New("node: already registered")

	// ErrInvalidID is returned when a node id fails validation.
	ErrInvalidID = errors.New("node: invalid id")

	// ErrInvalidType is returned when a node type fails validation.
	ErrInvalidType = errors.New("node: invalid type")

	// ErrInvalidProperty is returned when a property name fails validation.
	ErrInvalidProperty = errors.New("node: invalid property")
)
