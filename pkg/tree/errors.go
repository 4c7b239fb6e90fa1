package tree

import (
	"errors"
	"fmt"
)

// ErrInvalidLocation indicates that a location does not address a node, or
// addresses the root where the root is not allowed (splicing).
var ErrInvalidLocation = errors.New("invalid tree location")

// TreeError wraps a model error with the tree that raised it and the
// location that was being resolved.
type TreeError struct {
	User     string   // Identifies the tree owner (e.g. "explorer")
	Op       string   // "splice", "setCollapsed", "expandTo", ...
	Location Location // The offending location
	Err      error    // The underlying error
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("tree %s: %s %v: %v", e.User, e.Op, e.Location, e.Err)
}

func (e *TreeError) Unwrap() error {
	return e.Err
}

func (m *IndexTreeModel[T, F]) invalidLocation(op string, location Location) error {
	return &TreeError{
		User:     m.user,
		Op:       op,
		Location: location.Clone(),
		Err:      ErrInvalidLocation,
	}
}
