package gateway

import (
	"fmt"
	"strings"
)

// OpName is a parsed dotted operation name.
type OpName struct {
	// Namespace holds every segment but the last. Empty for global operations.
	Namespace []string

	// Leaf is the last segment.
	Leaf string
}

// ParseOpName splits a dotted operation name. Names with an empty segment
// cannot be placed in the tree and are rejected.
func ParseOpName(name string) (OpName, error) {
	if name == "" {
		return OpName{}, fmt.Errorf("empty operation name")
	}
	segments := strings.Split(name, ".")
	for i, s := range segments {
		if s == "" {
			return OpName{}, fmt.Errorf("operation name %q has an empty segment at position %d", name, i)
		}
	}
	return OpName{
		Namespace: segments[:len(segments)-1],
		Leaf:      segments[len(segments)-1],
	}, nil
}

// Global reports whether the operation lives directly under the root.
func (n OpName) Global() bool {
	return len(n.Namespace) == 0
}

// Base returns the first namespace segment, or "" for global operations.
func (n OpName) Base() string {
	if n.Global() {
		return ""
	}
	return n.Namespace[0]
}

// String returns the dotted name.
func (n OpName) String() string {
	if n.Global() {
		return n.Leaf
	}
	return strings.Join(n.Namespace, ".") + "." + n.Leaf
}
