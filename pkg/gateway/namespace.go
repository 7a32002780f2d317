package gateway

import (
	"slices"

	"github.com/scijava/opsgate/pkg/ops"
)

// GlobalPath is the path of the root namespace.
const GlobalPath = "global"

// Member is a child of a Namespace: either a *Namespace or an *Op.
type Member interface {
	member()
}

// Namespace is a node of the operation tree. Namespaces are not callable;
// they only group children.
type Namespace struct {
	env      ops.Environment
	path     string
	inst     *instruments
	children map[string]Member
	order    []string
	root     bool
}

func newNamespace(env ops.Environment, path string, inst *instruments) *Namespace {
	return &Namespace{
		env:      env,
		path:     path,
		inst:     inst,
		children: make(map[string]Member),
	}
}

// newRoot creates the root namespace. A child may also be named GlobalPath;
// only the node created here qualifies names without a prefix.
func newRoot(env ops.Environment, inst *instruments) *Namespace {
	ns := newNamespace(env, GlobalPath, inst)
	ns.root = true
	return ns
}

func (*Namespace) member() {}

// Path returns the dotted path from the root, or GlobalPath for the root.
func (n *Namespace) Path() string {
	return n.path
}

// IsRoot reports whether n is the global namespace.
func (n *Namespace) IsRoot() bool {
	return n.root
}

// Get returns the child bound to name.
func (n *Namespace) Get(name string) (Member, bool) {
	m, ok := n.children[name]
	return m, ok
}

// Namespace returns the child namespace bound to name, or nil.
func (n *Namespace) Namespace(name string) *Namespace {
	ns, _ := n.children[name].(*Namespace)
	return ns
}

// Op returns the operation bound to name, or nil.
func (n *Namespace) Op(name string) *Op {
	op, _ := n.children[name].(*Op)
	return op
}

// Names returns the child names in attachment order.
func (n *Namespace) Names() []string {
	return slices.Clone(n.order)
}

// qualify returns the dotted name of child segment under n.
func (n *Namespace) qualify(segment string) string {
	if n.IsRoot() {
		return segment
	}
	return n.path + "." + segment
}

func (n *Namespace) bind(segment string, m Member) {
	n.children[segment] = m
	n.order = append(n.order, segment)
}

// attachNamespace returns the namespace bound to segment under node,
// creating it if the segment is free. An existing binding is never replaced;
// when segment is already an operation, ok is false.
func attachNamespace(node *Namespace, env ops.Environment, segment string) (ns *Namespace, ok bool) {
	if existing, found := node.children[segment]; found {
		ns, ok = existing.(*Namespace)
		return ns, ok
	}
	ns = newNamespace(env, node.qualify(segment), node.inst)
	node.bind(segment, ns)
	return ns, true
}

// attachOperation binds an operation for leaf under node if the leaf is
// free, and returns whatever member is bound to leaf afterwards.
func attachOperation(node *Namespace, env ops.Environment, leaf string) Member {
	if existing, found := node.children[leaf]; found {
		return existing
	}
	op := newOp(env, node.path, node.qualify(leaf), leaf, node.inst)
	node.bind(leaf, op)
	return op
}
