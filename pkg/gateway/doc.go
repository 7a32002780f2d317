// Package gateway exposes an operation environment as a tree of namespaces
// and callable operations.
//
// Operation names are dotted paths such as "features.haralick.asm". Every
// segment but the last becomes a Namespace; the last becomes an Op bound to
// the fully-qualified name. Single-segment names live in the global
// namespace at the root.
//
//	gw, err := gateway.Init(ctx, gateway.StaticRuntime(ops.NewBuiltinRegistry()))
//	sum, err := gw.Namespace("math").Op("add").Call(ctx, []any{2, 3})
//
// Op.Call selects the call form from its options: Inplace(target) mutates
// target, Out(container) computes into container, and with neither the
// function form returns a new value. Inplace wins when both are given.
// Run(false) returns an ops.Executor instead of running.
//
// The tree is built once by Init or Build and is read-only afterwards. A
// segment is bound by the first name that claims it; later names never
// replace an existing binding.
package gateway
