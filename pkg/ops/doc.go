// Package ops defines the operation environment consumed by the gateway.
//
// # Overview
//
// An operation environment exposes a registry of operation descriptors and a
// request builder for invoking them. Every operation is reachable by one or
// more dotted names, such as "math.add" or "features.haralick.asm".
//
// # Call Forms
//
// A request is executed in one of three forms:
//
//   - function: inputs in, a fresh result out (Apply, Function)
//   - computer: inputs in, the result written into a caller-supplied output
//     container (Compute, Computer)
//   - inplace: the result written into a caller-supplied target, which may be
//     one of the inputs (Mutate, Inplace)
//
// The terminal methods execute immediately. Function, Computer and Inplace
// return an Executor instead, which can be executed repeatedly.
//
// # Environments
//
// Registry is an in-process environment. NewBuiltinRegistry returns one
// populated with arithmetic, statistics and image operations over numbers and
// *ndarray.Array values. The bridge package provides an environment backed by
// WebAssembly operation libraries.
//
// # Errors
//
// Failures are reported as *Error values classified as runtime_start or
// dispatch. Use errors.Is with ErrRuntimeStart, ErrDispatch, ErrOpNotFound,
// ErrArity, ErrTypeMismatch or ErrOpFailed to inspect them.
package ops
