// Package bridge hosts operation libraries compiled to WebAssembly and
// exposes them as an ops.Environment.
//
// Libraries are identified by coordinates of the form group:artifact[:version].
// A Runtime resolves each configured coordinate from a local cache laid out
// like a maven repository, downloading missing modules from the configured
// repositories, and instantiates them in a single wazero runtime:
//
//	rt := bridge.New(bridge.Config{Endpoints: []string{"org.example:ops:1.0"}})
//	if err := rt.Start(ctx); err != nil {
//		// errors.Is(err, ops.ErrRuntimeStart)
//	}
//	env, _ := rt.Environment(ctx)
//	sum, err := env.Op("math.add").Input(2, 3).Apply(ctx)
//
// # Module ABI
//
// A library module exports memory, malloc(size i32) i32, free(ptr i32),
// ops_infos(ptr, len i32) i64 and ops_call(ptr, len i32) i64. Requests and
// responses are JSON; results are packed as (ptr << 32) | len.
//
// ops_infos returns a list of operation descriptors. ops_call receives
// {"name", "form", "inputs", "output"} and answers {"value": ...} or
// {"error": ..., "code": ...} where code is one of not_found, arity,
// type_mismatch or failed. Arrays cross the boundary as
// {"shape", "dtype", "data"}.
//
// Modules may import log(level, ptr, len i32) from the "opsgate" host module.
package bridge
