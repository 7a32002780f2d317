// Package main implements the opsgate-builtin operation library. It serves
// the built-in operations over the module ABI and compiles to a WASI
// reactor module:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o opsgate-builtin-1.0.0.wasm .
//
// Publish the module and manifest.yaml as
// org/scijava/opsgate-builtin/1.0.0/opsgate-builtin-1.0.0.{wasm,yaml} in a
// maven-layout repository and load it with the endpoint
// org.scijava:opsgate-builtin:1.0.0.
package main

import (
	"context"
	"encoding/json"

	"github.com/scijava/opsgate/pkg/ops"
	"github.com/scijava/opsgate/pkg/wire"
)

// Name and Version identify the library.
const (
	Name    = "opsgate-builtin"
	Version = "1.0.0"
)

// library answers ops_infos and ops_call requests.
type library struct {
	registry *ops.Registry
}

func newLibrary() *library {
	return &library{registry: ops.NewBuiltinRegistry()}
}

// infos returns the JSON list of operation descriptors.
func (l *library) infos(ctx context.Context) []byte {
	infos, err := l.registry.Infos(ctx)
	if err != nil {
		return []byte("[]")
	}
	data, err := json.Marshal(infos)
	if err != nil {
		return []byte("[]")
	}
	return data
}

// call dispatches one JSON request and returns the JSON response.
func (l *library) call(ctx context.Context, req []byte) []byte {
	call, err := wire.DecodeCall(req)
	if err != nil {
		return wire.EncodeResult(nil, ops.NewDispatchError(ops.CodeFailed, "", "malformed request", err))
	}
	return wire.EncodeResult(l.registry.Dispatch(ctx, call))
}

func main() {}
