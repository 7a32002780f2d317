package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/scijava/opsgate/pkg/ops"
	"github.com/scijava/opsgate/pkg/wire"
)

// Module calls into an instantiated operation library.
type Module struct {
	// name is the coordinate the module was loaded from.
	name string

	// module is the WASM module instance.
	module api.Module

	// memory provides access to WASM linear memory.
	memory api.Memory

	// malloc is the memory allocation function exported by WASM.
	malloc api.Function

	// free is the memory deallocation function exported by WASM.
	free api.Function

	// opsInfos lists the operations of the library.
	opsInfos api.Function

	// opsCall dispatches one operation request.
	opsCall api.Function

	// timeout bounds each call.
	timeout time.Duration
}

// newModule checks that mod exports the operation library ABI.
func newModule(name string, mod api.Module, timeout time.Duration) (*Module, error) {
	m := &Module{
		name:    name,
		module:  mod,
		timeout: timeout,
	}

	m.memory = mod.Memory()
	if m.memory == nil {
		return nil, fmt.Errorf("WASM module does not export memory")
	}

	exports := []struct {
		name string
		fn   *api.Function
	}{
		{"malloc", &m.malloc},
		{"free", &m.free},
		{"ops_infos", &m.opsInfos},
		{"ops_call", &m.opsCall},
	}
	for _, e := range exports {
		*e.fn = mod.ExportedFunction(e.name)
		if *e.fn == nil {
			return nil, fmt.Errorf("WASM module does not export %s function", e.name)
		}
	}

	return m, nil
}

// Name returns the coordinate of the module.
func (m *Module) Name() string {
	return m.name
}

// Infos returns the operations the module declares.
func (m *Module) Infos(ctx context.Context) ([]ops.Info, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resultJSON, err := m.callWASMFunction(ctx, m.opsInfos, nil)
	if err != nil {
		return nil, fmt.Errorf("ops_infos failed: %w", err)
	}

	var infos []ops.Info
	if err := json.Unmarshal(resultJSON, &infos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation infos: %w", err)
	}
	for i := range infos {
		if len(infos[i].Forms) == 0 {
			infos[i].Forms = []ops.Form{ops.FormFunction}
		}
	}
	return infos, nil
}

// Call dispatches call to the module and decodes the result value.
func (m *Module) Call(ctx context.Context, call ops.Call) (any, error) {
	reqJSON, err := json.Marshal(call)
	if err != nil {
		return nil, ops.NewDispatchError(ops.CodeTypeMismatch, call.Name, "failed to marshal request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resultJSON, err := m.callWASMFunction(ctx, m.opsCall, reqJSON)
	if err != nil {
		return nil, ops.NewDispatchError(ops.CodeFailed, call.Name, "ops_call failed", err)
	}

	var resp wire.Result
	if err := json.Unmarshal(resultJSON, &resp); err != nil {
		return nil, ops.NewDispatchError(ops.CodeFailed, call.Name, "failed to unmarshal response", err)
	}
	if resp.Error != "" {
		code := resp.Code
		if code == "" {
			code = ops.CodeFailed
		}
		return nil, ops.NewDispatchError(code, call.Name, resp.Error, nil)
	}

	value, err := wire.DecodeValue(resp.Value)
	if err != nil {
		return nil, ops.NewDispatchError(ops.CodeFailed, call.Name, "failed to decode result", err)
	}
	return value, nil
}

// callWASMFunction calls a WASM function with JSON input/output.
// Returns the JSON response or an error.
func (m *Module) callWASMFunction(ctx context.Context, fn api.Function, input []byte) ([]byte, error) {
	var inputPtr, inputLen uint32
	if len(input) > 0 {
		ptr, err := m.allocate(ctx, uint32(len(input)))
		if err != nil {
			return nil, fmt.Errorf("failed to allocate WASM memory: %w", err)
		}
		defer m.deallocate(ctx, ptr)

		inputPtr = ptr
		inputLen = uint32(len(input))

		if !m.memory.Write(inputPtr, input) {
			return nil, fmt.Errorf("failed to write input to WASM memory")
		}
	}

	// fn(input_ptr: u32, input_len: u32) -> u64, packed as (output_ptr << 32) | output_len
	results, err := fn.Call(ctx, uint64(inputPtr), uint64(inputLen))
	if err != nil {
		return nil, fmt.Errorf("WASM function call failed: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("WASM function returned no results")
	}

	packed := results[0]
	outputPtr := uint32(packed >> 32)
	outputLen := uint32(packed & 0xFFFFFFFF)

	if outputLen == 0 {
		return []byte("{}"), nil
	}

	view, ok := m.memory.Read(outputPtr, outputLen)
	if !ok {
		return nil, fmt.Errorf("failed to read output from WASM memory")
	}
	// Read returns a view into linear memory; copy before freeing.
	output := append([]byte(nil), view...)

	_ = m.deallocate(ctx, outputPtr)

	return output, nil
}

// allocate allocates memory in WASM and returns the pointer.
func (m *Module) allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := m.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("malloc failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("malloc returned no results")
	}

	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, fmt.Errorf("malloc returned null pointer")
	}
	return ptr, nil
}

// deallocate frees memory in WASM.
func (m *Module) deallocate(ctx context.Context, ptr uint32) error {
	if _, err := m.free.Call(ctx, uint64(ptr)); err != nil {
		return fmt.Errorf("free failed: %w", err)
	}
	return nil
}
