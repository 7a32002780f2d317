// Package wire is the JSON codec spoken across the library module boundary.
//
// The host sends an ops.Call as JSON to a module's ops_call export and the
// module answers with a Result. Arrays travel as {"shape", "dtype", "data"}
// objects in both directions.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scijava/opsgate/pkg/ndarray"
	"github.com/scijava/opsgate/pkg/ops"
)

// Result is the ops_call response. Either Value or Error is set.
type Result struct {
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// request mirrors ops.Call with undecoded values.
type request struct {
	Name   string            `json:"name"`
	Form   ops.Form          `json:"form"`
	Inputs []json.RawMessage `json:"inputs"`
	Output json.RawMessage   `json:"output,omitempty"`
}

// DecodeCall parses an ops_call request. A numeric output container is
// decoded as *float64 so that results can be stored into it.
func DecodeCall(data []byte) (ops.Call, error) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return ops.Call{}, fmt.Errorf("invalid request: %w", err)
	}

	call := ops.Call{Name: req.Name, Form: req.Form, Inputs: make([]any, len(req.Inputs))}
	for i, raw := range req.Inputs {
		v, err := DecodeValue(raw)
		if err != nil {
			return ops.Call{}, fmt.Errorf("input %d: %w", i+1, err)
		}
		call.Inputs[i] = v
	}

	out, err := DecodeValue(req.Output)
	if err != nil {
		return ops.Call{}, fmt.Errorf("output: %w", err)
	}
	if f, ok := out.(float64); ok {
		out = &f
	}
	call.Output = out
	return call, nil
}

// EncodeResult builds the response for a dispatch outcome. Dispatch errors
// keep their code; any other error is reported as ops.CodeFailed.
func EncodeResult(value any, err error) []byte {
	var res Result
	if err != nil {
		res.Error = err.Error()
		res.Code = ops.CodeFailed
		var oe *ops.Error
		if errors.As(err, &oe) {
			res.Error = oe.Message
			if oe.Err != nil {
				res.Error += ": " + oe.Err.Error()
			}
			if oe.Code != "" {
				res.Code = oe.Code
			}
		}
	} else {
		if p, ok := value.(*float64); ok {
			value = *p
		}
		raw, merr := json.Marshal(value)
		if merr != nil {
			return EncodeResult(nil, ops.NewDispatchError(ops.CodeFailed, "", "failed to encode result", merr))
		}
		res.Value = raw
	}

	data, _ := json.Marshal(res)
	return data
}

// DecodeValue converts a JSON value into a Go value. Objects carrying a
// shape decode to *ndarray.Array, lists decode element-wise and everything
// else follows encoding/json.
func DecodeValue(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '{':
		var header struct {
			Shape []int `json:"shape"`
		}
		if err := json.Unmarshal(raw, &header); err == nil && header.Shape != nil {
			var a ndarray.Array
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, err
			}
			return &a, nil
		}
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, err
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			v, err := DecodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
