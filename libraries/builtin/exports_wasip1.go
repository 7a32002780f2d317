//go:build wasip1

package main

import (
	"context"
	"unsafe"
)

var lib = newLibrary()

// pinned keeps buffers handed to the host alive until it frees them.
var pinned = map[uint32][]byte{}

func pin(buf []byte) uint32 {
	if len(buf) == 0 {
		return 0
	}
	ptr := uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
	pinned[ptr] = buf
	return ptr
}

func input(ptr, length uint32) []byte {
	if length == 0 {
		return nil
	}
	return pinned[ptr][:length]
}

func pack(buf []byte) uint64 {
	return uint64(pin(buf))<<32 | uint64(len(buf))
}

//go:wasmexport malloc
func malloc(size uint32) uint32 {
	return pin(make([]byte, size))
}

//go:wasmexport free
func free(ptr uint32) {
	delete(pinned, ptr)
}

//go:wasmexport ops_infos
func opsInfos(ptr, length uint32) uint64 {
	return pack(lib.infos(context.Background()))
}

//go:wasmexport ops_call
func opsCall(ptr, length uint32) uint64 {
	return pack(lib.call(context.Background(), input(ptr, length)))
}

//go:wasmimport opsgate log
func hostLog(level, ptr, length uint32)

func logf(level uint32, msg string) {
	if msg == "" {
		return
	}
	hostLog(level, uint32(uintptr(unsafe.Pointer(unsafe.StringData(msg)))), uint32(len(msg)))
}

func init() {
	logf(0, Name+" "+Version+" ready")
}
