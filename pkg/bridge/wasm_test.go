package bridge

// Helpers assembling minimal operation library modules for tests.

func uleb(n uint64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			return out
		}
	}
}

func sleb(n int64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		done := (n == 0 && b&0x40 == 0) || (n == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

func wasmSection(id byte, content ...[]byte) []byte {
	var body []byte
	for _, c := range content {
		body = append(body, c...)
	}
	out := []byte{id}
	out = append(out, uleb(uint64(len(body)))...)
	return append(out, body...)
}

func wasmVec(items ...[]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmName(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func wasmBody(code ...byte) []byte {
	body := append([]byte{0x00}, code...) // no locals
	return append(uleb(uint64(len(body))), body...)
}

func wasmModule(sections ...[]byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

const (
	infosOffset  = 16
	resultOffset = 512
)

// testLibrary assembles a module whose ops_infos returns infos and whose
// ops_call always answers response. malloc is a bump allocator starting at
// 1024 and free does nothing.
func testLibrary(infos, response string) []byte {
	packed := func(offset int, data string) []byte {
		return sleb(int64(offset)<<32 | int64(len(data)))
	}
	constBody := func(offset int, data string) []byte {
		code := append([]byte{0x42}, packed(offset, data)...) // i64.const
		return wasmBody(append(code, 0x0b)...)
	}
	dataSegment := func(offset int, data string) []byte {
		seg := []byte{0x00, 0x41} // active, memory 0, i32.const
		seg = append(seg, sleb(int64(offset))...)
		seg = append(seg, 0x0b)
		return append(seg, wasmName(data)...)
	}
	export := func(name string, kind byte, idx uint64) []byte {
		return append(append(wasmName(name), kind), uleb(idx)...)
	}

	return wasmModule(
		wasmSection(1, wasmVec(
			[]byte{0x60, 0x01, 0x7f, 0x01, 0x7f},       // (i32) -> i32
			[]byte{0x60, 0x01, 0x7f, 0x00},             // (i32) -> ()
			[]byte{0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e}, // (i32, i32) -> i64
		)),
		wasmSection(3, wasmVec([]byte{0}, []byte{1}, []byte{2}, []byte{2})),
		wasmSection(5, wasmVec([]byte{0x00, 0x01})),
		wasmSection(6, wasmVec(append([]byte{0x7f, 0x01, 0x41}, append(sleb(1024), 0x0b)...))),
		wasmSection(7, wasmVec(
			export("memory", 0x02, 0),
			export("malloc", 0x00, 0),
			export("free", 0x00, 1),
			export("ops_infos", 0x00, 2),
			export("ops_call", 0x00, 3),
		)),
		wasmSection(10, wasmVec(
			// global.get 0; global.get 0; local.get 0; i32.add; global.set 0
			wasmBody(0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b),
			wasmBody(0x0b),
			constBody(infosOffset, infos),
			constBody(resultOffset, response),
		)),
		wasmSection(11, wasmVec(
			dataSegment(infosOffset, infos),
			dataSegment(resultOffset, response),
		)),
	)
}

// memoryOnlyModule exports memory and nothing else.
func memoryOnlyModule() []byte {
	return wasmModule(
		wasmSection(5, wasmVec([]byte{0x00, 0x01})),
		wasmSection(7, wasmVec(append(wasmName("memory"), 0x02, 0x00))),
	)
}

const mathInfos = `[` +
	`{"names":["math.add","math.plus"],"description":"Adds two numbers.",` +
	`"inputs":[{"name":"a","type":"number"},{"name":"b","type":"number"}],` +
	`"output":{"name":"sum","type":"number"},"forms":["function","computer"]},` +
	`{"names":["filter.gauss"],"inputs":[{"name":"in","type":"array"}],"output":{"name":"out","type":"array"}}` +
	`]`
