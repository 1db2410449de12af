package host

import (
	"bytes"

	capwazero "github.com/reglet-dev/capkit/infrastructure/wazero"
)

// Fixed guest memory layout of the test module.
const (
	testAllocPtr    = 1024
	testDescribePtr = 16384
	testExecutePtr  = 32768
	testLogPtr      = 49152
)

const (
	testDescribeJSON = `{"id":"community:wasm-hello","description":"static greeter","functions":[` +
		`{"name":"greet","parameter_schema":{"fields":[{"name":"name","type":"string","default":"World"}]},"result_schema":{"type":"string"}}]}`
	testExecuteJSON = `{"data":"Hello, World!","metadata":{"guest":"static"}}`
	testLogJSON     = `{"level":"WARN","message":"guest says hi","attrs":{"answer":42}}`
)

// testModule assembles a guest that answers describe and execute with fixed
// documents, logs once per execute through the host import and exports a
// spin function that never returns.
func testModule() []byte {
	var b bytes.Buffer
	b.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	const i32, i64 = 0x7f, 0x7e
	// types: describe and spin, execute, allocate, log_message
	writeSection(&b, 1, vec(
		funcType(nil, []byte{i64}),
		funcType([]byte{i32, i32}, []byte{i64}),
		funcType([]byte{i32}, []byte{i32}),
		funcType([]byte{i64}, nil),
	))
	writeSection(&b, 2, vec(
		cat(name(capwazero.DefaultModuleName), name("log_message"), []byte{0x00}, uleb(3)),
	))
	// funcs 1..4: allocate, describe, execute, spin
	writeSection(&b, 3, vec(uleb(2), uleb(0), uleb(1), uleb(0)))
	writeSection(&b, 5, vec([]byte{0x00, 0x01}))
	writeSection(&b, 7, vec(
		cat(name("memory"), []byte{0x02}, uleb(0)),
		cat(name(capwazero.AllocateExport), []byte{0x00}, uleb(1)),
		cat(name(ExportDescribe), []byte{0x00}, uleb(2)),
		cat(name(ExportExecute), []byte{0x00}, uleb(3)),
		cat(name("spin"), []byte{0x00}, uleb(4)),
	))
	writeSection(&b, 10, vec(
		body(cat([]byte{0x41}, sleb(testAllocPtr))),
		body(i64Const(packed(testDescribePtr, testDescribeJSON))),
		body(cat(
			i64Const(packed(testLogPtr, testLogJSON)),
			[]byte{0x10}, uleb(0),
			i64Const(packed(testExecutePtr, testExecuteJSON)),
		)),
		body([]byte{0x03, 0x40, 0x0c, 0x00, 0x0b, 0x00}),
	))
	writeSection(&b, 11, vec(
		dataSegment(testDescribePtr, testDescribeJSON),
		dataSegment(testExecutePtr, testExecuteJSON),
		dataSegment(testLogPtr, testLogJSON),
	))
	return b.Bytes()
}

func packed(ptr int, s string) int64 {
	return int64(capwazero.PackPtrLen(uint32(ptr), uint32(len(s))))
}

func i64Const(v int64) []byte {
	return cat([]byte{0x42}, sleb(v))
}

func funcType(params, results []byte) []byte {
	return cat([]byte{0x60}, uleb(uint64(len(params))), params, uleb(uint64(len(results))), results)
}

func body(code []byte) []byte {
	fn := cat([]byte{0x00}, code, []byte{0x0b})
	return cat(uleb(uint64(len(fn))), fn)
}

func dataSegment(offset int, s string) []byte {
	return cat([]byte{0x00, 0x41}, sleb(int64(offset)), []byte{0x0b}, uleb(uint64(len(s))), []byte(s))
}

func name(s string) []byte {
	return cat(uleb(uint64(len(s))), []byte(s))
}

func vec(items ...[]byte) []byte {
	return cat(uleb(uint64(len(items))), cat(items...))
}

func writeSection(b *bytes.Buffer, id byte, content []byte) {
	b.WriteByte(id)
	b.Write(uleb(uint64(len(content))))
	b.Write(content)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(out, c)
		}
		out = append(out, c|0x80)
	}
}
