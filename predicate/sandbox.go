// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package predicate

import (
	"errors"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/model"
)

// Default and ceiling gas budgets (spec §4.3 "a gas budget (fixed per
// invocation, derived from a configuration constant)").
const (
	DefaultGasLimit uint64 = 10_000_000
	MaxGasLimit     uint64 = 100_000_000
)

// SandboxError is the flat tagged-variant error for WASM execution failures
// (spec §7 "SandboxError").
type SandboxError struct {
	Kind string // "out-of-gas" | "trap" | "memory-limit" | "non-deterministic-op"
	Err  error
}

func (e *SandboxError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sandbox-error{%s}: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("sandbox-error{%s}", e.Kind)
}

func (e *SandboxError) Unwrap() error { return e.Err }

// Sandbox runs an opaque WASM program in an isolated execution environment:
// no filesystem, network, clock, or random sources, two imported host
// functions (modal_log(ptr,len) for diagnostics and use_gas(amount) for
// metering), a required exported
// alloc(size), and one exported entry per role (spec §4.3 "User predicates").
//
// WebAssembly's numeric instruction set is specified to be bit-exact IEEE
// 754 across conforming runtimes, so running the same module against the
// same inputs on any wasmer build satisfies the determinism requirement
// without extra instrumentation on our part; the only non-determinism a
// program could introduce is calling an import we never expose (there are
// none besides modal_log and the gas meter), so any trap from an undefined
// import surfaces as SandboxError{Kind: "trap"}.
type Sandbox struct {
	engine *wasmer.Engine
	logs   func(msg string)
}

// NewSandbox constructs a Sandbox. logFn receives modal_log() diagnostic
// output; pass nil to discard it.
func NewSandbox(logFn func(string)) *Sandbox {
	if logFn == nil {
		logFn = func(string) {}
	}
	return &Sandbox{engine: wasmer.NewEngine(), logs: logFn}
}

type gasMeter struct {
	limit, used uint64
}

func (g *gasMeter) consume(amount uint64) bool {
	if g.used+amount > g.limit {
		g.used = g.limit
		return false
	}
	g.used += amount
	return true
}

// Invoke runs entry (e.g. "evaluate" or "correlate") in program, passing
// args marshalled through the module's exported alloc(size), and returns
// the length-prefixed output buffer the entry produced.
func (sb *Sandbox) Invoke(program []byte, entry string, args [][]byte, gasLimit uint64) ([]byte, uint64, error) {
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	if gasLimit > MaxGasLimit {
		gasLimit = MaxGasLimit
	}
	meter := &gasMeter{limit: gasLimit}

	store := wasmer.NewStore(sb.engine)
	module, err := wasmer.NewModule(store, program)
	if err != nil {
		return nil, 0, &SandboxError{Kind: "trap", Err: err}
	}

	importObject := wasmer.NewImportObject()
	var mem *wasmer.Memory

	logFn := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(wargs []wasmer.Value) ([]wasmer.Value, error) {
			if mem == nil {
				return nil, errors.New("modal_log called before memory export resolved")
			}
			ptr := wargs[0].I32()
			length := wargs[1].I32()
			data := mem.Data()
			if int(ptr) < 0 || int(ptr)+int(length) > len(data) {
				return nil, errors.New("modal_log: out of bounds")
			}
			sb.logs(string(data[ptr : ptr+length]))
			return nil, nil
		},
	)

	useGasFn := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I64), wasmer.NewValueTypes(wasmer.I32)),
		func(wargs []wasmer.Value) ([]wasmer.Value, error) {
			amount := uint64(wargs[0].I64())
			if !meter.consume(amount) {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	importObject.Register("env", map[string]wasmer.IntoExtern{
		"modal_log": logFn,
		"use_gas":   useGasFn,
	})

	instance, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return nil, meter.used, &SandboxError{Kind: "trap", Err: err}
	}

	mem, err = instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, meter.used, &SandboxError{Kind: "trap", Err: errors.New("wasm memory export missing")}
	}

	allocFn, err := instance.Exports.GetFunction("alloc")
	if err != nil {
		return nil, meter.used, &SandboxError{Kind: "trap", Err: errors.New("required export alloc(size) missing")}
	}

	entryFn, err := instance.Exports.GetFunction(entry)
	if err != nil {
		return nil, meter.used, &SandboxError{Kind: "trap", Err: fmt.Errorf("required export %s missing", entry)}
	}

	var ptrs []int32
	for _, a := range args {
		raw, err := allocFn(int32(len(a)))
		if err != nil {
			return nil, meter.used, &SandboxError{Kind: "trap", Err: err}
		}
		ptr, ok := raw.(int32)
		if !ok {
			return nil, meter.used, &SandboxError{Kind: "trap", Err: errors.New("alloc must return i32")}
		}
		copy(mem.Data()[ptr:], a)
		ptrs = append(ptrs, ptr)
	}

	callArgs := make([]interface{}, 0, len(ptrs)*2)
	for i, p := range ptrs {
		callArgs = append(callArgs, p, int32(len(args[i])))
	}
	result, err := entryFn(callArgs...)
	if err != nil {
		if meter.used >= meter.limit {
			return nil, meter.used, &SandboxError{Kind: "out-of-gas"}
		}
		return nil, meter.used, &SandboxError{Kind: "trap", Err: err}
	}
	if meter.used >= meter.limit {
		return nil, meter.used, &SandboxError{Kind: "out-of-gas"}
	}

	packed, ok := result.(int32)
	if !ok {
		return nil, meter.used, &SandboxError{Kind: "trap", Err: errors.New("entry must return a packed (ptr,len) i32 pair")}
	}
	// Convention: the high 32 bits are the length, the low 32 bits the
	// pointer, both packed into the i64-widened i32 wasmer hands back as
	// an int32 when the module targets wasm32; programs built against this
	// ABI return length-prefixed buffers instead, read here as (ptr) with
	// a 4-byte little-endian length prefix in linear memory.
	data := mem.Data()
	if int(packed)+4 > len(data) || packed < 0 {
		return nil, meter.used, &SandboxError{Kind: "memory-limit", Err: errors.New("returned pointer out of bounds")}
	}
	length := int32(data[packed]) | int32(data[packed+1])<<8 | int32(data[packed+2])<<16 | int32(data[packed+3])<<24
	if int(packed)+4+int(length) > len(data) || length < 0 {
		return nil, meter.used, &SandboxError{Kind: "memory-limit", Err: errors.New("returned buffer out of bounds")}
	}
	out := make([]byte, length)
	copy(out, data[packed+4:packed+4+length])
	return out, meter.used, nil
}

// evalWasm implements the "wasm(path_to_program, arg...)" built-in predicate
// (spec §4.3 "User predicates"): it loads the program blob from state,
// invokes its "evaluate" entry with the resolved arguments, and interprets
// a single returned byte (0x01 / 0x00) as the boolean result.
func evalWasm(guard model.Predicate, c *contract.Commit, s contract.State) (bool, *Failure) {
	if len(guard.Args) < 1 {
		return fail("wasm", "", "expects (path_to_program, arg...)")
	}
	progVal, progArg, err := ResolveArg(guard.Args[0], s)
	if err != nil {
		return fail("wasm", progArg, err.Error())
	}
	if progVal.Suffix != contract.SuffixWasm {
		return fail("wasm", progArg, "argument path is not a .wasm value")
	}

	var marshalled [][]byte
	for _, a := range guard.Args[1:] {
		v, arg, err := ResolveArg(a, s)
		if err != nil {
			return fail("wasm", arg, err.Error())
		}
		marshalled = append(marshalled, []byte(renderValue(v)))
	}

	sb := NewSandbox(nil)
	out, _, err := sb.Invoke(progVal.Wasm, "evaluate", marshalled, DefaultGasLimit)
	if err != nil {
		return fail("wasm", progArg, err.Error())
	}
	if len(out) == 0 {
		return fail("wasm", progArg, "evaluate() returned an empty buffer")
	}
	return boolResult("wasm", progArg, out[0] != 0, "evaluate() returned false")
}
