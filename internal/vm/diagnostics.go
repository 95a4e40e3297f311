package vm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oyc-lang/oyc/internal/bytecode"
)

// TraceInfo describes a single instruction dispatch for debugging/profiling.
type TraceInfo struct {
	Op       byte
	Function string
	Source   string
	Line     int
	IP       int
}

// TraceHook observes instruction dispatch.
type TraceHook func(TraceInfo)

// FrameInfo captures one call frame at the time of an error or trace event.
type FrameInfo struct {
	Function string
	Source   string
	Line     int
	IP       int
}

// RuntimeError carries source/stack information for a VM failure (spec.md
// §7: "each carries a source position... for the outermost offending
// construct"). ID is a correlation id a host can log alongside its own
// request tracing.
type RuntimeError struct {
	ID      string
	Message string
	Frame   FrameInfo
	Stack   []FrameInfo
	Cause   error
}

func (e *RuntimeError) Error() string {
	var loc []string
	if e.Frame.Source != "" {
		if e.Frame.Line > 0 {
			loc = append(loc, fmt.Sprintf("%s:%d", e.Frame.Source, e.Frame.Line))
		} else {
			loc = append(loc, e.Frame.Source)
		}
	} else if e.Frame.Line > 0 {
		loc = append(loc, fmt.Sprintf("line %d", e.Frame.Line))
	}
	if e.Frame.Function != "" {
		loc = append(loc, fmt.Sprintf("in %s", e.Frame.Function))
	}
	if l := strings.Join(loc, " "); l != "" {
		return fmt.Sprintf("%s: %s", l, e.Message)
	}
	return e.Message
}

// Unwrap exposes the original error, if any.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

func (vm *VM) errorf(fr *frame, format string, args ...interface{}) error {
	return vm.newRuntimeError(fr, fmt.Sprintf(format, args...), nil)
}

// wrapError promotes a plain Go error raised deep in a helper (e.g. a Go
// stdlib parse error from strconv) into a RuntimeError carrying the
// current frame's location, unless it already is one — errors propagate
// through require frames unchanged per spec.md §7.
func (vm *VM) wrapError(fr *frame, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*RuntimeError); ok {
		return err
	}
	return vm.newRuntimeError(fr, err.Error(), err)
}

func (vm *VM) newRuntimeError(fr *frame, msg string, cause error) *RuntimeError {
	return &RuntimeError{
		ID:      uuid.NewString(),
		Message: msg,
		Frame:   vm.frameInfo(fr),
		Stack:   vm.stackTrace(),
		Cause:   cause,
	}
}

func (vm *VM) emitTrace(fr *frame, op byte) {
	if vm.traceHook == nil {
		return
	}
	info := vm.frameInfo(fr)
	vm.traceHook(TraceInfo{Op: op, Function: info.Function, Source: info.Source, Line: info.Line, IP: info.IP})
}

// stackTrace walks the live call stack, innermost first, for a required
// script's error to surface "the requiring site appended to a call chain"
// (spec.md §7).
func (vm *VM) stackTrace() []FrameInfo {
	trace := make([]FrameInfo, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		trace = append(trace, vm.frameInfo(vm.frames[i]))
	}
	return trace
}

func (vm *VM) frameInfo(fr *frame) FrameInfo {
	if fr == nil || fr.proto == nil {
		return FrameInfo{}
	}
	return FrameInfo{
		Function: fr.proto.Name,
		Source:   fr.proto.Source,
		Line:     lineForOffset(fr.proto.Chunk, fr.lastOp),
		IP:       fr.lastOp,
	}
}

func lineForOffset(chunk *bytecode.Chunk, offset int) int {
	if chunk == nil || offset < 0 {
		return 0
	}
	line := 0
	for _, info := range chunk.Lines {
		if offset < info.Offset {
			break
		}
		line = info.Line
	}
	return line
}
