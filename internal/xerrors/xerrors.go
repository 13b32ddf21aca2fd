// Package xerrors adds call-site information to errors so the log package
// can render stack traces and per-wrap frames without the caller doing
// anything beyond wrapping.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// withStack carries a full stack captured where the error was created or
// first stamped.
type withStack struct {
	err error
	pcs []uintptr
}

func (w *withStack) Error() string       { return w.err.Error() }
func (w *withStack) Unwrap() error       { return w.err }
func (w *withStack) StackPCs() []uintptr { return w.pcs }
func (w *withStack) IsXerrorsWrapper()   {}

// wrap carries a message and the single program counter of the wrap site.
type wrap struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrap) Error() string     { return w.msg + ": " + w.err.Error() }
func (w *wrap) Unwrap() error     { return w.err }
func (w *wrap) PC() uintptr       { return w.pc }
func (w *wrap) IsXerrorsWrapper() {}

func captureStack(skip int) []uintptr {
	const maxDepth = 64
	pcs := make([]uintptr, maxDepth)
	// 2 skips runtime.Callers and captureStack itself
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	if n := runtime.Callers(2+skip, pcs[:]); n == 0 {
		return 0
	}
	return pcs[0]
}

func stackedSkip(err error, skip int) error {
	if err == nil {
		return nil
	}
	return &withStack{err: err, pcs: captureStack(skip)}
}

// New returns an error with a stack captured at the call site.
func New(msg string) error { return stackedSkip(errors.New(msg), 2) }

// Newf is New with fmt.Sprintf formatting.
func Newf(format string, args ...any) error {
	return stackedSkip(fmt.Errorf(format, args...), 2)
}

// Wrap annotates err with msg and the wrap site's program counter. Returns
// nil when err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: msg, pc: callerPC(1)}
}

// Wrapf is Wrap with fmt.Sprintf formatting.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: fmt.Sprintf(format, args...), pc: callerPC(1)}
}

// WithStack stamps err with a stack captured here, without changing its
// message. Returns nil when err is nil.
func WithStack(err error) error { return stackedSkip(err, 2) }

// EnsureTrace stamps a stack onto err only if no wrapper in the chain
// already carries one. Use at package boundaries where the error's origin is
// unknown.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var hs interface{ StackPCs() []uintptr }
	if errors.As(err, &hs) && hs != nil && len(hs.StackPCs()) > 0 {
		return err
	}
	return stackedSkip(err, 2)
}
