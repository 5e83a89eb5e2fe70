// Package batch defines the batched command executor the flashing engine
// drives the target through.  A batch is an ordered stream of push, call
// and drop operations submitted in one round trip; the executor returns one
// result per call site.  The engine only composes op streams and interprets
// results; the transport behind the executor is somebody else's problem.
package batch

import (
	"errors"
	"time"
)

// OpKind discriminates the batch stream operations.
type OpKind uint8

const (
	OpPush OpKind = iota
	OpPushNone
	OpCall
	OpDropN
	OpDone
)

// Op is one element of a batch stream.
type Op struct {
	Kind OpKind
	Arg  uint8
}

// Push places a byte on the argument stack.
func Push(v uint8) Op { return Op{Kind: OpPush, Arg: v} }

// PushNone places an absent argument on the stack (e.g. the length of a
// block read, which the device supplies).
func PushNone() Op { return Op{Kind: OpPushNone} }

// Call invokes a named executor function against the current stack.
func Call(f Func) Op { return Op{Kind: OpCall, Arg: f.ID} }

// DropN removes the top n stack entries.
func DropN(n uint8) Op { return Op{Kind: OpDropN, Arg: n} }

// Done terminates the batch.
func Done() Op { return Op{Kind: OpDone} }

// Func identifies an executor function usable in Call ops.
type Func struct {
	ID    uint8
	Name  string
	NArgs int
}

// Result is the outcome of one call site: either a byte sequence or an
// opaque device error code rendered through Executor.Strerror.
type Result struct {
	Data   []byte
	Code   uint32
	Failed bool
}

// Ok wraps a successful call result.
func Ok(data []byte) Result { return Result{Data: data} }

// Fail wraps a device error code.
func Fail(code uint32) Result { return Result{Code: code, Failed: true} }

// ErrUnknownFunc is returned by Executor.Func for a name the executor does
// not implement.
var ErrUnknownFunc = errors.New("unknown executor function")

// Executor runs batches against the attached device.  Run blocks until the
// whole batch completes or the timeout elapses, and returns exactly one
// Result per Call op.  A returned error means the batch itself could not
// be executed; per-call device failures come back inside the Results.
type Executor interface {
	Func(name string, nargs int) (Func, error)
	Run(ops []Op, timeout time.Duration) ([]Result, error)
	Strerror(code uint32) string
}
