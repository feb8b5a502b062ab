package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

type handlerBox struct{ h ErrorHandler }

var current atomic.Pointer[handlerBox]

func init() {
	current.Store(&handlerBox{&LogHandler{}})
}

// SetHandler installs the process-wide error handler. Nil restores a
// LogHandler writing to slog.Default().
func SetHandler(h ErrorHandler) {
	if h == nil {
		h = &LogHandler{}
	}
	current.Store(&handlerBox{h})
}

// Handler returns the installed error handler.
func Handler() ErrorHandler {
	return current.Load().h
}

// MultiHandler forwards every report to each of its handlers in order.
type MultiHandler []ErrorHandler

func (m MultiHandler) HandleError(err *FiberError) {
	for _, h := range m {
		h.HandleError(err)
	}
}

func (m MultiHandler) HandlePanic(err *PanicError) {
	for _, h := range m {
		h.HandlePanic(err)
	}
}

func (m MultiHandler) HandleRenderError(err *RenderError) {
	for _, h := range m {
		h.HandleRenderError(err)
	}
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

// Report sends err to the installed handler, stamping a zero Timestamp.
func Report(err *FiberError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	Handler().HandleError(err)
}

// ReportPanic sends a recovered panic to the installed handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	Handler().HandlePanic(err)
}

// ReportRenderError sends a render failure to the installed handler.
func ReportRenderError(err *RenderError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	Handler().HandleRenderError(err)
}

// ReportAny routes err to the handler method matching its concrete type.
// Errors that are not one of the package types are wrapped in a FiberError
// attributed to op.
func ReportAny(op string, err error) {
	var (
		renderErr *RenderError
		fiberErr  *FiberError
		panicErr  *PanicError
	)
	switch {
	case err == nil:
	case As(err, &renderErr):
		ReportRenderError(renderErr)
	case As(err, &fiberErr):
		Report(fiberErr)
	case As(err, &panicErr):
		ReportPanic(panicErr)
	default:
		Report(&FiberError{Op: op, Kind: KindUnknown, Err: err})
	}
}

// Recover reports a panic in progress. Use it deferred:
//
//	defer errors.Recover("platform.Loop")
func Recover(op string) {
	if r := recover(); r != nil {
		ReportPanic(&PanicError{Op: op, Value: r, StackTrace: CaptureStack()})
	}
}

// CaptureStack formats the caller's stack, one "function\n\tfile:line"
// entry per frame, omitting CaptureStack and runtime.Callers.
func CaptureStack() string {
	pcs := make([]uintptr, 32)
	pcs = pcs[:runtime.Callers(3, pcs)]
	if len(pcs) == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			return sb.String()
		}
	}
}
