// Package errors provides structured error handling for the weave runtime.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindRender indicates a failure while rendering a fiber.
	KindRender
	// KindHook indicates a hook contract violation.
	KindHook
	// KindCommit indicates a render-target failure during commit.
	KindCommit
	// KindEffect indicates a failure inside an effect callback or cleanup.
	KindEffect
	// KindPanic indicates a recovered panic.
	KindPanic
	// KindConfig indicates invalid runtime configuration.
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindHook:
		return "hook"
	case KindCommit:
		return "commit"
	case KindEffect:
		return "effect"
	case KindPanic:
		return "panic"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

var (
	// ErrNoActiveRender is returned when a hook is called outside a component render.
	ErrNoActiveRender = stderrors.New("no active render")
	// ErrHookOrder is returned when a component calls its hooks in a different
	// order or number than in the previous render.
	ErrHookOrder = stderrors.New("hook order mismatch")
)

// FiberError represents a structured error attributed to a fiber.
type FiberError struct {
	// Op is the operation that failed (e.g., "core.commitPlacement").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Fiber describes the fiber involved, if any (e.g., "div#2").
	Fiber string
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *FiberError) Error() string {
	if e.Fiber != "" {
		return fmt.Sprintf("%s [%s] fiber=%s: %v", e.Op, e.Kind, e.Fiber, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *FiberError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "platform.Loop").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// RenderError represents a failure while rendering a component or creating
// a host node.
type RenderError struct {
	// Component is the type name of the fiber that failed.
	Component string
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error (nil for panics that are not errors).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("error in %s render: %v", e.Component, e.Err)
	}
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s render: %v", e.Component, e.Recovered)
	}
	return fmt.Sprintf("unknown error in %s render", e.Component)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// HookError reports a hook contract violation at a given slot.
type HookError struct {
	// Component is the name of the component whose render misused a hook.
	Component string
	// Slot is the hook cursor position at which the violation was detected.
	Slot int
	// Detail adds context such as the expected and actual slot kind.
	Detail string
	// Err is ErrNoActiveRender or ErrHookOrder.
	Err error
}

func (e *HookError) Error() string {
	msg := fmt.Sprintf("%v: %s slot %d", e.Err, e.Component, e.Slot)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives errors reported by the runtime.
type ErrorHandler interface {
	// HandleError is called when an operation fails.
	HandleError(err *FiberError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleRenderError is called when a render fails.
	HandleRenderError(err *RenderError)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
