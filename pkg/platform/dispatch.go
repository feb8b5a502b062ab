package platform

import "sync/atomic"

var dispatcher atomic.Pointer[func(callback func())]

// RegisterDispatch installs the embedder's native "run when idle"
// primitive used by IdleHost. Nil unregisters it.
func RegisterDispatch(fn func(callback func())) {
	if fn == nil {
		dispatcher.Store(nil)
		return
	}
	dispatcher.Store(&fn)
}

// Dispatch hands callback to the registered primitive. It reports false,
// without running callback, when nothing is registered or callback is nil.
func Dispatch(callback func()) bool {
	fn := dispatcher.Load()
	if fn == nil || callback == nil {
		return false
	}
	(*fn)(callback)
	return true
}
