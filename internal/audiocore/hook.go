package audiocore

// FrameHook is user processing run once per callback after the ring block
// and voices have been written to output. streamTime is the time of the
// first frame of the block. input is nil for output-only streams. output
// may be modified in place.
//
// The hook runs on the real-time thread: it must not block, allocate or
// take locks shared with other goroutines. Panics are recovered and the
// block is replaced with silence.
type FrameHook func(streamTime float64, input, output []float32, frames int)

// GenericHandler receives OpGeneric commands on the real-time thread. The
// same restrictions as FrameHook apply.
type GenericHandler func(id, pid int32, value float64)

// SetFrameHook installs hook for subsequent callbacks. A nil hook removes
// the current one. The swap is atomic; a callback in flight finishes with
// the hook it loaded.
func (e *Engine) SetFrameHook(hook FrameHook) {
	if hook == nil {
		e.hook.Store(nil)
		return
	}
	e.hook.Store(&hook)
}

// SetGenericHandler installs the handler for OpGeneric commands
func (e *Engine) SetGenericHandler(h GenericHandler) {
	if h == nil {
		e.generic.Store(nil)
		return
	}
	e.generic.Store(&h)
}
