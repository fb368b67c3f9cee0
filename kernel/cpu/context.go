package cpu

// Continuation is the handle a suspended goroutine waits on. Resuming it hands
// the processor back to that goroutine together with a value that becomes the
// result of the suspended call.
type Continuation chan uint32

// Context is a saved execution state: the kernel stack and frame pointers at
// the point of suspension and the continuation that resumes it.
type Context struct {
	ESP, EBP uint32

	k Continuation
}

// Save records the stack pointers of the suspending goroutine and returns the
// continuation it must park on.
func (ctx *Context) Save(esp, ebp uint32) Continuation {
	ctx.ESP, ctx.EBP = esp, ebp
	ctx.k = make(Continuation, 1)
	return ctx.k
}

// Saved returns true if ctx holds a suspended execution.
func (ctx *Context) Saved() bool {
	return ctx.k != nil
}

// Resume wakes the execution saved in ctx, delivering v, and clears ctx. It
// returns false if nothing was saved.
func (ctx *Context) Resume(v uint32) bool {
	k := ctx.k
	if k == nil {
		return false
	}

	ctx.Clear()
	k <- v
	return true
}

// Clear discards the saved execution.
func (ctx *Context) Clear() {
	ctx.ESP, ctx.EBP, ctx.k = 0, 0, nil
}
