package execution

// Operator is a single pipeline stage driven through the pull/push page
// protocol. The driver has to serialize all calls on a given operator; the
// operator itself does no locking.
//
// The driving loop looks like this: while the operator isn't finished, hand it
// a page whenever it reports NeedsInput (or call Finish once the input is
// drained), and forward whatever GetOutput produces downstream.
type Operator interface {
	// NeedsInput reports whether the operator can accept a page right now.
	// It's true only if there's no page in flight and the output buffer has
	// room, so at most one page is ever held.
	NeedsInput() bool
	// AddInput hands a page over to the operator, which takes ownership of
	// it. Calling it while finishing, while a page is still in flight, or
	// while the output buffer is full is a driver bug and returns an error.
	AddInput(page Page) error
	// GetOutput produces the next output page, if any. Returning false means
	// "call again after providing more input or once finishing" rather than
	// an end-of-stream condition.
	GetOutput() (Page, bool)
	// Finish signals that no more input will arrive. Idempotent.
	Finish()
	// IsFinished reports whether the operator is fully drained. Only ever
	// true after Finish has been called.
	IsFinished() bool
}

// OperatorFactory creates independent operator instances from one
// configuration, so a pipeline can be replicated across partitions. Instances
// share no mutable state.
type OperatorFactory interface {
	CreateOperator() (Operator, error)
	// Duplicate returns an independent, open factory with the same
	// configuration.
	Duplicate() OperatorFactory
	// Close marks the factory as closed; CreateOperator fails afterwards.
	Close()
}
