// Package progress defines the cooperative progress callback shared by the
// long-running passes over a data set, and a Reporter that throttles it.
//
// A pass reports a fraction in [0,1] a bounded number of times, independent of
// the amount of work, and finishes with a single call carrying Done. Whether a
// false return from the callback stops the pass is an explicit property of
// the Reporter, not of the callback.
package progress

// Done is the fraction passed on the final call of a pass. It tells the
// receiver to remove any progress indicator; the pass finishes regardless of
// the return value.
const Done = 2.0

// UpdateDivider is the number of intermediate reports a pass makes. Work units
// are grouped so that the callback runs about this many times per pass.
const UpdateDivider = 40

// Func receives progress. message is empty except for the first call of a
// pass. The return value asks the pass to continue; it is only honoured by
// cancellable passes.
type Func func(message string, fraction float64) bool

// Reporter throttles a Func over a fixed number of work units.
type Reporter struct {
	fn          Func
	total       int
	divider     int
	cancellable bool
	stopped     bool
}

// NewReporter prepares reports over total work units. fn may be nil, in which
// case every method is a no-op that asks to continue.
func NewReporter(fn Func, total int, cancellable bool) *Reporter {
	divider := total / UpdateDivider
	if divider < 1 {
		divider = 1
	}
	return &Reporter{
		fn:          fn,
		total:       total,
		divider:     divider,
		cancellable: cancellable,
	}
}

// Cancellable reports whether a false return from the callback stops the pass.
func (r *Reporter) Cancellable() bool { return r.cancellable }

// Stopped reports whether a cancellable pass has been asked to stop.
func (r *Reporter) Stopped() bool { return r.stopped }

// Start sends the opening message at fraction 0.
func (r *Reporter) Start(message string) bool {
	return r.send(message, 0)
}

// Step reports unit i of total when i falls on the throttling cadence.
func (r *Reporter) Step(i int) bool {
	if r.fn == nil || i%r.divider != 0 {
		return !r.stopped
	}
	return r.send("", float64(i)/float64(r.total))
}

// Finish sends Done. The callback's answer is ignored: the pass is ending
// either way.
func (r *Reporter) Finish() {
	if r.fn != nil {
		r.fn("", Done)
	}
}

func (r *Reporter) send(message string, fraction float64) bool {
	if r.fn == nil {
		return !r.stopped
	}
	cont := r.fn(message, fraction)
	if r.cancellable && !cont {
		r.stopped = true
	}
	return !r.stopped
}
