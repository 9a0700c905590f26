package monitor

// maxBackoffShift caps the retry interval at 32 polls.
const maxBackoffShift = 5

// Backoff spaces out calls to a failing dependency: after n consecutive
// failures only polls divisible by 2^min(n,5) try again.
type Backoff struct {
	failures int
}

// ShouldTry reports whether poll may call the dependency.
func (b *Backoff) ShouldTry(poll uint64) bool {
	if b.failures == 0 {
		return true
	}
	return poll%b.Interval() == 0
}

// Interval is the current spacing in polls.
func (b *Backoff) Interval() uint64 {
	return uint64(1) << min(b.failures, maxBackoffShift)
}

func (b *Backoff) Success()      { b.failures = 0 }
func (b *Backoff) Failure()      { b.failures++ }
func (b *Backoff) Failures() int { return b.failures }
