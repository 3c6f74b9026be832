package control

import (
	"time"
)

// ErrorSample is a timestamped controller error.
type ErrorSample struct {
	Time  time.Time
	Value float64
}

// ErrorBuffer is a fixed capacity ring of error samples ordered by arrival. Pushing into a full
// buffer evicts the oldest sample. It is not safe for concurrent use.
type ErrorBuffer struct {
	samples []ErrorSample
	start   int
	size    int
}

// NewErrorBuffer returns an empty buffer holding at most capacity samples. A capacity below one is
// treated as one.
func NewErrorBuffer(capacity int) *ErrorBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ErrorBuffer{samples: make([]ErrorSample, capacity)}
}

// Cap returns the capacity of the buffer.
func (b *ErrorBuffer) Cap() int {
	return len(b.samples)
}

// Len returns the number of samples held.
func (b *ErrorBuffer) Len() int {
	return b.size
}

// Push appends a sample, evicting the oldest one when full.
func (b *ErrorBuffer) Push(s ErrorSample) {
	if b.size < len(b.samples) {
		b.samples[(b.start+b.size)%len(b.samples)] = s
		b.size++
		return
	}
	b.samples[b.start] = s
	b.start = (b.start + 1) % len(b.samples)
}

// At returns the i-th oldest sample.
func (b *ErrorBuffer) At(i int) ErrorSample {
	return b.samples[(b.start+i)%len(b.samples)]
}

// Last returns the newest sample.
func (b *ErrorBuffer) Last() (ErrorSample, bool) {
	if b.size == 0 {
		return ErrorSample{}, false
	}
	return b.At(b.size - 1), true
}

// Samples returns a copy of the held samples, oldest first.
func (b *ErrorBuffer) Samples() []ErrorSample {
	out := make([]ErrorSample, b.size)
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

// Integral is the trapezoidal integral of the held samples over time in seconds.
func (b *ErrorBuffer) Integral() float64 {
	var sum float64
	for i := 1; i < b.size; i++ {
		prev, cur := b.At(i-1), b.At(i)
		sum += 0.5 * (cur.Value + prev.Value) * cur.Time.Sub(prev.Time).Seconds()
	}
	return sum
}

// Reset drops all samples.
func (b *ErrorBuffer) Reset() {
	b.start, b.size = 0, 0
}
