package fusion

// Sample is one fused record per pipeline tick. It is never modified after
// it has been appended to a SampleBuffer.
type Sample struct {
	Timestamp        float64 // s
	GNSSValid        bool    // a new, distinct fix arrived since the previous tick
	GNSSPosition     Vec3    // zero unless GNSSValid
	Velocity         Vec3    // m/s, ENU
	CorrectedSpeed   float64 // m/s after scale-factor correction
	Distance         float64 // cumulative odometer, m
	HeadingAvailable bool
}

// SampleBuffer is a bounded ring of samples in append order. Only Append
// drops samples, and only the oldest one when the ring is full.
type SampleBuffer struct {
	data []Sample
	head int
	n    int
}

func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleBuffer{data: make([]Sample, capacity)}
}

func (b *SampleBuffer) Len() int   { return b.n }
func (b *SampleBuffer) Cap() int   { return len(b.data) }
func (b *SampleBuffer) full() bool { return b.n == len(b.data) }

// Append adds s at the tail, evicting the oldest sample when full.
func (b *SampleBuffer) Append(s Sample) {
	if b.n < len(b.data) {
		b.data[(b.head+b.n)%len(b.data)] = s
		b.n++
		return
	}
	b.data[b.head] = s
	b.head = (b.head + 1) % len(b.data)
}

// At returns the i-th sample, 0 being the oldest. It panics when i is out
// of range, like a slice index.
func (b *SampleBuffer) At(i int) Sample {
	if i < 0 || i >= b.n {
		panic("fusion: SampleBuffer index out of range")
	}
	return b.data[(b.head+i)%len(b.data)]
}

// newest returns the most recent sample and false on an empty buffer.
func (b *SampleBuffer) newest() (Sample, bool) {
	if b.n == 0 {
		return Sample{}, false
	}
	return b.At(b.n - 1), true
}

// Tail copies the newest n samples, oldest first.
func (b *SampleBuffer) Tail(n int) []Sample {
	if n > b.n {
		n = b.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]Sample, n)
	start := b.n - n
	for i := range out {
		out[i] = b.At(start + i)
	}
	return out
}

// DistanceLookback returns the smallest n in [1, Len-1] such that the
// odometer advanced by at least span between sample Len-1-n and the newest
// sample, i.e. the traveled-distance increments of the last n samples sum
// to span or more. When the buffer never covers span it returns Len.
func (b *SampleBuffer) DistanceLookback(span float64) int {
	if b.n == 0 {
		return 0
	}
	last := b.At(b.n - 1).Distance
	for n := 1; n < b.n; n++ {
		if last-b.At(b.n-1-n).Distance >= span {
			return n
		}
	}
	return b.n
}

// FirstIndex returns the index of the oldest sample matching pred, or -1.
func (b *SampleBuffer) FirstIndex(pred func(Sample) bool) int {
	for i := 0; i < b.n; i++ {
		if pred(b.At(i)) {
			return i
		}
	}
	return -1
}
