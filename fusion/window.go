package fusion

// Window is the trailing run of buffered samples used for one tick.
type Window struct {
	Start     int // buffer index of Samples[0]
	Samples   []Sample
	Saturated bool // the window spans the whole buffer capacity
}

func (w Window) Len() int { return len(w.Samples) }

// SelectWindow picks the shortest suffix of buf covering span meters of
// traveled distance, or all of buf when it covers less. A window equal to
// the buffer capacity is marked Saturated: older history may already have
// been evicted without being accounted for.
func SelectWindow(buf *SampleBuffer, span float64) Window {
	n := buf.DistanceLookback(span)
	return Window{
		Start:     buf.Len() - n,
		Samples:   buf.Tail(n),
		Saturated: n > 0 && n == buf.Cap(),
	}
}
