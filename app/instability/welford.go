package instability

import "math"

// welford accumulates running mean and variance in a single pass
// without a stored sum of squares, which stays numerically stable for
// the small windows used here.
type welford struct {
	count int
	mean  float64
	m2    float64
}

func (w *welford) add(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (x - w.mean)
}

// variance returns the sample variance; zero below two samples.
func (w *welford) variance() float64 {
	if w.count < 2 {
		return 0
	}
	return w.m2 / float64(w.count-1)
}

func (w *welford) stddev() float64 {
	return math.Sqrt(w.variance())
}
