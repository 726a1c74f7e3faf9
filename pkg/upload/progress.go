package upload

import (
	"io"
	"math"
	"sync"
)

// Tracker averages per-file progress for a batch. Reports may arrive in any
// order from any goroutine; the aggregate is emitted only after every file
// has reported at least once.
type Tracker struct {
	mu        sync.Mutex
	values    []float64
	reported  []bool
	remaining int
	last      float64
	emit      func(percent float64)
}

// NewTracker builds a tracker for n files. emit may be nil.
func NewTracker(n int, emit func(percent float64)) *Tracker {
	return &Tracker{
		values:    make([]float64, n),
		reported:  make([]bool, n),
		remaining: n,
		emit:      emit,
	}
}

// Report records percent (0..100) for file i.
func (t *Tracker) Report(i int, percent float64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.values) {
		return
	}
	percent = clampPercent(percent)
	if percent > t.values[i] {
		t.values[i] = percent
	}
	if !t.reported[i] {
		t.reported[i] = true
		t.remaining--
	}
	if t.remaining > 0 {
		return
	}
	var sum float64
	for _, v := range t.values {
		sum += v
	}
	mean := math.Min(100, sum/float64(len(t.values)))
	if mean < t.last {
		mean = t.last
	}
	t.last = mean
	if t.emit != nil {
		t.emit(mean)
	}
}

// Percent returns the last aggregate emitted.
func (t *Tracker) Percent() float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// progressReader reports read progress of a file body as a percentage.
type progressReader struct {
	r      io.Reader
	size   int64
	read   int64
	report func(percent float64)
}

func newProgressReader(r io.Reader, size int64, report func(percent float64)) *progressReader {
	return &progressReader{r: r, size: size, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	switch {
	case err == io.EOF:
		p.report(100)
	case n > 0 && p.size > 0:
		p.report(float64(p.read) * 100 / float64(p.size))
	}
	return n, err
}
