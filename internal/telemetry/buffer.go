package telemetry

// History capacities. The multi-connection dashboard keeps 50 points per
// metric; the single-connection page kept 100.
const (
	DefaultHistorySize = 50
	SingleHistorySize  = 100
)

// RollingBuffer is a fixed-capacity FIFO of float64 samples backed by a ring.
// Appending at capacity evicts the oldest value. Not safe for concurrent use;
// the Manager serializes access.
type RollingBuffer struct {
	data  []float64
	head  int // next write position
	count int
}

// NewRollingBuffer creates a buffer holding at most capacity values.
// A non-positive capacity falls back to DefaultHistorySize.
func NewRollingBuffer(capacity int) *RollingBuffer {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &RollingBuffer{
		data: make([]float64, capacity),
	}
}

// Append pushes v to the tail, evicting the head when full.
func (r *RollingBuffer) Append(v float64) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// Len returns the number of stored values.
func (r *RollingBuffer) Len() int {
	return r.count
}

// Cap returns the configured capacity.
func (r *RollingBuffer) Cap() int {
	return len(r.data)
}

// Last returns the most recent value.
func (r *RollingBuffer) Last() (float64, bool) {
	if r.count == 0 {
		return 0, false
	}
	return r.data[(r.head-1+len(r.data))%len(r.data)], true
}

// Snapshot returns an independent copy of the values, oldest first.
func (r *RollingBuffer) Snapshot() []float64 {
	out := make([]float64, r.count)

	// head points at the next write slot; the oldest value sits count slots behind it
	start := (r.head - r.count + len(r.data)) % len(r.data)
	for i := 0; i < r.count; i++ {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}

// Labels returns x-axis labels 0..Len()-1 for the current contents.
func (r *RollingBuffer) Labels() []int {
	return indexLabels(r.count)
}

// Reset drops all values, keeping the capacity.
func (r *RollingBuffer) Reset() {
	r.head = 0
	r.count = 0
}

func indexLabels(n int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	return labels
}
