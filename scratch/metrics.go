package scratch

// Top returns the current end of the live region, in bytes.
func (m *Memory) Top() int { return m.top }

// Capacity returns the size of the backing block in bytes.
func (m *Memory) Capacity() int { return len(m.buf) }

// Peak returns the highest top ever reached. Unlike Capacity it reflects
// actual use, and it is never reset by scope exits.
func (m *Memory) Peak() int { return m.peak }

// Grows returns how many times the backing block has been relocated.
// A steady-state workload that fits the warmed-up block keeps this flat.
func (m *Memory) Grows() int { return m.grows }

// MaxAlign returns the maximum element alignment this Memory guarantees.
func (m *Memory) MaxAlign() int { return m.maxAlign }

// Utilization returns top/capacity (0.0 to 1.0), or 0 with no capacity.
func (m *Memory) Utilization() float64 {
	if len(m.buf) == 0 {
		return 0
	}
	return float64(m.top) / float64(len(m.buf))
}

// MemoryMetrics is a snapshot of a Memory's usage counters.
type MemoryMetrics struct {
	Top         int     // bytes currently live
	Capacity    int     // backing block size in bytes
	Peak        int     // high-water mark over the Memory's lifetime
	Grows       int     // backing block relocations
	MaxAlign    int     // guaranteed maximum element alignment
	Utilization float64 // Top / Capacity
}

// Metrics returns a snapshot of the Memory's usage counters.
func (m *Memory) Metrics() MemoryMetrics {
	return MemoryMetrics{
		Top:         m.Top(),
		Capacity:    m.Capacity(),
		Peak:        m.Peak(),
		Grows:       m.Grows(),
		MaxAlign:    m.MaxAlign(),
		Utilization: m.Utilization(),
	}
}
