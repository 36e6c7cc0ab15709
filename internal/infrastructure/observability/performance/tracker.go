package performance

import (
	"sort"
	"sync"
	"time"
)

// Tracker keeps the most recent completed markers and aggregates them on demand.
type Tracker struct {
	mu            sync.RWMutex
	completed     []Marker
	next          int
	full          bool
	slowThreshold time.Duration
	started       time.Time
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers    int           // Completed markers retained
	SlowThreshold time.Duration // Operations above this count as slow
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:    1000,
		SlowThreshold: 500 * time.Millisecond,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	if config.MaxMarkers <= 0 {
		config.MaxMarkers = DefaultTrackerConfig().MaxMarkers
	}
	return &Tracker{
		completed:     make([]Marker, config.MaxMarkers),
		slowThreshold: config.SlowThreshold,
		started:       time.Now(),
	}
}

// StartOperation creates a marker for an operation. Success is assumed until set otherwise.
func (t *Tracker) StartOperation(operation, visitorID string) *Marker {
	return &Marker{
		Operation: operation,
		VisitorID: visitorID,
		StartTime: time.Now(),
		Success:   true,
		tracker:   t,
	}
}

func (t *Tracker) record(m Marker) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed[t.next] = m
	t.next = (t.next + 1) % len(t.completed)
	if t.next == 0 {
		t.full = true
	}
}

// Recent returns completed markers, newest first.
func (t *Tracker) Recent() []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.next
	if t.full {
		n = len(t.completed)
	}
	out := make([]Marker, 0, n)
	for i := 1; i <= n; i++ {
		idx := (t.next - i + len(t.completed)) % len(t.completed)
		out = append(out, t.completed[idx])
	}
	return out
}

// OperationStats summarizes the retained markers of one operation.
type OperationStats struct {
	Operation string        `json:"operation"`
	Count     int           `json:"count"`
	Failures  int           `json:"failures"`
	Slow      int           `json:"slow"`
	Average   time.Duration `json:"average"`
	Max       time.Duration `json:"max"`
}

// Stats aggregates retained markers per operation, sorted by operation name.
func (t *Tracker) Stats() []OperationStats {
	byOp := make(map[string]*OperationStats)
	var total = make(map[string]time.Duration)

	for _, m := range t.Recent() {
		s, ok := byOp[m.Operation]
		if !ok {
			s = &OperationStats{Operation: m.Operation}
			byOp[m.Operation] = s
		}
		s.Count++
		total[m.Operation] += m.Duration
		if !m.Success {
			s.Failures++
		}
		if t.slowThreshold > 0 && m.Duration > t.slowThreshold {
			s.Slow++
		}
		if m.Duration > s.Max {
			s.Max = m.Duration
		}
	}

	out := make([]OperationStats, 0, len(byOp))
	for op, s := range byOp {
		s.Average = total[op] / time.Duration(s.Count)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

// Uptime returns how long the tracker has been running.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}
