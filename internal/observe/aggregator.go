package observe

import (
	"sync"
	"time"
)

const unclassified = "unknown"

// Counts splits completed requests by outcome.
type Counts struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Errors  int64 `json:"errors"`
}

func (c *Counts) add(success bool) {
	c.Total++
	if success {
		c.Success++
	} else {
		c.Errors++
	}
}

// Snapshot is a point-in-time copy of the aggregated totals.
type Snapshot struct {
	Counts
	SuccessRate  float64           `json:"success_rate"`
	AvgLatencyMs float64           `json:"avg_latency_ms"`
	ByProvider   map[string]Counts `json:"by_provider"`
	ByEventType  map[string]Counts `json:"by_event_type"`
	StatusCodes  map[int]int64     `json:"status_codes"`
}

// Aggregator reduces completed events into running totals.
type Aggregator struct {
	mu          sync.Mutex
	totals      Counts
	latencySum  time.Duration
	byProvider  map[string]*Counts
	byEventType map[string]*Counts
	statusCodes map[int]int64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byProvider:  map[string]*Counts{},
		byEventType: map[string]*Counts{},
		statusCodes: map[int]int64{},
	}
}

// Observer returns the completed-event slot feeding this aggregator.
func (a *Aggregator) Observer() Observer {
	return Observer{Name: "aggregator", OnCompleted: a.Record}
}

func (a *Aggregator) Record(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totals.add(ev.Success)
	a.latencySum += ev.Duration

	bucket(a.byProvider, ev.Provider).add(ev.Success)
	bucket(a.byEventType, ev.EventType).add(ev.Success)
	a.statusCodes[ev.Status]++
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		Counts:      a.totals,
		ByProvider:  make(map[string]Counts, len(a.byProvider)),
		ByEventType: make(map[string]Counts, len(a.byEventType)),
		StatusCodes: make(map[int]int64, len(a.statusCodes)),
	}
	if s.Total > 0 {
		s.AvgLatencyMs = float64(a.latencySum) / float64(s.Total) / float64(time.Millisecond)
		s.SuccessRate = float64(s.Success) / float64(s.Total) * 100
	}
	for k, v := range a.byProvider {
		s.ByProvider[k] = *v
	}
	for k, v := range a.byEventType {
		s.ByEventType[k] = *v
	}
	for k, v := range a.statusCodes {
		s.StatusCodes[k] = v
	}
	return s
}

// Reset clears all totals.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totals = Counts{}
	a.latencySum = 0
	a.byProvider = map[string]*Counts{}
	a.byEventType = map[string]*Counts{}
	a.statusCodes = map[int]int64{}
}

func bucket(m map[string]*Counts, key string) *Counts {
	if key == "" {
		key = unclassified
	}
	c, ok := m[key]
	if !ok {
		c = &Counts{}
		m[key] = c
	}
	return c
}
