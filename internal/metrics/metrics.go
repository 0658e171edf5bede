// Package metrics provides lightweight performance counters for the
// translation service.
//
// Counters use sync/atomic so request handling incurs no mutex contention.
// Latency statistics use a single mutex per dimension and are updated at most
// once per request.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all runtime counters for a running server instance.
// Use New(); the zero value has no start time.
type Metrics struct {
	// Request counters
	RequestsTotal    atomic.Int64
	RequestsRejected atomic.Int64
	Translations     atomic.Int64

	// Protected term volume
	TermsMasked      atomic.Int64
	TermsRestored    atomic.Int64
	DemaskAnomalies  atomic.Int64
	MarkerCollisions atomic.Int64

	// Dictionary mutations
	TermsAdded   atomic.Int64
	TermsDeleted atomic.Int64

	// Error counters
	ErrorsPipeline atomic.Int64
	ErrorsStore    atomic.Int64

	translateMu   sync.Mutex
	translateStat latencyStats

	pipelineMu   sync.Mutex
	pipelineStat latencyStats

	startTime time.Time
}

// New returns a new Metrics with the start time recorded.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordTranslateLatency records the duration of one full translate call.
func (m *Metrics) RecordTranslateLatency(d time.Duration) {
	m.translateMu.Lock()
	m.translateStat.record(float64(d.Microseconds()) / 1000.0)
	m.translateMu.Unlock()
}

// RecordPipelineLatency records the time spent inside the stage pipeline.
func (m *Metrics) RecordPipelineLatency(d time.Duration) {
	m.pipelineMu.Lock()
	m.pipelineStat.record(float64(d.Microseconds()) / 1000.0)
	m.pipelineMu.Unlock()
}

// Uptime returns the time since New.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.translateMu.Lock()
	translate := m.translateStat.snapshot()
	m.translateMu.Unlock()

	m.pipelineMu.Lock()
	pipeline := m.pipelineStat.snapshot()
	m.pipelineMu.Unlock()

	return Snapshot{
		Requests: RequestSnapshot{
			Total:        m.RequestsTotal.Load(),
			Rejected:     m.RequestsRejected.Load(),
			Translations: m.Translations.Load(),
		},
		Terms: TermSnapshot{
			Masked:     m.TermsMasked.Load(),
			Restored:   m.TermsRestored.Load(),
			Anomalies:  m.DemaskAnomalies.Load(),
			Collisions: m.MarkerCollisions.Load(),
			Added:      m.TermsAdded.Load(),
			Deleted:    m.TermsDeleted.Load(),
		},
		Errors: ErrorSnapshot{
			Pipeline: m.ErrorsPipeline.Load(),
			Store:    m.ErrorsStore.Load(),
		},
		Latency: LatencyGroup{
			TranslateMs: translate,
			PipelineMs:  pipeline,
		},
		UptimeSecs: round2(m.Uptime().Seconds()),
	}
}

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Requests   RequestSnapshot `json:"requests"`
	Terms      TermSnapshot    `json:"terms"`
	Errors     ErrorSnapshot   `json:"errors"`
	Latency    LatencyGroup    `json:"latency"`
	UptimeSecs float64         `json:"uptimeSecs"`
}

// RequestSnapshot holds request-level counters.
type RequestSnapshot struct {
	Total        int64 `json:"total"`
	Rejected     int64 `json:"rejected"`
	Translations int64 `json:"translations"`
}

// TermSnapshot holds protected term counters.
type TermSnapshot struct {
	Masked     int64 `json:"masked"`
	Restored   int64 `json:"restored"`
	Anomalies  int64 `json:"anomalies"`
	Collisions int64 `json:"collisions"`
	Added      int64 `json:"added"`
	Deleted    int64 `json:"deleted"`
}

// ErrorSnapshot holds error counters.
type ErrorSnapshot struct {
	Pipeline int64 `json:"pipeline"`
	Store    int64 `json:"store"`
}

// LatencyGroup groups the latency dimensions.
type LatencyGroup struct {
	TranslateMs LatencySnapshot `json:"translateMs"`
	PipelineMs  LatencySnapshot `json:"pipelineMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
