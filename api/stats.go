package api

import (
	"sync/atomic"
	"time"

	"phishing-detector/detector"
)

// Stats counts analyze requests. The zero value is not usable; see NewStats.
type Stats struct {
	started   time.Time
	total     atomic.Int64
	succeeded atomic.Int64
	phishing  atomic.Int64
	rejected  atomic.Int64
	failures  [detector.KindServiceUnavailable + 1]atomic.Int64
	totalNano atomic.Int64
}

func NewStats(now time.Time) *Stats {
	return &Stats{started: now}
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	TotalRequests         int64            `json:"total_requests"`
	SuccessfulPredictions int64            `json:"successful_predictions"`
	PhishingDetected      int64            `json:"phishing_detected"`
	RejectedRequests      int64            `json:"rejected_requests"`
	Failures              map[string]int64 `json:"failures"`
	AverageResponseTime   float64          `json:"average_response_time"`
	UptimeSeconds         int64            `json:"uptime_seconds"`
	Timestamp             time.Time        `json:"timestamp"`
}

func (s *Stats) recordSuccess(d time.Duration, phishing bool) {
	s.total.Add(1)
	s.succeeded.Add(1)
	if phishing {
		s.phishing.Add(1)
	}
	s.totalNano.Add(int64(d))
}

func (s *Stats) recordFailure(k detector.Kind, d time.Duration) {
	s.total.Add(1)
	if int(k) < len(s.failures) {
		s.failures[k].Add(1)
	}
	s.totalNano.Add(int64(d))
}

// recordRejected counts requests refused by validation before the core ran.
func (s *Stats) recordRejected() {
	s.rejected.Add(1)
}

func (s *Stats) Snapshot(now time.Time) StatsSnapshot {
	snap := StatsSnapshot{
		TotalRequests:         s.total.Load(),
		SuccessfulPredictions: s.succeeded.Load(),
		PhishingDetected:      s.phishing.Load(),
		RejectedRequests:      s.rejected.Load(),
		Failures:              make(map[string]int64),
		UptimeSeconds:         int64(now.Sub(s.started).Seconds()),
		Timestamp:             now,
	}
	for k := detector.KindExtractionFailure; k <= detector.KindServiceUnavailable; k++ {
		snap.Failures[k.String()] = s.failures[k].Load()
	}
	if snap.TotalRequests > 0 {
		snap.AverageResponseTime = time.Duration(s.totalNano.Load() / snap.TotalRequests).Seconds()
	}
	return snap
}
