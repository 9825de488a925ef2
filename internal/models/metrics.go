package models

import "time"

// SystemMetrics summarises process-level counters for the metrics endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ProposalsGenerated       uint64    `json:"proposals_generated"`
	SittingsConfirmed        uint64    `json:"sittings_confirmed"`
	VerdictsFinalized        uint64    `json:"verdicts_finalized"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
