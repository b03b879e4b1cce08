package models

import "time"

// TimetableMetricsSnapshot summarises instrumentation counters for the summary endpoint.
type TimetableMetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	StoreOperations          uint64    `json:"store_operations"`
	AverageStoreDurationMs   float64   `json:"average_store_duration_ms"`
	Generations              uint64    `json:"generations"`
	GeneratorFallbacks       uint64    `json:"generator_fallbacks"`
	GridMutations            uint64    `json:"grid_mutations"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
