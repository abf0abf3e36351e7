package models

import "time"

// SystemMetrics is a point-in-time summary of process counters.
type SystemMetrics struct {
	RequestsTotal             uint64    `json:"requestsTotal"`
	AverageRequestDurationMs  float64   `json:"averageRequestDurationMs"`
	UpstreamCallsTotal        uint64    `json:"upstreamCallsTotal"`
	UpstreamFailuresTotal     uint64    `json:"upstreamFailuresTotal"`
	AverageUpstreamDurationMs float64   `json:"averageUpstreamDurationMs"`
	CacheHitRatio             float64   `json:"cacheHitRatio"`
	CacheHits                 uint64    `json:"cacheHits"`
	CacheMisses               uint64    `json:"cacheMisses"`
	AuditWritesTotal          uint64    `json:"auditWritesTotal"`
	Goroutines                int       `json:"goroutines"`
	GeneratedAt               time.Time `json:"generatedAt"`
}
