package broker

// StatsSnapshot reports the StatsCounters and queue depths of spec §3/§4.1,
// grounded on original_source/redis_client_lib/redis_client.py's get_stats.
type StatsSnapshot struct {
	Sent       int64
	Failed     int64
	QueueDepth map[string]int64   // keyed by priority: "HIGH", "MEDIUM", "LOW"
	RateTokens map[string]float64 // keyed by provider name
}
