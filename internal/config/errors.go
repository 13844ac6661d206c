package config

import "errors"

// Sentinel errors for internal use.
var (
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrRetriesExhausted      = errors.New("retries exhausted")
	ErrMalformedEvent        = errors.New("malformed event payload")
	ErrCheckpointCorrupt     = errors.New("checkpoint payload unparseable")
	ErrRedisUnavailable      = errors.New("redis unavailable")
	ErrClickHouseUnavailable = errors.New("clickhouse unavailable")
	ErrMintAccountTooShort   = errors.New("mint account data too short")
)

// Error codes — returned in API error responses.
const (
	ErrorInvalidEventType  = "ERROR_INVALID_EVENT_TYPE"
	ErrorInvalidDateRange  = "ERROR_INVALID_DATE_RANGE"
	ErrorVolumeQueryFailed = "ERROR_VOLUME_QUERY_FAILED"
	ErrorStatsQueryFailed  = "ERROR_STATS_QUERY_FAILED"
)
