package cache

import "context"

type CacheStats struct {
	L1Entries   int     `json:"l1_entries"`
	L1SizeBytes int64   `json:"l1_size_bytes"`
	HumanSize   string  `json:"human_size"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	Evictions   int64   `json:"evictions"`
}

type CacheSettings struct {
	Enabled          bool `json:"enabled"`
	DefaultTTLSecs   int  `json:"default_ttl_secs"`
	L1MaxEntries     int  `json:"l1_max_entries"`
	CompressMinBytes int  `json:"compress_min_bytes"`
	MaxChunkBytes    int  `json:"max_chunk_bytes"`
}

type ICacheUsecase interface {
	GetStats(ctx context.Context) (CacheStats, error)
	ClearCache(ctx context.Context) error

	GetSettings(ctx context.Context) (CacheSettings, error)
	SaveSettings(ctx context.Context, settings CacheSettings) error
}
