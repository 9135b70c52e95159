package usecase

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sheetboard/config"
	domainCache "github.com/AzielCF/az-sheetboard/domains/cache"
)

type cacheService struct {
	cache *TieredCache
}

func NewCacheService(cache *TieredCache) domainCache.ICacheUsecase {
	return &cacheService{cache: cache}
}

func (s *cacheService) openSettingsDB() (*sql.DB, error) {
	dbPath := fmt.Sprintf("%s/sheetboard.db", config.PathStorages)
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_settings (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *cacheService) GetStats(ctx context.Context) (domainCache.CacheStats, error) {
	counters := s.cache.Counters()

	hitRate := 0.0
	if total := counters.Hits + counters.Misses; total > 0 {
		hitRate = float64(counters.Hits) / float64(total)
	}

	return domainCache.CacheStats{
		L1Entries:   counters.L1Entries,
		L1SizeBytes: counters.L1Bytes,
		HumanSize:   humanize.Bytes(uint64(counters.L1Bytes)),
		Hits:        counters.Hits,
		Misses:      counters.Misses,
		HitRate:     hitRate,
		Evictions:   counters.Evictions,
	}, nil
}

func (s *cacheService) ClearCache(ctx context.Context) error {
	s.cache.Clear(ctx, "")
	logrus.Info("[Cache] cleared by operator request")
	return nil
}

func (s *cacheService) GetSettings(ctx context.Context) (domainCache.CacheSettings, error) {
	settings := domainCache.CacheSettings{
		Enabled:          true,
		DefaultTTLSecs:   config.CacheDefaultTTLSecs,
		L1MaxEntries:     config.CacheL1MaxEntries,
		CompressMinBytes: config.CacheCompressMinBytes,
		MaxChunkBytes:    config.CacheMaxChunkBytes,
	}

	db, err := s.openSettingsDB()
	if err != nil {
		return settings, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT key, value FROM global_settings WHERE key LIKE 'cache_%'`)
	if err != nil {
		return settings, nil
	}
	defer rows.Close()

	for rows.Next() {
		var key, val string
		if err := rows.Scan(&key, &val); err == nil {
			switch key {
			case "cache_enabled":
				settings.Enabled = val == "1" || val == "true"
			case "cache_default_ttl_secs":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					settings.DefaultTTLSecs = n
				}
			case "cache_l1_max_entries":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					settings.L1MaxEntries = n
				}
			case "cache_compress_min_bytes":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					settings.CompressMinBytes = n
				}
			case "cache_max_chunk_bytes":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					settings.MaxChunkBytes = n
				}
			}
		}
	}

	return settings, nil
}

func (s *cacheService) SaveSettings(ctx context.Context, settings domainCache.CacheSettings) error {
	db, err := s.openSettingsDB()
	if err != nil {
		return err
	}
	defer db.Close()

	save := func(key, val string) {
		db.Exec(`INSERT INTO global_settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, val)
	}

	enabledStr := "0"
	if settings.Enabled {
		enabledStr = "1"
	}

	save("cache_enabled", enabledStr)
	save("cache_default_ttl_secs", strconv.Itoa(settings.DefaultTTLSecs))
	save("cache_l1_max_entries", strconv.Itoa(settings.L1MaxEntries))
	save("cache_compress_min_bytes", strconv.Itoa(settings.CompressMinBytes))
	save("cache_max_chunk_bytes", strconv.Itoa(settings.MaxChunkBytes))

	return nil
}
