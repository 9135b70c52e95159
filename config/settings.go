package config

var (
	AppVersion             = "v1.2.0"
	AppPort                = "3000"
	AppDebug               = false
	AppBasicAuthCredential []string
	AppBasePath            = ""
	AppTrustedProxies      []string // Trusted proxy IP ranges (e.g., "0.0.0.0/0" for all, or specific CIDRs)
	AppServerID            = ""

	PathStorages = "storages"

	DBURI = "file:storages/sheetboard.db?_foreign_keys=on"

	// Valkey backend (optional). Empty address -> embedded bolt backend.
	ValkeyAddress   = ""
	ValkeyPassword  = ""
	ValkeyDB        = 0
	ValkeyKeyPrefix = "azsb"

	// Embedded bolt backend used when no Valkey address is configured.
	BoltPath = "storages/cache.db"

	// Hosted grid source (the spreadsheet API the dashboard reads from).
	GridBaseURL          = ""
	GridAPIToken         = ""
	GridRequestTimeoutMs = 10000

	// Optimization layer defaults. The backend ceiling mirrors the hosted
	// KV store's documented per-entry limit; chunks stay safely below it.
	CacheL1MaxEntries         = 256
	CacheCompressMinBytes     = 8 * 1024
	CacheBackendMaxValueBytes = 100_000
	CacheMaxChunkBytes        = 90_000
	CacheDefaultTTLSecs       = 1800

	// Execution budget for a single top-level operation. The host kills the
	// process at the hard limit, the margin makes us stop before it does.
	BudgetHardLimitSecs    = 330
	BudgetSafetyMarginSecs = 30

	BatchMinSize = 10
	BatchMaxSize = 500
	// Pause between batches so we do not burst the remote API rate limit.
	BatchPauseMs = 150
)
