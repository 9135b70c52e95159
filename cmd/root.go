package cmd

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	globalConfig "github.com/AzielCF/az-sheetboard/config"
	domainCache "github.com/AzielCF/az-sheetboard/domains/cache"
	"github.com/AzielCF/az-sheetboard/domains/grid"
	domainHealth "github.com/AzielCF/az-sheetboard/domains/health"
	domainOptimization "github.com/AzielCF/az-sheetboard/domains/optimization"
	domainReport "github.com/AzielCF/az-sheetboard/domains/report"
	"github.com/AzielCF/az-sheetboard/infrastructure/database"
	"github.com/AzielCF/az-sheetboard/infrastructure/gridsource"
	"github.com/AzielCF/az-sheetboard/infrastructure/kvstore"
	"github.com/AzielCF/az-sheetboard/infrastructure/valkey"
	"github.com/AzielCF/az-sheetboard/pkg/utils"
	"github.com/AzielCF/az-sheetboard/repository"
	"github.com/AzielCF/az-sheetboard/usecase"
)

var (
	backendStore kvstore.Store
	gridSource   grid.ISource
	tieredCache  *usecase.TieredCache
	breakers     *usecase.BreakerRegistry
	valkeyClient *valkey.Client

	// Usecase
	optimizationUsecase domainOptimization.IOptimizationUsecase
	cacheUsecase        domainCache.ICacheUsecase
	healthUsecase       domainHealth.IHealthUsecase
	reportUsecase       domainReport.IReportUsecase
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Short: "Spreadsheet reporting dashboard API",
	Long: `Az-SheetBoard reads tabular records from a hosted spreadsheet,
aggregates them and serves reports over http, with an execution-bounded
caching layer between the API and the remote sheet.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	cobra.OnInitialize(initEnvConfig, initApp)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalln(err)
	}
}

// initEnvConfig loads configuration from environment variables
func initEnvConfig() {
	// Application settings
	if envPort := viper.GetString("app_port"); envPort != "" {
		globalConfig.AppPort = envPort
	}
	if envDebug := viper.GetBool("app_debug"); envDebug {
		globalConfig.AppDebug = envDebug
	}
	envBasicAuth := viper.GetString("app_basic_auth")
	if envBasicAuth == "" {
		envBasicAuth = os.Getenv("APP_BASIC_AUTH")
	}
	if envBasicAuth != "" {
		globalConfig.AppBasicAuthCredential = strings.Split(envBasicAuth, ",")
	}
	if envBasePath := viper.GetString("app_base_path"); envBasePath != "" {
		globalConfig.AppBasePath = envBasePath
	}
	if envTrustedProxies := viper.GetString("app_trusted_proxies"); envTrustedProxies != "" {
		globalConfig.AppTrustedProxies = strings.Split(envTrustedProxies, ",")
	}

	// Database settings
	if envDBURI := viper.GetString("db_uri"); envDBURI != "" {
		globalConfig.DBURI = envDBURI
	}

	// Valkey backend
	if envValkey := viper.GetString("valkey_address"); envValkey != "" {
		globalConfig.ValkeyAddress = envValkey
	}
	if envValkeyPass := viper.GetString("valkey_password"); envValkeyPass != "" {
		globalConfig.ValkeyPassword = envValkeyPass
	}
	if viper.IsSet("valkey_db") {
		globalConfig.ValkeyDB = viper.GetInt("valkey_db")
	}
	if envPrefix := viper.GetString("valkey_key_prefix"); envPrefix != "" {
		globalConfig.ValkeyKeyPrefix = envPrefix
	}
	if envBolt := viper.GetString("bolt_path"); envBolt != "" {
		globalConfig.BoltPath = envBolt
	}

	// Grid source
	if envGrid := viper.GetString("grid_base_url"); envGrid != "" {
		globalConfig.GridBaseURL = envGrid
	}
	if envToken := viper.GetString("grid_api_token"); envToken != "" {
		globalConfig.GridAPIToken = envToken
	}
	if viper.IsSet("grid_request_timeout_ms") {
		globalConfig.GridRequestTimeoutMs = viper.GetInt("grid_request_timeout_ms")
	}

	// Optimization layer
	if viper.IsSet("cache_l1_max_entries") {
		globalConfig.CacheL1MaxEntries = viper.GetInt("cache_l1_max_entries")
	}
	if viper.IsSet("cache_default_ttl_secs") {
		globalConfig.CacheDefaultTTLSecs = viper.GetInt("cache_default_ttl_secs")
	}
	if viper.IsSet("cache_max_chunk_bytes") {
		globalConfig.CacheMaxChunkBytes = viper.GetInt("cache_max_chunk_bytes")
	}
	if viper.IsSet("budget_hard_limit_secs") {
		globalConfig.BudgetHardLimitSecs = viper.GetInt("budget_hard_limit_secs")
	}
	if viper.IsSet("budget_safety_margin_secs") {
		globalConfig.BudgetSafetyMarginSecs = viper.GetInt("budget_safety_margin_secs")
	}
}

// initApp wires the infrastructure and the usecases.
func initApp() {
	if globalConfig.AppDebug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	if err := os.MkdirAll(globalConfig.PathStorages, 0755); err != nil {
		logrus.Fatalf("failed to create storage dir: %v", err)
	}

	globalConfig.AppServerID = utils.GetPersistentServerID(viper.GetString("app_server_id"), globalConfig.PathStorages)
	logrus.Infof("[App] server id: %s", globalConfig.AppServerID)

	backendStore = buildBackendStore()
	gridSource = buildGridSource()

	tieredCache = usecase.NewTieredCache(backendStore, globalConfig.CacheL1MaxEntries, globalConfig.CacheCompressMinBytes)
	breakers = usecase.NewBreakerRegistry(0, 0)

	optimizationUsecase = usecase.NewOptimizationService(backendStore, gridSource, tieredCache, breakers, usecase.OptimizationConfig{
		MaxChunkBytes:   globalConfig.CacheMaxChunkBytes,
		BudgetHardLimit: time.Duration(globalConfig.BudgetHardLimitSecs) * time.Second,
		BudgetMargin:    time.Duration(globalConfig.BudgetSafetyMarginSecs) * time.Second,
		BatchMinSize:    globalConfig.BatchMinSize,
		BatchMaxSize:    globalConfig.BatchMaxSize,
		BatchPause:      time.Duration(globalConfig.BatchPauseMs) * time.Millisecond,
	})
	cacheUsecase = usecase.NewCacheService(tieredCache)
	healthUsecase = usecase.NewHealthService(backendStore, gridSource, breakers)

	db, err := database.NewDatabase(globalConfig.DBURI)
	if err != nil {
		logrus.Fatalf("failed to open database: %v", err)
	}
	runRepo, err := repository.NewReportRunRepository(db)
	if err != nil {
		logrus.Fatalf("failed to initialize run repository: %v", err)
	}
	reportUsecase = usecase.NewReportService(optimizationUsecase, gridSource, runRepo)
}

// buildBackendStore prefers Valkey when configured and falls back to the
// embedded bolt store for single-node installs.
func buildBackendStore() kvstore.Store {
	if globalConfig.ValkeyAddress != "" {
		client, err := valkey.NewClient(valkey.Config{
			Address:   globalConfig.ValkeyAddress,
			Password:  globalConfig.ValkeyPassword,
			DB:        globalConfig.ValkeyDB,
			KeyPrefix: globalConfig.ValkeyKeyPrefix,
		})
		if err == nil {
			valkeyClient = client
			logrus.Infof("[App] cache backend: valkey at %s", globalConfig.ValkeyAddress)
			return kvstore.NewValkeyStore(client, globalConfig.CacheBackendMaxValueBytes)
		}
		logrus.Warnf("[App] valkey unavailable (%v), falling back to embedded store", err)
	}

	store, err := kvstore.OpenBoltStore(globalConfig.BoltPath, globalConfig.CacheBackendMaxValueBytes)
	if err != nil {
		logrus.Fatalf("failed to open embedded cache store: %v", err)
	}
	logrus.Infof("[App] cache backend: embedded bolt at %s", globalConfig.BoltPath)
	return store
}

// buildGridSource connects to the hosted grid API, or serves a tiny sample
// sheet when none is configured (local development).
func buildGridSource() grid.ISource {
	if globalConfig.GridBaseURL != "" {
		sheetID := viper.GetString("grid_sheet_id")
		if sheetID == "" {
			sheetID = "default"
		}
		return gridsource.NewHTTPSource(gridsource.Config{
			BaseURL:  globalConfig.GridBaseURL,
			APIToken: globalConfig.GridAPIToken,
			SheetID:  sheetID,
			Timeout:  time.Duration(globalConfig.GridRequestTimeoutMs) * time.Millisecond,
		})
	}

	logrus.Warn("[App] GRID_BASE_URL not set, serving built-in sample sheet")
	cells := [][]string{{"id", "name", "hours"}}
	for i := 1; i <= 25; i++ {
		cells = append(cells, []string{strconv.Itoa(i), "sample-" + strconv.Itoa(i), strconv.Itoa(i * 4)})
	}
	return gridsource.NewMemorySource("sample", cells)
}

// StopApp releases infrastructure owned by the process.
func StopApp() {
	if valkeyClient != nil {
		valkeyClient.Close()
	}
	if store, ok := backendStore.(*kvstore.BoltStore); ok {
		if err := store.Close(); err != nil {
			logrus.Errorf("[App] error closing embedded store: %v", err)
		}
	}
}
