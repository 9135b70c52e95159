package usecase

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sheetboard/config"
	"github.com/AzielCF/az-sheetboard/domains/grid"
	"github.com/AzielCF/az-sheetboard/domains/health"
	domainOptimization "github.com/AzielCF/az-sheetboard/domains/optimization"
	"github.com/AzielCF/az-sheetboard/infrastructure/kvstore"
)

type healthService struct {
	db       *sql.DB
	backend  kvstore.Store
	source   grid.ISource
	breakers *BreakerRegistry
}

func initHealthStorageDB() (*sql.DB, error) {
	dbPath := fmt.Sprintf("%s/sheetboard.db", config.PathStorages)
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, err
	}

	createHealthTable := `
		CREATE TABLE IF NOT EXISTS health_checks (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			status TEXT NOT NULL,
			last_message TEXT,
			last_checked TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_success TIMESTAMP,
			UNIQUE(entity_type, entity_id)
		);
	`

	if _, err := db.Exec(createHealthTable); err != nil {
		return nil, err
	}

	return db, nil
}

func NewHealthService(backend kvstore.Store, source grid.ISource, breakers *BreakerRegistry) health.IHealthUsecase {
	db, err := initHealthStorageDB()
	if err != nil {
		logrus.WithError(err).Error("[Health] failed to initialize storage")
		return &healthService{backend: backend, source: source, breakers: breakers}
	}
	return &healthService{
		db:       db,
		backend:  backend,
		source:   source,
		breakers: breakers,
	}
}

func (s *healthService) ensureDB() error {
	if s.db == nil {
		return fmt.Errorf("health storage not initialized")
	}
	return nil
}

func (s *healthService) upsert(ctx context.Context, r health.HealthRecord) {
	if s.ensureDB() != nil {
		return
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	var lastSuccess interface{}
	if r.LastSuccess != nil {
		lastSuccess = *r.LastSuccess
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_checks (id, entity_type, entity_id, status, last_message, last_checked, last_success)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id) DO UPDATE SET
			status = excluded.status,
			last_message = excluded.last_message,
			last_checked = excluded.last_checked,
			last_success = COALESCE(excluded.last_success, health_checks.last_success)`,
		r.ID, string(r.EntityType), r.EntityID, string(r.Status), r.LastMessage, r.LastChecked, lastSuccess)
	if err != nil {
		logrus.WithError(err).Warn("[Health] failed to persist record")
	}
}

func (s *healthService) check(ctx context.Context, entityType health.EntityType, entityID string, probe func(context.Context) error) health.HealthRecord {
	r := health.HealthRecord{
		EntityType:  entityType,
		EntityID:    entityID,
		LastChecked: time.Now().UTC(),
	}
	if err := probe(ctx); err != nil {
		r.Status = health.StatusError
		r.LastMessage = err.Error()
	} else {
		r.Status = health.StatusOk
		r.LastMessage = "ok"
		t := r.LastChecked
		r.LastSuccess = &t
	}
	s.upsert(ctx, r)
	return r
}

func (s *healthService) CheckBackend(ctx context.Context) (health.HealthRecord, error) {
	return s.check(ctx, health.EntityCacheBackend, "kvstore", s.backend.Ping), nil
}

func (s *healthService) CheckGridSource(ctx context.Context) (health.HealthRecord, error) {
	return s.check(ctx, health.EntityGridSource, s.source.ID(), func(ctx context.Context) error {
		_, err := s.source.Extent(ctx)
		return err
	}), nil
}

func (s *healthService) CheckBreakers(ctx context.Context) ([]health.HealthRecord, error) {
	var records []health.HealthRecord
	for _, snap := range s.breakers.Snapshot() {
		r := health.HealthRecord{
			EntityType:  health.EntityBreaker,
			EntityID:    snap.OperationID,
			LastChecked: time.Now().UTC(),
		}
		switch snap.State {
		case domainOptimization.BreakerOpen:
			r.Status = health.StatusError
			r.LastMessage = fmt.Sprintf("circuit open after %d failures", snap.FailureCount)
		case domainOptimization.BreakerHalfOpen:
			r.Status = health.StatusUnknown
			r.LastMessage = "circuit half-open, probing"
		default:
			r.Status = health.StatusOk
			r.LastMessage = "circuit closed"
		}
		s.upsert(ctx, r)
		records = append(records, r)
	}
	return records, nil
}

func (s *healthService) CheckAll(ctx context.Context) ([]health.HealthRecord, error) {
	var records []health.HealthRecord

	backend, _ := s.CheckBackend(ctx)
	records = append(records, backend)

	source, _ := s.CheckGridSource(ctx)
	records = append(records, source)

	breakers, _ := s.CheckBreakers(ctx)
	records = append(records, breakers...)

	return records, nil
}

func (s *healthService) GetStatus(ctx context.Context) ([]health.HealthRecord, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}

	query := `SELECT id, entity_type, entity_id, status, last_message, last_checked, last_success FROM health_checks`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []health.HealthRecord
	for rows.Next() {
		var r health.HealthRecord
		var lastSuccess sql.NullTime
		if err := rows.Scan(&r.ID, &r.EntityType, &r.EntityID, &r.Status, &r.LastMessage, &r.LastChecked, &lastSuccess); err != nil {
			return nil, err
		}
		if lastSuccess.Valid {
			r.LastSuccess = &lastSuccess.Time
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *healthService) ReportFailure(ctx context.Context, entityType health.EntityType, entityID string, message string) {
	s.upsert(ctx, health.HealthRecord{
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      health.StatusError,
		LastMessage: message,
		LastChecked: time.Now().UTC(),
	})
}

func (s *healthService) ReportSuccess(ctx context.Context, entityType health.EntityType, entityID string) {
	now := time.Now().UTC()
	s.upsert(ctx, health.HealthRecord{
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      health.StatusOk,
		LastMessage: "ok",
		LastChecked: now,
		LastSuccess: &now,
	})
}

// StartPeriodicChecks runs CheckAll every 30 minutes until ctx is cancelled.
func (s *healthService) StartPeriodicChecks(ctx context.Context) {
	logrus.Info("[Health] starting periodic health checks loop (interval: 30m)")
	go func() {
		logrus.Info("[Health] performing initial health check")
		if _, err := s.CheckAll(ctx); err != nil {
			logrus.WithError(err).Warn("[Health] initial check failed")
		}

		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logrus.Info("[Health] performing scheduled health check")
				if _, err := s.CheckAll(ctx); err != nil {
					logrus.WithError(err).Warn("[Health] scheduled check failed")
				}
			}
		}
	}()
}
