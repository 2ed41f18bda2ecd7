// internal/services/sync_log_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/greenhaven/garden-backend/internal/models"
	"github.com/greenhaven/garden-backend/internal/utils"
)

// SyncLogService persists sync run records. The reconciler writes through it
// and the admin surface reads from it.
type SyncLogService struct {
	db *gorm.DB
}

func NewSyncLogService(db *gorm.DB) *SyncLogService {
	return &SyncLogService{db: db}
}

// HasActiveRun reports whether an in_progress row of the given type exists.
// The check and the following Create run inside one transaction on the
// trigger path, so two concurrent triggers cannot both pass.
func (s *SyncLogService) HasActiveRun(t models.SyncType) (bool, error) {
	var count int64
	err := s.db.Model(&models.SyncLog{}).
		Where("type = ? AND status = ?", t, models.SyncStatusInProgress).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check active runs: %w", err)
	}
	return count > 0, nil
}

func (s *SyncLogService) Create(entry *models.SyncLog) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.SyncLog{}).
			Where("type = ? AND status = ?", entry.Type, models.SyncStatusInProgress).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.New("a run of this type is already in progress")
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

// Complete finalizes a run exactly once. Finished rows are never touched
// again.
func (s *SyncLogService) Complete(entry *models.SyncLog, status models.SyncStatus, processed, errored int, metadata models.JSONB) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"processed":   processed,
		"errored":     errored,
		"metadata":    metadata,
		"finished_at": now,
	}
	err := s.db.Model(&models.SyncLog{}).
		Where("id = ? AND status = ?", entry.ID, models.SyncStatusInProgress).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to finalize sync log: %w", err)
	}

	entry.Status = status
	entry.Processed = processed
	entry.Errored = errored
	entry.Metadata = metadata
	entry.FinishedAt = &now
	return nil
}

// PruneBefore deletes finished rows older than the cutoff. In-progress rows
// are kept regardless of age.
func (s *SyncLogService) PruneBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("started_at < ? AND status <> ?", cutoff, models.SyncStatusInProgress).
		Delete(&models.SyncLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune sync logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListRuns returns the run history for the admin dashboard, newest first.
func (s *SyncLogService) ListRuns(params utils.PaginationParams, syncType string) ([]models.SyncLog, int64, error) {
	query := s.db.Model(&models.SyncLog{})
	if syncType != "" {
		query = query.Where("type = ?", syncType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sync logs: %w", err)
	}

	var logs []models.SyncLog
	err := query.Order("started_at DESC").
		Offset((params.Page - 1) * params.Limit).
		Limit(params.Limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch sync logs: %w", err)
	}
	return logs, total, nil
}

// GetRun returns one run by id.
func (s *SyncLogService) GetRun(id string) (*models.SyncLog, error) {
	var entry models.SyncLog
	if err := s.db.First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("sync run not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &entry, nil
}
