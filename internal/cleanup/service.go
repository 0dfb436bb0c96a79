// Package cleanup prunes journal rows and snapshots past the retention window.
package cleanup

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"presence-kiosk-go/internal/journal"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service handles the automatic cleanup of old journal data.
type Service struct {
	db            *gorm.DB
	retentionDays int
	snapshotDir   string
	checkInterval time.Duration
	stopChan      chan struct{}
}

// NewService creates a cleanup service. Returns nil when cleanup is disabled
// (retention_days <= 0) or misconfigured.
func NewService(db *gorm.DB, retentionDays int, snapshotDir string, checkInterval time.Duration) *Service {
	if retentionDays <= 0 {
		log.Info("Automatic cleanup disabled (retention_days <= 0).")
		return nil
	}
	if db == nil {
		log.Error("Cannot initialize cleanup service: database connection is nil")
		return nil
	}
	if snapshotDir == "" {
		log.Error("Cannot initialize cleanup service: snapshot directory is empty")
		return nil
	}
	log.Infof("Initializing cleanup service: RetentionDays=%d, SnapshotDir='%s', CheckInterval=%s",
		retentionDays, snapshotDir, checkInterval)
	return &Service{
		db:            db,
		retentionDays: retentionDays,
		snapshotDir:   snapshotDir,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
	}
}

// StartBackgroundCleanup starts a goroutine that periodically runs the
// cleanup cycle, once immediately and then on the check interval.
func (s *Service) StartBackgroundCleanup() {
	if s == nil {
		return
	}
	log.Info("Starting background cleanup routine...")

	go func() {
		s.RunCleanupCycle()
	}()

	ticker := time.NewTicker(s.checkInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunCleanupCycle()
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine.")
				return
			}
		}
	}()
}

// StopBackgroundCleanup signals the background routine to stop.
func (s *Service) StopBackgroundCleanup() {
	if s == nil || s.stopChan == nil {
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

// RunCleanupCycle deletes journal rows older than the retention period and
// removes their snapshot files.
func (s *Service) RunCleanupCycle() {
	if s == nil || s.retentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	log.Infof("Cleanup: deleting journal records older than %s", cutoff.Format(time.RFC3339))

	var attempts []journal.RecognitionAttempt
	if err := s.db.Where("created_at < ?", cutoff).Find(&attempts).Error; err != nil {
		log.Errorf("Cleanup: error finding old recognition attempts: %v", err)
		return
	}

	deleted := 0
	failed := 0
	for _, attempt := range attempts {
		if err := s.deleteAttempt(attempt); err != nil {
			log.Errorf("Cleanup: failed to delete attempt ID %d: %v", attempt.ID, err)
			failed++
		} else {
			deleted++
		}
	}

	result := s.db.Where("created_at < ?", cutoff).Delete(&journal.AttendanceEvent{})
	if result.Error != nil {
		log.Errorf("Cleanup: error deleting old attendance events: %v", result.Error)
	}

	log.Infof("Cleanup cycle finished. Attempts deleted: %d, failed: %d, events deleted: %d",
		deleted, failed, result.RowsAffected)
}

// deleteAttempt removes one attempt row and its snapshot file.
func (s *Service) deleteAttempt(attempt journal.RecognitionAttempt) error {
	if err := s.db.Unscoped().Delete(&attempt).Error; err != nil {
		return err
	}

	if attempt.SnapshotPath == "" {
		return nil
	}
	snapshotPath := filepath.Join(s.snapshotDir, attempt.SnapshotPath)
	if err := os.Remove(snapshotPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		// DB row is gone either way; a stray file only costs disk.
		log.Warnf("Cleanup: failed to delete snapshot file '%s': %v", snapshotPath, err)
	}
	return nil
}
