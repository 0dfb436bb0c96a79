// Package journal keeps a local sqlite record of resolved recognition
// attempts and attendance outcomes, with the captured snapshots on disk.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"presence-kiosk-go/internal/config"
	"presence-kiosk-go/internal/core/session"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Journal implements session.Recorder on top of gorm/sqlite.
type Journal struct {
	db          *gorm.DB
	snapshotDir string
}

// Open opens (or creates) the journal database and migrates the schema.
func Open(cfg config.DBConfig, snapshotDir string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(cfg.File), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := db.AutoMigrate(&RecognitionAttempt{}, &AttendanceEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal schema: %w", err)
	}

	log.Infof("Journal database ready at %s", cfg.File)
	return &Journal{db: db, snapshotDir: snapshotDir}, nil
}

// DB exposes the underlying handle for health checks and cleanup.
func (j *Journal) DB() *gorm.DB { return j.db }

// RecordRecognition journals one resolved Phase 1 attempt and saves the
// captured frame to the snapshot directory. Failures only log; journaling
// must never disturb the recognition loop.
func (j *Journal) RecordRecognition(image []byte, outcome session.RecognitionOutcome, took time.Duration) {
	attempt := RecognitionAttempt{
		Outcome:    recognitionOutcomeLabel(outcome.Status),
		Identity:   outcome.Name,
		DurationMs: took.Milliseconds(),
	}

	if len(image) > 0 {
		filename := fmt.Sprintf("attempt_%d.jpg", time.Now().UnixNano())
		path := filepath.Join(j.snapshotDir, filename)
		if err := os.WriteFile(path, image, 0644); err != nil {
			log.WithError(err).Warnf("Failed to save snapshot %s", path)
		} else {
			attempt.SnapshotPath = filename
		}
	}

	if err := j.db.Create(&attempt).Error; err != nil {
		log.WithError(err).Warn("Failed to journal recognition attempt")
	}
}

// RecordAttendance journals one resolved Phase 2 outcome.
func (j *Journal) RecordAttendance(req session.CommitRequest, outcome session.AttendanceOutcome) {
	event := AttendanceEvent{
		Identity:  req.RecognizedName,
		Gesture:   req.Gesture,
		Kind:      string(outcome.Kind),
		Outcome:   attendanceOutcomeLabel(outcome.Status),
		Message:   outcome.Message,
		IsLate:    outcome.IsLate,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if req.EmotionalState != nil {
		event.Emotion = *req.EmotionalState
	}

	if raw, err := json.Marshal(outcome); err == nil {
		event.Payload = datatypes.JSON(raw)
	}

	if err := j.db.Create(&event).Error; err != nil {
		log.WithError(err).Warn("Failed to journal attendance event")
	}
}

// RecentEvents returns the latest attendance events, newest first.
func (j *Journal) RecentEvents(limit int) ([]AttendanceEvent, error) {
	var events []AttendanceEvent
	if err := j.db.Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}
	return events, nil
}

// Ping verifies the database connection for health checks.
func (j *Journal) Ping() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access journal database: %w", err)
	}
	return sqlDB.Ping()
}

func recognitionOutcomeLabel(status session.RecognitionStatus) string {
	switch status {
	case session.RecognitionIdentified:
		return "identified"
	case session.RecognitionUnknown:
		return "unknown"
	default:
		return "transport-error"
	}
}

func attendanceOutcomeLabel(status session.AttendanceStatus) string {
	switch status {
	case session.AttendanceCommitted:
		return "committed"
	case session.AttendanceRejected:
		return "rejected"
	default:
		return "transport-error"
	}
}
