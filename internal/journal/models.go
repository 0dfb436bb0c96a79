package journal

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecognitionAttempt is one resolved Phase 1 call: the snapshot that was
// sent and what the backend said about it.
type RecognitionAttempt struct {
	gorm.Model
	SnapshotPath string `gorm:"index"` // filename inside the snapshot dir
	Outcome      string `gorm:"index"` // "identified", "unknown", "transport-error"
	Identity     string `gorm:"index"`
	DurationMs   int64
}

// AttendanceEvent is one resolved Phase 2 call. The backend remains the
// ledger of record; these rows exist for the kiosk's own activity view
// and diagnostics.
type AttendanceEvent struct {
	gorm.Model
	Identity  string `gorm:"index;not null"`
	Gesture   string
	Kind      string `gorm:"index"` // attendance_type as reported by the backend
	Outcome   string `gorm:"index"` // "committed", "rejected", "transport-error"
	Message   string
	IsLate    bool
	Emotion   string
	Latitude  *float64
	Longitude *float64
	Payload   datatypes.JSON `gorm:"type:json"` // raw outcome for diagnostics
}
