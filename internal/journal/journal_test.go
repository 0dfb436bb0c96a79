package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"presence-kiosk-go/internal/config"
	"presence-kiosk-go/internal/core/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	snapshotDir := t.TempDir()
	j, err := Open(config.DBConfig{File: ":memory:"}, snapshotDir)
	require.NoError(t, err)
	return j, snapshotDir
}

func TestRecordRecognitionSavesSnapshot(t *testing.T) {
	j, snapshotDir := openTestJournal(t)

	j.RecordRecognition([]byte("jpegdata"), session.RecognitionOutcome{
		Status: session.RecognitionIdentified,
		Name:   "alice",
	}, 250*time.Millisecond)

	var attempts []RecognitionAttempt
	require.NoError(t, j.DB().Find(&attempts).Error)
	require.Len(t, attempts, 1)

	attempt := attempts[0]
	assert.Equal(t, "identified", attempt.Outcome)
	assert.Equal(t, "alice", attempt.Identity)
	assert.Equal(t, int64(250), attempt.DurationMs)
	require.NotEmpty(t, attempt.SnapshotPath)

	data, err := os.ReadFile(filepath.Join(snapshotDir, attempt.SnapshotPath))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpegdata"), data)
}

func TestRecordRecognitionWithoutImage(t *testing.T) {
	j, _ := openTestJournal(t)

	j.RecordRecognition(nil, session.RecognitionOutcome{Status: session.RecognitionUnknown}, 0)

	var attempts []RecognitionAttempt
	require.NoError(t, j.DB().Find(&attempts).Error)
	require.Len(t, attempts, 1)
	assert.Equal(t, "unknown", attempts[0].Outcome)
	assert.Empty(t, attempts[0].SnapshotPath)
}

func TestRecordAttendance(t *testing.T) {
	j, _ := openTestJournal(t)

	emotion := "happy"
	lat, lon := 48.1, 11.5
	j.RecordAttendance(session.CommitRequest{
		RecognizedName: "alice",
		Gesture:        "thumbs_up",
		EmotionalState: &emotion,
		Latitude:       &lat,
		Longitude:      &lon,
	}, session.AttendanceOutcome{
		Status:  session.AttendanceCommitted,
		Kind:    session.KindPresenceIn,
		Message: "Checked in",
		IsLate:  true,
	})

	var events []AttendanceEvent
	require.NoError(t, j.DB().Find(&events).Error)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, "alice", event.Identity)
	assert.Equal(t, "thumbs_up", event.Gesture)
	assert.Equal(t, "presence-in", event.Kind)
	assert.Equal(t, "committed", event.Outcome)
	assert.Equal(t, "happy", event.Emotion)
	assert.True(t, event.IsLate)
	require.NotNil(t, event.Latitude)
	assert.InDelta(t, 48.1, *event.Latitude, 0.001)
	assert.NotEmpty(t, event.Payload)
}

func TestRecentEventsNewestFirst(t *testing.T) {
	j, _ := openTestJournal(t)

	for _, name := range []string{"alice", "bob", "carol"} {
		require.NoError(t, j.DB().Create(&AttendanceEvent{
			Identity: name,
			Outcome:  "committed",
		}).Error)
	}
	// Make ordering unambiguous.
	require.NoError(t, j.DB().Model(&AttendanceEvent{}).
		Where("identity = ?", "carol").
		Update("created_at", time.Now().Add(time.Hour)).Error)

	events, err := j.RecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "carol", events[0].Identity)
}

func TestPing(t *testing.T) {
	j, _ := openTestJournal(t)
	assert.NoError(t, j.Ping())
}
