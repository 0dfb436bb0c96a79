package session

import (
	"context"
	"time"
)

// State is the orchestrator state for one capture session.
type State int

const (
	StateInitial State = iota
	StateFaceRecognizing
	StateMultipleFaces
	StateGesturePrompt
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateFaceRecognizing:
		return "FACE_RECOGNIZING"
	case StateMultipleFaces:
		return "MULTIPLE_FACES_DETECTED"
	case StateGesturePrompt:
		return "FACE_RECOGNIZED_PROMPT_GESTURE"
	case StateProcessing:
		return "ATTENDANCE_PROCESSING"
	default:
		return "UNKNOWN"
	}
}

// Session holds the mutable state of one capture session. It is touched only
// by the orchestrator's tick handler; the asynchronous phase handlers feed
// back through the result channel drained at the top of each tick.
type Session struct {
	State           State
	ScanningAllowed bool

	// Identity currently in progress, empty when none.
	Identity string
	// Last observed dominant expression, cleared every tick it is not re-observed.
	Emotion string

	LastFaceRecognitionAt  time.Time
	LastAttendanceMarkedAt time.Time
	LastSpokenPromptAt     time.Time

	// GesturePromptSince marks entry into the gesture-confirmation window.
	GesturePromptSince time.Time
	// RePromptAt schedules the delayed re-prompt after a commit resolves.
	RePromptAt time.Time

	NoFaceStreak int
	// PopupShown suppresses repeated escalation notices within one state sojourn.
	PopupShown bool
}

// Frame is one decoded camera frame, JPEG-encoded, with its native dimensions.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
}

// Region is a face bounding box in frame pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FaceDetection is one detected face in one frame. Discarded every tick.
type FaceDetection struct {
	Region      Region
	Expressions map[string]float64
}

// GestureResult is one hand-gesture classification. Discarded every tick.
type GestureResult struct {
	Label      string
	Confidence float64
	Timestamp  time.Time
}

// RecognitionStatus is the disposition of a Phase 1 identify call.
type RecognitionStatus int

const (
	RecognitionIdentified RecognitionStatus = iota
	RecognitionUnknown
	RecognitionTransportError
)

// RecognitionOutcome is the result of Phase 1, consumed once.
type RecognitionOutcome struct {
	Status  RecognitionStatus
	Name    string
	Message string
}

// AttendanceKind is the event family the backend committed.
type AttendanceKind string

const (
	KindPresenceIn  AttendanceKind = "presence-in"
	KindPresenceOut AttendanceKind = "presence-out"
	KindLunchIn     AttendanceKind = "lunch-in"
	KindLunchOut    AttendanceKind = "lunch-out"
	KindBreakIn     AttendanceKind = "break-in"
	KindBreakOut    AttendanceKind = "break-out"
)

// AttendanceStatus is the disposition of a Phase 2 commit call.
type AttendanceStatus int

const (
	AttendanceCommitted AttendanceStatus = iota
	AttendanceRejected
	AttendanceTransportError
)

// AttendanceOutcome is the result of Phase 2. Rejections are informational,
// not errors; they share the success transition.
type AttendanceOutcome struct {
	Status  AttendanceStatus
	Kind    AttendanceKind
	Message string
	IsLate  bool
}

// CommitRequest carries the Phase 2 payload.
type CommitRequest struct {
	RecognizedName string
	Gesture        string
	EmotionalState *string
	Latitude       *float64
	Longitude      *float64
}

// FrameSource owns the camera device for the session's lifetime.
// CurrentFrame never blocks and is safe to call at any rate.
type FrameSource interface {
	Start() error
	Stop()
	CurrentFrame() (*Frame, error)
}

// FaceObserver produces zero or more face detections for a frame.
// Detect fails softly: callers treat an error as "no result this tick".
type FaceObserver interface {
	Ready(ctx context.Context) error
	Detect(ctx context.Context, frame *Frame) ([]FaceDetection, error)
}

// GestureObserver produces at most one gesture classification for a frame.
type GestureObserver interface {
	Ready(ctx context.Context) error
	Detect(ctx context.Context, frame *Frame, at time.Time) (*GestureResult, error)
}

// Gateway is the two-phase protocol boundary. Identify has no side effects
// and is cheap to retry; Commit may mutate the ledger and is not.
type Gateway interface {
	Identify(ctx context.Context, image []byte) RecognitionOutcome
	Commit(ctx context.Context, req CommitRequest) AttendanceOutcome
}

// Severity tags a status-line update.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityNoFace   Severity = "no-face"
	SeverityCentered Severity = "centered"
)

// Surface is the passive feedback sink the orchestrator writes to.
// Messages are addressed by catalog ID; data fills the message template.
type Surface interface {
	Status(sev Severity, messageID string, data map[string]interface{})
	Popup(messageID string, data map[string]interface{})
	Speak(messageID string, data map[string]interface{})
	RefreshActivity()
}

// Locator resolves best-effort coordinates within the caller's deadline.
type Locator interface {
	Locate(ctx context.Context) (lat, lon float64, err error)
}

// Recorder journals resolved recognition attempts and attendance outcomes.
type Recorder interface {
	RecordRecognition(image []byte, outcome RecognitionOutcome, took time.Duration)
	RecordAttendance(req CommitRequest, outcome AttendanceOutcome)
}

// Notifier is told about committed attendance events (e.g. MQTT).
type Notifier interface {
	AttendanceMarked(identity string, outcome AttendanceOutcome)
}
