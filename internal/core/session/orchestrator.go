package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Options are the tuning knobs of the recognition loop.
type Options struct {
	RecognitionCooldown  time.Duration
	AttendanceCooldown   time.Duration
	VoiceCooldown        time.Duration
	RePromptDelay        time.Duration
	GesturePromptTimeout time.Duration
	NoFaceStreakLimit    int

	PresenceGesture   string
	BreakGesture      string
	GestureConfidence float64
	EmotionThreshold  float64

	GeoTimeout time.Duration
}

// Deps are the collaborators of the orchestrator. Surface must be non-nil;
// Locator, Recorder and Notifier are optional.
type Deps struct {
	Frames   FrameSource
	Faces    FaceObserver
	Gestures GestureObserver
	Gateway  Gateway
	Surface  Surface
	Locator  Locator
	Recorder Recorder
	Notifier Notifier
}

type phaseResult struct {
	// Exactly one of the two outcome pointers is set.
	recognition *RecognitionOutcome
	attendance  *AttendanceOutcome
	request     CommitRequest
	image       []byte
	took        time.Duration
}

// Orchestrator drives the per-frame recognition-and-confirmation machine.
// All session mutation happens on the tick goroutine; asynchronous phase
// completions re-enter through the buffered result channel.
type Orchestrator struct {
	opts Options
	deps Deps

	session Session

	results      chan phaseResult
	scanRequests chan struct{}
	inFlight     bool
	stopped      atomic.Bool
}

// New creates an orchestrator in the INITIAL state.
func New(deps Deps, opts Options) *Orchestrator {
	return &Orchestrator{
		opts:         opts,
		deps:         deps,
		results:      make(chan phaseResult, 4),
		scanRequests: make(chan struct{}, 1),
	}
}

// Session returns a copy of the current session state.
func (o *Orchestrator) Session() Session { return o.session }

// Start acquires the camera and verifies both observers, then arms the loop.
// On failure the session stays in INITIAL and the user must restart.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.deps.Frames.Start(); err != nil {
		devErr := &DeviceError{Err: err}
		log.WithError(err).Error("Failed to start frame source")
		o.deps.Surface.Status(SeverityError, "device.error", nil)
		return devErr
	}

	if err := o.deps.Faces.Ready(ctx); err != nil {
		o.deps.Frames.Stop()
		o.deps.Surface.Status(SeverityError, "model.error", nil)
		return &ModelLoadError{Component: "face", Err: err}
	}
	if err := o.deps.Gestures.Ready(ctx); err != nil {
		o.deps.Frames.Stop()
		o.deps.Surface.Status(SeverityError, "model.error", nil)
		return &ModelLoadError{Component: "gesture", Err: err}
	}

	o.session.State = StateFaceRecognizing
	o.deps.Surface.Status(SeverityInfo, "kiosk.ready", nil)
	log.Info("Recognition loop armed, waiting for scan trigger")
	return nil
}

// Stop halts the loop and releases the device. Results of in-flight calls
// arriving afterwards are discarded, never applied to the torn-down session.
func (o *Orchestrator) Stop() {
	if o.stopped.Swap(true) {
		return
	}
	o.deps.Frames.Stop()
	log.Info("Recognition loop stopped")
}

// RequestScan is the single explicit user control that re-enables scanning.
// Safe to call from any goroutine; consumed once per tick.
func (o *Orchestrator) RequestScan() {
	select {
	case o.scanRequests <- struct{}{}:
	default:
	}
}

// Run pumps ticks into the machine until the context ends or the source closes.
func (o *Orchestrator) Run(ctx context.Context, ticks TickSource) {
	defer ticks.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now, ok := <-ticks.Ticks():
			if !ok {
				return
			}
			o.Tick(now)
		}
	}
}

// Tick advances the machine by one frame. Triggers are evaluated in the
// priority order of the transition table.
func (o *Orchestrator) Tick(now time.Time) {
	if o.stopped.Load() {
		return
	}

	o.drainResults(now)

	if o.session.State == StateInitial {
		return
	}

	select {
	case <-o.scanRequests:
		o.handleScanRequest(now)
	default:
	}

	frame, err := o.deps.Frames.CurrentFrame()
	if err != nil {
		if errors.Is(err, ErrFrameNotReady) {
			// Camera still warming up; skip the tick instead of tearing down.
			return
		}
		o.failToInitial(&DeviceError{Err: err})
		return
	}

	detections := o.detectFaces(frame)
	o.updateEmotion(detections)

	switch o.session.State {
	case StateFaceRecognizing:
		o.tickRecognizing(now, frame, detections)
	case StateMultipleFaces:
		if len(detections) <= 1 {
			o.toState(StateFaceRecognizing)
		}
	case StateGesturePrompt:
		o.tickGesturePrompt(now, frame)
	case StateProcessing:
		// Waiting on the Phase 2 resolution; nothing to decide this tick.
	}

	if !o.session.RePromptAt.IsZero() && !now.Before(o.session.RePromptAt) {
		o.session.RePromptAt = time.Time{}
		o.deps.Surface.Status(SeverityInfo, "reprompt.ready", nil)
		o.speak(now, "reprompt.ready", nil)
	}
}

// handleScanRequest applies the "begin scanning" control. It is a no-op
// while a commit is processing.
func (o *Orchestrator) handleScanRequest(now time.Time) {
	switch o.session.State {
	case StateProcessing, StateInitial:
		return
	case StateGesturePrompt:
		// Manual re-trigger abandons the recognized-but-unconfirmed identity.
		o.session.Identity = ""
		o.toState(StateFaceRecognizing)
	}

	o.session.ScanningAllowed = true
	o.session.NoFaceStreak = 0
	// Reset the cooldown clock so the next centered face is tried immediately.
	o.session.LastFaceRecognitionAt = time.Time{}
	o.deps.Surface.Status(SeverityInfo, "scan.started", nil)
	log.Debug("Scan trigger accepted, scanning enabled")
}

func (o *Orchestrator) tickRecognizing(now time.Time, frame *Frame, detections []FaceDetection) {
	if !o.session.ScanningAllowed {
		// The machine still runs every tick, but issues no network calls.
		return
	}

	if len(detections) > 1 {
		o.session.Identity = ""
		o.toState(StateMultipleFaces)
		o.deps.Surface.Status(SeverityWarning, "face.multiple", nil)
		o.popupOnce("face.multiple", nil)
		return
	}

	if len(detections) == 0 {
		o.session.NoFaceStreak++
		if o.opts.NoFaceStreakLimit > 0 && o.session.NoFaceStreak >= o.opts.NoFaceStreakLimit {
			o.session.NoFaceStreak = 0
			o.deps.Surface.Status(SeverityNoFace, "scan.no_face", nil)
			o.speak(now, "scan.no_face", nil)
		}
		return
	}
	o.session.NoFaceStreak = 0

	placement := ClassifyPosition(detections[0].Region, frame.Width, frame.Height)
	if placement.Position != PositionCentered {
		o.guide(now, placement)
		return
	}

	o.deps.Surface.Status(SeverityCentered, "face.centered", nil)

	if o.session.Emotion == "" {
		return
	}
	if o.inFlight {
		return
	}
	if !cooldownElapsed(o.session.LastFaceRecognitionAt, o.opts.RecognitionCooldown, now) {
		return
	}

	o.session.ScanningAllowed = false
	o.session.LastFaceRecognitionAt = now
	o.inFlight = true
	o.deps.Surface.Status(SeverityInfo, "face.recognizing", nil)

	image := append([]byte(nil), frame.JPEG...)
	go o.identify(image)
}

func (o *Orchestrator) tickGesturePrompt(now time.Time, frame *Frame) {
	if o.opts.GesturePromptTimeout > 0 &&
		now.Sub(o.session.GesturePromptSince) >= o.opts.GesturePromptTimeout {
		log.Infof("Gesture confirmation window expired for %q", o.session.Identity)
		o.session.Identity = ""
		o.toState(StateFaceRecognizing)
		o.deps.Surface.Status(SeverityInfo, "gesture.timeout", nil)
		return
	}

	gesture := o.detectGesture(now, frame)
	if gesture == nil || gesture.Confidence < o.opts.GestureConfidence {
		o.speak(now, "gesture.prompt", o.gesturePromptData(o.session.Identity))
		return
	}
	if gesture.Label != o.opts.PresenceGesture && gesture.Label != o.opts.BreakGesture {
		return
	}

	if !cooldownElapsed(o.session.LastAttendanceMarkedAt, o.opts.AttendanceCooldown, now) {
		remaining := o.opts.AttendanceCooldown - now.Sub(o.session.LastAttendanceMarkedAt)
		o.deps.Surface.Status(SeverityInfo, "gesture.cooldown", map[string]interface{}{
			"Seconds": int(remaining.Seconds()) + 1,
		})
		return
	}
	if o.inFlight {
		return
	}

	req := CommitRequest{
		RecognizedName: o.session.Identity,
		Gesture:        gesture.Label,
	}
	if o.session.Emotion != "" {
		emotion := o.session.Emotion
		req.EmotionalState = &emotion
	}

	o.inFlight = true
	o.toState(StateProcessing)
	o.deps.Surface.Status(SeverityInfo, "attendance.processing", nil)
	go o.commit(req)
}

// identify runs the Phase 1 call off the tick goroutine and posts the result
// back into the loop.
func (o *Orchestrator) identify(image []byte) {
	start := time.Now()
	outcome := o.deps.Gateway.Identify(context.Background(), image)
	o.post(phaseResult{
		recognition: &outcome,
		image:       image,
		took:        time.Since(start),
	})
}

// commit resolves best-effort coordinates, then runs the Phase 2 call.
// Geolocation failure or timeout degrades to null coordinates.
func (o *Orchestrator) commit(req CommitRequest) {
	if o.deps.Locator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.GeoTimeout)
		lat, lon, err := o.deps.Locator.Locate(ctx)
		cancel()
		if err != nil {
			log.WithError(err).Debug("Geolocation unavailable, committing without coordinates")
		} else {
			req.Latitude = &lat
			req.Longitude = &lon
		}
	}

	outcome := o.deps.Gateway.Commit(context.Background(), req)
	o.post(phaseResult{attendance: &outcome, request: req})
}

// post hands a phase result to the tick loop without blocking. Results are
// dropped after teardown rather than applied to a dead session.
func (o *Orchestrator) post(r phaseResult) {
	if o.stopped.Load() {
		log.Debug("Discarding phase result after session teardown")
		return
	}
	select {
	case o.results <- r:
	default:
		log.Warn("Result channel full, dropping phase result")
	}
}

func (o *Orchestrator) drainResults(now time.Time) {
	for {
		select {
		case r := <-o.results:
			// A session reset to INITIAL is no longer live; results of
			// calls it issued are void, never applied.
			if o.session.State == StateInitial {
				log.Debug("Discarding phase result for reset session")
				continue
			}
			switch {
			case r.recognition != nil:
				o.applyRecognition(now, r)
			case r.attendance != nil:
				o.applyAttendance(now, r)
			}
		default:
			return
		}
	}
}

func (o *Orchestrator) applyRecognition(now time.Time, r phaseResult) {
	o.inFlight = false
	outcome := *r.recognition

	if o.deps.Recorder != nil {
		o.deps.Recorder.RecordRecognition(r.image, outcome, r.took)
	}

	switch outcome.Status {
	case RecognitionIdentified:
		o.session.Identity = outcome.Name
		o.session.GesturePromptSince = now
		o.toState(StateGesturePrompt)
		log.Infof("Face recognized as %q, prompting for gesture", outcome.Name)
		o.deps.Surface.Status(SeveritySuccess, "recognize.success", map[string]interface{}{"Name": outcome.Name})
		o.speak(now, "gesture.prompt", o.gesturePromptData(outcome.Name))

	case RecognitionUnknown:
		o.session.Identity = ""
		log.Info("Face not recognized")
		o.deps.Surface.Status(SeverityWarning, "recognize.unknown", nil)

	case RecognitionTransportError:
		o.session.Identity = ""
		log.Warnf("Face recognition failed: %s", outcome.Message)
		o.deps.Surface.Status(SeverityError, "recognize.error", nil)
	}
	// On unknown/error, scanning stays disabled until the user re-triggers.
}

func (o *Orchestrator) applyAttendance(now time.Time, r phaseResult) {
	o.inFlight = false
	outcome := *r.attendance
	identity := r.request.RecognizedName

	if o.deps.Recorder != nil {
		o.deps.Recorder.RecordAttendance(r.request, outcome)
	}

	o.session.Identity = ""
	o.session.Emotion = ""
	o.session.ScanningAllowed = false
	o.toState(StateFaceRecognizing)

	switch outcome.Status {
	case AttendanceCommitted:
		o.session.LastAttendanceMarkedAt = now
		log.Infof("Attendance committed for %q: %s (%s)", identity, outcome.Kind, outcome.Message)
		o.deps.Surface.Status(SeveritySuccess, "backend.message", map[string]interface{}{"Message": outcome.Message})
		o.speakNow(now, "backend.message", map[string]interface{}{"Message": outcome.Message})
		if outcome.IsLate {
			o.deps.Surface.Popup("attendance.late", map[string]interface{}{"Name": identity})
		}
		if o.deps.Notifier != nil {
			o.deps.Notifier.AttendanceMarked(identity, outcome)
		}
		o.deps.Surface.RefreshActivity()

	case AttendanceRejected:
		log.Infof("Attendance declined for %q: %s", identity, outcome.Message)
		o.deps.Surface.Status(SeverityInfo, "backend.message", map[string]interface{}{"Message": outcome.Message})

	case AttendanceTransportError:
		log.Warnf("Attendance commit failed for %q: %s", identity, outcome.Message)
		o.deps.Surface.Status(SeverityError, "attendance.error", nil)
	}

	o.session.RePromptAt = now.Add(o.opts.RePromptDelay)
}

// detectFaces fails softly: any observer error yields an empty list.
func (o *Orchestrator) detectFaces(frame *Frame) []FaceDetection {
	detections, err := o.deps.Faces.Detect(context.Background(), frame)
	if err != nil {
		log.WithError(err).Warn("Face detection failed, treating as no result this tick")
		return nil
	}
	return detections
}

// detectGesture fails softly like detectFaces.
func (o *Orchestrator) detectGesture(now time.Time, frame *Frame) *GestureResult {
	gesture, err := o.deps.Gestures.Detect(context.Background(), frame, now)
	if err != nil {
		log.WithError(err).Warn("Gesture detection failed, treating as no result this tick")
		return nil
	}
	return gesture
}

// updateEmotion refreshes the last-detected emotion from the dominant
// expression of a single detection, clearing it whenever not re-observed.
func (o *Orchestrator) updateEmotion(detections []FaceDetection) {
	if len(detections) == 1 {
		label, confidence := dominantExpression(detections[0].Expressions)
		if label != "" && confidence >= o.opts.EmotionThreshold {
			o.session.Emotion = label
			return
		}
	}
	o.session.Emotion = ""
}

// guide turns a non-centered placement into user instructions.
func (o *Orchestrator) guide(now time.Time, placement Placement) {
	var id string
	switch placement.Position {
	case PositionTooFar:
		id = "face.move_closer"
	case PositionTooClose:
		id = "face.move_further"
	case PositionOffCenter:
		id = fmt.Sprintf("face.move_%s", placement.Direction)
	default:
		return
	}
	o.deps.Surface.Status(SeverityInfo, id, nil)
	o.speak(now, id, nil)
}

func (o *Orchestrator) failToInitial(err error) {
	log.WithError(err).Error("Session failure, returning to INITIAL")
	o.session = Session{State: StateInitial}
	// Any outstanding call belongs to the dead session; its result will be
	// discarded on arrival.
	o.inFlight = false
	o.deps.Surface.Status(SeverityError, "device.error", nil)
}

// toState transitions the machine and resets the per-sojourn popup flag.
func (o *Orchestrator) toState(next State) {
	if o.session.State == next {
		return
	}
	log.Debugf("State %s -> %s", o.session.State, next)
	o.session.State = next
	o.session.PopupShown = false
}

func (o *Orchestrator) popupOnce(messageID string, data map[string]interface{}) {
	if o.session.PopupShown {
		return
	}
	o.session.PopupShown = true
	o.deps.Surface.Popup(messageID, data)
}

// speak honors the periodic ceiling on voice prompts.
func (o *Orchestrator) speak(now time.Time, messageID string, data map[string]interface{}) {
	if !cooldownElapsed(o.session.LastSpokenPromptAt, o.opts.VoiceCooldown, now) {
		return
	}
	o.speakNow(now, messageID, data)
}

// speakNow bypasses the voice cooldown for must-hear confirmations.
func (o *Orchestrator) speakNow(now time.Time, messageID string, data map[string]interface{}) {
	o.session.LastSpokenPromptAt = now
	o.deps.Surface.Speak(messageID, data)
}

// gesturePromptData fills the gesture prompt with the configured gesture
// names, so a reconfigured kiosk speaks the right instructions.
func (o *Orchestrator) gesturePromptData(name string) map[string]interface{} {
	return map[string]interface{}{
		"Name":     name,
		"Presence": gestureName(o.opts.PresenceGesture),
		"Break":    gestureName(o.opts.BreakGesture),
	}
}

// gestureName turns a classifier label into something speakable.
func gestureName(label string) string {
	return strings.ReplaceAll(label, "_", " ")
}

func cooldownElapsed(last time.Time, cooldown time.Duration, now time.Time) bool {
	return last.IsZero() || now.Sub(last) >= cooldown
}

func dominantExpression(expressions map[string]float64) (string, float64) {
	var label string
	var best float64
	for name, confidence := range expressions {
		if confidence > best {
			label = name
			best = confidence
		}
	}
	return label, best
}
