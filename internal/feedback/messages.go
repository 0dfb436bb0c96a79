package feedback

import (
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// newBundle builds the default message catalog. Additional languages can be
// loaded from files on top of these.
func newBundle() *i18n.Bundle {
	bundle := i18n.NewBundle(language.English)
	bundle.AddMessages(language.English,
		&i18n.Message{ID: "kiosk.ready", Other: "Camera ready. Press Start Scan or hit the S key."},
		&i18n.Message{ID: "scan.started", Other: "Scanning... look at the camera."},
		&i18n.Message{ID: "scan.no_face", Other: "No face detected. Step in front of the camera."},
		&i18n.Message{ID: "face.multiple", Other: "Multiple faces detected. Please approach one at a time."},
		&i18n.Message{ID: "face.centered", Other: "Hold still."},
		&i18n.Message{ID: "face.recognizing", Other: "Recognizing..."},
		&i18n.Message{ID: "face.move_closer", Other: "Move closer to the camera."},
		&i18n.Message{ID: "face.move_further", Other: "Move further from the camera."},
		&i18n.Message{ID: "face.move_left", Other: "Move to the left."},
		&i18n.Message{ID: "face.move_right", Other: "Move to the right."},
		&i18n.Message{ID: "face.move_up", Other: "Move up a little."},
		&i18n.Message{ID: "face.move_down", Other: "Move down a little."},
		&i18n.Message{ID: "recognize.success", Other: "Welcome, {{.Name}}!"},
		&i18n.Message{ID: "recognize.unknown", Other: "Face not recognized. Press Start Scan to try again."},
		&i18n.Message{ID: "recognize.error", Other: "Recognition service unavailable. Press Start Scan to retry."},
		&i18n.Message{ID: "gesture.prompt", Other: "{{.Name}}, show a {{.Presence}} to mark presence or a {{.Break}} for a break."},
		&i18n.Message{ID: "gesture.cooldown", Other: "Please wait {{.Seconds}} more seconds before marking again."},
		&i18n.Message{ID: "gesture.timeout", Other: "Gesture window expired. Press Start Scan to try again."},
		&i18n.Message{ID: "attendance.processing", Other: "Marking attendance..."},
		&i18n.Message{ID: "attendance.late", Other: "{{.Name}}, you are marked late today."},
		&i18n.Message{ID: "attendance.error", Other: "Could not reach the attendance server. Press Start Scan to retry."},
		&i18n.Message{ID: "backend.message", Other: "{{.Message}}"},
		&i18n.Message{ID: "reprompt.ready", Other: "Ready for the next person."},
		&i18n.Message{ID: "device.error", Other: "Camera unavailable. Check the device and restart."},
		&i18n.Message{ID: "model.error", Other: "A recognition service failed to start. Check the services and restart."},
	)
	return bundle
}
