package session

import (
	"errors"
	"fmt"
)

// ErrFrameNotReady reports that the frame source has not produced its first
// frame yet. The tick loop skips the tick; it is not device loss.
var ErrFrameNotReady = errors.New("frame source has no frame yet")

// DeviceError means the camera is unavailable or access was denied.
// Fatal for the session: the machine returns to INITIAL and the user
// must restart.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera device error: %v", e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ModelLoadError means an observer failed to initialize. Same handling
// as a device error.
type ModelLoadError struct {
	Component string
	Err       error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("%s observer failed to initialize: %v", e.Component, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }
