// Package camera owns the capture device and exposes the most recent frame.
package camera

import (
	"fmt"
	"sync"
	"time"

	"presence-kiosk-go/internal/config"
	"presence-kiosk-go/internal/core/session"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// DeviceSource grabs frames from a local V4L/UVC device in a background
// goroutine and keeps only the latest one, so CurrentFrame never blocks
// or queues regardless of the caller's tick rate.
type DeviceSource struct {
	cfg config.CameraConfig

	mu      sync.RWMutex
	latest  *session.Frame
	lastErr error

	capture *gocv.VideoCapture
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewDeviceSource creates a source for the configured device. The device is
// not opened until Start.
func NewDeviceSource(cfg config.CameraConfig) *DeviceSource {
	return &DeviceSource{cfg: cfg}
}

// Start opens the device and begins the capture loop.
func (s *DeviceSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(s.cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to open camera device %d: %w", s.cfg.DeviceID, err)
	}
	if s.cfg.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
	}
	if s.cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	}

	s.capture = capture
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.started = true
	s.lastErr = nil

	go s.captureLoop()
	log.Infof("Camera device %d opened (%dx%d requested)", s.cfg.DeviceID, s.cfg.Width, s.cfg.Height)
	return nil
}

// Stop releases the device. Safe to call more than once.
func (s *DeviceSource) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	s.mu.Unlock()

	<-s.done

	s.mu.Lock()
	if s.capture != nil {
		if err := s.capture.Close(); err != nil {
			log.WithError(err).Warn("Failed to close camera device")
		}
		s.capture = nil
	}
	s.latest = nil
	s.mu.Unlock()
	log.Info("Camera device released")
}

// CurrentFrame returns the latest decoded frame. It never blocks; until the
// first grab completes it reports session.ErrFrameNotReady, which callers
// treat as "try again next tick" rather than device loss.
func (s *DeviceSource) CurrentFrame() (*session.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastErr != nil {
		return nil, s.lastErr
	}
	if s.latest == nil {
		return nil, session.ErrFrameNotReady
	}
	return s.latest, nil
}

func (s *DeviceSource) captureLoop() {
	defer close(s.done)

	mat := gocv.NewMat()
	defer mat.Close()

	interval := time.Second / 30
	if s.cfg.FPS > 0 {
		interval = time.Second / time.Duration(s.cfg.FPS)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		if ok := s.capture.Read(&mat); !ok || mat.Empty() {
			failures++
			// A handful of empty grabs is normal while the sensor warms up.
			if failures > 30 {
				s.mu.Lock()
				s.lastErr = fmt.Errorf("camera device %d stopped delivering frames", s.cfg.DeviceID)
				s.mu.Unlock()
				return
			}
			continue
		}
		failures = 0

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
		if err != nil {
			log.WithError(err).Warn("Failed to encode camera frame")
			continue
		}
		frame := &session.Frame{
			JPEG:   append([]byte(nil), buf.GetBytes()...),
			Width:  mat.Cols(),
			Height: mat.Rows(),
		}
		buf.Close()

		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()
	}
}
