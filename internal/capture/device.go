package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/zombor/book-scanner/internal/apperrors"
	"github.com/zombor/book-scanner/internal/scanning"
)

// Constraints is what a session asks of the video device
type Constraints struct {
	FacingMode  string `json:"facing_mode"`
	IdealWidth  int    `json:"ideal_width"`
	IdealHeight int    `json:"ideal_height"`
	Audio       bool   `json:"audio"`
}

// DefaultConstraints prefers the rear camera at 720p without audio
func DefaultConstraints() Constraints {
	return Constraints{
		FacingMode:  "environment",
		IdealWidth:  1280,
		IdealHeight: 720,
		Audio:       false,
	}
}

// Device hands out exclusive streams. Acquire fails with a
// KindDeviceUnavailable, KindDevicePermissionDenied or KindDeviceBusy error.
type Device interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live frame source. Release must be called exactly once.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Release() error
}

// FileDevice treats an image file that some other process keeps
// overwriting (a webcam snapshot daemon, a phone camera bridge) as a camera.
// Only one stream may be open at a time.
type FileDevice struct {
	path string

	mu    sync.Mutex
	inUse bool
}

// NewFileDevice creates a device backed by the snapshot at path
func NewFileDevice(path string) *FileDevice {
	return &FileDevice{path: path}
}

// Acquire checks the snapshot is readable and claims the device
func (d *FileDevice) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inUse {
		return nil, apperrors.New(apperrors.KindDeviceBusy,
			"Camera is already in use. Close other apps using the camera and try again.",
			fmt.Errorf("device %s already acquired", d.path))
	}
	if d.path == "" {
		return nil, errNoCamera(errors.New("no device configured"))
	}

	f, err := os.Open(d.path)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	f.Close()

	d.inUse = true
	slog.Info("Camera acquired", "device", filepath.Base(d.path), "facing", c.FacingMode, "width", c.IdealWidth, "height", c.IdealHeight)
	return &fileStream{device: d}, nil
}

func (d *FileDevice) release() {
	d.mu.Lock()
	d.inUse = false
	d.mu.Unlock()
	slog.Info("Camera released", "device", filepath.Base(d.path))
}

func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errNoCamera(err)
	case errors.Is(err, fs.ErrPermission):
		return apperrors.New(apperrors.KindDevicePermissionDenied,
			"Camera access denied. Allow camera access and try again.", err)
	case errors.Is(err, syscall.EBUSY):
		return apperrors.New(apperrors.KindDeviceBusy,
			"Camera is already in use. Close other apps using the camera and try again.", err)
	default:
		return errNoCamera(err)
	}
}

func errNoCamera(cause error) error {
	return apperrors.New(apperrors.KindDeviceUnavailable,
		"No camera found. Upload a photo or enter the ISBN manually.", cause)
}

type fileStream struct {
	device *FileDevice
	once   sync.Once
}

// Frame reads the latest snapshot
func (s *fileStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.device.path)
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	img, err := scanning.DecodeImage(data, "")
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return img, nil
}

func (s *fileStream) Release() error {
	s.once.Do(s.device.release)
	return nil
}
