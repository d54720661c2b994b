package capture

import (
	"github.com/zombor/book-scanner/internal/apperrors"
	"github.com/zombor/book-scanner/internal/catalog"
	"github.com/zombor/book-scanner/internal/crop"
	"github.com/zombor/book-scanner/internal/library"
)

// ErrorView is the user-facing part of a session error
type ErrorView struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// View is a snapshot of a session for display
type View struct {
	ID         string          `json:"id"`
	Mode       Mode            `json:"mode,omitempty"`
	State      State           `json:"state"`
	Status     string          `json:"status"`
	CameraOpen bool            `json:"camera_open"`
	HasImage   bool            `json:"has_image"`
	ImageSize  *crop.Size      `json:"image_size,omitempty"`
	Crop       *crop.Region    `json:"crop,omitempty"`
	ISBN       string          `json:"isbn,omitempty"`
	Result     *catalog.Result `json:"result,omitempty"`
	Matches    []catalog.Match `json:"matches,omitempty"`
	Book       *library.Book   `json:"book,omitempty"`
	Error      *ErrorView      `json:"error,omitempty"`
}

// View returns a snapshot of the session
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:         s.id,
		Mode:       s.mode,
		State:      s.state,
		Status:     s.status,
		CameraOpen: s.stream != nil,
		HasImage:   s.still != nil,
		ISBN:       s.candidate,
		Result:     s.result,
		Matches:    s.matches,
		Book:       s.book,
	}
	if s.still != nil {
		b := s.still.Bounds()
		v.ImageSize = &crop.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	}
	if s.cropper != nil {
		r := s.cropper.Region()
		v.Crop = &r
	}
	if s.lastErr != nil {
		v.Error = &ErrorView{
			Kind:    apperrors.KindOf(s.lastErr),
			Message: apperrors.Message(s.lastErr),
		}
	}
	return v
}
