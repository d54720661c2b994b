package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/book-scanner/internal/apperrors"
	"github.com/zombor/book-scanner/internal/capture"
	"github.com/zombor/book-scanner/internal/crop"
)

// maxPhotoSize allows high-resolution phone photos
const maxPhotoSize = int64(50 << 20)

// writeSession reports the session after an operation. A failed operation
// uses the error's status code but still returns the session so the client
// can follow it to its new state.
func writeSession(w http.ResponseWriter, sess *capture.Session, err error) {
	v := sess.View()
	status := http.StatusOK
	if err != nil {
		status = apperrors.StatusCode(err)
		v.Error = &capture.ErrorView{
			Kind:    apperrors.KindOf(err),
			Message: apperrors.Message(err),
		}
		if v.Error.Kind == apperrors.KindInternal {
			slog.Error("Session operation failed", "session", sess.ID(), "error", err)
		}
	}
	writeJSON(w, status, v)
}

// withSession resolves the {id} path value to the active session
func (s *Server) withSession(next func(w http.ResponseWriter, r *http.Request, sess *capture.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, sess)
	}
}

// handleStartSession opens a new scan session, closing any previous one
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode capture.Mode `json:"mode"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Mode == "" {
		req.Mode = capture.ModeCameraScan
	}
	switch req.Mode {
	case capture.ModeCameraScan, capture.ModePhoto, capture.ModeManual:
	default:
		writeError(w, apperrors.Newf(apperrors.KindInvalidFormat, "Unknown scan mode %q", req.Mode))
		return
	}

	sess := s.sessions.Start(req.Mode)
	var err error
	if req.Mode == capture.ModeManual {
		err = sess.EnterManual()
	}
	if err != nil {
		writeSession(w, sess, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	writeSession(w, sess, nil)
}

// handleCloseSession ends the session and releases the camera
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionImage returns the current still as JPEG
func (s *Server) handleSessionImage(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	data, err := sess.Image()
	if err != nil {
		writeError(w, err)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (s *Server) handleStartCamera(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	writeSession(w, sess, sess.StartCamera(r.Context(), s.isSecureRequest(r)))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	writeSession(w, sess, sess.Capture(r.Context()))
}

func (s *Server) handleRetake(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	writeSession(w, sess, sess.Retake(r.Context(), s.isSecureRequest(r)))
}

// handleUploadPhoto uses an uploaded image as the session's still
func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	data, contentType, err := readUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSession(w, sess, sess.LoadPhoto(data, contentType))
}

// readUpload reads the "file" part of a multipart form
func readUpload(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		msg := "Error parsing form"
		if strings.Contains(err.Error(), "request body too large") {
			msg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		return nil, "", apperrors.New(apperrors.KindInvalidFormat, msg, err)
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		msg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			msg = "No file was selected. Please choose a file to upload."
		}
		return nil, "", apperrors.New(apperrors.KindInvalidFormat, msg, err)
	}
	defer f.Close()

	if header.Size > maxPhotoSize {
		return nil, "", apperrors.Newf(apperrors.KindInvalidFormat,
			"File is too large. Maximum size is 50MB. Please compress or resize your image.")
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", apperrors.New(apperrors.KindCaptureFailure, "Error reading file. Please try again.", err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromName(header.Filename)
	}
	return data, strings.ToLower(strings.TrimSpace(contentType)), nil
}

func contentTypeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleBeginCrop starts a crop over the still as the client displays it
func (s *Server) handleBeginCrop(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	var display crop.Size
	if r.ContentLength != 0 {
		if err := decodeBody(r, &display); err != nil {
			writeError(w, err)
			return
		}
	}
	_, err := sess.BeginCrop(display)
	writeSession(w, sess, err)
}

type gesture struct {
	Handle string  `json:"handle"`
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
}

func (s *Server) handleDragCrop(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	var g gesture
	if err := decodeBody(r, &g); err != nil {
		writeError(w, err)
		return
	}
	_, err := sess.DragCrop(g.DX, g.DY)
	writeSession(w, sess, err)
}

func (s *Server) handleResizeCrop(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	var g gesture
	if err := decodeBody(r, &g); err != nil {
		writeError(w, err)
		return
	}
	handle, err := crop.ParseHandle(g.Handle)
	if err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidFormat, "Unknown resize handle", err))
		return
	}
	_, err = sess.ResizeCrop(handle, g.DX, g.DY)
	writeSession(w, sess, err)
}

func (s *Server) handleCommitCrop(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	writeSession(w, sess, sess.CommitCrop())
}

func (s *Server) handleCancelCrop(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	writeSession(w, sess, sess.CancelCrop())
}

// handleAnalyze runs OCR and resolution on the still
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	writeSession(w, sess, sess.Analyze(r.Context()))
}

// handleSubmitISBN resolves a typed ISBN
func (s *Server) handleSubmitISBN(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	var req struct {
		ISBN string `json:"isbn"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeSession(w, sess, sess.SubmitIdentifier(r.Context(), req.ISBN))
}

func (s *Server) handleEnterManual(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	writeSession(w, sess, sess.EnterManual())
}

// handleSearchTitle looks the book up by title from manual entry. The
// matches come back on the session view.
func (s *Server) handleSearchTitle(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	_, err := sess.SearchTitle(r.Context(), req.Title)
	writeSession(w, sess, err)
}

// handleAddManual adds a typed title and author from within the session
func (s *Server) handleAddManual(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	var req struct {
		Title  string `json:"title"`
		Author string `json:"author"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeSession(w, sess, sess.AddManual(req.Title, req.Author))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, sess *capture.Session) {
	writeSession(w, sess, sess.Cancel())
}
