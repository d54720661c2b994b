// Package capture runs the scan flow: camera or photo in, cropped still
// through OCR and ISBN extraction, catalog resolution, and the hand-off to
// the library.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/zombor/book-scanner/internal/apperrors"
	"github.com/zombor/book-scanner/internal/barcode"
	"github.com/zombor/book-scanner/internal/catalog"
	"github.com/zombor/book-scanner/internal/crop"
	"github.com/zombor/book-scanner/internal/isbn"
	"github.com/zombor/book-scanner/internal/library"
	"github.com/zombor/book-scanner/internal/scanning"
)

// Mode is how the user chose to identify the book
type Mode string

const (
	ModeCameraScan Mode = "camera-scan"
	ModePhoto      Mode = "photo"
	ModeManual     Mode = "manual"
)

// State is a step of the scan flow
type State string

const (
	StateIdle                State = "idle"
	StateCameraActive        State = "camera_active"
	StatePhotoCaptured       State = "photo_captured"
	StateCropping            State = "cropping"
	StateAnalyzing           State = "analyzing"
	StateResolved            State = "resolved"
	StateNotFoundManualEntry State = "not_found_manual_entry"
	StateManualEntry         State = "manual_entry"
)

// User-facing status lines
const (
	statusIdle         = "Choose how to add a book."
	statusCameraActive = "Point the camera at the ISBN or barcode and capture."
	statusCaptured     = "Photo captured. Crop it or analyze it."
	statusCropping     = "Drag or resize the box around the ISBN."
	statusAnalyzing    = "Reading the photo..."
	statusLookingUp    = "Looking up the ISBN..."
	statusNoISBN       = "No ISBN found in photo. Try another photo or enter manually."
	statusNotFound     = "Book not found in database. You can enter details manually."
	statusManual       = "Enter an ISBN, or a title and author."
	statusCancelled    = "Cancelled."
	statusSearching    = "Searching by title..."
	statusMatches      = "Pick a match to fill in the title and author."
	statusNoMatches    = "No books found with that title. Please enter details manually."
)

// titleMatchLimit is how many search hits are fetched; titleMatchShown is how
// many are offered.
const (
	titleMatchLimit = 5
	titleMatchShown = 3
)

// Recognizer turns an encoded image into text
type Recognizer interface {
	RecognizeText(ctx context.Context, imageData []byte, contentType string) (string, error)
}

// Resolver turns an identifier into bibliographic metadata
type Resolver interface {
	Resolve(ctx context.Context, id string) (catalog.Result, error)
}

// Library receives the books a session identifies
type Library interface {
	AddBook(in library.NewBook) (*library.Book, error)
}

// TitleSearcher finds books by free-text title
type TitleSearcher interface {
	SearchTitle(ctx context.Context, title string, limit int) ([]catalog.Match, error)
}

// Dependencies are the collaborators a session drives. Decoder and Titles
// are optional.
type Dependencies struct {
	Device      Device
	Constraints Constraints
	Recognizer  Recognizer
	Resolver    Resolver
	Library     Library
	Decoder     barcode.Decoder
	Titles      TitleSearcher
	Barcode     barcode.Options
	Crop        crop.Options
}

// Session is one run of the scan flow. All methods are safe for concurrent
// use. Long-running work (opening the camera, OCR, catalog lookups) happens
// outside the lock so Cancel can interrupt it.
type Session struct {
	id   string
	deps Dependencies

	mu         sync.Mutex
	mode       Mode
	state      State
	prev       State // input state to return to if work fails
	status     string
	lastErr    error
	stream     Stream
	still      image.Image
	stillJPEG  []byte
	cropper    *crop.Engine
	candidate  string
	result     *catalog.Result
	matches    []catalog.Match
	book       *library.Book
	gen        uint64
	cancelWork context.CancelFunc
	acquiring  bool // a device request is outstanding
	closed     bool
}

func newSession(id string, mode Mode, deps Dependencies) *Session {
	if deps.Constraints == (Constraints{}) {
		deps.Constraints = DefaultConstraints()
	}
	if deps.Barcode == (barcode.Options{}) {
		deps.Barcode = barcode.DefaultOptions()
	}
	if deps.Crop == (crop.Options{}) {
		deps.Crop = crop.DefaultOptions()
	}
	return &Session{
		id:     id,
		deps:   deps,
		mode:   mode,
		state:  StateIdle,
		status: statusIdle,
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func errWrongState(op string, st State) error {
	return apperrors.New(apperrors.KindInvalidState,
		fmt.Sprintf("Can't %s right now.", op),
		fmt.Errorf("%s not allowed in state %s", op, st))
}

var errSessionClosed = apperrors.Newf(apperrors.KindInvalidState, "This scan session has ended.")

// expect fails unless the session is open and in one of states
func (s *Session) expect(op string, states ...State) error {
	if s.closed {
		return errSessionClosed
	}
	if s.acquiring {
		return errWrongState(op, s.state)
	}
	for _, st := range states {
		if s.state == st {
			return nil
		}
	}
	return errWrongState(op, s.state)
}

// fail moves to st and records err as the last error
func (s *Session) fail(st State, err error) error {
	s.state = st
	s.lastErr = err
	s.status = apperrors.Message(err)
	return err
}

func (s *Session) enter(st State, status string) {
	if st != StateManualEntry && st != StateNotFoundManualEntry {
		s.matches = nil
	}
	s.state = st
	s.status = status
	s.lastErr = nil
}

// releaseStream releases the held stream, if any. The handle is dropped
// before Release is called so a stream is never released twice.
func (s *Session) releaseStream() {
	if s.stream == nil {
		return
	}
	stream := s.stream
	s.stream = nil
	if err := stream.Release(); err != nil {
		slog.Warn("Failed to release camera", "session", s.id, "error", err)
	}
}

func (s *Session) setStill(img image.Image) {
	s.still = img
	s.stillJPEG = nil
	s.cropper = nil
}

// teardown drops every resource the session holds
func (s *Session) teardown() {
	if s.cancelWork != nil {
		s.cancelWork()
		s.cancelWork = nil
	}
	s.releaseStream()
	s.setStill(nil)
}

var errCameraAbandoned = apperrors.Newf(apperrors.KindInvalidState, "The camera request was cancelled.")

// acquire opens the device. It is called with s.mu held and returns with it
// held, but drops the lock while the device is asked for a stream so a
// permission prompt can't stall Cancel or View. A stream that arrives after
// Cancel or Close is released straight away.
func (s *Session) acquire(ctx context.Context, secure bool) error {
	if !secure {
		return apperrors.Newf(apperrors.KindInsecureContext,
			"The camera needs a secure connection. Open this page over HTTPS or on localhost.")
	}
	if s.deps.Device == nil {
		return errNoCamera(errors.New("no device configured"))
	}

	// Never hold two streams
	s.releaseStream()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelWork = cancel
	s.acquiring = true
	gen := s.gen
	device, constraints := s.deps.Device, s.deps.Constraints

	s.mu.Unlock()
	stream, err := device.Acquire(ctx, constraints)
	s.mu.Lock()

	if s.closed || s.gen != gen {
		if err == nil && stream != nil {
			if rerr := stream.Release(); rerr != nil {
				slog.Warn("Failed to release camera", "session", s.id, "error", rerr)
			}
		}
		if s.closed {
			return errSessionClosed
		}
		return errCameraAbandoned
	}
	s.acquiring = false
	s.cancelWork = nil

	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInternal {
			err = errNoCamera(err)
		}
		return err
	}
	s.stream = stream
	return nil
}

// abandoned reports whether err means the session moved on while acquire
// was waiting, in which case the session state is already settled.
func abandoned(err error) bool {
	return errors.Is(err, errCameraAbandoned) || errors.Is(err, errSessionClosed)
}

// StartCamera acquires the device. secure reports whether the caller is on
// a secure origin; the device is never touched otherwise. Failures leave the
// session idle and are not retried.
func (s *Session) StartCamera(ctx context.Context, secure bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("start the camera", StateIdle, StateCameraActive); err != nil {
		return err
	}
	if err := s.acquire(ctx, secure); err != nil {
		if abandoned(err) {
			return err
		}
		return s.fail(StateIdle, err)
	}
	s.mode = ModeCameraScan
	s.enter(StateCameraActive, statusCameraActive)
	return nil
}

// Capture snapshots the current frame and releases the device
func (s *Session) Capture(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("capture", StateCameraActive); err != nil {
		return err
	}

	frame, err := s.stream.Frame(ctx)
	if err == nil && (frame == nil || frame.Bounds().Empty()) {
		err = errors.New("empty frame")
	}
	if err != nil {
		return s.fail(StateCameraActive, apperrors.New(apperrors.KindCaptureFailure,
			"Couldn't capture a photo. Try again.", err))
	}

	s.releaseStream()
	s.setStill(frame)
	s.enter(StatePhotoCaptured, statusCaptured)
	return nil
}

// LoadPhoto uses an uploaded image as the still
func (s *Session) LoadPhoto(data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("load a photo", StateIdle, StateCameraActive, StatePhotoCaptured, StateNotFoundManualEntry, StateManualEntry); err != nil {
		return err
	}

	img, err := scanning.DecodeImage(data, contentType)
	if err != nil {
		s.lastErr = apperrors.New(apperrors.KindCaptureFailure,
			"Couldn't read that image. Use a JPEG, PNG, HEIC or PDF.", err)
		s.status = apperrors.Message(s.lastErr)
		return s.lastErr
	}

	s.releaseStream()
	s.setStill(img)
	s.candidate = ""
	s.mode = ModePhoto
	s.enter(StatePhotoCaptured, statusCaptured)
	return nil
}

// Retake discards the still and reopens the camera
func (s *Session) Retake(ctx context.Context, secure bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("retake", StatePhotoCaptured, StateNotFoundManualEntry); err != nil {
		return err
	}

	s.setStill(nil)
	s.candidate = ""
	if err := s.acquire(ctx, secure); err != nil {
		if abandoned(err) {
			return err
		}
		return s.fail(StateIdle, err)
	}
	s.mode = ModeCameraScan
	s.enter(StateCameraActive, statusCameraActive)
	return nil
}

// BeginCrop starts selecting a region of the still as displayed at display
func (s *Session) BeginCrop(display crop.Size) (crop.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("crop", StatePhotoCaptured); err != nil {
		return crop.Region{}, err
	}
	engine, err := crop.Begin(s.still, display, s.deps.Crop)
	if err != nil {
		return crop.Region{}, s.fail(StatePhotoCaptured, apperrors.New(apperrors.KindCaptureFailure, "Couldn't crop this photo.", err))
	}
	s.cropper = engine
	s.enter(StateCropping, statusCropping)
	return engine.Region(), nil
}

// DragCrop moves the crop region
func (s *Session) DragCrop(dx, dy float64) (crop.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("move the crop", StateCropping); err != nil {
		return crop.Region{}, err
	}
	return s.cropper.Drag(dx, dy), nil
}

// ResizeCrop moves the crop edges named by handle
func (s *Session) ResizeCrop(handle crop.Handle, dx, dy float64) (crop.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("resize the crop", StateCropping); err != nil {
		return crop.Region{}, err
	}
	return s.cropper.Resize(handle, dx, dy), nil
}

// CommitCrop replaces the still with the selected region
func (s *Session) CommitCrop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("confirm the crop", StateCropping); err != nil {
		return err
	}
	cropped, err := s.cropper.Commit()
	if err != nil {
		return s.fail(StateCropping, apperrors.New(apperrors.KindCaptureFailure, "Couldn't crop this photo.", err))
	}
	s.setStill(cropped)
	s.enter(StatePhotoCaptured, statusCaptured)
	return nil
}

// CancelCrop leaves the still untouched
func (s *Session) CancelCrop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("cancel the crop", StateCropping); err != nil {
		return err
	}
	s.cropper = nil
	s.enter(StatePhotoCaptured, statusCaptured)
	return nil
}

// EnterManual switches to typing an ISBN or title and author. It is
// reachable from idle and from every state a failure can leave the session in.
func (s *Session) EnterManual() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("enter details manually", StateIdle, StateCameraActive, StatePhotoCaptured, StateCropping, StateNotFoundManualEntry, StateManualEntry); err != nil {
		return err
	}
	s.releaseStream()
	s.cropper = nil
	if s.still == nil {
		s.mode = ModeManual
	}
	s.enter(StateManualEntry, statusManual)
	return nil
}

// beginWork moves to Analyzing and hands back a context that Cancel will
// interrupt, plus the generation to check when the work finishes.
func (s *Session) beginWork(ctx context.Context, status string) (context.Context, context.CancelFunc, uint64) {
	s.prev = s.state
	s.enter(StateAnalyzing, status)
	ctx, cancel := context.WithCancel(ctx)
	s.cancelWork = cancel
	return ctx, cancel, s.gen
}

// finishWork reports whether the session is still waiting on the work
// started at generation gen.
func (s *Session) finishWork(gen uint64) error {
	if s.closed {
		return errSessionClosed
	}
	if s.gen != gen || s.state != StateAnalyzing {
		return apperrors.Newf(apperrors.KindInvalidState, "The scan was cancelled.")
	}
	s.cancelWork = nil
	return nil
}

// Analyze reads an ISBN off the still and resolves it. A barcode decoder,
// when configured and the still looks like it has a barcode, is tried
// before OCR.
func (s *Session) Analyze(ctx context.Context) error {
	s.mu.Lock()
	if err := s.expect("analyze", StatePhotoCaptured); err != nil {
		s.mu.Unlock()
		return err
	}
	still := s.still
	ctx, cancel, gen := s.beginWork(ctx, statusAnalyzing)
	s.mu.Unlock()
	defer cancel()

	id, err := s.identify(ctx, still)
	var res catalog.Result
	if err == nil {
		res, err = s.deps.Resolver.Resolve(ctx, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if werr := s.finishWork(gen); werr != nil {
		return werr
	}
	if err != nil {
		return s.fail(s.prev, err)
	}
	return s.settle(id, res)
}

// identify finds an identifier in the still
func (s *Session) identify(ctx context.Context, still image.Image) (string, error) {
	hint := s.deps.Barcode.Detect(still)
	slog.Info("Barcode heuristic", "session", s.id, "hint", hint, "decoder", s.deps.Decoder != nil)

	if hint && s.deps.Decoder != nil {
		value, err := s.deps.Decoder.Decode(ctx, still)
		if err == nil {
			if id := isbn.Normalize(value); isbn.Valid(id) {
				return id, nil
			}
		}
		slog.Info("Barcode decode failed, falling back to OCR", "session", s.id, "error", err)
	}

	data, err := scanning.EncodeJPEG(still, scanning.JPEGQuality)
	if err != nil {
		return "", apperrors.New(apperrors.KindCaptureFailure, "Couldn't prepare the photo for reading.", err)
	}

	text, err := s.deps.Recognizer.RecognizeText(ctx, data, "image/jpeg")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", apperrors.New(apperrors.KindRecognitionFailure,
			"Couldn't read text from the photo. Try again or enter the ISBN manually.", err)
	}

	id, ok := isbn.Extract(text)
	if !ok {
		slog.Info("No ISBN in recognized text", "session", s.id, "chars", len(text))
		return "", apperrors.New(apperrors.KindNotFound, statusNoISBN, nil)
	}
	slog.Info("ISBN extracted", "session", s.id, "isbn", id)
	return id, nil
}

// SubmitIdentifier resolves a typed ISBN. The identifier is validated
// before any catalog is contacted.
func (s *Session) SubmitIdentifier(ctx context.Context, raw string) error {
	s.mu.Lock()
	if err := s.expect("look up an ISBN", StateManualEntry, StateNotFoundManualEntry, StatePhotoCaptured); err != nil {
		s.mu.Unlock()
		return err
	}
	id := isbn.Normalize(raw)
	if !isbn.Valid(id) {
		defer s.mu.Unlock()
		s.lastErr = apperrors.New(apperrors.KindInvalidFormat,
			"That doesn't look like an ISBN. Enter 10 or 13 digits.", fmt.Errorf("invalid isbn %q", raw))
		s.status = apperrors.Message(s.lastErr)
		return s.lastErr
	}
	ctx, cancel, gen := s.beginWork(ctx, statusLookingUp)
	s.mu.Unlock()
	defer cancel()

	res, err := s.deps.Resolver.Resolve(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if werr := s.finishWork(gen); werr != nil {
		return werr
	}
	if err != nil {
		return s.fail(s.prev, err)
	}
	return s.settle(id, res)
}

// settle applies a resolution outcome. Must hold s.mu.
func (s *Session) settle(id string, res catalog.Result) error {
	s.candidate = id
	if !res.Found {
		s.result = nil
		return s.fail(StateNotFoundManualEntry, apperrors.New(apperrors.KindNotFound, statusNotFound, nil))
	}
	s.result = &res
	return s.addBook(library.NewBook{
		Title:  res.Title,
		Author: res.Author,
		ISBN:   res.ISBN,
		Source: res.Source,
	})
}

// AddManual adds a book from a typed title and author, tagged with the last
// identifier the session saw, if any.
func (s *Session) AddManual(title, author string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("add a book", StateIdle, StateCameraActive, StatePhotoCaptured, StateCropping, StateNotFoundManualEntry, StateManualEntry); err != nil {
		return err
	}
	s.prev = s.state
	return s.addBook(library.NewBook{
		Title:  title,
		Author: author,
		ISBN:   s.candidate,
		Source: "manual",
	})
}

// SearchTitle looks the book up by title when the ISBN route has failed.
// Up to three matches are kept on the session for the user to pick from;
// picking one is an AddManual with its title and author. The session stays
// in manual entry whatever the outcome.
func (s *Session) SearchTitle(ctx context.Context, title string) ([]catalog.Match, error) {
	s.mu.Lock()
	if err := s.expect("search by title", StateManualEntry, StateNotFoundManualEntry); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" || s.deps.Titles == nil {
		defer s.mu.Unlock()
		if title == "" {
			s.lastErr = apperrors.Newf(apperrors.KindInvalidFormat, "Please enter a book title.")
		} else {
			s.lastErr = apperrors.Newf(apperrors.KindNotFound, "Title search isn't available. Please enter details manually.")
		}
		s.status = apperrors.Message(s.lastErr)
		return nil, s.lastErr
	}
	searcher, gen, st := s.deps.Titles, s.gen, s.state
	s.status = statusSearching
	s.mu.Unlock()

	matches, err := searcher.SearchTitle(ctx, title, titleMatchLimit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSessionClosed
	}
	if s.gen != gen || s.state != st {
		return nil, apperrors.Newf(apperrors.KindInvalidState, "The search was cancelled.")
	}
	if err != nil {
		slog.Warn("Title search failed", "session", s.id, "title", title, "error", err)
		s.matches = nil
		s.lastErr = apperrors.New(apperrors.KindInternal, "Search failed. Please enter details manually.", err)
		s.status = apperrors.Message(s.lastErr)
		return nil, s.lastErr
	}
	if len(matches) > titleMatchShown {
		matches = matches[:titleMatchShown]
	}
	s.matches = matches
	s.lastErr = nil
	s.status = statusMatches
	if len(matches) == 0 {
		s.status = statusNoMatches
	}
	return matches, nil
}

// addBook hands the record to the library and tears the session down on
// success. On failure (a duplicate, say) the session returns to s.prev.
// Must hold s.mu.
func (s *Session) addBook(in library.NewBook) error {
	if s.still != nil {
		data, err := s.stillBytes()
		if err != nil {
			slog.Warn("Failed to encode scan for archive", "session", s.id, "error", err)
		} else {
			in.Image = data
			in.ImageContentType = "image/jpeg"
		}
	}

	book, err := s.deps.Library.AddBook(in)
	if err != nil {
		return s.fail(s.prev, err)
	}

	s.book = book
	s.teardown()
	s.enter(StateResolved, fmt.Sprintf("Added %q by %s.", book.Title, book.Author))
	return nil
}

// stillBytes encodes the still as JPEG once. Must hold s.mu.
func (s *Session) stillBytes() ([]byte, error) {
	if s.stillJPEG == nil {
		data, err := scanning.EncodeJPEG(s.still, scanning.JPEGQuality)
		if err != nil {
			return nil, err
		}
		s.stillJPEG = data
	}
	return s.stillJPEG, nil
}

// Image returns the current still as JPEG
func (s *Session) Image() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.still == nil {
		return nil, apperrors.Newf(apperrors.KindNotFound, "There is no photo yet.")
	}
	data, err := s.stillBytes()
	if err != nil {
		return nil, apperrors.New(apperrors.KindCaptureFailure, "Couldn't encode the photo.", err)
	}
	return data, nil
}

// Cancel returns to idle from any state, abandoning in-flight work and
// releasing the camera.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSessionClosed
	}
	s.reset()
	s.enter(StateIdle, statusCancelled)
	return nil
}

// Close ends the session for good
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.reset()
	s.state = StateIdle
	s.closed = true
}

func (s *Session) reset() {
	s.gen++
	s.acquiring = false
	s.teardown()
	s.candidate = ""
	s.result = nil
	s.matches = nil
	s.book = nil
	s.lastErr = nil
}
