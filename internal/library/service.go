// Package library stores the books a user has added, along with the scan
// each one was identified from.
package library

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/book-scanner/internal/apperrors"
)

// IDGenerator generates unique IDs for books
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles book operations
type Service struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource

	// writeMu holds the duplicate check and the write together
	writeMu sync.Mutex
}

// NewService creates a new Service with UUID IDs and the wall clock
func NewService(db DB, storage Storage) *Service {
	return NewServiceWithDeps(db, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// FindDuplicate returns the book whose title and author both match
// case-insensitively, ignoring the book with ID except. It returns nil when
// there is none.
func (s *Service) FindDuplicate(title, author, except string) (*Book, error) {
	books, err := s.db.ListBooks()
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	for _, b := range books {
		if b.ID == except {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(b.Title), title) && strings.EqualFold(strings.TrimSpace(b.Author), author) {
			return b, nil
		}
	}
	return nil, nil
}

func duplicateError(b *Book) error {
	return apperrors.New(apperrors.KindDuplicateRecord,
		fmt.Sprintf("%q by %s is already in your library", b.Title, b.Author),
		fmt.Errorf("duplicate of book %s", b.ID))
}

// AddBook checks for a duplicate, stores the scan image if any, then saves
// the record. Nothing is written when the book is a duplicate. Concurrent
// adds of the same title and author leave exactly one record.
func (s *Service) AddBook(in NewBook) (*Book, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	if title == "" || author == "" {
		return nil, apperrors.Newf(apperrors.KindInvalidFormat, "Title and author are required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	dup, err := s.FindDuplicate(title, author, "")
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, duplicateError(dup)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	book := &Book{
		ID:        id,
		Title:     title,
		Author:    author,
		ISBN:      strings.TrimSpace(in.ISBN),
		Source:    in.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if len(in.Image) > 0 {
		name, err := s.storage.Save(id+imageExtension(in.ImageContentType), in.Image)
		if err != nil {
			return nil, fmt.Errorf("saving scan image: %w", err)
		}
		book.ImageFilename = name
		book.ContentType = in.ImageContentType
	}

	if err := s.db.SaveBook(book); err != nil {
		if book.ImageFilename != "" {
			s.storage.Delete(book.ImageFilename)
		}
		return nil, fmt.Errorf("saving book to database: %w", err)
	}

	slog.Info("Book added", "id", id, "title", title, "author", author, "isbn", book.ISBN, "source", book.Source)
	return book, nil
}

// GetBook retrieves a book by ID
func (s *Service) GetBook(id string) (*Book, error) {
	book, err := s.db.GetBook(id)
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	return book, nil
}

// ListBooks returns all books, newest first
func (s *Service) ListBooks() ([]*Book, error) {
	books, err := s.db.ListBooks()
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})
	return books, nil
}

// UpdateBook edits a book. Changing title or author is subject to the same
// duplicate check as adding.
func (s *Service) UpdateBook(id string, update BookUpdate) (*Book, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	book, err := s.db.GetBook(id)
	if err != nil {
		return nil, fmt.Errorf("getting book for update: %w", err)
	}

	if update.Title != nil {
		book.Title = strings.TrimSpace(*update.Title)
	}
	if update.Author != nil {
		book.Author = strings.TrimSpace(*update.Author)
	}
	if update.ISBN != nil {
		book.ISBN = strings.TrimSpace(*update.ISBN)
	}
	if book.Title == "" || book.Author == "" {
		return nil, apperrors.Newf(apperrors.KindInvalidFormat, "Title and author are required")
	}

	dup, err := s.FindDuplicate(book.Title, book.Author, book.ID)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, duplicateError(dup)
	}

	book.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveBook(book); err != nil {
		return nil, fmt.Errorf("updating book: %w", err)
	}
	return book, nil
}

// DeleteBook removes a book and its scan image
func (s *Service) DeleteBook(id string) error {
	book, err := s.db.GetBook(id)
	if err != nil {
		return fmt.Errorf("getting book for deletion: %w", err)
	}

	if book.ImageFilename != "" {
		if err := s.storage.Delete(book.ImageFilename); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete scan image", "filename", book.ImageFilename, "error", err)
		}
	}

	if err := s.db.DeleteBook(id); err != nil {
		return fmt.Errorf("deleting book from database: %w", err)
	}
	return nil
}

// GetBookImage retrieves the scan a book was identified from
func (s *Service) GetBookImage(id string) ([]byte, string, error) {
	book, err := s.db.GetBook(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting book: %w", err)
	}
	if book.ImageFilename == "" {
		return nil, "", apperrors.Newf(apperrors.KindNotFound, "This book has no scan image")
	}

	data, err := s.storage.Get(book.ImageFilename)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan image: %w", err)
	}
	return data, book.ContentType, nil
}

func imageExtension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/heic", "image/heif":
		return ".heic"
	case "application/pdf":
		return ".pdf"
	default:
		return ".jpg"
	}
}
