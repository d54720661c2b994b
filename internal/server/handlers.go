package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zombor/book-scanner/internal/apperrors"
	"github.com/zombor/book-scanner/internal/library"
)

// errorResponse is the body of every failed API call
type errorResponse struct {
	Error string         `json:"error"`
	Kind  apperrors.Kind `json:"kind"`
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError reports err using its kind's status code and user-facing message
func writeError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInternal {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, apperrors.StatusCode(err), errorResponse{
		Error: apperrors.Message(err),
		Kind:  kind,
	})
}

// decodeBody decodes a JSON request body into v
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.New(apperrors.KindInvalidFormat, "Invalid request body", err)
	}
	return nil
}

var errIDRequired = apperrors.New(apperrors.KindInvalidFormat, "Book ID required", errors.New("missing id"))

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleListBooks returns every book in the library
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.library.ListBooks()
	if err != nil {
		writeError(w, err)
		return
	}

	// Ensure we always return an array, not nil
	if books == nil {
		books = []*library.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

// handleAddBook adds a book from a typed title and author
func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		Author string `json:"author"`
		ISBN   string `json:"isbn"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	book, err := s.library.AddBook(library.NewBook{
		Title:  req.Title,
		Author: req.Author,
		ISBN:   req.ISBN,
		Source: "manual",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// handleGetBook returns a single book
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, errIDRequired)
		return
	}
	book, err := s.library.GetBook(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// handleUpdateBook edits a book's title, author or ISBN
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, errIDRequired)
		return
	}
	var update library.BookUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, err)
		return
	}
	book, err := s.library.UpdateBook(id, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// handleDeleteBook deletes a book
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, errIDRequired)
		return
	}
	if err := s.library.DeleteBook(id); err != nil {
		writeError(w, err)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetBookImage returns the scan a book was identified from
func (s *Server) handleGetBookImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, errIDRequired)
		return
	}
	data, contentType, err := s.library.GetBookImage(id)
	if err != nil {
		writeError(w, err)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
