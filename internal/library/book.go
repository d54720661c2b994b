package library

import "time"

// Book is a record in the user's library
type Book struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn,omitempty"`
	// Source records how the book was added: a catalog name or "manual"
	Source        string    `json:"source,omitempty"`
	ImageFilename string    `json:"image_filename,omitempty"` // Scan the book was identified from
	ContentType   string    `json:"content_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewBook is the input for adding a book
type NewBook struct {
	Title            string
	Author           string
	ISBN             string
	Source           string
	Image            []byte
	ImageContentType string
}

// BookUpdate holds editable fields. Nil fields are left unchanged.
type BookUpdate struct {
	Title  *string `json:"title,omitempty"`
	Author *string `json:"author,omitempty"`
	ISBN   *string `json:"isbn,omitempty"`
}
