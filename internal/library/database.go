package library

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/book-scanner/internal/apperrors"
)

const bucketName = "books"

// DB defines the interface for database operations
type DB interface {
	// SaveBook inserts or replaces a book
	SaveBook(book *Book) error

	// GetBook retrieves a book by ID
	GetBook(id string) (*Book, error)

	// ListBooks returns all books
	ListBooks() ([]*Book, error)

	// DeleteBook removes a book from the database
	DeleteBook(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveBook stores book as JSON keyed by its ID
func (b *BoltDB) SaveBook(book *Book) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(book)
		if err != nil {
			return fmt.Errorf("marshaling book: %w", err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(book.ID), data)
	})
}

// GetBook retrieves a book by ID
func (b *BoltDB) GetBook(id string) (*Book, error) {
	var book *Book
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return apperrors.New(apperrors.KindNotFound, "Book not found", fmt.Errorf("book not found: %s", id))
		}
		return json.Unmarshal(data, &book)
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// ListBooks returns all books in key order
func (b *BoltDB) ListBooks() ([]*Book, error) {
	books := make([]*Book, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var book Book
			if err := json.Unmarshal(v, &book); err != nil {
				return fmt.Errorf("unmarshaling book: %w", err)
			}
			books = append(books, &book)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return books, nil
}

// DeleteBook removes a book. Deleting a missing ID is not an error.
func (b *BoltDB) DeleteBook(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
