package library

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/book-scanner/internal/apperrors"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveBook and GetBook", func() {
		var book *Book

		BeforeEach(func() {
			book = &Book{
				ID:        "test-id",
				Title:     "Effective Java",
				Author:    "Joshua Bloch",
				ISBN:      "9780134685991",
				CreatedAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				UpdatedAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			}
			Expect(db.SaveBook(book)).To(Succeed())
		})

		It("should return the stored book", func() {
			got, err := db.GetBook("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(book))
		})

		It("should overwrite on save", func() {
			book.Title = "Effective Java, 3rd Edition"
			Expect(db.SaveBook(book)).To(Succeed())
			got, err := db.GetBook("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("Effective Java, 3rd Edition"))
		})

		It("should persist across reopen", func() {
			Expect(db.Close()).To(Succeed())
			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			got, err := db.GetBook("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ISBN).To(Equal("9780134685991"))
		})
	})

	Describe("GetBook", func() {
		When("the book does not exist", func() {
			It("returns a not found error", func() {
				_, err := db.GetBook("missing")
				Expect(apperrors.KindOf(err)).To(Equal(apperrors.KindNotFound))
			})
		})
	})

	Describe("ListBooks", func() {
		It("should return an empty slice for an empty database", func() {
			books, err := db.ListBooks()
			Expect(err).NotTo(HaveOccurred())
			Expect(books).NotTo(BeNil())
			Expect(books).To(BeEmpty())
		})

		It("should return every book", func() {
			Expect(db.SaveBook(&Book{ID: "a", Title: "A"})).To(Succeed())
			Expect(db.SaveBook(&Book{ID: "b", Title: "B"})).To(Succeed())
			books, err := db.ListBooks()
			Expect(err).NotTo(HaveOccurred())
			Expect(books).To(HaveLen(2))
		})
	})

	Describe("DeleteBook", func() {
		It("should remove the book", func() {
			Expect(db.SaveBook(&Book{ID: "a"})).To(Succeed())
			Expect(db.DeleteBook("a")).To(Succeed())
			_, err := db.GetBook("a")
			Expect(err).To(HaveOccurred())
		})

		It("should ignore missing IDs", func() {
			Expect(db.DeleteBook("missing")).To(Succeed())
		})
	})
})
