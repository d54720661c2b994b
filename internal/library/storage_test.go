package library

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			savedName string
			err       error
		)

		JustBeforeEach(func() {
			savedName, err = storage.Save(filename, []byte("scan"))
		})

		When("the name is plain", func() {
			BeforeEach(func() {
				filename = "book-1.jpg"
			})

			It("should write the file to disk", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedName).To(Equal("book-1.jpg"))
				Expect(filepath.Join(tmpDir, "book-1.jpg")).To(BeAnExistingFile())
			})
		})

		When("the name tries to escape the directory", func() {
			BeforeEach(func() {
				filename = "../../etc/book.jpg"
			})

			It("should keep the file inside the storage directory", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedName).To(Equal("book.jpg"))
				Expect(filepath.Join(tmpDir, "book.jpg")).To(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		It("should return saved data", func() {
			_, err := storage.Save("a.jpg", []byte("scan"))
			Expect(err).NotTo(HaveOccurred())
			data, err := storage.Get("a.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("scan"))
		})

		It("returns the error for a missing file", func() {
			_, err := storage.Get("missing.jpg")
			Expect(err).To(MatchError(ContainSubstring("reading file")))
		})
	})

	Describe("Delete", func() {
		It("should remove the file", func() {
			_, err := storage.Save("a.jpg", []byte("scan"))
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete("a.jpg")).To(Succeed())
			Expect(filepath.Join(tmpDir, "a.jpg")).NotTo(BeAnExistingFile())
		})

		It("returns the error for a missing file", func() {
			Expect(storage.Delete("missing.jpg")).To(MatchError(ContainSubstring("deleting file")))
		})
	})

	Describe("NewLocalStorage", func() {
		It("should create a missing directory", func() {
			path := filepath.Join(GinkgoT().TempDir(), "scans")
			_, err := NewLocalStorage(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeADirectory())
		})
	})
})
