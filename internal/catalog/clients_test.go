package catalog

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("GoogleBooks", func() {
	var (
		server *ghttp.Server
		client *GoogleBooks
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		client, err = NewGoogleBooks(context.Background(), server.URL(), "")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should be named", func() {
		Expect(client.Name()).To(Equal("google-books"))
	})

	When("the volume exists", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/books/v1/volumes"),
				ghttp.VerifyFormKV("q", "isbn:9780134685991"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"kind":       "books#volumes",
					"totalItems": 1,
					"items": []map[string]any{
						{"volumeInfo": map[string]any{
							"title":   "Effective Java",
							"authors": []string{"Joshua Bloch"},
						}},
					},
				}),
			))
		})

		It("should return the first volume", func() {
			md, err := client.Lookup(context.Background(), "9780134685991")
			Expect(err).NotTo(HaveOccurred())
			Expect(md).To(Equal(&Metadata{Title: "Effective Java", Authors: []string{"Joshua Bloch"}}))
		})
	})

	When("there are no items", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"kind":       "books#volumes",
				"totalItems": 0,
			}))
		})

		It("should report no match", func() {
			md, err := client.Lookup(context.Background(), "9780134685991")
			Expect(err).NotTo(HaveOccurred())
			Expect(md).To(BeNil())
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.SetAllowUnhandledRequests(true)
			server.SetUnhandledRequestStatusCode(http.StatusInternalServerError)
		})

		It("should return an error", func() {
			_, err := client.Lookup(context.Background(), "9780134685991")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("OpenLibrary", func() {
	var (
		server *ghttp.Server
		client *OpenLibrary
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		client = NewOpenLibrary(server.URL() + "/")
	})

	AfterEach(func() {
		server.Close()
	})

	It("should be named", func() {
		Expect(client.Name()).To(Equal("open-library"))
	})

	When("the edition exists", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/api/books", "bibkeys=ISBN%3A0134685991&format=json&jscmd=data"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"ISBN:0134685991": map[string]any{
						"title":   "Effective Java",
						"authors": []map[string]string{{"name": "Joshua Bloch"}, {"name": "Other"}},
					},
				}),
			))
		})

		It("should return title and authors", func() {
			md, err := client.Lookup(context.Background(), "0134685991")
			Expect(err).NotTo(HaveOccurred())
			Expect(md).To(Equal(&Metadata{Title: "Effective Java", Authors: []string{"Joshua Bloch", "Other"}}))
		})
	})

	When("the bibkey is absent", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{}`))
		})

		It("should report no match", func() {
			md, err := client.Lookup(context.Background(), "0134685991")
			Expect(err).NotTo(HaveOccurred())
			Expect(md).To(BeNil())
		})
	})

	When("the service is down", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusServiceUnavailable, "down"))
		})

		It("should return an error", func() {
			_, err := client.Lookup(context.Background(), "0134685991")
			Expect(err).To(MatchError(ContainSubstring("status 503")))
		})
	})

	When("the body is not JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, "<html>"))
		})

		It("should return an error", func() {
			_, err := client.Lookup(context.Background(), "0134685991")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("OpenLibrary title search", func() {
	var (
		server *ghttp.Server
		client *OpenLibrary
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		client = NewOpenLibrary(server.URL())
	})

	AfterEach(func() {
		server.Close()
	})

	When("the search has hits", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/search.json", "limit=5&q=effective+java"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"docs": []map[string]any{
						{"title": "Effective Java", "author_name": []string{"Joshua Bloch", "Other"}},
						{"title": "  "},
						{"title": "Effective Java Workbook"},
						{"title": "Java Puzzlers", "author_name": []string{"Joshua Bloch"}},
					},
				}),
			))
		})

		It("should return titles with their first author", func() {
			matches, err := client.SearchTitle(context.Background(), "effective java", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(Equal([]Match{
				{Title: "Effective Java", Author: "Joshua Bloch"},
				{Title: "Effective Java Workbook", Author: UnknownAuthor},
				{Title: "Java Puzzlers", Author: "Joshua Bloch"},
			}))
		})
	})

	When("there are more docs than the limit", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"docs": []map[string]any{{"title": "A"}, {"title": "B"}, {"title": "C"}},
			}))
		})

		It("should stop at the limit", func() {
			matches, err := client.SearchTitle(context.Background(), "letters", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
		})
	})

	When("nothing matches", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{"numFound":0,"docs":[]}`))
		})

		It("should return no matches", func() {
			matches, err := client.SearchTitle(context.Background(), "zzzz", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})
	})

	When("the service is down", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusBadGateway, "down"))
		})

		It("should return an error", func() {
			_, err := client.SearchTitle(context.Background(), "effective java", 5)
			Expect(err).To(MatchError(ContainSubstring("status 502")))
		})
	})
})
