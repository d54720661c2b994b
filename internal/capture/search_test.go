package capture

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/book-scanner/internal/apperrors"
	"github.com/zombor/book-scanner/internal/catalog"
)

type fakeTitles struct {
	matches []catalog.Match
	err     error
	titles  []string
	limits  []int
}

func (f *fakeTitles) SearchTitle(ctx context.Context, title string, limit int) ([]catalog.Match, error) {
	f.titles = append(f.titles, title)
	f.limits = append(f.limits, limit)
	return f.matches, f.err
}

var _ = Describe("Session title search", func() {
	var (
		titles  *fakeTitles
		lib     *fakeLibrary
		deps    Dependencies
		session *Session
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		titles = &fakeTitles{matches: []catalog.Match{
			{Title: "Effective Java", Author: "Joshua Bloch"},
			{Title: "Effective Java Workbook", Author: catalog.UnknownAuthor},
			{Title: "Java Puzzlers", Author: "Joshua Bloch"},
			{Title: "Java Concurrency in Practice", Author: "Brian Goetz"},
		}}
		lib = &fakeLibrary{}
		deps = Dependencies{
			Resolver: &fakeResolver{},
			Library:  lib,
			Titles:   titles,
		}
	})

	JustBeforeEach(func() {
		session = newSession("session-1", ModeManual, deps)
	})

	It("should only run from manual entry", func() {
		_, err := session.SearchTitle(ctx, "effective java")
		Expect(apperrors.KindOf(err)).To(Equal(apperrors.KindInvalidState))
		Expect(titles.titles).To(BeEmpty())
	})

	When("in manual entry", func() {
		JustBeforeEach(func() {
			Expect(session.EnterManual()).To(Succeed())
		})

		It("should fetch five and offer three", func() {
			matches, err := session.SearchTitle(ctx, "  effective java ")
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(3))
			Expect(titles.titles).To(Equal([]string{"effective java"}))
			Expect(titles.limits).To(Equal([]int{5}))

			v := session.View()
			Expect(v.State).To(Equal(StateManualEntry))
			Expect(v.Matches).To(Equal(matches))
			Expect(v.Status).To(Equal(statusMatches))
		})

		It("should add the picked match", func() {
			matches, err := session.SearchTitle(ctx, "effective java")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.AddManual(matches[0].Title, matches[0].Author)).To(Succeed())

			Expect(lib.added).To(HaveLen(1))
			Expect(lib.added[0].Title).To(Equal("Effective Java"))
			Expect(lib.added[0].Author).To(Equal("Joshua Bloch"))
			v := session.View()
			Expect(v.State).To(Equal(StateResolved))
			Expect(v.Matches).To(BeEmpty())
		})

		It("should reject a blank title without searching", func() {
			_, err := session.SearchTitle(ctx, "   ")
			Expect(apperrors.KindOf(err)).To(Equal(apperrors.KindInvalidFormat))
			Expect(titles.titles).To(BeEmpty())
		})

		It("should say so when nothing matches", func() {
			titles.matches = nil
			matches, err := session.SearchTitle(ctx, "zzzz")
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
			Expect(session.View().Status).To(Equal(statusNoMatches))
		})

		It("should stay in manual entry when the search fails", func() {
			titles.err = errors.New("connection refused")
			_, err := session.SearchTitle(ctx, "effective java")
			Expect(apperrors.KindOf(err)).To(Equal(apperrors.KindInternal))
			v := session.View()
			Expect(v.State).To(Equal(StateManualEntry))
			Expect(v.Status).To(Equal("Search failed. Please enter details manually."))
		})

		It("should drop the matches on cancel", func() {
			_, err := session.SearchTitle(ctx, "effective java")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Cancel()).To(Succeed())
			Expect(session.View().Matches).To(BeEmpty())
		})
	})

	When("the book was not found by ISBN", func() {
		BeforeEach(func() {
			deps.Resolver = &fakeResolver{results: map[string]catalog.Result{}}
		})

		It("should search from the not-found state", func() {
			Expect(session.EnterManual()).To(Succeed())
			err := session.SubmitIdentifier(ctx, "0134685991")
			Expect(apperrors.KindOf(err)).To(Equal(apperrors.KindNotFound))
			Expect(session.State()).To(Equal(StateNotFoundManualEntry))

			matches, err := session.SearchTitle(ctx, "effective java")
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(3))
			Expect(session.State()).To(Equal(StateNotFoundManualEntry))
		})
	})

	When("no searcher is configured", func() {
		BeforeEach(func() {
			deps.Titles = nil
		})

		It("should tell the user to type the details", func() {
			Expect(session.EnterManual()).To(Succeed())
			_, err := session.SearchTitle(ctx, "effective java")
			Expect(apperrors.KindOf(err)).To(Equal(apperrors.KindNotFound))
		})
	})
})
