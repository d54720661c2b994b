package scanning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server     *ghttp.Server
		recognizer *Ollama
		text       string
		err        error
	)

	chatReply := func(content string) http.HandlerFunc {
		return ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: content},
			Done:    true,
		})
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		recognizer, err = NewOllama(server.URL(), "llava")
		Expect(err).NotTo(HaveOccurred())
		recognizer.retryDelay = time.Millisecond
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = recognizer.RecognizeText(context.Background(), []byte("png-bytes"), "image/png")
	})

	When("the model answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, readErr := io.ReadAll(r.Body)
					Expect(readErr).NotTo(HaveOccurred())
					var req ollamaChatRequest
					Expect(json.Unmarshal(body, &req)).To(Succeed())
					Expect(req.Model).To(Equal("llava"))
					Expect(req.Stream).To(BeFalse())
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
				},
				chatReply("```\nEffective Java\nISBN 978-0-13-468599-1\n```"),
			))
		})

		It("should return the cleaned transcript", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Effective Java\nISBN 978-0-13-468599-1"))
		})
	})

	When("the server fails once", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusBadGateway, "model loading"),
				chatReply("ISBN 0306406152"),
			)
		})

		It("should retry", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("ISBN 0306406152"))
			Expect(server.ReceivedRequests()).To(HaveLen(2))
		})
	})

	When("the server keeps failing", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusInternalServerError, "a"),
				ghttp.RespondWith(http.StatusInternalServerError, "b"),
				ghttp.RespondWith(http.StatusInternalServerError, "c"),
			)
		})

		It("should give up after three attempts", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(server.ReceivedRequests()).To(HaveLen(3))
		})
	})

	When("the request is rejected", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, "model not found"))
		})

		It("should not retry", func() {
			Expect(err).To(MatchError(ContainSubstring("model not found")))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})
})
