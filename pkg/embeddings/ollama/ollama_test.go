package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/embeddings/ollama"
)

func TestOllama(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ollama Embedder Suite")
}

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		lastBody map[string]any
		status   int
	)

	BeforeEach(func() {
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/embed" {
				http.NotFound(w, r)
				return
			}
			lastBody = map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(&lastBody)

			if status != http.StatusOK {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":"model not found"}`))
				return
			}

			n := 1
			if inputs, ok := lastBody["input"].([]any); ok {
				n = len(inputs)
			}
			embs := make([][]float32, n)
			for i := range embs {
				embs[i] = []float32{float32(i) + 0.1, 0.2, 0.3}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model":      lastBody["model"],
				"embeddings": embs,
			})
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("uses the default model when none is configured", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.ModelName()).To(Equal(ollama.DefaultEmbeddingModel))

		vec, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{0.1, 0.2, 0.3}))
		Expect(lastBody["input"]).To(Equal("hello"))
		Expect(lastBody["model"]).To(Equal(ollama.DefaultEmbeddingModel))
	})

	It("embeds several inputs in one request", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: "all-minilm"})
		Expect(err).NotTo(HaveOccurred())

		vecs, err := e.EmbedMany(context.Background(), []string{"a", "b", "c"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(HaveLen(3))
		Expect(lastBody["input"]).To(HaveLen(3))
	})

	It("returns an error when the server fails", func() {
		status = http.StatusNotFound
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(err).To(HaveOccurred())
	})
})
