package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
	"github.com/davidhonghikim/griot-sub000/pkg/generation/ollama"
)

func TestOllama(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ollama Backend Suite")
}

var _ = Describe("Backend", func() {
	var (
		server  *httptest.Server
		backend *ollama.Backend
		mu      sync.Mutex
		genBody map[string]any
		failGen bool
	)

	BeforeEach(func() {
		failGen = false
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/":
				w.WriteHeader(http.StatusOK)
			case "/api/tags":
				_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"mistral:7b"}]}`))
			case "/api/generate":
				body := map[string]any{}
				_ = json.NewDecoder(r.Body).Decode(&body)
				mu.Lock()
				genBody = body
				mu.Unlock()
				if failGen {
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"model crashed"}`))
					return
				}
				_, _ = w.Write([]byte(`{"model":"llama3.2:latest","response":"Once upon a time.","done":true,"prompt_eval_count":12,"eval_count":5}` + "\n"))
			default:
				http.NotFound(w, r)
			}
		}))

		var err error
		backend, err = ollama.New(ollama.Config{BaseURL: server.URL, ContextWindow: 4096, Threads: 8})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("reports health and models", func() {
		Expect(backend.Name()).To(Equal("ollama"))
		Expect(backend.Endpoint()).To(Equal(server.URL))
		Expect(backend.CheckHealth(context.Background())).To(Succeed())

		models, err := backend.ListModels(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(models).To(Equal([]string{"llama3.2:latest", "mistral:7b"}))
	})

	It("generates without streaming and maps options", func() {
		c, err := backend.Generate(context.Background(), generation.Prompt{
			Model:       "llama3.2:latest",
			Text:        "Tell a story",
			Temperature: 0.2,
			TopP:        0.8,
			MaxTokens:   128,
			Extra:       map[string]any{"seed": 3},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Text).To(Equal("Once upon a time."))
		Expect(c.PromptTokens).To(Equal(12))
		Expect(c.CompletionTokens).To(Equal(5))
		Expect(c.TotalTokens).To(Equal(17))

		mu.Lock()
		defer mu.Unlock()
		Expect(genBody["stream"]).To(BeFalse())
		Expect(genBody["prompt"]).To(Equal("Tell a story"))
		opts, ok := genBody["options"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(opts["num_predict"]).To(BeNumerically("==", 128))
		Expect(opts["num_ctx"]).To(BeNumerically("==", 4096))
		Expect(opts["num_thread"]).To(BeNumerically("==", 8))
		Expect(opts["seed"]).To(BeNumerically("==", 3))
		Expect(opts["temperature"]).To(BeNumerically("~", 0.2, 1e-9))
	})

	It("reports server errors as generation failures", func() {
		failGen = true
		_, err := backend.Generate(context.Background(), generation.Prompt{Model: "m", Text: "x"})
		Expect(errors.Is(err, errdefs.ErrBackendGeneration)).To(BeTrue())
	})

	It("reports an unreachable server as unavailable", func() {
		server.Close()
		err := backend.CheckHealth(context.Background())
		var unavailable *errdefs.BackendUnavailableError
		Expect(errors.As(err, &unavailable)).To(BeTrue())
		Expect(unavailable.Backend).To(Equal("ollama"))

		_, err = backend.Generate(context.Background(), generation.Prompt{Model: "m", Text: "x"})
		Expect(errors.Is(err, errdefs.ErrProviderUnavailable)).To(BeTrue())
	})
})
