package vllm_test

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
	"github.com/davidhonghikim/griot-sub000/pkg/generation/vllm"
	"github.com/davidhonghikim/griot-sub000/pkg/logger"
)

func TestVLLM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "vLLM Backend Suite")
}

var _ = Describe("Backend", func() {
	var (
		server   *httptest.Server
		backend  *vllm.Backend
		mu       sync.Mutex
		lastBody map[string]any
		authz    string
		status   int
	)

	BeforeEach(func() {
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			authz = r.Header.Get("Authorization")
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")

			switch r.URL.Path {
			case "/v1/models":
				_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"meta-llama/Llama-3.1-8B-Instruct","object":"model"}]}`))
			case "/v1/completions":
				body := map[string]any{}
				_ = json.NewDecoder(r.Body).Decode(&body)
				mu.Lock()
				lastBody = body
				mu.Unlock()
				if status != http.StatusOK {
					w.WriteHeader(status)
					_, _ = w.Write([]byte(`{"error":{"message":"context length exceeded","type":"BadRequestError"}}`))
					return
				}
				_, _ = w.Write([]byte(`{
					"id":"cmpl-1","object":"text_completion","model":"meta-llama/Llama-3.1-8B-Instruct",
					"choices":[{"index":0,"text":" The river remembers.","finish_reason":"stop"}],
					"usage":{"prompt_tokens":20,"completion_tokens":4,"total_tokens":24}
				}`))
			default:
				http.NotFound(w, r)
			}
		}))
		backend = vllm.New(vllm.Config{
			BaseURL:           server.URL + "/v1",
			APIKey:            "secret",
			GPUMemoryFraction: 0.9,
		}, logger.Nop())
	})

	AfterEach(func() {
		server.Close()
	})

	It("lists served models and uses them as a health check", func() {
		Expect(backend.CheckHealth(context.Background())).To(Succeed())
		models, err := backend.ListModels(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(models).To(Equal([]string{"meta-llama/Llama-3.1-8B-Instruct"}))

		mu.Lock()
		defer mu.Unlock()
		Expect(authz).To(Equal("Bearer secret"))
	})

	It("creates a completion", func() {
		c, err := backend.Generate(context.Background(), generation.Prompt{
			Model:       "meta-llama/Llama-3.1-8B-Instruct",
			Text:        "Context...",
			Temperature: 0.5,
			TopP:        0.9,
			MaxTokens:   32,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Text).To(Equal(" The river remembers."))
		Expect(c.TotalTokens).To(Equal(24))
		Expect(c.Model).To(Equal("meta-llama/Llama-3.1-8B-Instruct"))

		mu.Lock()
		defer mu.Unlock()
		Expect(lastBody["prompt"]).To(Equal("Context..."))
		Expect(lastBody["max_tokens"]).To(BeNumerically("==", 32))
	})

	It("reports API errors as generation failures", func() {
		status = http.StatusBadRequest
		_, err := backend.Generate(context.Background(), generation.Prompt{Model: "m", Text: "x"})
		Expect(errors.Is(err, errdefs.ErrBackendGeneration)).To(BeTrue())
	})

	It("reports an unreachable server as unavailable", func() {
		server.Close()
		_, err := backend.ListModels(context.Background())
		Expect(errors.Is(err, errdefs.ErrProviderUnavailable)).To(BeTrue())
	})
})
