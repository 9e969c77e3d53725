package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
)

func TestGemini(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gemini Backend Suite")
}

type fakeModels struct {
	models []*genai.ModelInfo
	err    error
}

func (f *fakeModels) Next() (*genai.ModelInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.models) == 0 {
		return nil, iterator.Done
	}
	m := f.models[0]
	f.models = f.models[1:]
	return m, nil
}

type fakeClient struct {
	models  []*genai.ModelInfo
	listErr error

	resp    *genai.GenerateContentResponse
	genErr  error
	prompts []generation.Prompt
	closed  bool
}

func (f *fakeClient) ListModels(context.Context) modelIterator {
	return &fakeModels{models: append([]*genai.ModelInfo(nil), f.models...), err: f.listErr}
}

func (f *fakeClient) GenerateContent(_ context.Context, p generation.Prompt) (*genai.GenerateContentResponse, error) {
	f.prompts = append(f.prompts, p)
	return f.resp, f.genErr
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func textResponse(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

var _ = Describe("Backend", func() {
	var (
		ctx     context.Context
		fake    *fakeClient
		backend *Backend
		prompt  generation.Prompt
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = &fakeClient{}
		backend = newBackend(fake, DefaultEndpoint)
		prompt = generation.Prompt{Model: DefaultModel, Text: "tell me a story", Temperature: 0.2}
	})

	It("requires an API key", func() {
		_, err := New(ctx, Config{})
		Expect(err).To(MatchError(ContainSubstring("API key is required")))
	})

	It("identifies itself", func() {
		Expect(backend.Name()).To(Equal("gemini"))
		Expect(backend.Endpoint()).To(Equal("generativelanguage.googleapis.com"))
	})

	Describe("ListModels", func() {
		It("keeps generation models and trims the models/ prefix", func() {
			fake.models = []*genai.ModelInfo{
				{Name: "models/gemini-1.5-flash", SupportedGenerationMethods: []string{"generateContent", "countTokens"}},
				{Name: "models/text-embedding-004", SupportedGenerationMethods: []string{"embedContent"}},
				{Name: "models/gemini-1.5-pro", SupportedGenerationMethods: []string{"generateContent"}},
			}

			models, err := backend.ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(Equal([]string{"gemini-1.5-flash", "gemini-1.5-pro"}))
		})

		It("reports listing failures as unavailable", func() {
			fake.listErr = errors.New("dial tcp: connection refused")

			_, err := backend.ListModels(ctx)
			Expect(errors.Is(err, errdefs.ErrProviderUnavailable)).To(BeTrue())

			var unavailable *errdefs.BackendUnavailableError
			Expect(errors.As(backend.CheckHealth(ctx), &unavailable)).To(BeTrue())
			Expect(unavailable.Backend).To(Equal("gemini"))
		})

		It("is healthy with an empty listing", func() {
			Expect(backend.CheckHealth(ctx)).To(Succeed())
		})
	})

	Describe("Generate", func() {
		It("joins text parts and maps usage", func() {
			fake.resp = textResponse(genai.Text("Once upon "), genai.Text("a time."))
			fake.resp.UsageMetadata = &genai.UsageMetadata{
				PromptTokenCount:     12,
				CandidatesTokenCount: 4,
				TotalTokenCount:      16,
			}

			out, err := backend.Generate(ctx, prompt)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Text).To(Equal("Once upon a time."))
			Expect(out.Model).To(Equal(DefaultModel))
			Expect(out.PromptTokens).To(Equal(12))
			Expect(out.CompletionTokens).To(Equal(4))
			Expect(out.TotalTokens).To(Equal(16))
			Expect(fake.prompts).To(ConsistOf(prompt))
		})

		It("leaves usage empty when none is reported", func() {
			fake.resp = textResponse(genai.Text("ok"))

			out, err := backend.Generate(ctx, prompt)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.TotalTokens).To(BeZero())
		})

		It("fails on a response without candidates", func() {
			fake.resp = &genai.GenerateContentResponse{}

			_, err := backend.Generate(ctx, prompt)
			Expect(errors.Is(err, errdefs.ErrBackendGeneration)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("empty response"))
		})

		DescribeTable("classifies errors",
			func(genErr error, sentinel error) {
				fake.genErr = genErr

				_, err := backend.Generate(ctx, prompt)
				Expect(errors.Is(err, sentinel)).To(BeTrue(), err.Error())
			},
			Entry("blocked prompt", &genai.BlockedError{PromptFeedback: &genai.PromptFeedback{}}, errdefs.ErrBackendGeneration),
			Entry("bad request", &googleapi.Error{Code: 400, Message: "invalid model"}, errdefs.ErrBackendGeneration),
			Entry("server error", &googleapi.Error{Code: 503, Message: "overloaded"}, errdefs.ErrProviderUnavailable),
			Entry("network error", errors.New("connection reset"), errdefs.ErrProviderUnavailable),
		)
	})

	It("closes the client", func() {
		Expect(backend.Close()).To(Succeed())
		Expect(fake.closed).To(BeTrue())
	})
})
