package embeddings_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/embeddings"
	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/logger"
	testutils "github.com/davidhonghikim/griot-sub000/pkg/utils/test"
)

func TestEmbeddings(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Embeddings Suite")
}

var _ = Describe("ValidateEmbedding", func() {
	DescribeTable("rejects degenerate vectors",
		func(vec []float32) {
			err := embeddings.ValidateEmbedding(vec)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, errdefs.ErrInvalidEmbedding)).To(BeTrue())
		},
		Entry("empty", []float32{}),
		Entry("all zero", []float32{0, 0, 0}),
		Entry("NaN", []float32{0.1, float32(math.NaN())}),
		Entry("+Inf", []float32{float32(math.Inf(1)), 0.2}),
	)

	It("accepts a finite non-zero vector", func() {
		Expect(embeddings.ValidateEmbedding([]float32{0, 0.5, -0.1})).To(Succeed())
	})
})

var _ = Describe("Provider", func() {
	var (
		mock     *testutils.MockEmbedder
		provider *embeddings.Provider
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mock = testutils.NewMockEmbedder()
		provider = embeddings.NewProvider(mock, embeddings.ProviderConfig{Name: "mock"}, logger.Nop())
	})

	Describe("Embed", func() {
		It("rejects empty text with an invalid input error", func() {
			_, err := provider.Embed(ctx, "   ")
			Expect(errors.Is(err, errdefs.ErrInvalidInput)).To(BeTrue())
			Expect(mock.Calls).To(Equal(0))
		})

		It("wraps backend failures as embedding provider errors", func() {
			mock.FailOn = "boom"
			_, err := provider.Embed(ctx, "boom")

			var epe *errdefs.EmbeddingProviderError
			Expect(errors.As(err, &epe)).To(BeTrue())
			Expect(epe.Provider).To(Equal("mock"))
			Expect(errors.Is(err, errdefs.ErrProviderUnavailable)).To(BeTrue())
		})

		It("rejects zero vectors returned by the backend", func() {
			mock.Embeddings["zero"] = []float32{0, 0}
			_, err := provider.Embed(ctx, "zero")
			Expect(errors.Is(err, errdefs.ErrInvalidEmbedding)).To(BeTrue())
		})
	})

	Describe("EmbedBatch", func() {
		texts := []string{"alpha story", "beta ledger", "gamma song", "delta tale", "epsilon"}

		It("returns the same vectors as single embedding, in order", func() {
			batch, err := provider.EmbedBatch(ctx, texts, embeddings.BatchOptions{BatchSize: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(batch).To(HaveLen(len(texts)))

			for i, t := range texts {
				single, err := provider.Embed(ctx, t)
				Expect(err).NotTo(HaveOccurred())
				Expect(batch[i]).To(Equal(single))
			}
		})

		It("partitions into chunks and uses EmbedMany when available", func() {
			batchMock := testutils.NewMockBatchEmbedder()
			p := embeddings.NewProvider(batchMock, embeddings.ProviderConfig{Name: "batch"}, logger.Nop())

			_, err := p.EmbedBatch(ctx, texts, embeddings.BatchOptions{BatchSize: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(batchMock.BatchSizes).To(Equal([]int{2, 2}))
		})

		It("defaults to chunks of 100", func() {
			batchMock := testutils.NewMockBatchEmbedder()
			p := embeddings.NewProvider(batchMock, embeddings.ProviderConfig{}, logger.Nop())

			many := make([]string, 250)
			for i := range many {
				many[i] = "text"
			}
			_, err := p.EmbedBatch(ctx, many, embeddings.BatchOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(batchMock.BatchSizes).To(Equal([]int{100, 100, 50}))
		})

		It("waits between chunks", func() {
			start := time.Now()
			_, err := provider.EmbedBatch(ctx, texts, embeddings.BatchOptions{BatchSize: 2, InterBatchDelay: 20 * time.Millisecond})
			Expect(err).NotTo(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically(">=", 40*time.Millisecond))
		})

		It("fails the whole batch when one chunk fails", func() {
			mock.FailOn = "delta tale"
			out, err := provider.EmbedBatch(ctx, texts, embeddings.BatchOptions{BatchSize: 2})
			Expect(err).To(HaveOccurred())
			Expect(out).To(BeNil())
			Expect(errors.Is(err, errdefs.ErrProviderUnavailable)).To(BeTrue())
		})

		It("rejects empty members before calling the backend", func() {
			_, err := provider.EmbedBatch(ctx, []string{"ok", ""}, embeddings.BatchOptions{})
			Expect(errors.Is(err, errdefs.ErrInvalidInput)).To(BeTrue())
			Expect(mock.Calls).To(Equal(0))
		})

		It("stops waiting when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := provider.EmbedBatch(cctx, texts, embeddings.BatchOptions{BatchSize: 1, InterBatchDelay: time.Second})
			Expect(err).To(HaveOccurred())
		})
	})

	It("throttles calls when a rate is configured", func() {
		p := embeddings.NewProvider(mock, embeddings.ProviderConfig{RequestsPerSecond: 20}, logger.Nop())
		start := time.Now()
		for range 3 {
			_, err := p.Embed(ctx, "throttled")
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(time.Since(start)).To(BeNumerically(">=", 80*time.Millisecond))
	})
})
