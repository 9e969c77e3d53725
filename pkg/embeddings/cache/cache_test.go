package cache_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/embeddings/cache"
	"github.com/davidhonghikim/griot-sub000/pkg/logger"
	testutils "github.com/davidhonghikim/griot-sub000/pkg/utils/test"
)

func TestCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Embedding Cache Suite")
}

var _ = Describe("Embedder", func() {
	It("requires a wrapped embedder and an address", func() {
		_, err := cache.New(nil, cache.Config{Addr: "127.0.0.1:6379"}, logger.Nop())
		Expect(err).To(HaveOccurred())

		_, err = cache.New(testutils.NewMockEmbedder(), cache.Config{}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("redis address is required")))
	})

	Context("when redis is unreachable", func() {
		var (
			mock *testutils.MockEmbedder
			c    *cache.Embedder
		)

		BeforeEach(func() {
			var err error
			mock = testutils.NewMockEmbedder()
			c, err = cache.New(mock, cache.Config{Addr: "127.0.0.1:1"}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = c.Close()
		})

		It("falls through to the wrapped embedder", func() {
			vec, err := c.Embed(context.Background(), "hello world")
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(Equal(testutils.HashEmbedding("hello world", 16)))
			Expect(mock.Calls).To(Equal(1))
		})

		It("embeds every miss in a batch", func() {
			vecs, err := c.EmbedMany(context.Background(), []string{"a", "b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vecs).To(HaveLen(2))
			Expect(mock.Calls).To(Equal(2))
		})

		It("propagates wrapped embedder failures", func() {
			mock.FailOn = "bad"
			_, err := c.Embed(context.Background(), "bad")
			Expect(err).To(HaveOccurred())
		})
	})
})
