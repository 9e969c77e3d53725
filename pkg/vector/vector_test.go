package vector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/logger"
	"github.com/davidhonghikim/griot-sub000/pkg/vector"
	"github.com/davidhonghikim/griot-sub000/pkg/vector/inmemory"
)

func TestVector(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Vector Suite")
}

var _ = Describe("Filter", func() {
	meta := map[string]any{
		"type": "persona",
		"base": "storyteller",
		"tags": []any{"storytelling", "culture"},
	}

	It("matches an empty filter", func() {
		Expect(vector.Filter{}.Matches(meta)).To(BeTrue())
		Expect(vector.Filter{}.IsEmpty()).To(BeTrue())
	})

	It("requires every Match clause", func() {
		Expect(vector.Filter{Match: map[string]string{"type": "persona", "base": "storyteller"}}.Matches(meta)).To(BeTrue())
		Expect(vector.Filter{Match: map[string]string{"type": "persona", "base": "analyst"}}.Matches(meta)).To(BeFalse())
		Expect(vector.Filter{Match: map[string]string{"variant": "x"}}.Matches(meta)).To(BeFalse())
	})

	It("uses set membership for AnyOf", func() {
		Expect(vector.Filter{AnyOf: map[string][]string{"tags": {"finance", "culture"}}}.Matches(meta)).To(BeTrue())
		Expect(vector.Filter{AnyOf: map[string][]string{"tags": {"finance"}}}.Matches(meta)).To(BeFalse())
		Expect(vector.Filter{AnyOf: map[string][]string{"tags": {}}}.Matches(meta)).To(BeTrue())
	})

	It("returns sorted keys", func() {
		f := vector.Filter{Match: map[string]string{"z": "1", "a": "2"}, AnyOf: map[string][]string{"tags": {"x"}, "empty": nil}}
		Expect(f.MatchKeys()).To(Equal([]string{"a", "z"}))
		Expect(f.AnyOfKeys()).To(Equal([]string{"tags"}))
	})
})

var _ = Describe("CosineSimilarity", func() {
	It("is 1 for identical directions and 0 for orthogonal ones", func() {
		Expect(vector.CosineSimilarity([]float32{1, 0}, []float32{2, 0})).To(BeNumerically("~", 1.0, 1e-9))
		Expect(vector.CosineSimilarity([]float32{1, 0}, []float32{0, 1})).To(BeNumerically("~", 0.0, 1e-9))
	})

	It("is 0 for mismatched or zero vectors", func() {
		Expect(vector.CosineSimilarity([]float32{1}, []float32{1, 2})).To(BeZero())
		Expect(vector.CosineSimilarity([]float32{0, 0}, []float32{1, 2})).To(BeZero())
	})
})

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		store *vector.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = vector.NewStoreWithDriver(inmemory.NewDriver(), vector.StoreConfig{Name: "memory"}, logger.Nop())
	})

	It("assigns ids and round-trips documents", func() {
		id, err := store.Store(ctx, vector.Document{
			Content:   "hello",
			Embedding: []float32{1, 0},
			Metadata:  map[string]any{"type": "persona"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeEmpty())

		doc, err := store.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc).NotTo(BeNil())
		Expect(doc.Content).To(Equal("hello"))

		n, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})

	It("returns nil for unknown ids", func() {
		doc, err := store.Get(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(doc).To(BeNil())
	})

	It("treats a second delete of the same id as a no-op", func() {
		id, err := store.Store(ctx, vector.Document{Content: "x", Embedding: []float32{1}})
		Expect(err).NotTo(HaveOccurred())

		Expect(store.Delete(ctx, id)).To(Succeed())
		Expect(store.Delete(ctx, id)).To(Succeed())

		n, _ := store.Count(ctx)
		Expect(n).To(BeZero())
	})

	It("orders hits by descending score and applies the filter", func() {
		docs := []vector.Document{
			{ID: "far", Embedding: []float32{0, 1}, Metadata: map[string]any{"type": "persona"}},
			{ID: "near", Embedding: []float32{1, 0.1}, Metadata: map[string]any{"type": "persona"}},
			{ID: "other", Embedding: []float32{1, 0}, Metadata: map[string]any{"type": "note"}},
		}
		for _, d := range docs {
			_, err := store.Store(ctx, d)
			Expect(err).NotTo(HaveOccurred())
		}

		hits, err := store.Search(ctx, []float32{1, 0}, vector.SearchOptions{
			Limit:  5,
			Filter: vector.Filter{Match: map[string]string{"type": "persona"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(2))
		Expect(hits[0].ID).To(Equal("near"))
		Expect(hits[1].ID).To(Equal("far"))
		for _, h := range hits {
			Expect(h.Score).To(BeNumerically(">=", 0))
			Expect(h.Score).To(BeNumerically("<=", 1))
		}
	})

	It("rejects empty query vectors", func() {
		_, err := store.Search(ctx, nil, vector.SearchOptions{})
		Expect(errors.Is(err, errdefs.ErrInvalidInput)).To(BeTrue())
	})

	Describe("lazy initialization", func() {
		It("opens the driver once on first use", func() {
			opens := 0
			s := vector.NewStore(func(context.Context) (vector.VectorDriver, error) {
				opens++
				return inmemory.NewDriver(), nil
			}, vector.StoreConfig{}, logger.Nop())
			Expect(opens).To(Equal(0))

			_, _ = s.Count(ctx)
			_, _ = s.Count(ctx)
			Expect(opens).To(Equal(1))
		})

		It("surfaces open failures as unavailable and retries later", func() {
			fail := true
			s := vector.NewStore(func(context.Context) (vector.VectorDriver, error) {
				if fail {
					return nil, errors.New("connection refused")
				}
				return inmemory.NewDriver(), nil
			}, vector.StoreConfig{Name: "flaky"}, logger.Nop())

			_, err := s.Count(ctx)
			var unavailable *errdefs.VectorStoreUnavailableError
			Expect(errors.As(err, &unavailable)).To(BeTrue())
			Expect(unavailable.Store).To(Equal("flaky"))

			fail = false
			_, err = s.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	It("converts driver timeouts into unavailable errors", func() {
		s := vector.NewStoreWithDriver(&slowDriver{Driver: inmemory.NewDriver()}, vector.StoreConfig{Timeout: 10 * time.Millisecond}, logger.Nop())
		_, err := s.Count(ctx)
		Expect(errors.Is(err, errdefs.ErrProviderUnavailable)).To(BeTrue())
	})
})

type slowDriver struct {
	*inmemory.Driver
}

func (s *slowDriver) Count(ctx context.Context) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}
