package sqlitevec_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/logger"
	"github.com/davidhonghikim/griot-sub000/pkg/vector"
	"github.com/davidhonghikim/griot-sub000/pkg/vector/sqlitevec"
)

func TestSQLiteVec(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "SQLiteVec Suite")
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *sqlitevec.Driver
	)

	newDriver := func() *sqlitevec.Driver {
		d, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:", Dimensions: 4}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewDriver", func() {
		It("returns an error when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{}, logger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("errors when dimensions are not specified", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
			Expect(err).To(HaveOccurred())
		})
	})

	Context("with documents", func() {
		BeforeEach(func() {
			driver = newDriver()
			Expect(driver.Add(ctx, []vector.Document{
				{
					ID:        "griot",
					Content:   "oral historian",
					Embedding: []float32{1, 0, 0, 0},
					Metadata:  map[string]any{"type": "persona", "base": "storyteller", "tags": []string{"storytelling", "culture"}},
				},
				{
					ID:        "analyst",
					Content:   "numbers",
					Embedding: []float32{0, 1, 0, 0},
					Metadata:  map[string]any{"type": "persona", "base": "analyst", "tags": []string{"finance"}},
				},
				{
					ID:        "note",
					Content:   "unrelated",
					Embedding: []float32{0.9, 0.1, 0, 0},
					Metadata:  map[string]any{"type": "note"},
				},
			})).To(Succeed())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("round-trips content, metadata and embeddings", func() {
			docs, err := driver.Get(ctx, []string{"griot", "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Content).To(Equal("oral historian"))
			Expect(docs[0].Metadata).To(HaveKeyWithValue("base", "storyteller"))
			Expect(docs[0].Embedding).To(Equal([]float32{1, 0, 0, 0}))
		})

		It("updates an existing document in place", func() {
			Expect(driver.Add(ctx, []vector.Document{{
				ID:        "griot",
				Content:   "updated",
				Embedding: []float32{0, 0, 1, 0},
				Metadata:  map[string]any{"type": "persona"},
			}})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"griot"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs[0].Content).To(Equal("updated"))

			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
		})

		It("returns the closest documents first", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, vector.QueryOptions{Limit: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].ID).To(Equal("griot"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-5))
			for i := 1; i < len(results); i++ {
				Expect(results[i-1].Score).To(BeNumerically(">=", results[i].Score))
			}
		})

		It("applies exact match filters", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, vector.QueryOptions{
				Filter: vector.Filter{Match: map[string]string{"type": "persona"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			for _, r := range results {
				Expect(r.Metadata).To(HaveKeyWithValue("type", "persona"))
			}
		})

		It("applies list membership filters", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, vector.QueryOptions{
				Filter: vector.Filter{AnyOf: map[string][]string{"tags": {"finance", "poetry"}}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("analyst"))
		})

		It("respects the limit", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, vector.QueryOptions{Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
		})

		It("rejects embeddings of the wrong size", func() {
			_, err := driver.Query(ctx, []float32{1, 0}, vector.QueryOptions{})
			Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())
		})

		It("deletes documents and ignores unknown ids", func() {
			Expect(driver.Delete(ctx, []string{"griot", "missing"})).To(Succeed())
			Expect(driver.Delete(ctx, []string{"griot"})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"griot"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())

			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})
	})
})
