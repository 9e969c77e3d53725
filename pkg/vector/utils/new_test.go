package vectorutils_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/logger"
	"github.com/davidhonghikim/griot-sub000/pkg/vector"
	vectorutils "github.com/davidhonghikim/griot-sub000/pkg/vector/utils"
)

func TestVectorUtils(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Vector Utils Suite")
}

var _ = Describe("NewVectorStore", func() {
	It("defaults to the in-memory driver", func() {
		store, err := vectorutils.NewVectorStore(&vectorutils.NewVectorStoreOpts{Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Name()).To(Equal(vectorutils.ProviderMemory))

		_, err = store.Store(context.Background(), vector.Document{ID: "a", Embedding: []float32{1}})
		Expect(err).NotTo(HaveOccurred())
		n, err := store.Count(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})

	It("does not dial remote stores at construction", func() {
		for _, p := range []string{vectorutils.ProviderChroma, vectorutils.ProviderPGVector, vectorutils.ProviderSQLite} {
			store, err := vectorutils.NewVectorStore(&vectorutils.NewVectorStoreOpts{
				ProviderType: p,
				TargetURL:    "unused",
				Dimensions:   4,
				Logger:       logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Name()).To(Equal(p))
		}
	})

	It("parses qdrant targets", func() {
		_, err := vectorutils.NewVectorStore(&vectorutils.NewVectorStoreOpts{
			ProviderType: vectorutils.ProviderQdrant,
			TargetURL:    "localhost:bad",
			Logger:       logger.Nop(),
		})
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown providers", func() {
		_, err := vectorutils.NewVectorStore(&vectorutils.NewVectorStoreOpts{ProviderType: "faiss", Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("unsupported vector store provider")))
	})
})
