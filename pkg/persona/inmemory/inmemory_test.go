package inmemory_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/persona"
	"github.com/davidhonghikim/griot-sub000/pkg/persona/inmemory"
)

func TestInmemory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Persona Inmemory Suite")
}

var _ = Describe("Store", func() {
	ctx := context.Background()

	It("keeps insertion order across replacements", func() {
		s := inmemory.NewStore(
			&persona.Persona{ID: "a", Name: "A"},
			&persona.Persona{ID: "b", Name: "B"},
		)
		s.Put(&persona.Persona{ID: "a", Name: "A2"})

		list, err := s.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].Name).To(Equal("A2"))
		Expect(list[1].Name).To(Equal("B"))
	})

	It("returns copies so callers cannot mutate stored personas", func() {
		s := inmemory.NewStore(&persona.Persona{ID: "a", Name: "A"})
		p, _ := s.Load(ctx, "a")
		p.Name = "changed"

		again, _ := s.Load(ctx, "a")
		Expect(again.Name).To(Equal("A"))
	})

	It("tolerates unknown ids and removals", func() {
		s := inmemory.NewStore()
		p, err := s.Load(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeNil())

		s.Remove("missing")
		list, err := s.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(BeEmpty())
	})
})
