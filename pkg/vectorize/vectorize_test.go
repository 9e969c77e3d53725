package vectorize_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/embeddings"
	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/eventstream"
	"github.com/davidhonghikim/griot-sub000/pkg/logger"
	"github.com/davidhonghikim/griot-sub000/pkg/persona"
	personamem "github.com/davidhonghikim/griot-sub000/pkg/persona/inmemory"
	testutils "github.com/davidhonghikim/griot-sub000/pkg/utils/test"
	"github.com/davidhonghikim/griot-sub000/pkg/vector"
	"github.com/davidhonghikim/griot-sub000/pkg/vectorize"
)

func TestVectorize(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Vectorize Suite")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.VectorizedEvent
}

func (p *recordingPublisher) PublishVectorized(_ context.Context, e *eventstream.VectorizedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []*eventstream.VectorizedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.VectorizedEvent(nil), p.events...)
}

var _ = Describe("BuildContent", func() {
	It("renders labeled sections in a fixed order", func() {
		p := &persona.Persona{
			Name:        "Griot",
			Base:        "storyteller",
			Variant:     "west-african",
			Description: "Keeper of oral history.",
			Tags:        []string{"storytelling", "culture"},
			Content: persona.Content{
				Skills:             []string{"narration", "genealogy"},
				Knowledge:          []string{"Mande epics"},
				Personality:        "Warm.",
				CommunicationStyle: "Rhythmic.",
			},
		}

		Expect(vectorize.BuildContent(p)).To(Equal(
			"Name: Griot\n\n" +
				"Classification: storyteller / west-african\n\n" +
				"Description: Keeper of oral history.\n\n" +
				"Tags: storytelling, culture\n\n" +
				"Skills: narration, genealogy\n\n" +
				"Knowledge: Mande epics\n\n" +
				"Personality: Warm.\n\n" +
				"Communication Style: Rhythmic.",
		))
	})

	It("omits empty sections", func() {
		Expect(vectorize.BuildContent(&persona.Persona{Name: "Solo"})).To(Equal("Name: Solo"))
	})

	It("is deterministic", func() {
		p := testutils.NewTestPersona("1", "A", "analyst", "x", "y")
		Expect(vectorize.BuildContent(p)).To(Equal(vectorize.BuildContent(p)))
	})
})

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		personas  *personamem.Store
		embedder  *testutils.MockEmbedder
		driver    *testutils.MockVectorDriver
		store     *vector.Store
		publisher *recordingPublisher
		svc       *vectorize.Service
	)

	newService := func() *vectorize.Service {
		return vectorize.NewService(
			personas,
			embeddings.NewProvider(embedder, embeddings.ProviderConfig{}, logger.Nop()),
			store,
			publisher,
			vectorize.Config{InterItemDelay: -1},
			logger.Nop(),
		)
	}

	BeforeEach(func() {
		ctx = context.Background()
		personas = personamem.NewStore(
			testutils.NewTestPersona("griot", "Griot", "storyteller", "storytelling", "culture"),
			testutils.NewTestPersona("analyst", "Analyst", "analyst", "finance"),
		)
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()
		store = vector.NewStoreWithDriver(driver, vector.StoreConfig{Name: "mock"}, logger.Nop())
		publisher = &recordingPublisher{}
		svc = newService()
	})

	Describe("Vectorize", func() {
		It("stores a document with persona metadata and records the mapping", func() {
			r := svc.Vectorize(ctx, "griot")
			Expect(r.Success).To(BeTrue(), r.Error)
			Expect(r.DocumentID).NotTo(BeEmpty())

			docID, ok := svc.DocumentID("griot")
			Expect(ok).To(BeTrue())
			Expect(docID).To(Equal(r.DocumentID))

			doc, err := store.Get(ctx, docID)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Metadata).To(HaveKeyWithValue("type", "persona"))
			Expect(doc.Metadata).To(HaveKeyWithValue(vectorize.MetaEntityID, "griot"))
			Expect(doc.Metadata).To(HaveKeyWithValue(vectorize.MetaBase, "storyteller"))
			Expect(doc.Metadata).To(HaveKey(vectorize.MetaVectorizedAt))
			Expect(doc.Content).To(ContainSubstring("Name: Griot"))
		})

		It("fails with NotFoundError for unknown personas", func() {
			r := svc.Vectorize(ctx, "ghost")
			Expect(r.Success).To(BeFalse())
			Expect(r.IsNotFound()).To(BeTrue())

			var nf *errdefs.NotFoundError
			Expect(errors.As(r.Err, &nf)).To(BeTrue())
			Expect(nf.ID).To(Equal("ghost"))
		})

		It("keeps exactly one tracked document when vectorized twice", func() {
			first := svc.Vectorize(ctx, "griot")
			second := svc.Vectorize(ctx, "griot")
			Expect(second.Success).To(BeTrue())
			Expect(second.DocumentID).NotTo(Equal(first.DocumentID))
			Expect(second.PreviousDocumentID).To(Equal(first.DocumentID))

			old, err := store.Get(ctx, first.DocumentID)
			Expect(err).NotTo(HaveOccurred())
			Expect(old).To(BeNil())

			n, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("publishes an event per success", func() {
			svc.Vectorize(ctx, "griot")
			svc.Vectorize(ctx, "ghost")

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].EntityID).To(Equal("griot"))
			Expect(events[0].Revectorized).To(BeFalse())
		})

		It("surfaces store failures", func() {
			driver.FailAdd = true
			r := svc.Vectorize(ctx, "griot")
			Expect(r.Success).To(BeFalse())
			_, ok := svc.DocumentID("griot")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Revectorize", func() {
		It("returns the embedding of the current content", func() {
			Expect(svc.Vectorize(ctx, "griot").Success).To(BeTrue())
			before, err := svc.Vector(ctx, "griot")
			Expect(err).NotTo(HaveOccurred())

			updated := testutils.NewTestPersona("griot", "Griot", "storyteller", "storytelling", "culture")
			updated.Description = "A praise singer who recites royal genealogies."
			personas.Put(updated)

			r := svc.Revectorize(ctx, "griot")
			Expect(r.Success).To(BeTrue(), r.Error)
			Expect(r.PreviousDocumentID).NotTo(BeEmpty())

			after, err := svc.Vector(ctx, "griot")
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(testutils.HashEmbedding(vectorize.BuildContent(updated), 16)))
			Expect(after).NotTo(Equal(before))

			n, _ := store.Count(ctx)
			Expect(n).To(Equal(1))
			Expect(publisher.Events()[1].Revectorized).To(BeTrue())
		})

		It("vectorizes untracked personas", func() {
			r := svc.Revectorize(ctx, "analyst")
			Expect(r.Success).To(BeTrue())
			Expect(r.PreviousDocumentID).To(BeEmpty())
		})

		It("keeps the mapping when the old document cannot be deleted", func() {
			first := svc.Vectorize(ctx, "griot")
			driver.FailDelete = true

			r := svc.Revectorize(ctx, "griot")
			Expect(r.Success).To(BeFalse())

			docID, ok := svc.DocumentID("griot")
			Expect(ok).To(BeTrue())
			Expect(docID).To(Equal(first.DocumentID))
		})
	})

	Describe("VectorizeAll", func() {
		It("reports one result per entity and continues past a failure", func() {
			var all []*persona.Persona
			for i := 1; i <= 10; i++ {
				name := fmt.Sprintf("Persona %02d", i)
				if i == 5 {
					name = "Broken Five"
				}
				all = append(all, testutils.NewTestPersona(fmt.Sprintf("p-%02d", i), name, "tester"))
			}
			personas = personamem.NewStore(all...)
			embedder.FailOnContains = "Broken Five"
			svc = newService()

			results, err := svc.VectorizeAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(10))

			for i, r := range results {
				Expect(r.EntityID).To(Equal(fmt.Sprintf("p-%02d", i+1)))
				if i == 4 {
					Expect(r.Success).To(BeFalse())
					Expect(errors.Is(r.Err, errdefs.ErrProviderUnavailable)).To(BeTrue())
				} else {
					Expect(r.Success).To(BeTrue(), r.Error)
				}
			}

			n, _ := store.Count(ctx)
			Expect(n).To(Equal(9))
		})
	})

	Describe("Search", func() {
		It("scopes results to the entity type and applies filters", func() {
			svc.Vectorize(ctx, "griot")
			svc.Vectorize(ctx, "analyst")
			_, err := store.Store(ctx, vector.Document{
				Content:   "not a persona",
				Embedding: testutils.HashEmbedding("storyteller", 16),
				Metadata:  map[string]any{"type": "note"},
			})
			Expect(err).NotTo(HaveOccurred())

			hits, err := svc.Search(ctx, "storyteller", vectorize.SearchOptions{
				Limit:  10,
				Filter: vector.Filter{AnyOf: map[string][]string{"tags": {"culture"}}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
			Expect(hits[0].Metadata).To(HaveKeyWithValue(vectorize.MetaEntityID, "griot"))
			Expect(driver.LastQuery.Filter.Match).To(HaveKeyWithValue("type", "persona"))
		})
	})

	Describe("Rebuild", func() {
		It("tolerates an empty store", func() {
			Expect(svc.Start(ctx)).To(Succeed())
			st, err := svc.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.VectorizedEntities).To(BeZero())
		})

		It("recovers the mapping in a fresh service and is repeatable", func() {
			a := svc.Vectorize(ctx, "griot")
			b := svc.Vectorize(ctx, "analyst")

			fresh := newService()
			Expect(fresh.Rebuild(ctx)).To(Succeed())
			Expect(fresh.Rebuild(ctx)).To(Succeed())

			id, ok := fresh.DocumentID("griot")
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(a.DocumentID))
			id, ok = fresh.DocumentID("analyst")
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(b.DocumentID))
		})

		It("fails when the store is unavailable", func() {
			driver.Unavailable = true
			err := svc.Rebuild(ctx)
			Expect(errors.Is(err, errdefs.ErrProviderUnavailable)).To(BeTrue())
		})
	})

	Describe("Stats", func() {
		It("reports counts and average content length", func() {
			a := svc.Vectorize(ctx, "griot")
			b := svc.Vectorize(ctx, "analyst")

			st, err := svc.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.VectorizedEntities).To(Equal(2))
			Expect(st.StoredDocuments).To(Equal(2))
			Expect(st.AverageContentLength).To(BeNumerically("~", float64(a.ContentLength+b.ContentLength)/2, 1e-9))
		})
	})

	Describe("Vector", func() {
		It("returns nil for personas that were never vectorized", func() {
			v, err := svc.Vector(ctx, "griot")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeNil())
		})
	})

	Describe("concurrency", func() {
		It("serializes concurrent vectorizations of the same persona", func() {
			var wg sync.WaitGroup
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					svc.Vectorize(ctx, "griot")
				}()
			}
			wg.Wait()

			n, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})
	})
})

var _ = Describe("Pool", func() {
	It("revectorizes queued entities and drains on Close", func() {
		personas := personamem.NewStore(
			testutils.NewTestPersona("a", "A", "analyst"),
			testutils.NewTestPersona("b", "B", "analyst"),
		)
		store := vector.NewStoreWithDriver(testutils.NewMockVectorDriver(), vector.StoreConfig{}, logger.Nop())
		svc := vectorize.NewService(
			personas,
			embeddings.NewProvider(testutils.NewMockEmbedder(), embeddings.ProviderConfig{}, logger.Nop()),
			store, nil, vectorize.Config{}, logger.Nop(),
		)

		var (
			mu      sync.Mutex
			results []vectorize.Result
		)
		pool, err := vectorize.NewPool(&vectorize.PoolConfig{
			Service: svc,
			OnResult: func(r vectorize.Result) {
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			},
			Logger: logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(pool.Enqueue(vectorize.Job{EntityID: "a"})).To(BeTrue())
		Expect(pool.Enqueue(vectorize.Job{EntityID: "b"})).To(BeTrue())
		Expect(pool.Enqueue(vectorize.Job{EntityID: "missing"})).To(BeTrue())
		pool.Close()

		Expect(results).To(HaveLen(3))
		n, _ := store.Count(context.Background())
		Expect(n).To(Equal(2))
	})

	It("requires a service", func() {
		_, err := vectorize.NewPool(&vectorize.PoolConfig{Logger: logger.Nop()})
		Expect(err).To(HaveOccurred())
	})
})
