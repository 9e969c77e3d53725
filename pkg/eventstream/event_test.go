package eventstream_test

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/eventstream"
)

func TestEventstream(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Eventstream Suite")
}

var _ = Describe("Event", func() {
	It("marshals VectorizedEvent with expected top-level keys", func() {
		event := eventstream.NewVectorizedEvent("persona", "p-1", "doc-1")
		event.PreviousDocumentID = "doc-0"
		event.Revectorized = true

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		for _, k := range []string{"schema_version", "event_type", "event_id", "emitted_at", "entity_type", "entity_id", "document_id", "previous_document_id", "revectorized"} {
			Expect(got).To(HaveKey(k))
		}
		Expect(got["event_type"]).To(Equal(eventstream.EventTypePersonaVectorized))
	})

	It("omits an empty previous document id", func() {
		payload, err := json.Marshal(eventstream.NewVectorizedEvent("persona", "p-1", "doc-1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).NotTo(ContainSubstring("previous_document_id"))
	})

	It("assigns unique event ids", func() {
		a := eventstream.NewVectorizedEvent("persona", "p", "d")
		b := eventstream.NewVectorizedEvent("persona", "p", "d")
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypePersonaVectorized).To(Equal("griot.persona.vectorized"))
		Expect(eventstream.ErrNilEvent).To(MatchError("nil vectorized event"))
	})
})
