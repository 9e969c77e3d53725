package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/davidhonghikim/griot-sub000/pkg/eventstream"
	"github.com/davidhonghikim/griot-sub000/pkg/logger"
)

func TestKafka(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Kafka Publisher Suite")
}

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *recordingWriter
		p *Publisher
	)

	BeforeEach(func() {
		w = &recordingWriter{}
		p = newPublisher(w, DefaultTopic, logger.Nop())
	})

	It("requires brokers", func() {
		_, err := NewPublisher(Config{}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("brokers are required")))
	})

	It("rejects nil events", func() {
		Expect(p.PublishVectorized(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("keys messages by entity id and encodes the event", func() {
		event := eventstream.NewVectorizedEvent("persona", "p-1", "doc-1")
		Expect(p.PublishVectorized(context.Background(), event)).To(Succeed())

		Expect(w.msgs).To(HaveLen(1))
		Expect(string(w.msgs[0].Key)).To(Equal("p-1"))

		var got eventstream.VectorizedEvent
		Expect(json.Unmarshal(w.msgs[0].Value, &got)).To(Succeed())
		Expect(got.DocumentID).To(Equal("doc-1"))
		Expect(w.msgs[0].Headers[0].Key).To(Equal("event_type"))
	})

	It("wraps write failures", func() {
		w.err = errors.New("broker down")
		err := p.PublishVectorized(context.Background(), eventstream.NewVectorizedEvent("persona", "p", "d"))
		Expect(err).To(MatchError(ContainSubstring("broker down")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
