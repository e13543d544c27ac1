package kafka_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatstream/pkg/llm"
)

type fakeWriter struct {
	written []kafkago.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *fakeWriter
		p *kafka.Publisher
	)

	BeforeEach(func() {
		w = &fakeWriter{}
		p = kafka.NewPublisherWithWriter(w, "assembled")
	})

	Describe("NewPublisher", func() {
		It("requires brokers", func() {
			_, err := kafka.NewPublisher(kafka.Config{Topic: "t"})
			Expect(err).To(MatchError(ContainSubstring("at least one broker")))
		})

		It("requires a topic", func() {
			_, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
			Expect(err).To(MatchError(ContainSubstring("requires a topic")))
		})

		It("builds a writer without connecting", func() {
			pub, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "t"})
			Expect(err).NotTo(HaveOccurred())
			Expect(pub.Close()).To(Succeed())
		})
	})

	It("rejects nil events", func() {
		Expect(p.PublishMessage(context.Background(), nil)).To(MatchError(eventstream.ErrNilMessageEvent))
		Expect(w.written).To(BeEmpty())
	})

	It("writes a JSON record keyed by message id", func() {
		msg := llm.NewTextMessage(llm.RoleAssistant, "Hello")
		msg.ID = "msg_1"
		event := eventstream.NewMessageAssembledEvent(eventstream.EventSource{Origin: eventstream.OriginProxy}, msg, nil)

		Expect(p.PublishMessage(context.Background(), event)).To(Succeed())
		Expect(w.written).To(HaveLen(1))

		record := w.written[0]
		Expect(string(record.Key)).To(Equal("msg_1"))
		Expect(record.Time).To(Equal(event.EmittedAt))
		Expect(record.Headers).To(ConsistOf(kafkago.Header{
			Key: kafka.HeaderEventType, Value: []byte(eventstream.EventTypeMessageAssembled),
		}))

		var decoded eventstream.MessageAssembledEvent
		Expect(json.Unmarshal(record.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
		Expect(decoded.Message.GetText()).To(Equal("Hello"))
	})

	It("wraps writer failures", func() {
		w.err = errors.New("broker down")
		err := p.PublishMessage(context.Background(), &eventstream.MessageAssembledEvent{})
		Expect(err).To(MatchError(ContainSubstring("writing to kafka topic assembled")))
		Expect(errors.Unwrap(err)).To(MatchError("broker down"))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
