package worker_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/worker"
)

// recordingPublisher keeps every event it is handed. block, when non-nil,
// holds publishes until it is closed.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.MessageAssembledEvent
	err    error
	block  chan struct{}
}

func (r *recordingPublisher) PublishMessage(_ context.Context, ev *eventstream.MessageAssembledEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) Events() []*eventstream.MessageAssembledEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.MessageAssembledEvent(nil), r.events...)
}

func job(id string) worker.Job {
	msg := llm.NewTextMessage(llm.RoleAssistant, "hi "+id)
	msg.ID = id
	return worker.Job{
		Source:      eventstream.EventSource{Origin: eventstream.OriginProxy, Path: "/v1/chat"},
		Message:     msg,
		ParseErrors: []string{"Invalid event type: empty"},
	}
}

var _ = Describe("Worker Pool", func() {
	var pub *recordingPublisher

	BeforeEach(func() {
		pub = &recordingPublisher{}
	})

	It("requires a publisher", func() {
		_, err := worker.NewPool(&worker.Config{})
		Expect(err).To(MatchError(ContainSubstring("requires a publisher")))
	})

	It("publishes every enqueued job before Close returns", func() {
		wp, err := worker.NewPool(&worker.Config{Publisher: pub, NumWorkers: 2})
		Expect(err).NotTo(HaveOccurred())

		for _, id := range []string{"a", "b", "c"} {
			Expect(wp.Enqueue(job(id))).To(BeTrue())
		}
		wp.Close()

		events := pub.Events()
		Expect(events).To(HaveLen(3))
		ids := make([]string, 0, len(events))
		for _, ev := range events {
			ids = append(ids, ev.Message.ID)
			Expect(ev.EventType).To(Equal(eventstream.EventTypeMessageAssembled))
			Expect(ev.Source.Origin).To(Equal(eventstream.OriginProxy))
			Expect(ev.ParseErrors).To(ConsistOf("Invalid event type: empty"))
		}
		Expect(ids).To(ConsistOf("a", "b", "c"))
	})

	It("drops jobs when the queue is full", func() {
		pub.block = make(chan struct{})
		wp, err := worker.NewPool(&worker.Config{Publisher: pub, NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		// The single worker takes the first job and blocks, the second fills
		// the queue.
		Expect(wp.Enqueue(job("a"))).To(BeTrue())
		Eventually(func() bool { return wp.Enqueue(job("b")) }).Should(BeTrue())
		Expect(wp.Enqueue(job("c"))).To(BeFalse())

		close(pub.block)
		wp.Close()
		Expect(pub.Events()).To(HaveLen(2))
	})

	It("keeps running when a publish fails", func() {
		pub.err = errors.New("broker down")
		wp, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(job("a"))).To(BeTrue())
		wp.Close()
		Expect(pub.Events()).To(BeEmpty())
	})

	It("rejects jobs after Close and tolerates a second Close", func() {
		wp, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		wp.Close()
		Expect(wp.Enqueue(job("late"))).To(BeFalse())
		wp.Close()
	})

	It("enqueues one job per assembled message", func() {
		wp, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		res := assembler.Result{
			Messages:    []llm.Message{job("a").Message, job("b").Message},
			ParseErrors: []string{"bad line"},
		}
		Expect(wp.EnqueueResult(eventstream.EventSource{Origin: eventstream.OriginAPI}, res)).To(Equal(2))
		wp.Close()

		events := pub.Events()
		Expect(events).To(HaveLen(2))
		for _, ev := range events {
			Expect(ev.Source.Origin).To(Equal(eventstream.OriginAPI))
			Expect(ev.ParseErrors).To(ConsistOf("bad line"))
		}
	})
})
