package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("returns ErrNilMessageEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishMessage(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilMessageEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		Expect(p.PublishMessage(context.Background(), &eventstream.MessageAssembledEvent{})).To(Succeed())
	})

	It("closes successfully", func() {
		Expect(nop.NewPublisher().Close()).To(Succeed())
	})
})
