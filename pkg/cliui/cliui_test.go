package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/cliui"
)

var _ = Describe("cliui", func() {
	DescribeTable("FormatDuration",
		func(d time.Duration, expected string) {
			Expect(cliui.FormatDuration(d)).To(Equal(expected))
		},
		Entry("milliseconds", 12*time.Millisecond, "12ms"),
		Entry("seconds", 3200*time.Millisecond, "3.2s"),
	)

	It("picks a mark from the error", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
	})

	It("renders unset values as <not set>", func() {
		Expect(cliui.KeyValue("api.listen", "")).To(ContainSubstring("<not set>"))
		Expect(cliui.KeyValue("api.listen", ":8081")).To(ContainSubstring(":8081"))
	})

	It("reports the step outcome and returns fn's error", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "assembling", func() error { return errors.New("boom") })
		Expect(err).To(MatchError("boom"))
		Expect(buf.String()).To(ContainSubstring("assembling"))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})
})
