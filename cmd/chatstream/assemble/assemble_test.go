package assemblecmder_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	assemblecmder "github.com/papercomputeco/chatstream/cmd/chatstream/assemble"
	"github.com/papercomputeco/chatstream/pkg/assembler"
)

const capture = `event: message_start
data: {"id":"m1","role":"assistant","model":"m"}

event: content_block_start
data: {"contentBlockIndex":0,"type":"text"}

event: content_block_delta
data: {"contentBlockIndex":0,"text":"Hel"}

event: content_block_delta
data: {"contentBlockIndex":0,"text":"lo"}

event: content_block_stop
data: {"contentBlockIndex":0}

event: message_stop
data: {"stopReason":"end_turn"}

`

var _ = Describe("assemble command", func() {
	var stdout, stderr bytes.Buffer

	run := func(stdin string, args ...string) error {
		stdout.Reset()
		stderr.Reset()

		cmd := assemblecmder.NewAssembleCmd()
		cmd.Flags().String("config-dir", GinkgoT().TempDir(), "")
		cmd.Flags().BoolP("debug", "d", false, "")
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetOut(&stdout)
		cmd.SetErr(&stderr)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	decode := func() assembler.Result {
		var res assembler.Result
		Expect(json.Unmarshal(stdout.Bytes(), &res)).To(Succeed())
		return res
	}

	It("assembles stdin", func() {
		Expect(run(capture, "-")).To(Succeed())

		res := decode()
		Expect(res.Messages).To(HaveLen(1))
		Expect(res.Messages[0].ID).To(Equal("m1"))
		Expect(res.Messages[0].Complete).To(BeTrue())
		Expect(res.Messages[0].StopReason).To(Equal("end_turn"))
		Expect(res.Messages[0].Content).To(HaveLen(1))
		Expect(res.Messages[0].Content[0].Text).To(Equal("Hello"))
		Expect(res.ParseErrors).To(BeEmpty())

		Expect(stderr.String()).To(ContainSubstring("m1"))
		Expect(stderr.String()).To(ContainSubstring("end_turn"))
	})

	It("reads a capture file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "capture.sse")
		Expect(os.WriteFile(path, []byte(capture), 0o600)).To(Succeed())

		Expect(run("", path)).To(Succeed())
		Expect(decode().Messages).To(HaveLen(1))
	})

	It("fails on a missing file", func() {
		err := run("", filepath.Join(GinkgoT().TempDir(), "nope.sse"))
		Expect(err).To(MatchError(ContainSubstring("opening capture")))
	})

	Context("with parse errors", func() {
		const broken = "data: {not json\n\n" + capture

		It("reports them and succeeds by default", func() {
			Expect(run(broken)).To(Succeed())
			res := decode()
			Expect(res.ParseErrors).To(HaveLen(1))
			Expect(res.Messages).To(HaveLen(1))
			Expect(stderr.String()).To(ContainSubstring(res.ParseErrors[0]))
		})

		It("fails under --strict after printing the result", func() {
			err := run(broken, "--strict")
			Expect(err).To(MatchError(assemblecmder.ErrParseErrors))
			Expect(decode().ParseErrors).To(HaveLen(1))
		})
	})

	It("skips the summary with --quiet", func() {
		Expect(run(capture, "--quiet")).To(Succeed())
		Expect(stderr.String()).To(BeEmpty())
	})
})

var _ = Describe("WriteSummary", func() {
	It("warns about an empty stream", func() {
		var buf bytes.Buffer
		assemblecmder.WriteSummary(&buf, assembler.Result{})
		Expect(buf.String()).To(ContainSubstring("no messages in stream"))
	})
})
