package assembler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/stream"
)

var _ = Describe("NormalizeToolResult", func() {
	It("decodes JSON text and keeps plain text", func() {
		parts, status := assembler.NormalizeToolResult(stream.ToolResult{
			ToolUseID: "t1",
			Content: []any{
				map[string]any{"text": `{"hits":3}`},
				map[string]any{"text": "no json here"},
			},
		})
		Expect(status).To(Equal(llm.ResultSuccess))
		Expect(parts).To(Equal([]llm.ToolResultContent{
			{Type: "json", JSON: map[string]any{"hits": float64(3)}},
			{Type: "text", Text: "no json here"},
		}))
	})

	DescribeTable("locates image data",
		func(entry map[string]any, expected any) {
			parts, _ := assembler.NormalizeToolResult(stream.ToolResult{Content: []any{entry}})
			Expect(parts).To(HaveLen(1))
			Expect(parts[0].Type).To(Equal("image"))
			Expect(parts[0].Image.Format).To(Equal("png"))
			Expect(parts[0].Image.Data).To(Equal(expected))
		},
		Entry("source.data first", map[string]any{"image": map[string]any{
			"format": "png", "source": map[string]any{"data": "A", "bytes": "B"}, "data": "C",
		}}, "A"),
		Entry("then source.bytes", map[string]any{"image": map[string]any{
			"format": "png", "source": map[string]any{"bytes": "B"}, "data": "C",
		}}, "B"),
		Entry("then a bare data key", map[string]any{"image": map[string]any{
			"format": "png", "data": "C",
		}}, "C"),
	)

	It("passes json entries through and skips unknown ones", func() {
		parts, _ := assembler.NormalizeToolResult(stream.ToolResult{
			Content: []any{
				map[string]any{"json": []any{"a", "b"}},
				map[string]any{"video": "nope"},
				map[string]any{"image": map[string]any{"format": "png"}},
				"bare string",
			},
		})
		Expect(parts).To(Equal([]llm.ToolResultContent{
			{Type: "json", JSON: []any{"a", "b"}},
		}))
	})

	DescribeTable("maps status",
		func(status, expected string) {
			_, got := assembler.NormalizeToolResult(stream.ToolResult{Status: status})
			Expect(got).To(Equal(expected))
		},
		Entry("absent", "", llm.ResultSuccess),
		Entry("success", "success", llm.ResultSuccess),
		Entry("error", "error", llm.ResultError),
		Entry("failed", "FAILED", llm.ResultError),
	)
})
