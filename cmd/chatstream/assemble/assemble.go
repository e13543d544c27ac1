// Package assemblecmder provides the assemble command, which reconstructs
// messages from a captured SSE stream.
package assemblecmder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/cmd/chatstream/cmdutil"
	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

// ErrParseErrors is returned under --strict when the stream produced any
// parse error.
var ErrParseErrors = errors.New("stream produced parse errors")

type assembleCommander struct {
	strict       bool
	quiet        bool
	maxLineBytes uint

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

const assembleLongDesc string = `Assemble messages from a captured SSE stream.

Reads server-sent events from a file, or from stdin when the argument is
"-" or omitted, and prints the assembled messages with every parse error
and tool progress notice as JSON on stdout. A short summary is written to
stderr.

Examples:
  chatstream assemble capture.sse
  curl -N https://chat.example.com/v1/stream | chatstream assemble -
  chatstream assemble --strict capture.sse`

const assembleShortDesc string = "Assemble messages from an SSE capture"

func NewAssembleCmd() *cobra.Command {
	cmder := &assembleCommander{}

	cmd := &cobra.Command{
		Use:   "assemble [file|-]",
		Short: assembleShortDesc,
		Long:  assembleLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := cmdutil.LoadConfig(cmd, config.FlagMaxLineBytes)
			if err != nil {
				return err
			}
			cmder.maxLineBytes = cfg.Stream.MaxLineBytes
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			cmder.logger = cmdutil.NewLogger(cmd, "assemble")

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}

			if path == "-" {
				cmder.in = cmd.InOrStdin()
				return cmder.run(cmd)
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening capture: %w", err)
			}
			defer f.Close()
			cmder.in = f
			return cmder.run(cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.strict, "strict", false, "Exit non-zero when any parse error occurred")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Skip the summary on stderr")
	config.AddUintFlag(cmd, config.Registry, config.FlagMaxLineBytes, &cmder.maxLineBytes)

	return cmd
}

func (c *assembleCommander) run(cmd *cobra.Command) error {
	var asm *assembler.Assembler
	assemble := func() error {
		var err error
		asm, err = assembler.AssembleReader(cmd.Context(), c.in, c.logger,
			sse.WithMaxLineSize(int(c.maxLineBytes)))
		return err
	}

	var err error
	if f, ok := c.errOut.(*os.File); ok && !c.quiet && logger.IsTerminal(f) {
		err = cliui.Step(c.errOut, "Assembling stream", assemble)
	} else {
		err = assemble()
	}
	if err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}

	res := asm.Result()

	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if !c.quiet {
		WriteSummary(c.errOut, res)
	}

	if c.strict && len(res.ParseErrors) > 0 {
		return fmt.Errorf("%w: %d", ErrParseErrors, len(res.ParseErrors))
	}
	return nil
}

// WriteSummary prints one line per message followed by every parse error.
func WriteSummary(w io.Writer, res assembler.Result) {
	fmt.Fprintln(w)
	if len(res.Messages) == 0 {
		fmt.Fprintf(w, "  %s %s\n", cliui.WarnMark, cliui.DimStyle.Render("no messages in stream"))
	}

	for _, m := range res.Messages {
		mark := cliui.SuccessMark
		if !m.Complete {
			mark = cliui.WarnMark
		}

		stop := m.StopReason
		if stop == "" {
			stop = "-"
		}

		fmt.Fprintf(w, "  %s %s  %s  %s  %s\n",
			mark,
			cliui.KeyStyle.Render(m.ID),
			cliui.KeyValue("role", m.Role),
			cliui.KeyValue("blocks", fmt.Sprint(len(m.Content))),
			cliui.KeyValue("stop", stop),
		)
	}

	for _, pe := range res.ParseErrors {
		fmt.Fprintf(w, "  %s %s\n", cliui.FailMark, pe)
	}
	fmt.Fprintln(w)
}
