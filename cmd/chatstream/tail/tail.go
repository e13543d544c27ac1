// Package tailcmder provides the tail command, which follows a growing SSE
// capture and reports messages as they complete.
package tailcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	assemblecmder "github.com/papercomputeco/chatstream/cmd/chatstream/assemble"
	"github.com/papercomputeco/chatstream/cmd/chatstream/cmdutil"
	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/sse"
	"github.com/papercomputeco/chatstream/pkg/stream"
)

type tailCommander struct {
	keepOpen     bool
	jsonOut      bool
	maxLineBytes uint

	out io.Writer
}

const tailLongDesc string = `Follow a growing SSE capture.

Reads the capture from the start and keeps reading as it grows, printing
each message as it starts and completes along with tool progress and parse
errors. The command exits once the stream sends message_stop or done,
unless --keep-open is set, in which case it runs until interrupted.

Examples:
  chatstream tail session.sse
  chatstream tail --keep-open --json session.sse`

const tailShortDesc string = "Follow a growing SSE capture"

func NewTailCmd() *cobra.Command {
	cmder := &tailCommander{}

	cmd := &cobra.Command{
		Use:   "tail <file>",
		Short: tailShortDesc,
		Long:  tailLongDesc,
		Args:  cobra.ExactArgs(1),
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
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.keepOpen, "keep-open", false, "Keep following after message_stop or done")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the assembled result as JSON on exit")
	config.AddUintFlag(cmd, config.Registry, config.FlagMaxLineBytes, &cmder.maxLineBytes)

	return cmd
}

func (c *tailCommander) run(cmd *cobra.Command, path string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stop, finish := context.WithCancel(ctx)
	defer finish()

	f, err := newFollower(stop, path)
	if err != nil {
		return err
	}
	defer f.Close()

	log := cmdutil.NewLogger(cmd, "tail")
	p := assembler.NewPipeline(log, c.callbacks(finish))

	log.Debug("following capture", "path", path, "keep_open", c.keepOpen)

	// ctx rather than stop: lines already read must still be parsed once
	// the stream has finished.
	if err := p.Consume(ctx, f, nil, sse.WithMaxLineSize(int(c.maxLineBytes))); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading capture: %w", err)
	}

	res := p.Assembler.Result()
	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	assemblecmder.WriteSummary(c.out, res)
	return nil
}

func (c *tailCommander) callbacks(finish context.CancelFunc) *stream.Callbacks {
	done := func() {
		if !c.keepOpen {
			finish()
		}
	}

	cb := &stream.Callbacks{
		OnMessageStop: func(ev stream.MessageStop) {
			c.printf("%s message stopped %s\n", cliui.SuccessMark, cliui.KeyValue("stop", ev.StopReason))
			done()
		},
		OnDone: func() {
			c.printf("%s stream done\n", cliui.SuccessMark)
			done()
		},
		OnToolProgress: func(p stream.ToolProgress) {
			switch {
			case p.Visible:
				c.printf("%s %s\n", cliui.StepStyle.Render("tool"), p.Message)
			case p.ToolUseID != "":
				c.printf("%s %s\n", cliui.StepStyle.Render("tool"), cliui.KeyValue("finished", p.ToolUseID))
			}
		},
		OnParseError: func(message string) {
			c.printf("%s %s\n", cliui.FailMark, message)
		},
	}

	if !c.jsonOut {
		cb.OnMessageStart = func(ev stream.MessageStart) {
			c.printf("%s %s\n", cliui.StepStyle.Render("message"), cliui.KeyValue("role", string(ev.Role)))
		}
	}
	return cb
}

// printf writes progress lines. Under --json they go nowhere so stdout holds
// only the final document.
func (c *tailCommander) printf(format string, args ...any) {
	if c.jsonOut {
		return
	}
	fmt.Fprintf(c.out, format, args...)
}
