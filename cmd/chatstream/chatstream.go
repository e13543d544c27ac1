// Package chatstreamcmder is the root chatstream command.
package chatstreamcmder

import (
	"github.com/spf13/cobra"

	assemblecmder "github.com/papercomputeco/chatstream/cmd/chatstream/assemble"
	configcmder "github.com/papercomputeco/chatstream/cmd/chatstream/config"
	servecmder "github.com/papercomputeco/chatstream/cmd/chatstream/serve"
	tailcmder "github.com/papercomputeco/chatstream/cmd/chatstream/tail"
	versioncmder "github.com/papercomputeco/chatstream/cmd/version"
)

const chatstreamLongDesc string = `Chatstream assembles streamed chat responses into structured messages.

Work with captured streams:
  chatstream assemble <file>   Assemble a finished SSE capture
  chatstream tail <file>       Follow a capture while it is written

Run services using:
  chatstream serve api      Run the API server
  chatstream serve proxy    Run the assembling proxy
  chatstream serve          Run both servers together`

const chatstreamShortDesc string = "Chatstream - SSE chat stream assembly"

func NewChatstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatstream",
		Short:        chatstreamShortDesc,
		Long:         chatstreamLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chatstream/ config directory")

	// Add subcommands
	cmd.AddCommand(assemblecmder.NewAssembleCmd())
	cmd.AddCommand(tailcmder.NewTailCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
