package main

import (
	"os"

	apicmder "github.com/papercomputeco/chatstream/cmd/chatstream/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "chatstreamapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	cmd.PersistentFlags().String("log-file", "", "Also append JSON logs to this file")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chatstream/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
