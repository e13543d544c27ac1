package main

import (
	"fmt"
	"os"

	proxycmder "github.com/papercomputeco/chatstream/cmd/chatstream/serve/proxy"
)

func main() {
	cmd := proxycmder.NewProxyCmd()

	cmd.Use = "chatstreamproxy"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	cmd.PersistentFlags().String("log-file", "", "Also append JSON logs to this file")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chatstream/ config directory")

	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
