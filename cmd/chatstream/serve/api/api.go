// Package apicmder provides the chatstream API server cobra command.
package apicmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/api"
	"github.com/papercomputeco/chatstream/cmd/chatstream/cmdutil"
	"github.com/papercomputeco/chatstream/pkg/config"
)

type apiCommander struct {
	listen       string
	maxLineBytes uint
	workers      uint
	cfg          *config.Config
}

const apiLongDesc string = `Run the chatstream API server.

Serves POST /v1/assemble, which assembles an SSE body into messages, and
an MCP endpoint at /mcp exposing the assemble_stream tool. Every assembled
message is published to the configured event stream.`

const apiShortDesc string = "Run the chatstream API server"

var flags = []string{
	config.FlagAPIListenStandalone,
	config.FlagMaxLineBytes,
	config.FlagPublishProvider,
	config.FlagBrokers,
	config.FlagTopic,
	config.FlagWorkers,
}

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	var provider, brokers, topic string

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := cmdutil.LoadConfig(cmd, flags...)
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddUintFlag(cmd, config.Registry, config.FlagMaxLineBytes, &cmder.maxLineBytes)
	config.AddStringFlag(cmd, config.Registry, config.FlagPublishProvider, &provider)
	config.AddStringFlag(cmd, config.Registry, config.FlagBrokers, &brokers)
	config.AddStringFlag(cmd, config.Registry, config.FlagTopic, &topic)
	config.AddUintFlag(cmd, config.Registry, config.FlagWorkers, &cmder.workers)

	return cmd
}

func (c *apiCommander) run(cmd *cobra.Command) error {
	log, closeLog, err := cmdutil.NewServiceLogger(cmd, "api")
	if err != nil {
		return err
	}
	defer closeLog()

	publishing, err := cmdutil.NewPublishing(c.cfg.Publish, log)
	if err != nil {
		return err
	}
	defer publishing.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr:   c.cfg.API.Listen,
		MaxLineBytes: int(c.cfg.Stream.MaxLineBytes),
	}, publishing, log)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	return cmdutil.RunServices(cmd.Context(), log, cmdutil.Service{
		Name:     "API server",
		Run:      server.Run,
		Shutdown: server.Shutdown,
	})
}
