// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/api"
	"github.com/papercomputeco/chatstream/cmd/chatstream/cmdutil"
	apicmder "github.com/papercomputeco/chatstream/cmd/chatstream/serve/api"
	proxycmder "github.com/papercomputeco/chatstream/cmd/chatstream/serve/proxy"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/proxy"
)

type ServeCommander struct {
	proxyListen  string
	apiListen    string
	upstream     string
	provider     string
	brokers      string
	topic        string
	workers      uint
	maxLineBytes uint

	cfg *config.Config
}

const serveLongDesc string = `Run chatstream services.

Use subcommands to run individual services or all services together:
  chatstream serve          Run both proxy and API server together
  chatstream serve api      Run just the API server
  chatstream serve proxy    Run just the proxy server

When run together both servers share one publishing worker pool.`

const serveShortDesc string = "Run chatstream services"

var flags = []string{
	config.FlagProxyListen,
	config.FlagAPIListen,
	config.FlagUpstream,
	config.FlagMaxLineBytes,
	config.FlagPublishProvider,
	config.FlagBrokers,
	config.FlagTopic,
	config.FlagWorkers,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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

	config.AddStringFlag(cmd, config.Registry, config.FlagProxyListen, &cmder.proxyListen)
	config.AddStringFlag(cmd, config.Registry, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.Registry, config.FlagUpstream, &cmder.upstream)
	config.AddUintFlag(cmd, config.Registry, config.FlagMaxLineBytes, &cmder.maxLineBytes)
	config.AddStringFlag(cmd, config.Registry, config.FlagPublishProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Registry, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Registry, config.FlagTopic, &cmder.topic)
	config.AddUintFlag(cmd, config.Registry, config.FlagWorkers, &cmder.workers)

	cmd.PersistentFlags().String("log-file", "", "Also append JSON logs to this file")

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command) error {
	log, closeLog, err := cmdutil.NewServiceLogger(cmd, "serve")
	if err != nil {
		return err
	}
	defer closeLog()

	// Shared by both servers.
	publishing, err := cmdutil.NewPublishing(c.cfg.Publish, log)
	if err != nil {
		return err
	}
	defer publishing.Close()

	maxLine := int(c.cfg.Stream.MaxLineBytes)

	p, err := proxy.New(proxy.Config{
		ListenAddr:   c.cfg.Proxy.Listen,
		UpstreamURL:  c.cfg.Proxy.Upstream,
		MaxLineBytes: maxLine,
	}, publishing, log.With("component", "proxy"))
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr:   c.cfg.API.Listen,
		MaxLineBytes: maxLine,
	}, publishing, log.With("component", "api"))
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	return cmdutil.RunServices(cmd.Context(), log,
		cmdutil.Service{Name: "proxy", Run: p.Run, Shutdown: p.Close},
		cmdutil.Service{Name: "API server", Run: apiServer.Run, Shutdown: apiServer.Shutdown},
	)
}
