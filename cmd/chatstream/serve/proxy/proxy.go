// Package proxycmder provides the assembling proxy server command.
package proxycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/cmd/chatstream/cmdutil"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/proxy"
)

type proxyCommander struct {
	listen       string
	upstream     string
	maxLineBytes uint
	workers      uint
	cfg          *config.Config
}

const proxyLongDesc string = `Run the assembling proxy server.

The proxy forwards every request to the configured upstream URL. Server-sent
event responses are streamed back to the client byte for byte while the
proxy assembles them into messages, which are then published to the
configured event stream. Other responses pass through untouched.`

const proxyShortDesc string = "Run the chatstream proxy server"

var flags = []string{
	config.FlagProxyListenStandalone,
	config.FlagUpstream,
	config.FlagMaxLineBytes,
	config.FlagPublishProvider,
	config.FlagBrokers,
	config.FlagTopic,
	config.FlagWorkers,
}

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	var provider, brokers, topic string

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
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

	config.AddStringFlag(cmd, config.Registry, config.FlagProxyListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Registry, config.FlagUpstream, &cmder.upstream)
	config.AddUintFlag(cmd, config.Registry, config.FlagMaxLineBytes, &cmder.maxLineBytes)
	config.AddStringFlag(cmd, config.Registry, config.FlagPublishProvider, &provider)
	config.AddStringFlag(cmd, config.Registry, config.FlagBrokers, &brokers)
	config.AddStringFlag(cmd, config.Registry, config.FlagTopic, &topic)
	config.AddUintFlag(cmd, config.Registry, config.FlagWorkers, &cmder.workers)

	return cmd
}

func (c *proxyCommander) run(cmd *cobra.Command) error {
	log, closeLog, err := cmdutil.NewServiceLogger(cmd, "proxy")
	if err != nil {
		return err
	}
	defer closeLog()

	publishing, err := cmdutil.NewPublishing(c.cfg.Publish, log)
	if err != nil {
		return err
	}
	defer publishing.Close()

	p, err := proxy.New(proxy.Config{
		ListenAddr:   c.cfg.Proxy.Listen,
		UpstreamURL:  c.cfg.Proxy.Upstream,
		MaxLineBytes: int(c.cfg.Stream.MaxLineBytes),
	}, publishing, log)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	return cmdutil.RunServices(cmd.Context(), log, cmdutil.Service{
		Name:     "proxy",
		Run:      p.Run,
		Shutdown: p.Close,
	})
}
