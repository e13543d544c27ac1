// Package cmdutil holds the wiring shared by chatstream subcommands: the
// logger, the configured publisher and the worker pool in front of it.
package cmdutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatstream/pkg/eventstream/nop"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/worker"
)

// NewLogger builds the command logger from the persistent --debug and
// --log-json flags. Output goes to stderr so stdout stays free for command
// results.
func NewLogger(cmd *cobra.Command, prefix string) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	jsonLogs, _ := cmd.Flags().GetBool("log-json")
	return logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(jsonLogs),
		logger.WithPretty(logger.IsTerminal(os.Stderr)),
		logger.WithWriter(cmd.ErrOrStderr()),
		logger.WithPrefix(prefix),
	)
}

// NewServiceLogger is NewLogger plus, when --log-file is set, a JSON copy
// of every record appended to that file. The returned func closes the file.
func NewServiceLogger(cmd *cobra.Command, prefix string) (*slog.Logger, func() error, error) {
	log := NewLogger(cmd, prefix)

	path, _ := cmd.Flags().GetString("log-file")
	if path == "" {
		return log, func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	debug, _ := cmd.Flags().GetBool("debug")
	fileLog := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
		logger.WithPrefix(prefix),
	)
	return logger.Multi(log, fileLog), f.Close, nil
}

// LoadConfig merges defaults, config.toml, CHATSTREAM_* variables and the
// given registry flags of cmd into a Config.
func LoadConfig(cmd *cobra.Command, flagKeys ...string) (*config.Config, *viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Registry, flagKeys)
	return config.FromViper(v), v, nil
}

// NewPublisher returns the publisher selected by cfg.Provider.
func NewPublisher(cfg config.PublishConfig, log *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", config.PublishNop:
		log.Debug("publishing disabled")
		return nop.NewPublisher(), nil
	case config.PublishKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		log.Info("publishing to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown publish provider: %q", cfg.Provider)
	}
}

// Publishing is a worker pool together with the publisher it drains into.
type Publishing struct {
	*worker.Pool
	publisher eventstream.Publisher
}

// NewPublishing creates the publisher and starts the pool.
func NewPublishing(cfg config.PublishConfig, log *slog.Logger) (*Publishing, error) {
	pub, err := NewPublisher(cfg, log)
	if err != nil {
		return nil, err
	}

	pool, err := worker.NewPool(&worker.Config{
		Publisher:  pub,
		NumWorkers: cfg.Workers,
		QueueSize:  cfg.QueueSize,
		Logger:     log,
	})
	if err != nil {
		return nil, errors.Join(err, pub.Close())
	}

	return &Publishing{Pool: pool, publisher: pub}, nil
}

// Close drains the pool before closing the publisher.
func (p *Publishing) Close() error {
	p.Pool.Close()
	return p.publisher.Close()
}
