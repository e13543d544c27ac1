package cmdutil_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/cmd/chatstream/cmdutil"
	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatstream/pkg/eventstream/nop"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/logger"
)

var _ = Describe("NewPublisher", func() {
	It("defaults to the nop publisher", func() {
		p, err := cmdutil.NewPublisher(config.PublishConfig{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a kafka publisher without dialing", func() {
		p, err := cmdutil.NewPublisher(config.PublishConfig{
			Provider: config.PublishKafka,
			Brokers:  []string{"localhost:9092"},
			Topic:    "t",
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&kafka.Publisher{}))
		Expect(p.Close()).To(Succeed())
	})

	It("requires brokers for kafka", func() {
		_, err := cmdutil.NewPublisher(config.PublishConfig{Provider: config.PublishKafka, Topic: "t"}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("at least one broker")))
	})

	It("rejects unknown providers", func() {
		_, err := cmdutil.NewPublisher(config.PublishConfig{Provider: "redis"}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring(`"redis"`)))
	})
})

var _ = Describe("NewPublishing", func() {
	It("enqueues results and closes cleanly", func() {
		p, err := cmdutil.NewPublishing(config.PublishConfig{Provider: config.PublishNop}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		n := p.EnqueueResult(eventstream.EventSource{Origin: eventstream.OriginAPI}, assembler.Result{
			Messages: []llm.Message{{ID: "m1"}, {ID: "m2"}},
		})
		Expect(n).To(Equal(2))
		Expect(p.Close()).To(Succeed())
	})
})

var _ = Describe("LoadConfig", func() {
	var cmd *cobra.Command

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"),
			[]byte("[publish]\ntopic = \"from-file\"\n"), 0o600)).To(Succeed())

		var topic string
		cmd = &cobra.Command{Use: "test"}
		cmd.Flags().String("config-dir", dir, "")
		config.AddStringFlag(cmd, config.Registry, config.FlagTopic, &topic)
	})

	It("reads the config directory", func() {
		cfg, _, err := cmdutil.LoadConfig(cmd, config.FlagTopic)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Publish.Topic).To(Equal("from-file"))
		Expect(cfg.API.Listen).To(Equal(":8081"))
	})

	It("lets a set flag win", func() {
		Expect(cmd.Flags().Set("topic", "from-flag")).To(Succeed())
		cfg, _, err := cmdutil.LoadConfig(cmd, config.FlagTopic)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Publish.Topic).To(Equal("from-flag"))
	})
})

var _ = Describe("RunServices", func() {
	It("shuts every service down when the context ends", func() {
		ctx, cancel := context.WithCancel(context.Background())
		release := make(chan struct{})
		var shutdowns atomic.Int32

		svc := cmdutil.Service{
			Name:     "blocking",
			Run:      func() error { <-release; return nil },
			Shutdown: func() error { shutdowns.Add(1); close(release); return nil },
		}

		errCh := make(chan error, 1)
		go func() { errCh <- cmdutil.RunServices(ctx, logger.Nop(), svc) }()

		cancel()
		Eventually(errCh).Should(Receive(BeNil()))
		Expect(shutdowns.Load()).To(Equal(int32(1)))
	})

	It("returns the first failure named after its service", func() {
		boom := errors.New("address in use")
		var stopped atomic.Bool
		release := make(chan struct{})

		err := cmdutil.RunServices(context.Background(), logger.Nop(),
			cmdutil.Service{
				Name:     "proxy",
				Run:      func() error { return boom },
				Shutdown: func() error { return nil },
			},
			cmdutil.Service{
				Name:     "API server",
				Run:      func() error { <-release; return nil },
				Shutdown: func() error { stopped.Store(true); close(release); return nil },
			},
		)
		Expect(err).To(MatchError(boom))
		Expect(err.Error()).To(Equal("proxy error: address in use"))
		Expect(stopped.Load()).To(BeTrue())
	})
})

var _ = Describe("NewLogger", func() {
	It("writes JSON to the command's stderr with --log-json", func() {
		var errOut bytes.Buffer
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().Bool("debug", false, "")
		cmd.Flags().Bool("log-json", false, "")
		cmd.SetErr(&errOut)
		Expect(cmd.Flags().Set("log-json", "true")).To(Succeed())

		log := cmdutil.NewLogger(cmd, "api")
		log.Debug("hidden")
		log.Info("ready", "listen", ":8081")

		Expect(errOut.String()).NotTo(ContainSubstring("hidden"))
		Expect(errOut.String()).To(ContainSubstring(`"msg":"ready"`))
		Expect(errOut.String()).To(ContainSubstring(`"component":"api"`))
	})
})

var _ = Describe("NewServiceLogger", func() {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().Bool("debug", false, "")
		cmd.Flags().Bool("log-json", false, "")
		cmd.Flags().String("log-file", "", "")
		cmd.SetErr(&bytes.Buffer{})
		return cmd
	}

	It("is a plain logger without --log-file", func() {
		log, closeLog, err := cmdutil.NewServiceLogger(newCmd(), "proxy")
		Expect(err).NotTo(HaveOccurred())
		Expect(log).NotTo(BeNil())
		Expect(closeLog()).To(Succeed())
	})

	It("appends JSON records to the log file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "serve.log")
		cmd := newCmd()
		Expect(cmd.Flags().Set("log-file", path)).To(Succeed())

		log, closeLog, err := cmdutil.NewServiceLogger(cmd, "proxy")
		Expect(err).NotTo(HaveOccurred())
		log.Info("starting proxy server", "listen", ":8080")
		Expect(closeLog()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"starting proxy server"`))
		Expect(string(data)).To(ContainSubstring(`"component":"proxy"`))
	})
})
