package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/globomap/acs-driver/internal/consumer"
	"github.com/globomap/acs-driver/internal/logger"
)

const shutdownTimeout = 5 * time.Second

func newConsumeCommand() *cobra.Command {
	var (
		follow   bool
		interval time.Duration
		bind     bool
	)

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Publish graph documents for queued CloudStack events",
		Long: `Consume drains the CloudStack event queue. For every event it looks up the
virtual machine, project or zone involved, publishes the resulting graph
documents and acknowledges the message once the loader accepted all of them.

A publish failure returns the message to the queue and stops the command with
a non-zero exit code, so a supervisor can restart it.`,
		Example: `  globomap-acs consume
  globomap-acs consume --follow --interval 30s
  globomap-acs consume --bind=false --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsume(cmd.Context(), follow, interval, bind)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep draining the queue until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "pause between drains in follow mode")
	cmd.Flags().BoolVar(&bind, "bind", true, "bind the queue to the CloudStack exchange before consuming")

	return cmd
}

func runConsume(ctx context.Context, follow bool, interval time.Duration, bind bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, stopMetrics := startMetrics(cfg, log)
	defer stopMetrics()

	q, err := newQueue(cfg, log)
	if err != nil {
		return err
	}
	defer q.Close()

	if bind {
		if err := q.Bind(ctx, cfg.Queue.Exchange, routingKeys(cfg)); err != nil {
			return err
		}
	}

	s, release, err := newSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			log.Error("Failed to close loader sink", err)
		}
	}()

	synthesizer := newSynthesizer(cfg, newInventory(cfg, m, log), log)
	loop := consumer.NewLoop(q, synthesizer, s, m, log)

	if follow {
		logger.Infof(log, "Following the %s queue every %s", cfg.Queue.Backend, interval)
		return loop.Follow(ctx, interval)
	}

	stats, err := loop.Drain(ctx)
	log.WithFields(map[string]interface{}{
		"acked":      stats.Acked,
		"rejected":   stats.Rejected,
		"documents":  stats.Documents,
		"reconnects": stats.Reconnects,
	}).Info("Queue drained")
	return err
}
