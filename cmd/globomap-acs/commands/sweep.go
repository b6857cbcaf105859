package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/globomap/acs-driver/internal/sweep"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Republish every virtual machine and clear stale graph elements",
		Long: `Sweep lists every project of the region, republishes each of its virtual
machines as if it had just been created and finally asks the loader to clear
comp_unit, zone and edge elements of this region that were not refreshed.

Failures of single virtual machines are logged and do not stop the sweep.
Failing to list projects or virtual machines aborts it before anything is
cleared. A sweep cannot be resumed; run it again from the start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context())
		},
	}
}

func runSweep(ctx context.Context) error {
	if err := cfg.ValidateInventory(); err != nil {
		return err
	}
	if err := cfg.ValidateLoader(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, stopMetrics := startMetrics(cfg, log)
	defer stopMetrics()

	s, release, err := newSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			log.Error("Failed to close loader sink", err)
		}
	}()

	inventory := newInventory(cfg, m, log)
	result, err := sweep.New(inventory, newSynthesizer(cfg, inventory, log), s, m, log).Run(ctx)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		log.WithField("failed", result.Failed).Warn("Some virtual machines were not republished")
	}
	return nil
}
