package commands

import (
	"github.com/spf13/cobra"

	"github.com/globomap/acs-driver/internal/logger"
)

func newBindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bind",
		Short: "Bind the event queue to the CloudStack exchange",
		Long: `Bind declares the routing keys of the virtual machine and zone events on the
configured queue. With the NATS backend the keys become subjects of the
stream, prefixed with the exchange name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateQueue(); err != nil {
				return err
			}

			q, err := newQueue(cfg, log)
			if err != nil {
				return err
			}
			defer q.Close()

			keys := routingKeys(cfg)
			if err := q.Bind(cmd.Context(), cfg.Queue.Exchange, keys); err != nil {
				return err
			}
			logger.Infof(log, "Bound %d routing keys on exchange %s", len(keys), cfg.Queue.Exchange)
			return nil
		},
	}
}
