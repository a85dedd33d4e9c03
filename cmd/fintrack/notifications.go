package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/reconcile"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Follow notifications published to the AMQP queue",
	Long:  "Consumes the notification queue and prints every message until interrupted. Requires AMQP_URL.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cli.LoadEnvFile()
		cfg, err := cli.LoadAndValidateConfig()
		if err != nil {
			return err
		}
		if cfg.AMQPURL == "" {
			return errors.New("AMQP_URL is not set")
		}
		logger := cli.SetupLogger(cfg, log.ComponentAMQP)

		ctx, stop := cli.SignalContext(context.Background())
		defer stop()

		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPNotifyQueue, logger.Logger)
		if err != nil {
			return err
		}
		defer client.Close()

		out := cmd.OutOrStdout()
		err = client.ConsumeNotifications(ctx, func(_ context.Context, m *amqp.NotificationMessage) error {
			n := m.Notification()
			fmt.Fprintf(out, "  %s  %-10s %s %s due %s (%s)\n",
				m.Timestamp.Format("15:04:05"),
				cli.RenderStatus(reconcile.Status(m.Status)),
				n.OwnerID, n.Title, n.DueDate, cli.FormatDays(n.DaysUntilDue))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
}
