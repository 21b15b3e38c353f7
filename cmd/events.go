/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/taskapi/taskapi/internal/mq"
	"github.com/taskapi/taskapi/types"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect task change notifications",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Subscribe to task events and log them until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.NewFromConfig(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("connect mq: %w", err)
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		events, err := mq.NewTaskEvents(broker, cfg.MQ.TaskEventsChannel)
		if err != nil {
			return err
		}

		logrus.WithField("channel", cfg.MQ.TaskEventsChannel).Info("watching task events")
		err = events.Watch(ctx, func(_ context.Context, event types.TaskEvent) error {
			logrus.WithFields(logrus.Fields{
				"event_id":    event.ID,
				"event_type":  event.Type,
				"owner_id":    event.OwnerID,
				"task_id":     event.Task.ID,
				"task_status": event.Task.Status,
				"occurred_at": event.OccurredAt,
			}).Info("task event")
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
