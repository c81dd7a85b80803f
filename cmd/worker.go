/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bloglist/apiserver/config"
	"github.com/bloglist/apiserver/internal/logging"
	"github.com/bloglist/apiserver/internal/mq"
	"github.com/bloglist/apiserver/internal/worker"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes blog events into the activity log",
	Long: `Subscribes to the blog events channel and logs every blog change.
Requires MQ_DRIVER to be set. Usage:

	bloglist worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.LogLevel, cfg.IsDev())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_DRIVER is required to run the worker")
		}
		defer func() {
			if err := broker.Close(); err != nil {
				logger.WithError(err).Warn("close mq")
			}
		}()

		consumer := worker.NewActivityConsumer(broker, cfg.MQ.Channel, logger)
		if err := consumer.Run(ctx); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
		logger.WithField("counts", consumer.Counts()).Info("worker finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
