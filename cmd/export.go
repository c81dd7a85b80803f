/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/bloglist/apiserver/config"
	"github.com/bloglist/apiserver/internal/db"
	"github.com/bloglist/apiserver/internal/logging"
	"github.com/bloglist/apiserver/internal/services"
	"github.com/bloglist/apiserver/internal/storage"
	"github.com/bloglist/apiserver/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Writes a snapshot of the blog listing to object storage",
	Long: `Reads the blog listing, most liked first, from postgres and uploads it
as JSON to the configured object storage. Usage:

	bloglist export
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.LogLevel, cfg.IsDev())

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return err
		}

		listing := services.NewListingService(store.NewBlogRepository(dbConn), store.NewUserRepository(dbConn))
		snapshots := services.NewSnapshotService(listing, objects, cfg.Storage.Prefix)

		key, err := snapshots.Export(ctx)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		logger.WithFields(logrus.Fields{"bucket": objects.Bucket(), "key": key}).Info("snapshot exported")

		if exportKeep > 0 {
			deleted, err := snapshots.Prune(ctx, exportKeep)
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			logger.WithField("deleted", len(deleted)).Info("old snapshots pruned")
		}
		return nil
	},
}

var exportKeep int

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().IntVar(&exportKeep, "keep", 0, "keep only the newest N snapshots (0 keeps all)")
}
