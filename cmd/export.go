/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/taskapi/taskapi/internal/db"
	"github.com/taskapi/taskapi/internal/services"
	"github.com/taskapi/taskapi/internal/storage"
	"github.com/taskapi/taskapi/internal/store"
)

var exportEmail string

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON snapshot of a user's tasks to object storage",
	Long: `Write a JSON snapshot of a user's tasks to the configured bucket. Usage:

	taskapi export --email user@example.com
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(exportEmail)
		if email == "" {
			return errors.New("--email is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		objects, err := storage.NewFromConfig(cmd.Context(), cfg.Storage)
		if err != nil {
			return fmt.Errorf("connect storage: %w", err)
		}
		if objects == nil {
			return errors.New("STORAGE_BACKEND is not configured")
		}

		dbConn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		user, err := store.NewUserRepository(dbConn).GetByEmail(cmd.Context(), email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no user with email %s", email)
			}
			return err
		}

		exporter := services.NewExportService(store.NewTaskRepository(dbConn), objects)
		result, err := exporter.Export(cmd.Context(), user.ID)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportEmail, "email", "", "email of the user whose tasks are exported")
}
