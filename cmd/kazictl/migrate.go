package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/kazi-backend/internal/config"
	"github.com/ignatzorin/kazi-backend/internal/db"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Применить SQL миграции",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir := migrationsDir
		if dir == "" {
			dir = cfg.MigrationsPath
		}

		conn, err := db.NewPostgres(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		applied, err := db.RunMigrations(cmd.Context(), conn, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) from %s\n", applied, dir)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "Каталог миграций (по умолчанию MIGRATIONS_PATH)")
}
