// Command kazictl служебные команды backend: миграции, SEO-отчёт,
// водяные знаки и выпуск токенов для разработки.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/kazi-backend/internal/logger"
)

var output = "text" // "text" или "json"

var rootCmd = &cobra.Command{
	Use:           "kazictl",
	Short:         "kazictl - служебные команды Kazi backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init("warn")
		logger.SetTextFormatter()
		logger.SetOutput(cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Формат вывода: text или json")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seoCmd)
	rootCmd.AddCommand(watermarkCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
