package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ward-stats/internal/config"
)

var (
	cfg        *config.Config
	outputFile string
)

var rootCmd = &cobra.Command{
	Use:   "ward-stats",
	Short: "Annotate political division boundaries with voter stats",
	Long:  "Joins division boundaries with voter registration and turnout totals, looks up each division's polling place, and writes a single GeoJSON file.",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("output-file") {
			cfg.Output.File = outputFile
		}

		env, err := initPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		_, err = env.Pipeline.Run(ctx, cfg.Output.File)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.Flags().StringVar(&outputFile, "output-file", config.DefaultOutputFile, "Output GeoJSON file path.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
