// Command facectl runs the face pipeline offline: it inspects photos,
// compares faces and bulk-enrolls employees into the configured store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/your-org/faceattend/internal/config"
	"github.com/your-org/faceattend/internal/observability"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "facectl",
	Short:         "Offline tools for the face attendance engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			cfg = config.Default()
		} else {
			var err error
			if cfg, err = config.Load(configPath); err != nil {
				return err
			}
		}
		observability.SetupLogger(cfg.Logging.Level, "text")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: built-in defaults)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
