package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the order view in sync and serve it over HTTP",
		Long: `Start the sync engine for the stored session and serve the local API.

Without a stored session the server waits for POST /session/login.

Example:
  ordertrack login --username ops1
  ordertrack run --config ./ordertrack.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, zapLogger, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.Run(ctx); err != nil {
				zapLogger.Error("server error", zap.Error(err))
				return err
			}
			zapLogger.Info("server stopped gracefully")
			return nil
		},
	}
}

