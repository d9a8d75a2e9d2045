package commands

import (
	"context"
	"fmt"

	"github.com/benvon/capture/internal/config"
	"github.com/benvon/capture/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type appKey struct{}

// Execute runs the command line and releases the client afterwards, also when the command failed.
func Execute() error {
	var opened *App
	err := newRootCmd(&opened).Execute()
	if opened != nil {
		opened.Close()
		_ = logger.Sync(opened.Logger)
	}
	return err
}

// newRootCmd creates the capture command tree. The client opened for the running command is stored in opened.
func newRootCmd(opened **App) *cobra.Command {
	var debug, bell, jsonLogs bool

	rootCmd := &cobra.Command{
		Use:           "capture",
		Short:         "Capture tasks fast, sorted by what matters now",
		Long:          "Quick-capture task manager. Works offline; syncs when signed in to a remote store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skip_app"] == "true" {
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			debugMode := cfg.Debug || debug

			var log *zap.Logger
			if jsonLogs {
				log, err = logger.NewProductionLogger(debugMode)
			} else {
				log, err = logger.NewCLILogger(debugMode)
			}
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := Open(ctx, cfg, log, cmd.OutOrStdout(), bell)
			if err != nil {
				_ = logger.Sync(log)
				return err
			}
			*opened = app
			cmd.SetContext(context.WithValue(ctx, appKey{}, app))
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&bell, "bell", false, "Ring the terminal bell when a change is applied")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON")

	rootCmd.AddCommand(NewProjectCmd())
	rootCmd.AddCommand(NewTaskCmd())
	rootCmd.AddCommand(NewHistoryCmd())
	rootCmd.AddCommand(NewAuthCmd())
	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewFollowCmd())
	rootCmd.AddCommand(NewDBCmd())
	rootCmd.AddCommand(NewConfigCmd())

	return rootCmd
}

func appFrom(cmd *cobra.Command) *App {
	if cmd.Context() == nil {
		return nil
	}
	app, _ := cmd.Context().Value(appKey{}).(*App)
	return app
}

// mustApp returns the app opened by the root command.
func mustApp(cmd *cobra.Command) (*App, error) {
	app := appFrom(cmd)
	if app == nil {
		return nil, fmt.Errorf("client is not initialized")
	}
	return app, nil
}
