package commands

import (
	"fmt"

	"github.com/benvon/capture/internal/config"
	"github.com/benvon/capture/internal/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the config command
func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "config",
		Short:       "Print the effective configuration with secrets redacted",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skip_app": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			data, err := yaml.Marshal(redacted(*cfg))
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}

			w := cmd.OutOrStdout()
			if cfg.File != "" {
				fmt.Fprintf(w, "# loaded from %s\n", cfg.File)
			}
			fmt.Fprint(w, string(data))
			return nil
		},
	}
}

func redacted(cfg config.Config) config.Config {
	cfg.DatabaseURL = logger.SanitizeURL(cfg.DatabaseURL)
	cfg.RabbitMQURL = logger.SanitizeURL(cfg.RabbitMQURL)
	cfg.RedisURL = logger.SanitizeURL(cfg.RedisURL)
	if cfg.Auth.ClientSecret != "" {
		cfg.Auth.ClientSecret = "[redacted]"
	}
	return cfg
}
