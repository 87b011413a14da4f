package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashpect/itemstream/pkg/app"
	"github.com/ashpect/itemstream/pkg/config"
	"github.com/ashpect/itemstream/pkg/logging"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           app.ServiceName,
		Short:         "Serve a timed sequence of items over HTTP",
		Long:          "itemstream serves a fixed number of generated items as a JSON array, newline-delimited JSON or server-sent events.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().String("config", os.Getenv("ITEMSTREAM_CONFIG"), "Config file (.toml, .yaml or .yml)")

	root.AddCommand(newServeCmd(), newConfigCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the HTTP server",
		Aliases: []string{"run", "start"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := app.Run(ctx, cfg, logger); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("listen", "", "HTTP listen address, overrides listenAddr")
	cmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			b, err := config.Encode(cfg.Redacted())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", app.ServiceName, app.Version)
		},
	}
}

// loadConfig layers the serve flags, when present, over LoadConfig.
func loadConfig(cmd *cobra.Command) (*config.SystemCfg, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	changed := false
	if f := cmd.Flags().Lookup("listen"); f != nil && f.Changed {
		cfg.ListenAddr = f.Value.String()
		changed = true
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.Log.Level = f.Value.String()
		changed = true
	}
	if changed {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
