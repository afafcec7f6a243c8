// Package cli is the cobra front end over the guardian core. It owns
// argument parsing, console formatting, and exit-code mapping; every
// decision is made by the runner and friends, never here.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentsh/guardian/internal/audit"
	"github.com/agentsh/guardian/internal/config"
	"github.com/agentsh/guardian/internal/policy"
	"github.com/agentsh/guardian/internal/tokens"
)

func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "guardian",
		Short:         "guardian: a seatbelt for your terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("guardian {{.Version}}\n")

	cmd.PersistentFlags().String("config", getenvDefault("GUARDIAN_CONFIG", ""), "config file path (default ~/.guardian/config.yaml)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newAllowCmd())
	cmd.AddCommand(newTokensCmd())
	cmd.AddCommand(newPolicyCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newReceiptsCmd())

	return cmd
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// app bundles the loaded configuration with the logger every command
// shares.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Logging.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}

func (a *app) openEngine() (*policy.Engine, error) {
	overlay, err := policy.LoadOverlayIfPresent(a.cfg.Policy.OverlayPath)
	if err != nil {
		return nil, err
	}
	return policy.NewEngine(overlay)
}

func (a *app) openTokens() (*tokens.Store, error) {
	return tokens.Open(a.cfg.Tokens.Path)
}

func (a *app) openAudit() (*audit.Log, error) {
	return audit.New(a.cfg.Audit.Dir, a.logger)
}
