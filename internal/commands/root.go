package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/app"
	"github.com/cleared-dev/ledger/internal/buildinfo"
	"github.com/cleared-dev/ledger/internal/config"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	dir        string
	configPath string
	tenant     string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:     "ledger",
		Short:   "Double-entry books, bank reconciliation and reserves",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.dir, "dir", ".", "books directory")
	pf.StringVar(&g.configPath, "config", "", "config file (default <dir>/"+config.FileName+")")
	pf.StringVar(&g.tenant, "tenant", "", "tenant ID (default: first configured tenant)")
	pf.StringVar(&g.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newInitCommand(g),
		newServeCommand(g),
		newTenantsCommand(g),
		newAccountsCommand(g),
		newPostCommand(g),
		newReverseCommand(g),
		newImportCommand(g),
		newUnmatchedCommand(g),
		newMatchCommand(g),
		newSuggestCommand(g),
		newReserveCommand(g),
		newWatchdogCommand(g),
		newVerifyCommand(g),
		newExportCommand(g),
	)
	return rootCmd
}

func (g *globals) logger(cmd *cobra.Command) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(g.logLevel))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", g.logLevel)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}

func (g *globals) absDir() (string, error) {
	dir, err := filepath.Abs(g.dir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return dir, nil
}

// open loads the config, wires the app and bootstraps the configured tenants.
// The caller closes the app.
func (g *globals) open(cmd *cobra.Command) (*app.App, error) {
	dir, err := g.absDir()
	if err != nil {
		return nil, err
	}
	path := g.configPath
	if path == "" {
		path = filepath.Join(dir, config.FileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log, err := g.logger(cmd)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, dir, log)
	if err != nil {
		return nil, err
	}
	if err := a.Bootstrap(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

var errNoTenant = errors.New("no tenant configured; pass --tenant or add one to " + config.FileName)

func (g *globals) tenantID(a *app.App) (string, error) {
	if g.tenant != "" {
		return g.tenant, nil
	}
	if len(a.Config.Tenants) == 0 {
		return "", errNoTenant
	}
	return a.Config.Tenants[0].ID, nil
}

// withApp opens the app, resolves the tenant and runs fn.
func (g *globals) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, tenantID string) error) error {
	a, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tenantID, err := g.tenantID(a)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a, tenantID)
}
