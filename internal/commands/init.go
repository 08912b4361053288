package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/app"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/gitops"
)

func newInitCommand(g *globals) *cobra.Command {
	var name string
	var entityType string
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new books directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := g.dir
			if len(args) > 0 {
				dir = args[0]
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			log, err := g.logger(cmd)
			if err != nil {
				return err
			}
			return runInit(cmd.Context(), cmd.OutOrStdout(), log, absDir, name, entityType, !noGit)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&entityType, "entity-type", "llc_single_member", "entity type")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "do not create a git repository")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, log *slog.Logger, dir, name, entityType string, useGit bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	for _, d := range []string{"accounts", "books", "logs", "import", filepath.Join("import", "processed")} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(name, entityType)
	cfg.Git.AutoCommit = useGit
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Creates and migrates the database, then seeds the default tenant's chart.
	a, err := app.New(ctx, cfg, dir, log)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Bootstrap(ctx); err != nil {
		return err
	}
	tenantID := cfg.Tenants[0].ID
	if _, err := a.Accounts.Save(ctx, tenantID, dir); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}

	gitignore := "*.db\n*.db-journal\n*.db-wal\n*.db-shm\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if !useGit {
		fmt.Fprintf(out, "Initialized ledger at %s\n", dir)
		return nil
	}
	if err := gitops.Init(ctx, dir); err != nil {
		return err
	}
	hash, err := gitops.CommitAll(ctx, dir, "init: Initialize "+name, gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail})
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}
	fmt.Fprintf(out, "Initialized ledger at %s (%s)\n", dir, hash)
	return nil
}
