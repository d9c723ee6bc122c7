package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/onboarding-api/internal/catalog"
	"github.com/noah-isme/onboarding-api/pkg/config"
	"github.com/noah-isme/onboarding-api/pkg/database"
	"github.com/noah-isme/onboarding-api/pkg/logger"
)

// @title Onboarding Checklist API
// @version 1.0.0
// @description HR onboarding checklists with document and assessment gating.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "onboarding-api",
		Short:         "Employee onboarding checklist service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newCatalogCommand())
	return root
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logr, err := bootstrap()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.Migrate(ctx, db, logr)
			if err != nil {
				return err
			}
			logr.Info("migrations complete", zap.Ints("applied", applied))
			return nil
		},
	}
}

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect onboarding template catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a catalog file, or the embedded catalog when no path is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				c   *catalog.Static
				err error
			)
			if len(args) == 1 {
				c, err = catalog.LoadFile(args[0])
			} else {
				c, err = catalog.Embedded()
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "catalog %s: %d default items\n", c.Version(), len(c.Default()))
			for _, role := range c.Roles() {
				fmt.Fprintf(out, "  role %s: %d items\n", role, len(c.RoleOverlay(role)))
			}
			for _, dept := range c.Departments() {
				fmt.Fprintf(out, "  department %s: %d items\n", dept, len(c.DepartmentOverlay(dept)))
			}
			return nil
		},
	})
	return cmd
}
