package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"brainpulse/internal/catalog"
	"brainpulse/internal/config"
	"brainpulse/internal/database"
	"brainpulse/internal/logging"
	"brainpulse/internal/models"
	"brainpulse/internal/repository"
	"brainpulse/internal/scheduler"
	"brainpulse/internal/security"
	"brainpulse/internal/service"
)

type rootOptions struct {
	dbType string
	dbPath string
	dbURL  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "maintenance",
		Short:         "BrainPulse maintenance tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			return logging.Setup(cfg.LogLevel, cfg.LogFormat)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dbType, "db-type", "", "database type: sqlite, postgres or mysql (default from DB_TYPE)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db-path", "", "SQLite database path (default from DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.dbURL, "db-url", "", "PostgreSQL or MySQL connection URL (default from DATABASE_URL)")

	cmd.AddCommand(
		newPruneUsageCmd(opts),
		newClearHistoryCmd(opts),
		newCleanupCmd(opts),
		newExportCmd(opts),
		newVerifyCorpusCmd(),
	)
	return cmd
}

// openDB connects with flag overrides applied and runs migrations
func (o *rootOptions) openDB(ctx context.Context) (*database.DB, *config.Config, error) {
	cfg := config.Load()
	if o.dbType != "" {
		cfg.DatabaseType = o.dbType
	}
	if o.dbPath != "" {
		cfg.DatabasePath = o.dbPath
	}
	if o.dbURL != "" {
		cfg.DatabaseURL = o.dbURL
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, cfg, nil
}

func newPruneUsageCmd(opts *rootOptions) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune-usage",
		Short: "Keep only the newest usage records per user and content type",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cfg, err := opts.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if !cmd.Flags().Changed("keep") {
				keep = cfg.UsageRetention
			}
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1")
			}

			tracker := service.NewExclusionTracker(repository.NewUsageRepository(db))
			n, err := tracker.Prune(ctx, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d usage records (keeping %d per user)\n", n, keep)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 10, "records to keep per user (default from USAGE_RETENTION)")
	return cmd
}

func newClearHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		userID      int64
		contentType string
	)
	cmd := &cobra.Command{
		Use:   "clear-history",
		Short: "Delete a user's content usage history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID < 1 {
				return fmt.Errorf("--user is required")
			}
			ctx := cmd.Context()
			db, _, err := opts.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			tracker := service.NewExclusionTracker(repository.NewUsageRepository(db))
			n, err := tracker.ClearHistory(ctx, userID, contentType)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d %s usage records for user %d\n", n, contentType, userID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&contentType, "content-type", models.ContentTypeWords, "content type")
	return cmd
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Run every scheduled maintenance job once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cfg, err := opts.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			authService := service.NewAuthService(repository.NewUserRepository(db), security.NewTokenIssuer(cfg.JWTSecret), nil, cfg.SessionDuration)
			tracker := service.NewExclusionTracker(repository.NewUsageRepository(db))

			schedCfg := scheduler.DefaultConfig()
			schedCfg.UsageRetention = cfg.UsageRetention
			jobs := scheduler.New(schedCfg, tracker, authService, nil)
			if err := jobs.RunAll(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ran %d jobs\n", len(jobs.Jobs()))
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export users, modules, sessions and progress to JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, err := opts.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			backups := service.NewBackupService(repository.NewUserRepository(db), repository.NewTrainingRepository(db))

			if output == "-" {
				return backups.ExportToWriter(ctx, cmd.OutOrStdout())
			}
			if output == "" {
				output = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
			}
			return exportToFile(ctx, backups, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default: backup_YYYYMMDD_HHMMSS.json)")
	return cmd
}

func exportToFile(ctx context.Context, backups *service.BackupService, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := backups.ExportToWriter(ctx, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	log.WithField("file", path).Info("Export complete")
	return nil
}

func newVerifyCorpusCmd() *cobra.Command {
	var corpusPath string
	cmd := &cobra.Command{
		Use:   "verify-corpus",
		Short: "Load every corpus tier and report its size",
		RunE: func(cmd *cobra.Command, args []string) error {
			var fsys fs.FS = catalog.EmbeddedFS()
			if corpusPath != "" {
				fsys = os.DirFS(corpusPath)
			}
			return verifyCorpus(cmd.Context(), catalog.New(fsys), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "corpus directory (default: embedded corpus)")
	return cmd
}

func verifyCorpus(ctx context.Context, c *catalog.Catalog, out io.Writer) error {
	var failed int
	for _, tier := range catalog.Tiers {
		words, err := c.Load(ctx, tier)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%-10s FAIL %v\n", tier, err)
			continue
		}
		fmt.Fprintf(out, "%-10s ok   %d words\n", tier, len(words))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d corpus tiers failed to load", failed, len(catalog.Tiers))
	}
	return nil
}
