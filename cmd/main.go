package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kyz7/vanilla/internal/config"
	"github.com/Kyz7/vanilla/internal/database"
	"github.com/Kyz7/vanilla/internal/logger"
	"github.com/Kyz7/vanilla/internal/role"
	"github.com/Kyz7/vanilla/internal/server"
	"github.com/go-extras/cobraflags"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	addrFlag     = "addr"
	dirFlag      = "dir"
	rollbackFlag = "rollback"
)

var serveFlags = map[string]cobraflags.Flag{
	addrFlag: &cobraflags.StringFlag{
		Name:  addrFlag,
		Value: "",
		Usage: "Listen address; overrides SERVER_ADDR",
	},
}

var migrateFlags = map[string]cobraflags.Flag{
	dirFlag: &cobraflags.StringFlag{
		Name:  dirFlag,
		Value: "",
		Usage: "Directory with *.sql migrations; overrides MIGRATIONS_DIR",
	},
	rollbackFlag: &cobraflags.StringFlag{
		Name:  rollbackFlag,
		Value: "",
		Usage: "Roll back the given migration version instead of migrating",
	},
}

func main() {
	root := &cobra.Command{
		Use:           "vanilla",
		Short:         "Convention-driven CRUD API with access control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newInitDataCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration, the logger and the database.
func bootstrap() (*config.Config, zerolog.Logger, *gorm.DB, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("configuration error: %w", err)
	}

	log, err := logger.FromConfig(cfg).Make()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("logger: %w", err)
	}

	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, log, nil, fmt.Errorf("database connection failed: %w", err)
	}
	return cfg, log, db, nil
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate, seed the default roles and start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			if addr := serveFlags[addrFlag].GetString(); addr != "" {
				cfg.ServerAddr = addr
			}

			if err := database.Migrate(db, log); err != nil {
				return err
			}
			if err := seed(cmd.Context(), db, log); err != nil {
				return err
			}

			srv, err := server.New(cfg, db, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				log.Info().Msg("Shutting down")
				if err := srv.Shutdown(); err != nil {
					log.Error().Err(err).Msg("Shutdown failed")
				}
			}()

			log.Info().
				Str("addr", cfg.ServerAddr).
				Str("user_mode", cfg.UserMode).
				Bool("user_action_tracking", cfg.TrackActions).
				Msg("🚀 Server starting")
			return srv.Listen()
		},
	}
	cobraflags.RegisterMap(cmd, serveFlags)
	return cmd
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and apply pending SQL migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			dir := cfg.MigrationsDir
			if d := migrateFlags[dirFlag].GetString(); d != "" {
				dir = d
			}

			if version := migrateFlags[rollbackFlag].GetString(); version != "" {
				return database.RollbackMigration(db, dir, version, log)
			}

			if err := database.Migrate(db, log); err != nil {
				return err
			}
			return database.RunMigrations(db, dir, log)
		},
	}
	cobraflags.RegisterMap(cmd, migrateFlags)
	return cmd
}

func newInitDataCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-default-data",
		Short: "Insert the default roles if they are absent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			if err := database.Migrate(db, log); err != nil {
				return err
			}
			return seed(cmd.Context(), db, log)
		},
	}
}

func seed(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	inserted, err := role.SeedDefaultRoles(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}
	log.Info().Int("inserted", inserted).Msg("✅ Default roles seeded")
	return nil
}
