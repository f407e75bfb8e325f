package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"otpboard/api/internal/config"
	"otpboard/api/internal/logging"
	"otpboard/api/internal/model"
	"otpboard/api/internal/store"
	"otpboard/api/internal/store/memory"
	"otpboard/api/internal/store/postgres"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	v   *viper.Viper
	cfg config.Config
	log *logrus.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "otpboard",
		Short:         "OTP-gated login and Kanban board API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}

			a.v = config.New()
			for key, flag := range map[string]string{
				"port":         "port",
				"database_url": "database-url",
				"log.level":    "log-level",
				"log.format":   "log-format",
				"boards":       "seed-board",
			} {
				if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}

			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg

			a.log, err = logging.New(cfg.Log.Level, cfg.Log.Format)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.String("env-file", ".env", "dotenv file to load before reading the environment")
	pf.Int("port", 3000, "HTTP listen port")
	pf.String("database-url", "", "postgres connection string; empty uses the in-memory store")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "json", "log format (json or text)")
	pf.StringSlice("seed-board", nil, "board to create at startup as id:title (repeatable)")

	root.AddCommand(newServeCmd(a), newMigrateCmd(a), newBoardCmd(a))
	return root
}

// openStore returns the postgres store when a database URL is configured and
// the in-memory store otherwise, with the configured boards created. migrate
// applies pending migrations first.
func (a *app) openStore(ctx context.Context, migrate bool) (store.Store, func(), error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("using memory store")
		st := memory.NewStore()
		if err := a.seedBoards(ctx, st); err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}

	pg, err := postgres.NewStore(a.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres store: %w", err)
	}
	if migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
	}
	if err := a.seedBoards(ctx, pg); err != nil {
		pg.Close()
		return nil, nil, err
	}
	a.log.Info("using postgres store")
	return pg, pg.Close, nil
}

// seedBoards creates the configured boards. Existing boards are left as they are.
func (a *app) seedBoards(ctx context.Context, st store.BoardStore) error {
	seeds, err := a.cfg.SeedBoards()
	if err != nil {
		return err
	}
	for _, seed := range seeds {
		_, err := st.CreateBoard(ctx, model.Board{BoardID: seed.ID, Title: seed.Title})
		switch {
		case err == nil:
			a.log.WithField("board_id", seed.ID).Info("board created")
		case errors.Is(err, store.ErrConflict):
			// Already provisioned.
		default:
			return fmt.Errorf("seed board %s: %w", seed.ID, err)
		}
	}
	return nil
}
