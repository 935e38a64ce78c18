package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redmonkez12/fitcoach-api/cmd/fitcoachctl/ui"
	"github.com/redmonkez12/fitcoach-api/internal/config"
	"github.com/redmonkez12/fitcoach-api/internal/database"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		ui.PrintError(os.Stderr, err.Error())
		os.Exit(1)
	}

	e := &env{
		openStore: func(ctx context.Context) (userStore, func(), error) {
			sqlDB, err := database.Open(ctx, cfg.Database.ConnectionString())
			if err != nil {
				return nil, nil, err
			}
			return user.NewRepository(database.NewBunDB(sqlDB)), func() { sqlDB.Close() }, nil
		},
		migrate: func(ctx context.Context) error {
			sqlDB, err := database.Open(ctx, cfg.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return database.Migrate(sqlDB)
		},
		confirm:       ui.Confirm,
		trialDuration: cfg.Auth.TrialDuration,
		now:           time.Now,
	}

	root := newRootCmd(e)
	if err := root.ExecuteContext(context.Background()); err != nil {
		ui.PrintError(os.Stderr, fmt.Sprint(err))
		os.Exit(1)
	}
}
