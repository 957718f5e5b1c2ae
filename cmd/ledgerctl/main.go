package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/odyssey-erp/odyssey-ledger/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	root := cli.NewRootCommand(cli.Env{
		OpenJobs: func() (*cli.JobsCLI, error) {
			return cli.NewJobsCLI(cfg.Queue()), nil
		},
		OpenLedger: func(ctx context.Context) (cli.LedgerTools, func(), error) {
			pool, err := db.New(ctx, cfg.PGDSN, cfg.Postgres("ledgerctl")...)
			if err != nil {
				return cli.LedgerTools{}, nil, err
			}
			rpt := reports.NewService(reports.NewRepository(pool))
			job := jobs.NewGLIntegrityJob(accounting.NewRepository(pool), rpt, logger, nil)
			return cli.LedgerTools{Reports: rpt, Integrity: job}, pool.Close, nil
		},
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
