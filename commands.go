package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"pos_ledger/api"
	"pos_ledger/internal/calendar"
	"pos_ledger/internal/config"
	"pos_ledger/internal/currency"
	"pos_ledger/internal/localstore"
	"pos_ledger/internal/pos"
	"pos_ledger/internal/remote"
	"pos_ledger/internal/remotesync"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *pos.Store
	// closeRemote releases the remote backend, if any.
	closeRemote func()
}

// openApp loads the configuration and opens the store. withRemote selects
// whether the configured remote backend is attached.
func openApp(c *cli.Context, withRemote bool) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	loc := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone: %w", err)
		}
	}

	rates, err := currency.NewProvider(cfg.Fallback(), cfg.RateSourceURL, logger)
	if err != nil {
		return nil, err
	}
	files, err := localstore.NewFileStore(cfg.DataFile)
	if err != nil {
		return nil, err
	}

	insertPolicy, err := remotesync.ParseInsertPolicy(cfg.InsertFailure)
	if err != nil {
		return nil, err
	}
	updatePolicy, err := remotesync.ParseUpdatePolicy(cfg.UpdateFailure)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, closeRemote: func() {}}
	var backend remotesync.Remote
	if withRemote && cfg.RemoteConfigured() {
		switch cfg.RemoteKind {
		case config.RemoteAction:
			backend = remote.NewActionClient(cfg.RemoteURL, cfg.RemoteAPIKey, logger)
		case config.RemotePostgres:
			pg, err := remote.NewPostgresStore(c.Context, cfg.DatabaseURL, logger)
			if err != nil {
				return nil, err
			}
			backend = pg
			a.closeRemote = pg.Close
		}
	} else if withRemote {
		logger.Info("remote backend not configured, running on local storage")
	}

	a.store, err = pos.Open(pos.Options{
		Logger:   logger,
		Rates:    rates,
		Remote:   backend,
		Policy:   remotesync.Policy{OnInsertFailure: insertPolicy, OnUpdateFailure: updatePolicy},
		Files:    files,
		Location: loc,
	})
	if err != nil {
		a.closeRemote()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	a.store.Close()
	a.closeRemote()
	_ = a.logger.Sync()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log-level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run the HTTP API",
	Action: func(c *cli.Context) error {
		a, err := openApp(c, true)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		// connectivity problems only degrade to offline mode
		if err := a.store.Start(ctx); err != nil {
			a.logger.Warn("starting offline", zap.Error(err))
		}
		if _, err := a.store.RefreshRate(ctx); err != nil {
			a.logger.Warn("using stored exchange rate", zap.Stringer("rate", a.store.Rate().Rate), zap.Error(err))
		}

		r := gin.Default()
		api.InitRoutes(r, a.store, a.cfg.LocalCurrency, a.logger)
		srv := &http.Server{Addr: a.cfg.ListenAddress, Handler: r}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("listening", zap.String("address", a.cfg.ListenAddress))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("error trying to start server: %w", err)
			}
		case <-ctx.Done():
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
		}
		return nil
	},
}

var reportCommand = &cli.Command{
	Name:  "report",
	Usage: "print the cash cut of a day range",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "start", Usage: "first day, YYYY-MM-DD (default today)"},
		&cli.StringFlag{Name: "end", Usage: "last day, YYYY-MM-DD (default start)"},
	},
	Action: func(c *cli.Context) error {
		a, err := openApp(c, false)
		if err != nil {
			return err
		}
		defer a.close()

		start := a.store.Today()
		if s := c.String("start"); s != "" {
			if start, err = calendar.ParseDay(s); err != nil {
				return err
			}
		}
		end := start
		if s := c.String("end"); s != "" {
			if end, err = calendar.ParseDay(s); err != nil {
				return err
			}
		}

		report, err := a.store.Report(start, end)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Cash cut %s to %s\n\n", report.StartDay, report.EndDay)
		fmt.Fprintln(w, "METHOD\tSALES\tAMOUNT\tUSD")
		for _, b := range report.CashCut {
			code := currency.USD
			if b.Local {
				code = a.cfg.LocalCurrency
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", b.Method, b.Count,
				currency.Format(b.Amount, code), currency.Format(b.USD, currency.USD))
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Revenue\t%d\t\t%s\n", report.SaleCount, currency.Format(report.TotalRevenue, currency.USD))
		fmt.Fprintf(w, "Expenses\t%d\t\t%s\n", report.ExpenseCount, currency.Format(report.TotalExpenses, currency.USD))
		fmt.Fprintf(w, "  of which losses\t\t\t%s\n", currency.Format(report.TotalLosses, currency.USD))
		fmt.Fprintf(w, "Net profit\t\t\t%s\n", currency.Format(report.NetProfit, currency.USD))
		return w.Flush()
	},
}

var exportCommand = &cli.Command{
	Name:      "export",
	Usage:     "write a backup of the local state",
	ArgsUsage: "[file]",
	Action: func(c *cli.Context) error {
		a, err := openApp(c, false)
		if err != nil {
			return err
		}
		defer a.close()

		var w io.Writer = c.App.Writer
		if path := c.Args().First(); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return a.store.Export(w)
	},
}

var importCommand = &cli.Command{
	Name:      "import",
	Usage:     "replace the local state with a backup",
	ArgsUsage: "<file>",
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.Exit("a backup file is required", 2)
		}
		a, err := openApp(c, false)
		if err != nil {
			return err
		}
		defer a.close()

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := a.store.Import(f); err != nil {
			return err
		}
		snap := a.store.Snapshot()
		fmt.Fprintf(c.App.Writer, "imported %d products, %d sales, %d expenses\n",
			len(snap.Products), len(snap.Sales), len(snap.Expenses))
		return nil
	},
}

var rateCommand = &cli.Command{
	Name:  "rate",
	Usage: "show or change the exchange rate",
	Action: func(c *cli.Context) error {
		return withStore(c, func(a *app) error {
			printRate(c.App.Writer, a)
			return nil
		})
	},
	Subcommands: []*cli.Command{
		{
			Name:  "refresh",
			Usage: "fetch the rate from the quote source",
			Action: func(c *cli.Context) error {
				return withStore(c, func(a *app) error {
					if _, err := a.store.RefreshRate(c.Context); err != nil {
						return err
					}
					printRate(c.App.Writer, a)
					return nil
				})
			},
		},
		{
			Name:      "set",
			Usage:     "override the rate",
			ArgsUsage: "<local units per USD>",
			Action: func(c *cli.Context) error {
				rate, err := decimal.NewFromString(c.Args().First())
				if err != nil {
					return cli.Exit("the rate must be a number", 2)
				}
				return withStore(c, func(a *app) error {
					if err := a.store.SetRate(rate); err != nil {
						return err
					}
					printRate(c.App.Writer, a)
					return nil
				})
			},
		},
	},
}

func withStore(c *cli.Context, fn func(a *app) error) error {
	a, err := openApp(c, false)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func printRate(w io.Writer, a *app) {
	q := a.store.Rate()
	fmt.Fprintf(w, "1 USD = %s %s (%s, %s)\n", q.Rate, a.cfg.LocalCurrency, q.Origin, q.UpdatedAt.Format(time.RFC3339))
}
