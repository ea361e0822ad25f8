// Command pricewatch is the medication price collection service.
//
// Usage:
//
//	pricewatch -config pricewatch.yaml       # serve the trigger API
//	pricewatch -collect CRUZ_VERDE           # one collection pass and exit
//	pricewatch -collect all                  # all chains, then exit
//	pricewatch -check-alerts                 # one alert pass and exit
//	pricewatch -sync-minsal                  # seed pharmacies from Farmanet
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pharmacheck/pricewatch/alert"
	"github.com/pharmacheck/pricewatch/api"
	"github.com/pharmacheck/pricewatch/config"
	"github.com/pharmacheck/pricewatch/ingest"
	"github.com/pharmacheck/pricewatch/minsal"
	"github.com/pharmacheck/pricewatch/notify"
	"github.com/pharmacheck/pricewatch/scrape"
	"github.com/pharmacheck/pricewatch/store"
)

func main() {
	configPath := flag.String("config", "", "path to pricewatch.yaml")
	collect := flag.String("collect", "", "run one collection pass for a chain (or \"all\") and exit")
	checkAlerts := flag.Bool("check-alerts", false, "run one alert check and exit")
	syncMinsal := flag.Bool("sync-minsal", false, "seed branch records from the Farmanet directory and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *collect, *checkAlerts, *syncMinsal); err != nil {
		logger.Error("pricewatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, collect string, checkAlerts, syncMinsal bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	st := store.New(db)

	reg := scrape.NewRegistry()
	reg.Register(scrape.NewCruzVerde(logger))
	reg.Register(scrape.NewSalcobrand(logger))
	reg.Register(scrape.NewAhumada(logger))
	reg.Register(scrape.NewSimilares(logger))

	orch := ingest.NewOrchestrator(reg, st, ingest.NewPersister(st, logger), logger)
	opts := scrape.Options{Delay: cfg.Collection.Delay(), Headful: cfg.Collection.Headful}

	dispatcher := buildDispatcher(cfg, logger)
	engine := alert.NewEngine(st, dispatcher, logger)

	switch {
	case collect != "":
		chains := scrape.AllChains()
		if collect != "all" {
			chain, err := scrape.ParseChain(collect)
			if err != nil {
				return err
			}
			chains = []scrape.Chain{chain}
		}
		reports := orch.Run(ctx, chains, cfg.Collection.Queries, opts)
		for chain, rep := range reports {
			if rep.Err != nil {
				logger.Error("pricewatch: chain failed", "chain", chain, "error", rep.Err)
				continue
			}
			logger.Info("pricewatch: chain done", "chain", chain, "inserted", rep.Inserted, "errors", rep.Errors)
		}
		return nil

	case checkAlerts:
		rep, err := engine.Check(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("checked %d alerts, fired %d\n", rep.Total, rep.Fired)
		return nil

	case syncMinsal:
		fn := minsal.NewFarmanet(minsal.FarmanetConfig{
			BaseURL:      cfg.Minsal.FarmanetBaseURL,
			TokenURL:     cfg.Minsal.FarmanetTokenURL,
			ClientID:     os.Getenv("MINSAL_CLIENT_ID"),
			ClientSecret: os.Getenv("MINSAL_CLIENT_SECRET"),
		}, logger)
		matched, skipped, err := fn.SyncPharmacies(ctx, st)
		if err != nil {
			return err
		}
		fmt.Printf("seeded %d branches, skipped %d entries\n", matched, skipped)
		return nil
	}

	srv := api.NewServer(st, orch, engine, cfg.Collection.Queries, opts, os.Getenv("CRON_SECRET"), logger)
	return srv.Serve(ctx, cfg.Addr)
}

// buildDispatcher wires the notification channels that have credentials
// in the environment. Missing credentials disable a channel, they never
// stop the service.
func buildDispatcher(cfg *config.Config, logger *slog.Logger) *notify.Dispatcher {
	var email notify.EmailSender
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		email = notify.NewSendGridSender(key, cfg.Email.FromName, cfg.Email.FromAddr, cfg.BaseURL)
	} else {
		logger.Warn("pricewatch: SENDGRID_API_KEY unset, email alerts disabled")
	}

	var push notify.PushSender
	pub, priv := os.Getenv("VAPID_PUBLIC_KEY"), os.Getenv("VAPID_PRIVATE_KEY")
	if pub != "" && priv != "" {
		push = notify.NewWebPushSender(pub, priv, cfg.Push.Subscriber)
	} else {
		logger.Warn("pricewatch: VAPID keys unset, push alerts disabled")
	}

	return notify.NewDispatcher(email, push, cfg.BaseURL, logger)
}
