package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/jawher/mow.cli"

	"pricewatch/pkg/alert"
	"pricewatch/pkg/analyze"
	"pricewatch/pkg/config"
	"pricewatch/pkg/monitor"
	"pricewatch/pkg/scrape"
	"pricewatch/pkg/store"
	"pricewatch/pkg/web"
)

func main() {
	app := cli.App("pricewatch", "monitor product prices across online shops")

	var (
		cfgPath   = app.StringOpt("c config", "config/settings.json", "path to the settings file")
		storeKind = app.StringOpt("store", "postgres", "store backend: postgres or memory")
	)

	app.Command("scrape", "run a single scraping pass", func(cmd *cli.Cmd) {
		verbose := cmd.BoolOpt("v verbose", false, "print per-URL outcomes")

		cmd.Action = func() {
			env := mustSetup(*cfgPath, *storeKind)
			defer env.close()

			res, err := env.mon.RunOnce(context.Background())
			if err != nil {
				log.Printf("pass finished with error: %v", err)
			}
			printPass(res, *verbose)
		}
	})

	app.Command("schedule", "run passes on an interval until interrupted", func(cmd *cli.Cmd) {
		interval := cmd.IntOpt("interval", 3600, "seconds between passes")

		cmd.Action = func() {
			env := mustSetup(*cfgPath, *storeKind)
			defer env.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env.mon.RunLoop(ctx, time.Duration(*interval)*time.Second)
		}
	})

	app.Command("report", "print a price report", func(cmd *cli.Cmd) {
		days := cmd.IntOpt("days", 0, "days of history to include (default from settings)")

		cmd.Action = func() {
			env := mustSetup(*cfgPath, *storeKind)
			defer env.close()

			d := *days
			if d <= 0 {
				d = env.cfg.Report.Days
			}
			report, err := env.analyzer.BuildReport(context.Background(), d, env.cfg.Report.NoiseBand)
			if err != nil {
				log.Println(err)
				cli.Exit(1)
			}
			printReport(report)
		}
	})

	app.Command("dashboard", "serve the price report over HTTP", func(cmd *cli.Cmd) {
		addr := cmd.StringOpt("addr", ":8080", "listen address")

		cmd.Action = func() {
			env := mustSetup(*cfgPath, *storeKind)
			defer env.close()

			http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				report, err := env.analyzer.BuildReport(r.Context(), env.cfg.Report.Days, env.cfg.Report.NoiseBand)
				if err != nil {
					log.Println(err)
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				if err := web.RenderReport(w, web.ReportContext{Title: "Price Report", Report: report}); err != nil {
					log.Println(err)
				}
			})

			log.Printf("dashboard listening on %s", *addr)
			if err := http.ListenAndServe(*addr, nil); err != nil {
				log.Println(err)
				cli.Exit(1)
			}
		}
	})

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type env struct {
	cfg      *config.Config
	st       store.Store
	mon      *monitor.Monitor
	analyzer *analyze.Analyzer
	close    func()
}

func mustSetup(cfgPath, storeKind string) *env {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Println(err)
		cli.Exit(1)
	}

	var (
		st      store.Store
		cleanup = func() {}
	)
	switch storeKind {
	case "memory":
		st = store.NewMemory()
	case "postgres":
		pg, err := store.NewPostgres(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Println(err)
			cli.Exit(1)
		}
		st = pg
		cleanup = func() { pg.Close() }
	default:
		log.Printf("unknown store backend %q", storeKind)
		cli.Exit(1)
	}

	extractor, err := scrape.NewExtractor(scrape.Config{
		Delay:     cfg.Delay(),
		Timeout:   cfg.Timeout(),
		UserAgent: cfg.Scraping.UserAgent,
	})
	if err != nil {
		cleanup()
		log.Println(err)
		cli.Exit(1)
	}

	sinks := []alert.Sink{alert.LogSink{}}
	if cfg.Alerts.Enabled && cfg.Alerts.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookSink(cfg.Alerts.WebhookURL, cfg.Timeout()))
	}

	return &env{
		cfg:      cfg,
		st:       st,
		mon:      monitor.New(cfg, st, extractor, sinks...),
		analyzer: analyze.New(st),
		close:    cleanup,
	}
}

func printPass(res *monitor.PassResult, verbose bool) {
	if res == nil {
		return
	}
	fmt.Printf("pass %s: %d ok, %d errors, %d total in %s\n",
		res.ID, res.Success, res.Errors, res.Total, res.Duration.Round(time.Millisecond))
	if !verbose {
		return
	}
	for _, r := range res.Results {
		if r.Status == monitor.StatusSuccess {
			fmt.Printf("  ok    %-20s %-15s %8.2f  %s\n", r.Product, r.Store, r.Price, r.URL)
		} else {
			fmt.Printf("  error %-20s %-15s %8s  %s\n", r.Product, r.Store, "-", r.URL)
		}
	}
}

func printReport(report *analyze.Report) {
	fmt.Printf("Price report (%s), generated %s\n\n",
		report.Period, report.GeneratedAt.Format("2006-01-02 15:04:05"))

	for _, p := range report.Products {
		marker := " "
		if p.TargetMet {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, p.Name)
		fmt.Printf("    current %.2f  range %.2f - %.2f  avg %.2f\n", p.CurrentPrice, p.MinPrice, p.MaxPrice, p.AvgPrice)
		fmt.Printf("    trend %s, %d points across %d store(s)\n", p.Trend, p.DataPoints, len(p.Stores))
	}

	s := report.Statistics
	fmt.Printf("\n%d products, %d targets met, %d data points, avg spread %.2f\n",
		s.TotalProducts, s.TargetsMet, s.TotalDataPoints, s.AvgSpread)
}
