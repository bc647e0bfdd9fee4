package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"labelagent/internal/aggregate"
	"labelagent/internal/archive"
	"labelagent/internal/config"
	"labelagent/internal/httpx"
	"labelagent/internal/ingest"
	"labelagent/internal/logger"
	"labelagent/internal/metrics"
	"labelagent/internal/sandpiper"
	"labelagent/internal/sheets"
	"labelagent/internal/sources"
	"labelagent/internal/store"
	"labelagent/internal/vision"
)

func main() {
	_ = godotenv.Load()
	log := logger.GetLogger()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if err := log.Configure(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.MaxAgeDays); err != nil {
		log.WithError(err).Fatal("logger")
	}
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newAPI(ctx, cfg, log.WithComponent("server"))
	if err != nil {
		log.WithError(err).Fatal("startup")
	}

	mux := a.routes()
	mux.Handle("GET /metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withMetrics(withJSONHeaders(withGzip(recoverPanic(a.log, limitBody(a.maxUpload, mux))))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      a.timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		a.log.WithFields(logger.Fields{"port": cfg.Server.Port}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Fatal("server")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// newAPI wires every collaborator named in cfg. Optional collaborators whose
// configuration is missing are left out with a warning.
func newAPI(ctx context.Context, cfg config.Config, log *logger.Entry) (*api, error) {
	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	httpClient := httpx.New(timeout)

	agg := aggregate.New(
		sources.Build(cfg, httpClient, logger.GetLogger().WithComponent("sources")),
		aggregate.WithLogger(logger.GetLogger().WithComponent("aggregate")),
	)

	var st store.Store = store.NewMemory()
	if cfg.Store.DSN != "" {
		g, err := store.OpenMySQL(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		st = g
	}

	if cfg.Vision.APIKey == "" {
		log.Warn("OPENAI_API_KEY not set; /ingest will fail")
	}
	extractor := vision.NewOpenAI(cfg.Vision.APIKey,
		&http.Client{Timeout: time.Duration(cfg.Vision.TimeoutSec) * time.Second},
		vision.WithModel(cfg.Vision.Model),
		vision.WithMaxImagePx(cfg.Vision.MaxImagePx),
	)

	svc := ingest.New(extractor, st, ingest.WithLogger(logger.GetLogger().WithComponent("ingest")))
	svc.Aggregator = agg
	svc.InventoryPrefix = cfg.Ingest.InventoryPrefix

	if cfg.Sheets.WebhookURL != "" {
		svc.Sheets = sheets.NewClient(cfg.Sheets.WebhookURL,
			sheets.WithHTTPClient(httpClient.Doer()),
			sheets.WithTimeout(time.Duration(cfg.Sheets.TimeoutSec)*time.Second),
		)
	} else {
		log.Warn("APPS_SCRIPT_WEBHOOK not set; commits are not appended to the sheet")
	}

	if cfg.Sandpiper.Enabled {
		svc.Barcodes = sandpiper.NewClient(
			sandpiper.Account{
				Username:  cfg.Sandpiper.Username,
				Password:  cfg.Sandpiper.Password,
				AccountID: cfg.Sandpiper.AccountID,
				Booth:     cfg.Sandpiper.Booth,
			},
			sandpiper.WithBaseURL(cfg.Sandpiper.BaseURL),
			sandpiper.WithHTTPClient(httpClient.Doer()),
			sandpiper.WithRetryDelay(time.Duration(cfg.Sandpiper.RetryDelaySec)*time.Second),
			sandpiper.WithTimeout(time.Duration(cfg.Sandpiper.TimeoutSec)*time.Second),
		)
	}

	if cfg.Archive.Bucket != "" {
		arc, err := archive.NewS3(ctx, cfg.Archive.Bucket, cfg.Archive.Region, cfg.Archive.Prefix)
		if err != nil {
			return nil, err
		}
		svc.Archive = arc
	}

	return &api{
		pricer:    agg,
		ingest:    svc,
		store:     st,
		timeout:   timeout,
		maxUpload: int64(cfg.Server.MaxUploadMB) << 20,
		log:       log,
	}, nil
}
