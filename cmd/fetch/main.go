package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"labelagent/internal/aggregate"
	"labelagent/internal/config"
	"labelagent/internal/httpx"
	"labelagent/internal/item"
	"labelagent/internal/logger"
	"labelagent/internal/sources"
)

func main() {
	var (
		title      string
		artist     string
		category   string
		configPath string
		timeout    int
	)
	flag.StringVar(&title, "title", "", "item title")
	flag.StringVar(&artist, "artist", "", "artist, for media and records")
	flag.StringVar(&category, "category", "general", "general|media|card|comic|record|misc")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.IntVar(&timeout, "timeout", 30, "overall timeout seconds")
	flag.Parse()

	_ = godotenv.Load()
	log := logger.GetLogger()

	if title == "" {
		log.Fatal("-title is required")
	}
	c, err := item.ParseCategory(category)
	if err != nil {
		log.WithError(err).Fatal("category")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if err := log.Configure(cfg.Log.Level, cfg.Log.Format, "stderr", 0); err != nil {
		log.WithError(err).Fatal("logger")
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	agg := aggregate.New(
		sources.Build(cfg, httpClient, log.WithComponent("sources")),
		aggregate.WithLogger(log.WithComponent("aggregate")),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()
	res := agg.GetBestPrice(ctx, title, artist, c)

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
