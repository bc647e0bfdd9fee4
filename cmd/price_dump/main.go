package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"labelagent/internal/aggregate"
	"labelagent/internal/config"
	"labelagent/internal/httpx"
	"labelagent/internal/item"
	"labelagent/internal/logger"
	"labelagent/internal/provider"
	"labelagent/internal/sources"
)

type entry struct {
	Query  provider.Query   `json:"query"`
	Result aggregate.Result `json:"result"`
}

func main() {
	var (
		inPath      string
		outPath     string
		cfgPath     string
		category    string
		concurrency int
		timeoutSec  int
		rpm         int
	)
	flag.StringVar(&inPath, "in", "titles.txt", "titles file: one \"title[<TAB>artist[<TAB>category]]\" per line, or a .json array of queries")
	flag.StringVar(&outPath, "out", "prices.json", "output JSON file path")
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.StringVar(&category, "category", "general", "category for lines that do not name one")
	flag.IntVar(&concurrency, "concurrency", 4, "number of parallel lookups")
	flag.IntVar(&timeoutSec, "timeout", 30, "per-lookup timeout seconds")
	flag.IntVar(&rpm, "rpm", 0, "max lookups per minute (0 = unlimited)")
	flag.Parse()

	_ = godotenv.Load()
	log := logger.GetLogger()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if err := log.Configure(cfg.Log.Level, cfg.Log.Format, "stderr", 0); err != nil {
		log.WithError(err).Fatal("logger")
	}
	def, err := item.ParseCategory(category)
	if err != nil {
		log.WithError(err).Fatal("category")
	}

	queries, err := readQueries(inPath, def)
	if err != nil {
		log.WithError(err).Fatal("read queries")
	}
	if len(queries) == 0 {
		log.Fatal("no queries found in input")
	}
	log.WithFields(logger.Fields{"queries": len(queries)}).Info("starting")

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	agg := aggregate.New(
		sources.Build(cfg, httpClient, log.WithComponent("sources")),
		aggregate.WithLogger(log.WithComponent("aggregate")),
	)

	outFile, err := os.Create(outPath)
	if err != nil {
		log.WithError(err).Fatal("create out")
	}
	defer outFile.Close()
	bw := bufio.NewWriterSize(outFile, 1<<20)

	// streamed as {"results":[...]} so partial runs stay inspectable
	_, _ = bw.WriteString("{\"results\":[")
	first := true
	var writeMu sync.Mutex

	limiter := rate.NewLimiter(rate.Inf, 1)
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}

	jobs := make(chan provider.Query, concurrency*2)
	wg := sync.WaitGroup{}
	priced := 0

	worker := func() {
		defer wg.Done()
		for q := range jobs {
			if err := limiter.Wait(context.Background()); err != nil {
				log.WithError(err).Warn("rate limiter")
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
			res := agg.Price(ctx, q)
			cancel()

			raw, err := json.Marshal(entry{Query: q, Result: res})
			if err != nil {
				log.WithError(err).WithFields(logger.Fields{"title": q.Title}).Warn("encode")
				continue
			}
			writeMu.Lock()
			if !first {
				_, _ = bw.WriteString(",")
			} else {
				first = false
			}
			_, _ = bw.Write(raw)
			if res.FinalPrice.Valid {
				priced++
			}
			writeMu.Unlock()
		}
	}

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go worker()
	}
	for _, q := range queries {
		jobs <- q
	}
	close(jobs)
	wg.Wait()

	_, _ = bw.WriteString("]}")
	if err := bw.Flush(); err != nil {
		log.WithError(err).Fatal("flush")
	}
	log.WithFields(logger.Fields{"out": outPath, "queries": len(queries), "priced": priced}).Info("done")
}

// readQueries loads a .json array of queries, or tab-separated lines.
func readQueries(path string, def item.Category) ([]provider.Query, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var raw []struct {
			Title    string `json:"title"`
			Artist   string `json:"artist"`
			Category string `json:"category"`
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		out := make([]provider.Query, 0, len(raw))
		for _, r := range raw {
			q, err := newQuery(r.Title, r.Artist, r.Category, def)
			if err != nil {
				return nil, err
			}
			if q.Title != "" {
				out = append(out, q)
			}
		}
		return out, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []provider.Query
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Split(text, "\t")
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		q, err := newQuery(parts[0], parts[1], parts[2], def)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, q)
	}
	return out, sc.Err()
}

func newQuery(title, artist, category string, def item.Category) (provider.Query, error) {
	c := def
	if strings.TrimSpace(category) != "" {
		var err error
		if c, err = item.ParseCategory(category); err != nil {
			return provider.Query{}, err
		}
	}
	return provider.Query{Title: strings.TrimSpace(title), Artist: strings.TrimSpace(artist), Category: c}, nil
}
