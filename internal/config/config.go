package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"labelagent/internal/item"
)

// Source names accepted in aggregator.authoritative and aggregator.web.
const (
	SourceDiscogs    = "discogs"
	SourceScryfall   = "scryfall"
	SourceBrave      = "brave"
	SourceDuckDuckGo = "duckduckgo"
)

type Server struct {
	Port              string `yaml:"port"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	MaxUploadMB       int    `yaml:"max_upload_mb"`
}

type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Limits are the rate limit, cache and timeout knobs every source shares.
type Limits struct {
	TimeoutSec           int `yaml:"timeout_sec"`
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`
	MinRequestIntervalMS int `yaml:"min_request_interval_ms"`
	Burst                int `yaml:"burst"`
	CacheTTLSeconds      int `yaml:"cache_ttl_sec"`
	CacheMaxItems        int `yaml:"cache_max_items"`
}

func (l Limits) Timeout() time.Duration     { return time.Duration(l.TimeoutSec) * time.Second }
func (l Limits) MinInterval() time.Duration { return time.Duration(l.MinRequestIntervalMS) * time.Millisecond }
func (l Limits) CacheTTL() time.Duration    { return time.Duration(l.CacheTTLSeconds) * time.Second }

type Aggregator struct {
	// Authoritative maps a category name to the source that short-circuits it.
	Authoritative map[string]string `yaml:"authoritative"`
	// Web selects the web fallback: brave or duckduckgo.
	Web     string             `yaml:"web"`
	Weights map[string]float64 `yaml:"weights"`
}

type Discogs struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	PerPage int    `yaml:"per_page"`
	Limits  `yaml:",inline"`
}

type EBay struct {
	Enabled      bool   `yaml:"enabled"`
	AppID        string `yaml:"app_id"`
	CertID       string `yaml:"cert_id"`
	RefreshToken string `yaml:"refresh_token"`
	// Env is PRODUCTION or SANDBOX.
	Env    string `yaml:"env"`
	Limit  int    `yaml:"limit"`
	Limits `yaml:",inline"`
}

func (e EBay) Sandbox() bool { return !strings.EqualFold(e.Env, "PRODUCTION") }

type Brave struct {
	APIKey string `yaml:"api_key"`
	Count  int    `yaml:"count"`
	Suffix string `yaml:"suffix"`
	Limits `yaml:",inline"`
}

type DuckDuckGo struct {
	Limits `yaml:",inline"`
}

type Scryfall struct {
	Limits `yaml:",inline"`
}

type Vision struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	MaxImagePx int    `yaml:"max_image_px"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type Sheets struct {
	WebhookURL string `yaml:"webhook_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type Sandpiper struct {
	Enabled       bool   `yaml:"enabled"`
	BaseURL       string `yaml:"base_url"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	AccountID     string `yaml:"account_id"`
	Booth         string `yaml:"booth"`
	RetryDelaySec int    `yaml:"retry_delay_sec"`
	TimeoutSec    int    `yaml:"timeout_sec"`
}

type Ingest struct {
	InventoryPrefix string `yaml:"inventory_prefix"`
}

type Store struct {
	// DSN selects the MySQL store; empty keeps records in memory.
	DSN string `yaml:"dsn"`
}

type Archive struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`
}

type Config struct {
	Server     Server     `yaml:"server"`
	Log        Log        `yaml:"log"`
	Aggregator Aggregator `yaml:"aggregator"`
	Discogs    Discogs    `yaml:"discogs"`
	EBay       EBay       `yaml:"ebay"`
	Brave      Brave      `yaml:"brave"`
	DuckDuckGo DuckDuckGo `yaml:"duckduckgo"`
	Scryfall   Scryfall   `yaml:"scryfall"`
	Vision     Vision     `yaml:"vision"`
	Sheets     Sheets     `yaml:"sheets"`
	Sandpiper  Sandpiper  `yaml:"sandpiper"`
	Ingest     Ingest     `yaml:"ingest"`
	Store      Store      `yaml:"store"`
	Archive    Archive    `yaml:"archive"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8000", RequestTimeoutSec: 60, MaxUploadMB: 15},
		Log:    Log{Level: "info", Format: "json", Output: "stdout", MaxAgeDays: 14},
		Aggregator: Aggregator{
			Authoritative: map[string]string{"media": SourceDiscogs, "record": SourceDiscogs},
			Web:           SourceBrave,
			Weights:       map[string]float64{"eBay": 0.75, "WebSearch": 0.25},
		},
		Discogs: Discogs{
			Enabled: true,
			PerPage: 10,
			Limits:  Limits{TimeoutSec: 20, MaxRequestsPerMinute: 55, Burst: 5, CacheTTLSeconds: 600, CacheMaxItems: 5000},
		},
		EBay: EBay{
			Enabled: true,
			Env:     "PRODUCTION",
			Limit:   20,
			Limits:  Limits{TimeoutSec: 20, CacheTTLSeconds: 600, CacheMaxItems: 5000},
		},
		Brave: Brave{
			Count:  10,
			Limits: Limits{TimeoutSec: 10, MinRequestIntervalMS: 1000, CacheTTLSeconds: 600, CacheMaxItems: 5000},
		},
		DuckDuckGo: DuckDuckGo{
			Limits: Limits{TimeoutSec: 10, MinRequestIntervalMS: 2000, CacheTTLSeconds: 600, CacheMaxItems: 5000},
		},
		Scryfall: Scryfall{
			Limits: Limits{TimeoutSec: 10, MinRequestIntervalMS: 100, CacheTTLSeconds: 3600, CacheMaxItems: 5000},
		},
		Vision:    Vision{Model: "gpt-4o-mini", MaxImagePx: 1024, TimeoutSec: 60},
		Sheets:    Sheets{TimeoutSec: 20},
		Sandpiper: Sandpiper{BaseURL: "https://app.sandpiperhq.com", RetryDelaySec: 5, TimeoutSec: 20},
		Ingest:    Ingest{InventoryPrefix: "INV"},
		Archive:   Archive{Region: "us-east-1", Prefix: "photos"},
	}
}

// Load reads YAML config from path. If path is empty, config.yaml is used when it
// exists; otherwise defaults apply. ${VAR} references are expanded before parsing
// and environment variables override secrets and select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.RequestTimeoutSec, "REQUEST_TIMEOUT_SEC")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Log.Output, "LOG_OUTPUT")

	setString(&cfg.Discogs.Token, "DISCOGS_TOKEN")
	setString(&cfg.EBay.AppID, "EBAY_CLIENT_ID")
	setString(&cfg.EBay.AppID, "EBAY_APP_ID")
	setString(&cfg.EBay.CertID, "EBAY_CLIENT_SECRET")
	setString(&cfg.EBay.CertID, "EBAY_CERT_ID")
	setString(&cfg.EBay.RefreshToken, "EBAY_REFRESH_TOKEN")
	setString(&cfg.EBay.Env, "EBAY_ENV")
	setString(&cfg.Brave.APIKey, "BRAVE_API_KEY")
	setString(&cfg.Aggregator.Web, "WEB_SEARCH_PROVIDER")

	setString(&cfg.Vision.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Vision.Model, "OPENAI_MODEL")
	setString(&cfg.Sheets.WebhookURL, "APPS_SCRIPT_WEBHOOK")

	setBool(&cfg.Sandpiper.Enabled, "SANDPIPER_ENABLED")
	setString(&cfg.Sandpiper.BaseURL, "SANDPIPER_BASE_URL")
	setString(&cfg.Sandpiper.Username, "SANDPIPER_USERNAME")
	setString(&cfg.Sandpiper.Password, "SANDPIPER_PASSWORD")
	setString(&cfg.Sandpiper.AccountID, "SANDPIPER_ACCOUNT_ID")
	setString(&cfg.Sandpiper.Booth, "SANDPIPER_BOOTH")

	setString(&cfg.Ingest.InventoryPrefix, "INVENTORY_PREFIX")
	setString(&cfg.Store.DSN, "STORE_DSN")
	setString(&cfg.Archive.Bucket, "ARCHIVE_BUCKET")
	setString(&cfg.Archive.Region, "AWS_REGION")
}

// Validate rejects configurations the aggregator cannot run with.
func (c Config) Validate() error {
	var errs []error
	for cat, src := range c.Aggregator.Authoritative {
		if _, err := item.ParseCategory(cat); err != nil {
			errs = append(errs, fmt.Errorf("aggregator.authoritative: %w", err))
		}
		switch strings.ToLower(src) {
		case SourceDiscogs, SourceScryfall:
		default:
			errs = append(errs, fmt.Errorf("aggregator.authoritative[%s]: unknown source %q", cat, src))
		}
	}
	switch strings.ToLower(c.Aggregator.Web) {
	case SourceBrave, SourceDuckDuckGo, "", "none":
	default:
		errs = append(errs, fmt.Errorf("aggregator.web: unknown provider %q", c.Aggregator.Web))
	}
	for name, w := range c.Aggregator.Weights {
		if w < 0 {
			errs = append(errs, fmt.Errorf("aggregator.weights[%s]: negative weight %v", name, w))
		}
	}
	for name, l := range map[string]Limits{
		"discogs":    c.Discogs.Limits,
		"ebay":       c.EBay.Limits,
		"brave":      c.Brave.Limits,
		"duckduckgo": c.DuckDuckGo.Limits,
		"scryfall":   c.Scryfall.Limits,
	} {
		if l.TimeoutSec < 0 || l.MaxRequestsPerMinute < 0 || l.MinRequestIntervalMS < 0 || l.CacheTTLSeconds < 0 {
			errs = append(errs, fmt.Errorf("%s: negative limit", name))
		}
	}
	if c.Server.RequestTimeoutSec <= 0 {
		errs = append(errs, errors.New("server.request_timeout_sec must be positive"))
	}
	return errors.Join(errs...)
}

// AuthoritativeSources resolves aggregator.authoritative to categories.
// Validate must have passed.
func (c Config) AuthoritativeSources() map[item.Category]string {
	out := make(map[item.Category]string, len(c.Aggregator.Authoritative))
	for cat, src := range c.Aggregator.Authoritative {
		if parsed, err := item.ParseCategory(cat); err == nil {
			out[parsed] = strings.ToLower(src)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && x > 0 {
			*dst = x
		}
	}
}

func setBool(dst *bool, key string) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}
