// Package ingest turns a photo into a priced draft and a draft into a
// committed inventory record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"labelagent/internal/aggregate"
	"labelagent/internal/item"
	"labelagent/internal/logger"
	"labelagent/internal/metrics"
	"labelagent/internal/money"
	"labelagent/internal/pricing"
	"labelagent/internal/sandpiper"
	"labelagent/internal/store"
	"labelagent/internal/vision"
)

var (
	ErrDraftNotFound    = errors.New("draft not found")
	ErrAlreadyCommitted = errors.New("draft already committed")
)

// Pricer is satisfied by *aggregate.Aggregator.
type Pricer interface {
	GetBestPrice(ctx context.Context, title, artist string, category item.Category) aggregate.Result
}

// Sheet receives committed rows.
type Sheet interface {
	AppendRow(ctx context.Context, cat item.Category, fields item.Fields) (map[string]any, error)
}

// Barcoder mints a shelf barcode for an inventory item.
type Barcoder interface {
	CreateItemAndBarcode(ctx context.Context, invNum, description string, price decimal.Decimal) (string, error)
}

// Archive keeps the original photo.
type Archive interface {
	KeyFor(id, filename string) string
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Service runs the ingest workflow. Only Vision and Store are required.
type Service struct {
	Vision          vision.Extractor
	Aggregator      Pricer
	Sheets          Sheet
	Barcodes        Barcoder
	Archive         Archive
	Store           store.Store
	InventoryPrefix string

	log   *logger.Entry
	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	nextInv int
	// commits holds one *sync.Mutex per draft being committed.
	commits sync.Map
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *logger.Entry) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithIDs(newID func() string) Option { return func(s *Service) { s.newID = newID } }

// New builds a Service around the required collaborators; the optional ones
// are set on the returned value.
func New(v vision.Extractor, st store.Store, opts ...Option) *Service {
	s := &Service{
		Vision:          v,
		Store:           st,
		InventoryPrefix: "INV",
		log:             logger.GetLogger().WithComponent("ingest"),
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Draft extracts and prices one photo and saves it as a draft. A market
// price found by the Aggregator replaces the model's guess and is then rounded by
// the category pricing rules.
func (s *Service) Draft(ctx context.Context, img []byte, filename string, c item.Category) (store.Record, error) {
	started := s.now()
	id := s.newID()
	log := s.log.WithFields(logger.Fields{"draft": id, "file": filename, "category": c.String()})

	var photoURL string
	if s.Archive != nil {
		url, err := s.Archive.Put(ctx, s.Archive.KeyFor(id, filename), http.DetectContentType(img), img)
		if err != nil {
			log.WithError(err).Warn("photo archive failed")
		} else {
			photoURL = url
		}
	}

	fields, err := s.Vision.Extract(ctx, img, filename, c)
	if err != nil {
		return store.Record{}, err
	}
	if fields == nil {
		fields = item.Fields{}
	}

	var res aggregate.Result
	if s.Aggregator != nil {
		res = s.Aggregator.GetBestPrice(ctx, fields[item.TitleKey(c)], fields[item.ArtistKey], c)
		if res.FinalPrice.Valid {
			fields[item.PriceKey] = res.FinalPrice.Decimal.StringFixed(2)
			fields[item.PriceSourceKey] = strings.Join(res.Sources.Names(), ", ")
		}
	}
	fields = pricing.ApplyPricingRules(c, fields)

	now := s.now().UTC()
	rec := store.Record{
		ID:        id,
		Category:  c,
		Filename:  filename,
		PhotoURL:  photoURL,
		Fields:    fields.Normalize(c),
		Pricing:   res,
		Status:    store.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Save(ctx, rec); err != nil {
		return store.Record{}, fmt.Errorf("save draft: %w", err)
	}
	logger.LogDuration(log, "draft", started, logger.Fields{"price": rec.Fields[item.PriceKey]})
	return rec, nil
}

// Commit applies human edits to a draft, assigns inventory and barcode
// numbers and appends the row to the sheet. Concurrent commits of one draft
// are serialized; only the first appends a row.
func (s *Service) Commit(ctx context.Context, id string, edits item.Fields) (store.Record, error) {
	unlock := s.lockDraft(id)
	defer unlock()

	rec, err := s.Store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Record{}, ErrDraftNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("load draft: %w", err)
	}
	if rec.Status == store.StatusCommitted {
		return store.Record{}, ErrAlreadyCommitted
	}
	c := rec.Category
	log := s.log.WithFields(logger.Fields{"draft": id, "category": c.String()})

	fields := pricing.ApplyPricingRules(c, rec.Fields.Merge(c, edits))
	if fields[item.InventoryKey] == "" {
		inv, err := s.allocateInventory(ctx)
		if err != nil {
			return store.Record{}, err
		}
		fields[item.InventoryKey] = inv
	}
	if fields[item.BarcodeKey] == "" {
		fields[item.BarcodeKey] = sandpiper.NoBarcode
	}

	if s.Barcodes != nil && fields[item.BarcodeKey] == sandpiper.NoBarcode {
		price, _ := money.Normalize(fields[item.PriceKey])
		code, err := s.Barcodes.CreateItemAndBarcode(ctx, fields[item.InventoryKey], fields[item.TitleKey(c)], price)
		if err != nil {
			log.WithError(err).Warn("barcode failed")
		} else {
			fields[item.BarcodeKey] = code
		}
	}

	if s.Sheets != nil {
		if _, err := s.Sheets.AppendRow(ctx, c, fields); err != nil {
			metrics.RecordCommit(c.String(), "error")
			return store.Record{}, fmt.Errorf("append row: %w", err)
		}
	}

	now := s.now().UTC()
	rec.Fields = fields
	rec.Status = store.StatusCommitted
	rec.UpdatedAt = now
	rec.CommittedAt = &now
	if err := s.Store.Save(ctx, rec); err != nil {
		metrics.RecordCommit(c.String(), "error")
		return store.Record{}, fmt.Errorf("save record: %w", err)
	}
	s.commits.Delete(id)
	metrics.RecordCommit(c.String(), "ok")
	log.WithFields(logger.Fields{"inventory": fields[item.InventoryKey], "barcode": fields[item.BarcodeKey]}).Info("committed")
	return rec, nil
}

// lockDraft locks id's commit mutex and returns its unlock. The entry is
// removed once the draft is committed; later callers then find it committed.
func (s *Service) lockDraft(id string) func() {
	v, _ := s.commits.LoadOrStore(id, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// allocateInventory returns the next <prefix>-<n>. The counter is seeded from
// the highest number already committed to the store.
func (s *Service) allocateInventory(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextInv == 0 {
		recs, err := s.Store.List(ctx, 0)
		if err != nil {
			return "", fmt.Errorf("seed inventory: %w", err)
		}
		s.nextInv = 1
		for _, r := range recs {
			if n, ok := s.inventoryNumber(r.Fields[item.InventoryKey]); ok && n >= s.nextInv {
				s.nextInv = n + 1
			}
		}
	}
	inv := fmt.Sprintf("%s-%d", s.InventoryPrefix, s.nextInv)
	s.nextInv++
	return inv, nil
}

func (s *Service) inventoryNumber(v string) (int, bool) {
	rest, found := strings.CutPrefix(v, s.InventoryPrefix+"-")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}
