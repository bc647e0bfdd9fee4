package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"labelagent/internal/aggregate"
	"labelagent/internal/ingest"
	"labelagent/internal/item"
	"labelagent/internal/logger"
	"labelagent/internal/pricing"
	"labelagent/internal/provider"
	"labelagent/internal/store"
	"labelagent/internal/vision"
)

type pricer interface {
	Price(ctx context.Context, q provider.Query) aggregate.Result
}

type api struct {
	pricer    pricer
	ingest    *ingest.Service
	store     store.Store
	timeout   time.Duration
	maxUpload int64
	log       *logger.Entry
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /api/price", a.handleGetPrice)
	mux.HandleFunc("POST /api/price", a.handlePostPrice)
	mux.HandleFunc("POST /api/pricing-rules", a.handlePricingRules)
	mux.HandleFunc("POST /ingest", a.handleIngest)
	mux.HandleFunc("GET /api/drafts", a.handleListDrafts)
	mux.HandleFunc("GET /api/drafts/{id}", a.handleGetDraft)
	mux.HandleFunc("POST /api/drafts/{id}/commit", a.handleCommit)
	return mux
}

type priceBody struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Category string `json:"category"`
}

func (a *api) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	a.writePrice(w, r.Context(), priceBody{Title: v.Get("title"), Artist: v.Get("artist"), Category: v.Get("category")})
}

func (a *api) handlePostPrice(w http.ResponseWriter, r *http.Request) {
	var b priceBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.writePrice(w, r.Context(), b)
}

func (a *api) writePrice(w http.ResponseWriter, rctx context.Context, b priceBody) {
	if strings.TrimSpace(b.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	c, err := parseCategory(b.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(rctx, a.timeout)
	defer cancel()
	writeJSON(w, http.StatusOK, a.pricer.Price(ctx, provider.Query{Title: b.Title, Artist: b.Artist, Category: c}))
}

type rulesBody struct {
	Category string      `json:"category"`
	Fields   item.Fields `json:"fields"`
}

func (a *api) handlePricingRules(w http.ResponseWriter, r *http.Request) {
	var b rulesBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c, err := parseCategory(b.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pricing.ApplyPricingRules(c, b.Fields))
}

func (a *api) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(a.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	c, err := item.ParseCategory(r.FormValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid type")
		return
	}
	f, hdr, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer f.Close()
	img, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable image")
		return
	}
	if !strings.HasPrefix(http.DetectContentType(img), "image/") {
		writeError(w, http.StatusBadRequest, "file is not an image")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	rec, err := a.ingest.Draft(ctx, img, hdr.Filename, c)
	switch {
	case errors.Is(err, vision.ErrUnsupportedImage):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		a.log.WithError(err).WithFields(logger.Fields{"file": hdr.Filename}).Error("ingest failed")
		writeError(w, http.StatusBadGateway, "extraction failed")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (a *api) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	recs, err := a.store.List(r.Context(), limit)
	if err != nil {
		a.log.WithError(err).Error("list drafts failed")
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (a *api) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	rec, err := a.store.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "draft not found")
	case err != nil:
		a.log.WithError(err).Error("get draft failed")
		writeError(w, http.StatusInternalServerError, "store unavailable")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

type commitBody struct {
	Fields item.Fields `json:"fields"`
}

func (a *api) handleCommit(w http.ResponseWriter, r *http.Request) {
	var b commitBody
	// an empty body commits the draft as is
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	rec, err := a.ingest.Commit(ctx, r.PathValue("id"), b.Fields)
	switch {
	case errors.Is(err, ingest.ErrDraftNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrAlreadyCommitted):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		a.log.WithError(err).Error("commit failed")
		writeError(w, http.StatusBadGateway, "commit failed")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

// parseCategory treats a blank category as general.
func parseCategory(s string) (item.Category, error) {
	if strings.TrimSpace(s) == "" {
		return item.General, nil
	}
	return item.ParseCategory(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
