// Package store persists drafts and committed records.
package store

import (
	"context"
	"errors"
	"time"

	"labelagent/internal/aggregate"
	"labelagent/internal/item"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("record not found")

type Status string

const (
	StatusDraft     Status = "draft"
	StatusCommitted Status = "committed"
)

// Record is one photographed item, from draft to commit.
type Record struct {
	ID          string           `json:"id"`
	Category    item.Category    `json:"category"`
	Filename    string           `json:"filename"`
	PhotoURL    string           `json:"photo_url,omitempty"`
	Fields      item.Fields      `json:"fields"`
	Pricing     aggregate.Result `json:"pricing"`
	Status      Status           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CommittedAt *time.Time       `json:"committed_at,omitempty"`
}

// Store saves records by id; Save replaces an existing record.
type Store interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns up to limit records, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Record, error)
}
