package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"labelagent/internal/aggregate"
	"labelagent/internal/item"
)

// recordRow is the table layout; fields and pricing are JSON text.
type recordRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Category    string `gorm:"size:16;index"`
	Filename    string `gorm:"size:255"`
	PhotoURL    string `gorm:"size:512"`
	Fields      string `gorm:"type:text"`
	Pricing     string `gorm:"type:text"`
	Status      string `gorm:"size:16;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CommittedAt *time.Time
}

func (recordRow) TableName() string { return "label_records" }

func toRow(r Record) (recordRow, error) {
	fields, err := json.Marshal(r.Fields)
	if err != nil {
		return recordRow{}, fmt.Errorf("encoding fields: %w", err)
	}
	pricing, err := json.Marshal(r.Pricing)
	if err != nil {
		return recordRow{}, fmt.Errorf("encoding pricing: %w", err)
	}
	return recordRow{
		ID:          r.ID,
		Category:    r.Category.String(),
		Filename:    r.Filename,
		PhotoURL:    r.PhotoURL,
		Fields:      string(fields),
		Pricing:     string(pricing),
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CommittedAt: r.CommittedAt,
	}, nil
}

func fromRow(row recordRow) (Record, error) {
	c, err := item.ParseCategory(row.Category)
	if err != nil {
		return Record{}, err
	}
	r := Record{
		ID:          row.ID,
		Category:    c,
		Filename:    row.Filename,
		PhotoURL:    row.PhotoURL,
		Status:      Status(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		CommittedAt: row.CommittedAt,
	}
	if err := json.Unmarshal([]byte(row.Fields), &r.Fields); err != nil {
		return Record{}, fmt.Errorf("decoding fields of %s: %w", row.ID, err)
	}
	if row.Pricing != "" {
		var p aggregate.Result
		if err := json.Unmarshal([]byte(row.Pricing), &p); err != nil {
			return Record{}, fmt.Errorf("decoding pricing of %s: %w", row.ID, err)
		}
		r.Pricing = p
	}
	return r, nil
}

// Gorm stores records in MySQL.
type Gorm struct {
	db *gorm.DB
}

// OpenMySQL connects to dsn and migrates the records table.
func OpenMySQL(dsn string) (*Gorm, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return NewGorm(db)
}

// NewGorm wraps an open connection and migrates the records table.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return nil, fmt.Errorf("migrating records: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Save(ctx context.Context, r Record) error {
	row, err := toRow(r)
	if err != nil {
		return err
	}
	if err := g.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("saving record %s: %w", r.ID, err)
	}
	return nil
}

func (g *Gorm) Get(ctx context.Context, id string) (Record, error) {
	var row recordRow
	err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("loading record %s: %w", id, err)
	}
	return fromRow(row)
}

func (g *Gorm) List(ctx context.Context, limit int) ([]Record, error) {
	var rows []recordRow
	q := g.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
