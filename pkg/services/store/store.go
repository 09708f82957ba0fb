// Package store persists analyzed receipts to Postgres.
package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"receipt-scan/pkg/models"
)

const defaultListLimit = 50

// Repository saves and lists receipt records
type Repository struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema
func Open(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.StoredReceipt{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return NewRepository(db), nil
}

// NewRepository wraps an existing connection
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save stores one record, fallbacks included
func (r *Repository) Save(ctx context.Context, rec models.ReceiptRecord) error {
	row, err := models.NewStoredReceipt(rec)
	if err != nil {
		return fmt.Errorf("failed to encode receipt %d: %w", rec.ReceiptID, err)
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save receipt %d: %w", rec.ReceiptID, err)
	}
	return nil
}

// List returns stored records, newest first. limit <= 0 uses a default page size.
func (r *Repository) List(ctx context.Context, limit int) ([]models.ReceiptRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []models.StoredReceipt
	if err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	records := make([]models.ReceiptRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.ReceiptRecord()
		if err != nil {
			return nil, fmt.Errorf("stored receipt %d is corrupt: %w", row.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close releases the connection pool
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
