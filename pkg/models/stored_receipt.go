package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// StoredReceipt represents an analyzed receipt persisted to the database
type StoredReceipt struct {
	gorm.Model
	ReceiptID           int `gorm:"index"`
	ImagePath           string
	NameOfEstablishment string
	Currency            string
	Total               string
	NumberOfItems       int
	Success             bool `gorm:"index"`
	Record              string `gorm:"type:jsonb"`
}

// NewStoredReceipt flattens the key fields of a record next to its full JSON
func NewStoredReceipt(rec ReceiptRecord) (StoredReceipt, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return StoredReceipt{}, err
	}
	return StoredReceipt{
		ReceiptID:           rec.ReceiptID,
		ImagePath:           rec.ImagePath,
		NameOfEstablishment: rec.NameOfEstablishment,
		Currency:            rec.Currency,
		Total:               rec.Total.String(),
		NumberOfItems:       rec.NumberOfItems,
		Success:             rec.Success,
		Record:              string(data),
	}, nil
}

// ReceiptRecord decodes the stored JSON back into a record
func (s StoredReceipt) ReceiptRecord() (ReceiptRecord, error) {
	var rec ReceiptRecord
	err := json.Unmarshal([]byte(s.Record), &rec)
	return rec, err
}
