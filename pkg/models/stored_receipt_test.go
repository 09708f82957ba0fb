package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoredReceiptRoundTrip(t *testing.T) {
	qty, _ := ParseAmount("2")
	price, _ := ParseAmount("1.5")
	total, _ := ParseAmount("3.0")
	rec := ReceiptRecord{
		ReceiptID:           5,
		ImagePath:           "cafe.jpg",
		NameOfEstablishment: "Cafe X",
		Currency:            "EUR",
		Items:               []LineItem{{Name: "Tea", Quantity: qty, PricePerItem: price, TotalPrice: qty.Times(price)}},
		NumberOfItems:       1,
		Total:               total,
		Success:             true,
	}

	stored, err := NewStoredReceipt(rec)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.ReceiptID)
	assert.Equal(t, "3.0", stored.Total)
	assert.True(t, stored.Success)

	back, err := stored.ReceiptRecord()
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}
