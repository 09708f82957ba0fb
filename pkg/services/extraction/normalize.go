package extraction

import (
	"encoding/json"
	"strings"

	"receipt-scan/pkg/models"
)

// Canonical receipt keys as the prompt asks the model to emit them.
const (
	keyEstablishment     = "name_of_establishment"
	keyCurrency          = "currency"
	keyItems             = "items"
	keySubtotal          = "subtotal"
	keyTax               = "tax"
	keyTip               = "tip"
	keyAdditionalCharges = "additional_charges"
	keyTotal             = "total"

	keyItemName     = "name"
	keyItemQuantity = "quantity"
	keyItemPrice    = "price_per_item"
)

// Normalize builds a canonical record from a parsed receipt object. It never
// fails: fields that are missing, wrong-typed or marked as unknown become the
// sentinel. Item totals and the item count are recomputed, never copied.
// Metadata (receipt id, image path) is left for the caller to attach.
func Normalize(obj map[string]any) models.ReceiptRecord {
	items := normalizeItems(obj[keyItems])
	return models.ReceiptRecord{
		NameOfEstablishment: textOrNA(obj[keyEstablishment]),
		Currency:            textOrNA(obj[keyCurrency]),
		Items:               items,
		NumberOfItems:       len(items),
		Subtotal:            amountOf(obj[keySubtotal]),
		Tax:                 amountOf(obj[keyTax]),
		Tip:                 amountOf(obj[keyTip]),
		AdditionalCharges:   amountOf(obj[keyAdditionalCharges]),
		Total:               amountOf(obj[keyTotal]),
		Success:             true,
	}
}

func normalizeItems(v any) []models.LineItem {
	list, ok := v.([]any)
	if !ok {
		return []models.LineItem{}
	}
	items := make([]models.LineItem, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, ok := obj[keyItemName].(string)
		if !ok || strings.TrimSpace(name) == "" || models.IsNA(name) {
			continue
		}
		qty := amountOf(obj[keyItemQuantity])
		price := amountOf(obj[keyItemPrice])
		items = append(items, models.LineItem{
			Name:         name,
			Quantity:     qty,
			PricePerItem: price,
			TotalPrice:   qty.Times(price),
		})
	}
	return items
}

// textOrNA keeps non-blank strings verbatim
func textOrNA(v any) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" || models.IsNA(s) {
		return models.Sentinel
	}
	return s
}

func amountOf(v any) models.Amount {
	switch t := v.(type) {
	case json.Number:
		if a, ok := models.ParseAmount(t.String()); ok {
			return a
		}
	case float64:
		return models.AmountFromFloat(t)
	case string:
		if a, ok := models.ParseAmount(t); ok {
			return a
		}
	}
	return models.NA()
}
