package models

import "encoding/json"

// LineItem is one purchased item as read from the receipt
type LineItem struct {
	Name         string `json:"name"`
	Quantity     Amount `json:"quantity"`
	PricePerItem Amount `json:"price_per_item"`
	TotalPrice   Amount `json:"total_price"`
}

// ReceiptRecord is the canonical extraction result for one receipt image.
// Every field is always present; unknown values hold the sentinel.
type ReceiptRecord struct {
	ReceiptID           int        `json:"receipt_id"`
	ImagePath           string     `json:"image_path"`
	NameOfEstablishment string     `json:"name_of_establishment"`
	Currency            string     `json:"currency"`
	Items               []LineItem `json:"items"`
	NumberOfItems       int        `json:"number_of_items"`
	Subtotal            Amount     `json:"subtotal"`
	Tax                 Amount     `json:"tax"`
	Tip                 Amount     `json:"tip"`
	AdditionalCharges   Amount     `json:"additional_charges"`
	Total               Amount     `json:"total"`
	Success             bool       `json:"success"`
	RawResponse         string     `json:"raw_response,omitempty"`
}

// MarshalJSON keeps "items" an array even for records built without items.
func (r ReceiptRecord) MarshalJSON() ([]byte, error) {
	type record ReceiptRecord
	out := record(r)
	if out.Items == nil {
		out.Items = []LineItem{}
	}
	return json.Marshal(out)
}

// TextLine represents a line of text with its position from OCR
type TextLine struct {
	Text   string
	X      int
	Y      int
	Width  int
	Height int
}
