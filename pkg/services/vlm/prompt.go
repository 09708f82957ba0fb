package vlm

import (
	"fmt"
	"strings"
)

const receiptSchema = `{
    "name_of_establishment": "name of store/restaurant",
    "currency": "$" or any other,
    "items": [
        {
            "name": "item name",
            "quantity": number,
            "price_per_item": price,
            "total_price": quantity * price
        }
    ],
    "number_of_items": total count of unique items,
    "subtotal": subtotal amount,
    "tax": tax amount or "NA" if none,
    "tip": tip amount or "NA" if none,
    "additional_charges": additional charges or "NA" if none,
    "total": final total amount
}`

// StandardPrompt is used by the HTTP service.
const StandardPrompt = "Analyze this receipt and respond ONLY with these exact details in this format:\n" +
	receiptSchema + `

Only include information you can clearly see.
Use "NA" for missing values.
Format all prices as decimal numbers without currency symbols.
Keep item names exactly as written on receipt.
If a value does not exist or cannot be parsed, return "NA" for it.
Maintain the exact order of fields in the JSON structure.
Ensure that the total amount matches the sum of subtotal, tax, tip, and additional charges.
Respond with only the JSON object, nothing else.
`

// JSONOnlyPrompt is used when building datasets; it leans harder on JSON-only output.
const JSONOnlyPrompt = "Analyze this receipt and respond ONLY with these exact details in this format:\n" +
	receiptSchema + `

Only include information you can clearly see. Use "NA" for missing values.
Format all prices as decimal numbers without currency symbols.
Keep item names exactly as written on receipt.
If a value does not exist or cannot be parsed, return "na" for it.
Return only this JSON format with no additional text.
Only JSON, nothing else.
`

// Prompt returns the prompt registered under name
func Prompt(name string) (string, error) {
	switch name {
	case "", "standard":
		return StandardPrompt, nil
	case "json_only":
		return JSONOnlyPrompt, nil
	}
	return "", fmt.Errorf("unknown prompt %q", name)
}

// WithHint appends OCR text to a prompt so the model can cross-check what it reads.
func WithHint(prompt string, lines []string) string {
	if len(lines) == 0 {
		return prompt
	}
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\nText recognized on the receipt by OCR, top to bottom (may contain errors):\n")
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}
