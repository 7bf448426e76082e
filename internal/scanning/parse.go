package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// rawDraft mirrors the JSON shape the model is prompted to return.
// decimal.Decimal accepts both JSON numbers and quoted numbers, which
// covers the model occasionally emitting "450.50" instead of 450.50.
type rawDraft struct {
	Unreadable bool             `json:"unreadable"`
	ShopName   *string          `json:"shop_name"`
	ShopType   *string          `json:"shop_type"`
	Location   *string          `json:"location"`
	TotalPrice *decimal.Decimal `json:"total_price"`
	Currency   *string          `json:"currency"`
	TaxAmount  *decimal.Decimal `json:"tax_amount"`
	Menu       []rawItem        `json:"menu"`
}

type rawItem struct {
	Item     *string          `json:"item"`
	Quantity *decimal.Decimal `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
}

// decodeDraft parses the model's text response into a Draft. A shape
// mismatch yields ErrInvalidResponse, never a partially-populated success.
func decodeDraft(text, defaultCurrency string) (*Draft, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Tolerate prose around the JSON object - take first { to last }
	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx == -1 || endIdx < startIdx {
		return nil, &ParseError{Kind: ErrInvalidResponse, Err: fmt.Errorf("no JSON object in response")}
	}
	text = text[startIdx : endIdx+1]

	var raw rawDraft
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &ParseError{Kind: ErrInvalidResponse, Err: fmt.Errorf("unmarshaling draft: %w", err)}
	}

	if raw.Unreadable {
		return nil, &ParseError{Kind: ErrUnreadable, Err: fmt.Errorf("model reports the bill is unreadable")}
	}

	if raw.TotalPrice != nil && raw.TotalPrice.IsNegative() {
		return nil, &ParseError{Kind: ErrInvalidResponse, Err: fmt.Errorf("negative total %s", raw.TotalPrice)}
	}
	if raw.TaxAmount != nil && raw.TaxAmount.IsNegative() {
		return nil, &ParseError{Kind: ErrInvalidResponse, Err: fmt.Errorf("negative tax %s", raw.TaxAmount)}
	}

	draft := &Draft{
		ShopName:     deref(raw.ShopName),
		ShopCategory: deref(raw.ShopType),
		Location:     deref(raw.Location),
		Total:        raw.TotalPrice,
		Currency:     strings.ToUpper(deref(raw.Currency)),
		Tax:          raw.TaxAmount,
	}
	if draft.Currency == "" {
		draft.Currency = defaultCurrency
	}

	for _, item := range raw.Menu {
		name := deref(item.Item)
		if name == "" {
			continue
		}
		li := LineItem{Name: name, Quantity: decimal.NewFromInt(1)}
		if item.Quantity != nil && item.Quantity.IsPositive() {
			li.Quantity = *item.Quantity
		}
		if item.Price != nil {
			li.UnitPrice = *item.Price
		}
		draft.Items = append(draft.Items, li)
	}

	if draft.Empty() {
		return nil, &ParseError{Kind: ErrUnreadable, Err: fmt.Errorf("neither shop name nor total extracted")}
	}

	return draft, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
