package scanning

import (
	"context"

	"github.com/shopspring/decimal"
)

// LineItem is a single purchased item extracted from a bill.
type LineItem struct {
	Name      string          `json:"item"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Draft contains the fields extracted from a bill image before any user
// interaction is applied. All fields are optional; a Draft with neither a
// shop name nor a total is treated as unreadable by the adapter.
type Draft struct {
	ShopName     string
	ShopCategory string
	Location     string
	Total        *decimal.Decimal
	Currency     string
	Tax          *decimal.Decimal
	Items        []LineItem
}

// Empty reports whether the draft carries none of the fields required to
// present it to the user.
func (d *Draft) Empty() bool {
	return d.ShopName == "" && d.Total == nil
}

// Scanner defines the interface for bill scanning operations
type Scanner interface {
	// ScanBill analyzes a bill image or PDF and extracts a Draft.
	// Failures are reported as *ParseError.
	ScanBill(ctx context.Context, imageData []byte, contentType string) (*Draft, error)
	// Ping verifies the model endpoint is reachable
	Ping(ctx context.Context) error
	// Close closes the scanner and releases resources
	Close() error
}
