package bill

import (
	"time"

	"github.com/shopspring/decimal"

	"billbot/internal/scanning"
)

// Status is the lifecycle state of a stored bill.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// LineItem is a single purchased item on a bill.
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Record is a finalized bill. Immutable once committed; the description is
// set exactly once during intake completion, before the write.
type Record struct {
	ID           string           `json:"id"`
	Owner        string           `json:"owner"`
	ShopName     string           `json:"shop_name,omitempty"`
	ShopCategory string           `json:"shop_category,omitempty"`
	Location     string           `json:"location,omitempty"`
	Total        *decimal.Decimal `json:"total,omitempty"`
	Currency     string           `json:"currency,omitempty"`
	Tax          *decimal.Decimal `json:"tax,omitempty"`
	Items        []LineItem       `json:"items,omitempty"`
	Description  string           `json:"description,omitempty"`
	ImagePath    string           `json:"image_path,omitempty"`
	Status       Status           `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

// RecordFromDraft builds a Record from a parsed draft plus the fields the
// intake flow decides (id, description, timestamp).
func RecordFromDraft(id, owner, imagePath string, draft *scanning.Draft, description string, createdAt time.Time) *Record {
	rec := &Record{
		ID:           id,
		Owner:        owner,
		ShopName:     draft.ShopName,
		ShopCategory: draft.ShopCategory,
		Location:     draft.Location,
		Total:        draft.Total,
		Currency:     draft.Currency,
		Tax:          draft.Tax,
		Description:  description,
		ImagePath:    imagePath,
		Status:       StatusProcessed,
		CreatedAt:    createdAt,
	}
	for _, item := range draft.Items {
		rec.Items = append(rec.Items, LineItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return rec
}
