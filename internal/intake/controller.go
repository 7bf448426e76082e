package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"billbot/internal/bill"
	"billbot/internal/scanning"
)

// ErrNoActiveIntake is returned when a reply arrives and the owner has no
// intake awaiting a description; the chat layer treats the message as an
// unrelated command.
var ErrNoActiveIntake = errors.New("no active intake for owner")

// Choice is one of the description options presented after parsing.
type Choice string

const (
	ChoiceManual Choice = "manual"
	ChoiceAuto   Choice = "auto"
	ChoiceSkip   Choice = "skip"
)

// awaitingStates are the states a reply can be attributed to.
var awaitingStates = []State{StateAwaitingChoice, StateAwaitingText}

// ImageReceipt is the successful outcome of an image event: the draft to
// present alongside the manual/auto/skip options.
type ImageReceipt struct {
	CorrelationID string
	Draft         *scanning.Draft
}

// ChoiceOutcome is the result of a description-choice reply. Exactly one
// of AwaitText and Record is set.
type ChoiceOutcome struct {
	// AwaitText is true after a manual choice: the next free text from
	// the owner becomes the description.
	AwaitText bool
	// Record is the committed bill after an auto or skip choice.
	Record *bill.Record
}

// Controller owns the per-bill intake state machine. It is safe for
// concurrent use; each inbound chat event is handled on its own goroutine
// and the only shared state lives in the Store.
type Controller struct {
	store   *Store
	scanner scanning.Scanner
	db      bill.DB
	storage bill.Storage
	idGen   bill.IDGenerator
}

// NewController creates a Controller with the default id generator.
func NewController(store *Store, scanner scanning.Scanner, db bill.DB, storage bill.Storage) *Controller {
	return NewControllerWithDeps(store, scanner, db, storage, nil)
}

// NewControllerWithDeps allows injecting the id generator for testing.
func NewControllerWithDeps(store *Store, scanner scanning.Scanner, db bill.DB, storage bill.Storage, idGen bill.IDGenerator) *Controller {
	c := &Controller{
		store:   store,
		scanner: scanner,
		db:      db,
		storage: storage,
		idGen:   idGen,
	}
	if c.idGen == nil {
		c.idGen = defaultIDGenerator{}
	}
	store.OnDiscard(c.releaseImage)
	return c
}

// releaseImage drops the stored image of an intake that will never
// finalize, so expiry does not leave orphaned files behind.
func (c *Controller) releaseImage(p *Pending) {
	if p.ImagePath == "" {
		return
	}
	if err := c.storage.Delete(p.ImagePath); err != nil {
		slog.Warn("Failed to delete image of expired intake", "path", p.ImagePath, "error", err)
	}
}

type defaultIDGenerator struct{}

func (defaultIDGenerator) Generate() string {
	// uuid via the bill package keeps record and correlation ids uniform
	return bill.NewID()
}

// HandleImage runs the receipt of one bill image up to the point where the
// description options can be presented. The scanner call is the only
// suspension; while it is in flight the intake sits in the parsing state
// and cannot claim replies. A typed *scanning.ParseError is returned on
// failure, after the intake and the stored image have been discarded.
func (c *Controller) HandleImage(ctx context.Context, owner string, imageData []byte, contentType string) (*ImageReceipt, error) {
	correlationID := c.idGen.Generate()
	filename := fmt.Sprintf("bill_%s%s", correlationID, extensionFor(contentType))

	imagePath, err := c.storage.Save(owner, filename, imageData)
	if err != nil {
		return nil, fmt.Errorf("saving bill image: %w", err)
	}

	c.store.Create(owner, correlationID, imagePath)

	draft, err := c.scanner.ScanBill(ctx, imageData, contentType)
	if err != nil {
		// parse_failed is terminal: drop the intake and its image, the
		// user starts over by resending
		c.store.Delete(owner, correlationID)
		if delErr := c.storage.Delete(imagePath); delErr != nil {
			slog.Warn("Failed to delete image of failed intake", "path", imagePath, "error", delErr)
		}
		slog.Error("Bill scan failed",
			"owner", owner,
			"correlation_id", correlationID,
			"error", err,
		)
		return nil, err
	}

	if !c.store.Present(owner, correlationID, draft) {
		// Expired while the scanner was running; a sweep in between has
		// already released the image, in which case the delete is a no-op
		if delErr := c.storage.Delete(imagePath); delErr != nil {
			slog.Debug("Image of expired intake already released", "path", imagePath, "error", delErr)
		}
		slog.Info("Intake expired during parsing", "owner", owner, "correlation_id", correlationID)
		return nil, ErrNoActiveIntake
	}

	return &ImageReceipt{CorrelationID: correlationID, Draft: draft}, nil
}

// HandleChoice applies a manual/auto/skip button reply. The reply is
// attributed to the owner's most recently created intake awaiting a
// choice; ErrNoActiveIntake is returned when there is none.
func (c *Controller) HandleChoice(ctx context.Context, owner string, choice Choice) (*ChoiceOutcome, error) {
	switch choice {
	case ChoiceManual:
		if _, ok := c.store.Claim(owner, []State{StateAwaitingChoice}, StateAwaitingText); !ok {
			return nil, ErrNoActiveIntake
		}
		return &ChoiceOutcome{AwaitText: true}, nil

	case ChoiceAuto:
		claimed, ok := c.store.Claim(owner, []State{StateAwaitingChoice}, StateFinalizing)
		if !ok {
			return nil, ErrNoActiveIntake
		}
		record, err := c.finalize(ctx, claimed, AutoDescription(claimed.Draft))
		if err != nil {
			return nil, err
		}
		return &ChoiceOutcome{Record: record}, nil

	case ChoiceSkip:
		claimed, ok := c.store.Claim(owner, []State{StateAwaitingChoice}, StateFinalizing)
		if !ok {
			return nil, ErrNoActiveIntake
		}
		record, err := c.finalize(ctx, claimed, "")
		if err != nil {
			return nil, err
		}
		return &ChoiceOutcome{Record: record}, nil

	default:
		return nil, fmt.Errorf("unknown description choice %q", choice)
	}
}

// HandleText applies a free-text reply as the description. The text is
// attributed to the owner's most recently created intake awaiting either a
// choice or text; typing a description instead of pressing the manual
// button is accepted.
func (c *Controller) HandleText(ctx context.Context, owner, text string) (*bill.Record, error) {
	claimed, ok := c.store.Claim(owner, awaitingStates, StateFinalizing)
	if !ok {
		return nil, ErrNoActiveIntake
	}
	return c.finalize(ctx, claimed, strings.TrimSpace(text))
}

// finalize converts the claimed intake into a committed bill. On
// persistence failure the intake is restored to its pre-claim state so the
// owner can simply retry.
func (c *Controller) finalize(ctx context.Context, claimed *Pending, description string) (*bill.Record, error) {
	record := bill.RecordFromDraft(
		claimed.CorrelationID,
		claimed.Owner,
		claimed.ImagePath,
		claimed.Draft,
		description,
		claimed.CreatedAt,
	)

	if err := bill.CreateWithRetry(ctx, c.db, record); err != nil {
		c.store.SetState(claimed.Owner, claimed.CorrelationID, claimed.State)
		slog.Error("Finalizing bill failed",
			"owner", claimed.Owner,
			"correlation_id", claimed.CorrelationID,
			"error", err,
		)
		return nil, err
	}

	// done is terminal: the pending intake disappears with the commit
	c.store.Delete(claimed.Owner, claimed.CorrelationID)
	slog.Info("Bill committed",
		"owner", claimed.Owner,
		"bill_id", record.ID,
		"shop", record.ShopName,
	)
	return record, nil
}

// AutoDescription derives a short description from draft fields with a
// deterministic template; no second model call is made.
func AutoDescription(draft *scanning.Draft) string {
	shop := draft.ShopName
	if shop == "" {
		shop = "unknown shop"
	}

	var b strings.Builder
	if draft.ShopCategory != "" {
		b.WriteString(capitalize(draft.ShopCategory))
		b.WriteString(" purchase at ")
	} else {
		b.WriteString("Purchase at ")
	}
	b.WriteString(shop)

	if draft.Total != nil {
		b.WriteString(" (")
		if draft.Currency != "" {
			b.WriteString(draft.Currency)
			b.WriteString(" ")
		}
		b.WriteString(draft.Total.StringFixed(2))
		b.WriteString(")")
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	case "image/heic":
		return ".heic"
	case "image/heif":
		return ".heif"
	default:
		return ".jpg"
	}
}
