package bill

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"billbot/internal/scanning"
)

// IDGenerator generates unique bill identifiers
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// NewID returns a new unique identifier for bills and intake correlation.
func NewID() string { return uuid.NewString() }

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string { return NewID() }

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time { return time.Now().UTC() }

// Service handles bill operations outside the interactive intake flow:
// the direct process path, listing, lookup and deletion.
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ProcessStored parses an already-stored bill image and commits the result
// with no description. This is the non-interactive path used by the HTTP
// surface; the chat surface goes through the intake controller instead.
func (s *Service) ProcessStored(ctx context.Context, owner, imagePath string) (*Record, error) {
	data, err := s.storage.Get(imagePath)
	if err != nil {
		return nil, fmt.Errorf("reading bill image: %w", err)
	}

	draft, err := s.scanner.ScanBill(ctx, data, contentTypeForPath(imagePath))
	if err != nil {
		return nil, err
	}

	record := RecordFromDraft(s.idGenerator.Generate(), owner, imagePath, draft, "", s.timeSource.Now())
	if err := CreateWithRetry(ctx, s.db, record); err != nil {
		return nil, err
	}
	return record, nil
}

// List returns the owner's bills in the inclusive range, newest first
func (s *Service) List(owner string, start, end *time.Time) ([]*Record, error) {
	records, err := s.db.ListByOwnerAndRange(owner, start, end)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return records, nil
}

// Get retrieves one bill by owner and id
func (s *Service) Get(owner, id string) (*Record, error) {
	return s.db.GetBill(owner, id)
}

// Delete removes a bill and its stored image
func (s *Service) Delete(owner, id string) error {
	record, err := s.db.GetBill(owner, id)
	if err != nil {
		return err
	}

	if record.ImagePath != "" {
		if err := s.storage.Delete(record.ImagePath); err != nil {
			// Keep going; the record is the source of truth
			slog.Warn("Failed to delete bill image", "path", record.ImagePath, "error", err)
		}
	}
	return s.db.DeleteBill(owner, id)
}

// Image returns the stored image bytes and content type for a bill
func (s *Service) Image(owner, id string) ([]byte, string, error) {
	record, err := s.db.GetBill(owner, id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.storage.Get(record.ImagePath)
	if err != nil {
		return nil, "", fmt.Errorf("reading bill image: %w", err)
	}
	return data, contentTypeForPath(record.ImagePath), nil
}

const (
	createAttempts = 3
	createBackoff  = 200 * time.Millisecond
)

// CreateWithRetry writes a record through db, retrying Unavailable failures
// a bounded number of times with doubling backoff. Conflicts are an
// invariant violation and are returned immediately.
func CreateWithRetry(ctx context.Context, db DB, record *Record) error {
	backoff := createBackoff
	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		err = db.CreateBill(record)
		if err == nil {
			return nil
		}
		if IsConflict(err) {
			return err
		}
		if attempt == createAttempts {
			break
		}
		slog.Warn("Bill write failed, retrying", "bill_id", record.ID, "attempt", attempt, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}

// ParseDateRange validates an inclusive ISO date range. Empty strings mean
// an open bound; the end date is widened to the end of its day so the range
// is date-inclusive.
func ParseDateRange(startStr, endStr string) (*time.Time, *time.Time, error) {
	var start, end *time.Time

	if startStr != "" {
		t, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return nil, nil, &ValidationError{
				Kind: BadDateRange,
				Msg:  fmt.Sprintf("%q is not a valid date, expected YYYY-MM-DD", startStr),
			}
		}
		start = &t
	}
	if endStr != "" {
		t, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return nil, nil, &ValidationError{
				Kind: BadDateRange,
				Msg:  fmt.Sprintf("%q is not a valid date, expected YYYY-MM-DD", endStr),
			}
		}
		t = t.Add(24*time.Hour - time.Nanosecond)
		end = &t
	}

	if start != nil && end != nil && start.After(*end) {
		return nil, nil, &ValidationError{
			Kind: BadDateRange,
			Msg:  fmt.Sprintf("start date %s is after end date %s", startStr, endStr),
		}
	}
	return start, end, nil
}

// contentTypeForPath maps a stored image extension to a MIME type
func contentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
