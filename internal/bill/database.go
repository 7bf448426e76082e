package bill

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	billsBucketName = "bills"
	idsBucketName   = "bill_ids"
)

// DB defines the interface for bill persistence. Writes are single-record
// and atomic; there are no cross-record transactions.
type DB interface {
	// CreateBill stores a new bill. Returns a Conflict persistence error
	// if the id already exists.
	CreateBill(record *Record) error

	// GetBill retrieves a bill by owner and id
	GetBill(owner, id string) (*Record, error)

	// ListByOwnerAndRange returns the owner's bills with CreatedAt inside
	// [start, end] (nil bound = unbounded), newest first.
	ListByOwnerAndRange(owner string, start, end *time.Time) ([]*Record, error)

	// DeleteBill removes a bill by owner and id
	DeleteBill(owner, id string) error

	// Ping verifies the store is reachable
	Ping() error

	// Close closes the database
	Close() error
}

// BoltDB implements the DB interface using BoltDB.
//
// Bills are keyed by owner, creation time and id so that an owner's bills
// form a contiguous, time-ordered key range. A second bucket maps bare ids
// back to primary keys for lookups, deletes and conflict detection.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(billsBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(idsBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// billKey builds the primary key: owner \x00 zero-padded unixnano \x00 id.
// The padding keeps lexicographic and chronological order aligned.
func billKey(owner string, createdAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s\x00%020d\x00%s", owner, createdAt.UnixNano(), id))
}

func ownerPrefix(owner string) []byte {
	return []byte(owner + "\x00")
}

// CreateBill stores a new bill record
func (b *BoltDB) CreateBill(record *Record) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket([]byte(idsBucketName))
		if ids.Get([]byte(record.ID)) != nil {
			return &PersistenceError{Kind: Conflict, Err: fmt.Errorf("duplicate bill id %s", record.ID)}
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling bill: %w", err)
		}

		key := billKey(record.Owner, record.CreatedAt, record.ID)
		if err := tx.Bucket([]byte(billsBucketName)).Put(key, data); err != nil {
			return err
		}
		return ids.Put([]byte(record.ID), key)
	})
	if err == nil {
		return nil
	}
	if IsConflict(err) {
		return err
	}
	return &PersistenceError{Kind: Unavailable, Err: err}
}

// GetBill retrieves a bill by owner and id
func (b *BoltDB) GetBill(owner, id string) (*Record, error) {
	var record *Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(idsBucketName)).Get([]byte(id))
		if key == nil || !bytes.HasPrefix(key, ownerPrefix(owner)) {
			return ErrNotFound
		}
		data := tx.Bucket([]byte(billsBucketName)).Get(key)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListByOwnerAndRange returns the owner's bills in the inclusive time
// range, newest first
func (b *BoltDB) ListByOwnerAndRange(owner string, start, end *time.Time) ([]*Record, error) {
	records := make([]*Record, 0)
	prefix := ownerPrefix(owner)

	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(billsBucketName)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling bill: %w", err)
			}
			if start != nil && record.CreatedAt.Before(*start) {
				continue
			}
			if end != nil && record.CreatedAt.After(*end) {
				continue
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, &PersistenceError{Kind: Unavailable, Err: err}
	}

	// Keys iterate oldest first; reverse for newest-first order
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// DeleteBill removes a bill by owner and id
func (b *BoltDB) DeleteBill(owner, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket([]byte(idsBucketName))
		key := ids.Get([]byte(id))
		if key == nil || !bytes.HasPrefix(key, ownerPrefix(owner)) {
			return ErrNotFound
		}
		if err := tx.Bucket([]byte(billsBucketName)).Delete(key); err != nil {
			return err
		}
		return ids.Delete([]byte(id))
	})
}

// Ping verifies the database file is readable
func (b *BoltDB) Ping() error {
	return b.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(billsBucketName)) == nil {
			return fmt.Errorf("bills bucket missing")
		}
		return nil
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
