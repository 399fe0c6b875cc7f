package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucketName  = "receipts"
	settingsBucketName = "settings"

	scannerSettingsKey = "scanner"
)

// Settings holds the persisted remote-backend credentials.
type Settings struct {
	Backend  string `json:"backend"` // "gemini" or "ollama"
	Endpoint string `json:"endpoint,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	Model    string `json:"model,omitempty"`
}

// DB defines the persistence operations the session needs: the receipt
// history plus the scanner settings blob.
type DB interface {
	// SaveReceipt saves a receipt snapshot
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns all saved receipts
	ListReceipts() ([]*Receipt, error)

	// DeleteReceipt removes a receipt
	DeleteReceipt(id string) error

	// SaveSettings persists the scanner settings
	SaveSettings(settings *Settings) error

	// GetSettings loads the scanner settings; absent settings are not
	// an error and return nil
	GetSettings() (*Settings, error)

	// Close closes the database
	Close() error
}

// BoltDB implements DB on a local bbolt file.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (creating if needed) the database at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(receiptBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(settingsBucketName)); err != nil {
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

// SaveReceipt saves a receipt snapshot.
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		return bucket.Put([]byte(receipt.ID), data)
	})
}

// GetReceipt retrieves a receipt by ID.
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("receipt not found: %s", id)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all saved receipts.
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt.
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.Delete([]byte(id))
	})
}

// SaveSettings persists the scanner settings.
func (b *BoltDB) SaveSettings(settings *Settings) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(settingsBucketName))
		data, err := json.Marshal(settings)
		if err != nil {
			return fmt.Errorf("marshaling settings: %w", err)
		}
		return bucket.Put([]byte(scannerSettingsKey), data)
	})
}

// GetSettings loads the scanner settings, returning nil when none have
// been saved yet.
func (b *BoltDB) GetSettings() (*Settings, error) {
	var settings *Settings
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(settingsBucketName))
		data := bucket.Get([]byte(scannerSettingsKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &settings)
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// Close closes the database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}
