// Package storage holds the wallet's in-memory state: discovered account
// records, sent transactions keyed by idempotency key, and the addresses
// the listener watches.
package storage

import (
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotStored is returned when a record is absent.
var ErrNotStored = errors.New("record not stored")

// AccountStore keeps one record per discovered account index.
type AccountStore interface {
	// Replace drops every record and stores accounts in their place.
	Replace(accounts []models.AccountState) error
	// Put overwrites the record at account.Index.
	Put(account models.AccountState) error
	// Get returns the record at index, or ErrNotStored.
	Get(index uint32) (models.AccountState, error)
	// List returns all records ordered by index.
	List() ([]models.AccountState, error)
}

// TxStore provides idempotent transaction storage.
type TxStore interface {
	// Get returns a previously stored receipt by idempotency key, or nil if not found.
	Get(idempotencyKey string) (*models.BroadcastReceipt, error)
	// Put stores a receipt keyed by idempotency key.
	Put(idempotencyKey string, receipt *models.BroadcastReceipt) error
}

// WatchStore manages the set of watched addresses.
type WatchStore interface {
	// Add adds an address to the watch set.
	Add(address string) error
	// Remove removes an address from the watch set.
	Remove(address string) error
	// List returns all currently watched addresses.
	List() ([]string, error)
	// Contains checks if an address is in the watch set.
	Contains(address string) (bool, error)
}
