package storage

import (
	"sort"
	"sync"

	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
)

// MemoryAccountStore is an in-memory AccountStore.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[uint32]models.AccountState
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[uint32]models.AccountState)}
}

func (s *MemoryAccountStore) Replace(accounts []models.AccountState) error {
	next := make(map[uint32]models.AccountState, len(accounts))
	for _, a := range accounts {
		next[a.Index] = copyAccount(a)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = next
	return nil
}

func (s *MemoryAccountStore) Put(account models.AccountState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Index] = copyAccount(account)
	return nil
}

func (s *MemoryAccountStore) Get(index uint32) (models.AccountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[index]
	if !ok {
		return models.AccountState{}, errors.Wrapf(ErrNotStored, "account %d", index)
	}
	return copyAccount(a), nil
}

func (s *MemoryAccountStore) List() ([]models.AccountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.AccountState, 0, len(s.accounts))
	for _, a := range s.accounts {
		result = append(result, copyAccount(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

// copyAccount detaches the Extra map so callers cannot reach stored state.
func copyAccount(a models.AccountState) models.AccountState {
	if a.Extra != nil {
		extra := make(map[string]string, len(a.Extra))
		for k, v := range a.Extra {
			extra[k] = v
		}
		a.Extra = extra
	}
	return a
}

// MemoryTxStore is an in-memory TxStore.
type MemoryTxStore struct {
	mu       sync.RWMutex
	receipts map[string]*models.BroadcastReceipt
}

func NewMemoryTxStore() *MemoryTxStore {
	return &MemoryTxStore{receipts: make(map[string]*models.BroadcastReceipt)}
}

func (s *MemoryTxStore) Get(idempotencyKey string) (*models.BroadcastReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.receipts[idempotencyKey], nil
}

func (s *MemoryTxStore) Put(idempotencyKey string, receipt *models.BroadcastReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[idempotencyKey] = receipt
	return nil
}

// MemoryWatchStore is an in-memory WatchStore.
type MemoryWatchStore struct {
	mu    sync.RWMutex
	addrs map[string]bool
}

func NewMemoryWatchStore() *MemoryWatchStore {
	return &MemoryWatchStore{addrs: make(map[string]bool)}
}

func (s *MemoryWatchStore) Add(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addrs[address] = true
	return nil
}

func (s *MemoryWatchStore) Remove(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.addrs, address)
	return nil
}

// List returns the watched addresses in lexical order.
func (s *MemoryWatchStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]string, 0, len(s.addrs))
	for addr := range s.addrs {
		result = append(result, addr)
	}
	sort.Strings(result)
	return result, nil
}

func (s *MemoryWatchStore) Contains(address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addrs[address], nil
}
