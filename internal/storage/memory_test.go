package storage

import (
	"testing"

	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAccountStore(t *testing.T) {
	s := NewMemoryAccountStore()

	_, err := s.Get(0)
	assert.True(t, errors.Is(err, ErrNotStored))

	require.NoError(t, s.Replace([]models.AccountState{
		{Index: 1, Address: "B", Balance: decimal.NewFromInt(2)},
		{Index: 0, Address: "A", Balance: decimal.NewFromInt(1), Extra: map[string]string{"k": "v"}},
	}))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Address)
	assert.Equal(t, "B", list[1].Address)

	// Returned records are copies.
	got, err := s.Get(0)
	require.NoError(t, err)
	got.Extra["k"] = "changed"
	again, _ := s.Get(0)
	assert.Equal(t, "v", again.Extra["k"])

	// Rediscovery overwrites.
	require.NoError(t, s.Put(models.AccountState{Index: 1, Address: "B", Balance: decimal.NewFromInt(7)}))
	b, err := s.Get(1)
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(decimal.NewFromInt(7)))

	require.NoError(t, s.Replace(nil))
	list, err = s.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryTxStore(t *testing.T) {
	s := NewMemoryTxStore()

	got, err := s.Get("key")
	require.NoError(t, err)
	assert.Nil(t, got)

	receipt := &models.BroadcastReceipt{Hash: "abc", Raw: "{}"}
	require.NoError(t, s.Put("key", receipt))
	got, err = s.Get("key")
	require.NoError(t, err)
	assert.Same(t, receipt, got)
}

func TestMemoryWatchStore(t *testing.T) {
	s := NewMemoryWatchStore()
	require.NoError(t, s.Add("b"))
	require.NoError(t, s.Add("a"))
	require.NoError(t, s.Add("a"))

	list, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)

	ok, err := s.Contains("a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Remove("a"))
	ok, _ = s.Contains("a")
	assert.False(t, ok)
}
