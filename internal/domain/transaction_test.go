package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionUnmarshalJSON(t *testing.T) {
	t.Run("numeric amount", func(t *testing.T) {
		var txn Transaction
		err := json.Unmarshal([]byte(`{"id":"t1","posted_at":"2024-01-15T10:30:00Z","amount":-42.5,"merchant_name":"Cafe","category":"Food"}`), &txn)
		require.NoError(t, err)
		assert.Equal(t, "t1", txn.ID)
		assert.Equal(t, "-42.5", txn.Amount.String())
		assert.True(t, txn.IsSpending())
	})

	t.Run("string amount", func(t *testing.T) {
		var txn Transaction
		err := json.Unmarshal([]byte(`{"id":"t2","posted_at":"2024-01-15","amount":"19.99"}`), &txn)
		require.NoError(t, err)
		assert.Equal(t, "19.99", txn.Amount.String())
		assert.False(t, txn.IsSpending())
	})

	t.Run("non-numeric amount", func(t *testing.T) {
		var txns []Transaction
		err := json.Unmarshal([]byte(`[{"id":"t3","posted_at":"2024-01-15","amount":"twelve"}]`), &txns)
		require.Error(t, err)

		var dataErr *DataError
		require.True(t, errors.As(err, &dataErr))
		assert.Equal(t, "t3", dataErr.TransactionID)
		assert.Equal(t, "amount", dataErr.Field)
		assert.True(t, IsDataError(err))
	})

	t.Run("missing amount", func(t *testing.T) {
		var txn Transaction
		err := json.Unmarshal([]byte(`{"id":"t4","posted_at":"2024-01-15"}`), &txn)
		assert.True(t, IsDataError(err))
	})
}

func TestTransactionMarshalJSON(t *testing.T) {
	var txn Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t1","posted_at":"2024-01-15","amount":"-9.99","merchant_name":"Netflix","category":"Entertainment","is_recurring":true}`), &txn))

	out, err := json.Marshal(txn)
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &generic))
	assert.Equal(t, -9.99, generic["amount"])
	assert.Equal(t, true, generic["is_recurring"])
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Equal(t, 0, Severity("bogus").Rank())
}
