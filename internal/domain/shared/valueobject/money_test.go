package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    Currency
		wantErr bool
	}{
		{"usd", USD, false},
		{" EUR ", EUR, false},
		{"", DefaultCurrency, false},
		{"XYZ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCurrency(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedCurrency)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMoney(t *testing.T) {
	m, err := NewMoneyFromString("1200.505", USD)
	require.NoError(t, err)
	assert.Equal(t, "1200.51 USD", m.String())

	yen, err := NewMoney(decimal.RequireFromString("99.6"), JPY)
	require.NoError(t, err)
	assert.True(t, yen.Amount().Equal(decimal.NewFromInt(100)))

	_, err = NewMoney(decimal.NewFromInt(1), Currency("BTC"))
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	_, err = NewMoneyFromString("abc", USD)
	assert.Error(t, err)

	neg, err := NewMoneyFromString("-1", EUR)
	require.NoError(t, err)
	assert.True(t, neg.IsNegative())
}

func TestMoney_JSON(t *testing.T) {
	m, err := NewMoneyFromString("10", EUR)
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"10.00","currency":"EUR"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, m.Equals(back))

	assert.Error(t, json.Unmarshal([]byte(`{"amount":"1","currency":"BTC"}`), &back))
}
