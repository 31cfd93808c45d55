package expenses

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAdd(t *testing.T) {
	at := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	l := NewLedger(zaptest.NewLogger(t), func() time.Time { return at })

	e, err := l.Add(decimal.RequireFromString("12.40"), " ice ", CategoryExpense)
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, at, e.Date)
	assert.Equal(t, "ice", e.Description)
	assert.Equal(t, CategoryExpense, e.Category)

	tests := []struct {
		name     string
		amount   decimal.Decimal
		desc     string
		category Category
		wantErr  error
	}{
		{"zero amount", decimal.Zero, "x", CategoryLoss, ErrInvalidAmount},
		{"negative amount", decimal.NewFromInt(-3), "x", CategoryLoss, ErrInvalidAmount},
		{"blank description", decimal.NewFromInt(3), "   ", CategoryLoss, ErrEmptyDescription},
		{"unknown category", decimal.NewFromInt(3), "x", Category("salary"), ErrInvalidCategory},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Add(tc.amount, tc.desc, tc.category)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Len(t, l.All(), 1, "rejected expenses are not stored")
}

func TestDelete(t *testing.T) {
	l := NewLedger(zaptest.NewLogger(t), nil)
	e, err := l.Add(decimal.NewFromInt(5), "broken glass", CategoryLoss)
	require.NoError(t, err)

	got, err := l.Delete(e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.Empty(t, l.All())

	_, err = l.Delete(e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Get(e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutAndReplace(t *testing.T) {
	l := NewLedger(zaptest.NewLogger(t), nil)
	e := Expense{ID: "e1", Amount: decimal.NewFromInt(2), Description: "tape", Category: CategoryExpense}

	l.Put(e)
	e.Description = "duct tape"
	l.Put(e)
	require.Len(t, l.All(), 1)
	assert.Equal(t, "duct tape", l.All()[0].Description)

	l.Replace(nil)
	assert.Empty(t, l.All())
}
