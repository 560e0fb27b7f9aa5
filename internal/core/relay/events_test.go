package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_DataAndTopLevelFields(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"product_price_changed","data":{"updated_count":3,"product_ids":[1,2,3]},"timestamp":"2025-03-01T12:00:00"}`))
	require.NoError(t, err)

	p, ok := ev.(*ProductEvent)
	require.True(t, ok)
	assert.Equal(t, KindProductPriceChanged, p.Kind())
	assert.Equal(t, 3, p.UpdatedCount)
	assert.Equal(t, []int64{1, 2, 3}, p.ProductIDs)
	assert.Equal(t, "2025-03-01T12:00:00", p.Timestamp)
	assert.NotEmpty(t, p.Raw)

	ev, err = Decode([]byte(`{"type":"connected","message":"hello","connections":4}`))
	require.NoError(t, err)
	c, ok := ev.(*ConnectedEvent)
	require.True(t, ok)
	assert.Equal(t, 4, c.Connections)
	assert.Equal(t, "hello", c.Message)
}

func TestDecode_Pong(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"pong","timestamp":1740830400000}`))
	require.NoError(t, err)

	p, ok := ev.(*PongEvent)
	require.True(t, ok)
	assert.Equal(t, int64(1740830400000), p.SentAt)
	assert.Equal(t, "1740830400000", p.Timestamp)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`nope`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, errNoType)

	ev, err := Decode([]byte(`{"type":"order_created","data":{"order_count":"many"}}`))
	assert.ErrorIs(t, err, ErrPayload)
	require.NotNil(t, ev)
	assert.Equal(t, KindOrderCreated, ev.Kind())
}

func TestDecode_MismatchedPayloadKeepsKind(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		kind  Kind
		check func(t *testing.T, ev Event)
	}{
		{
			name:  "fractional stock",
			frame: `{"type":"stock_low","data":{"product_name":"Mug","stock":2.0},"timestamp":"2025-03-01T12:00:00"}`,
			kind:  KindStockLow,
			check: func(t *testing.T, ev Event) {
				s, ok := ev.(*StockEvent)
				require.True(t, ok)
				assert.Nil(t, s.Stock)
				assert.Empty(t, s.ProductName)
				assert.Equal(t, "2025-03-01T12:00:00", s.Timestamp)
			},
		},
		{
			name:  "string order id",
			frame: `{"type":"order_created","data":{"order_id":"TY-1"}}`,
			kind:  KindOrderCreated,
			check: func(t *testing.T, ev Event) {
				o, ok := ev.(*OrderEvent)
				require.True(t, ok)
				assert.Zero(t, o.OrderID)
			},
		},
		{
			name:  "string price",
			frame: `{"type":"product_synced","data":{"price":"12.50"}}`,
			kind:  KindProductSynced,
			check: func(t *testing.T, ev Event) {
				p, ok := ev.(*ProductEvent)
				require.True(t, ok)
				assert.Zero(t, p.Price)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.frame))
			require.ErrorIs(t, err, ErrPayload)
			require.NotNil(t, ev)
			assert.Equal(t, tt.kind, ev.Kind())
			assert.JSONEq(t, tt.frame, string(ev.EventMeta().Raw))
			tt.check(t, ev)
		})
	}
}

func TestEveryKindHasPayload(t *testing.T) {
	for _, k := range Kinds {
		_, ok := constructors[k]
		assert.True(t, ok, "kind %s has no constructor", k)
	}
}

func TestFlatPolicy(t *testing.T) {
	p := DefaultFlatPolicy()
	for n := 1; n <= 5; n++ {
		d, ok := p.Next(n)
		require.True(t, ok)
		assert.Equal(t, 3*time.Second, d)
	}
	_, ok := p.Next(6)
	assert.False(t, ok)
}

func TestExponentialPolicy(t *testing.T) {
	p := DefaultExponentialPolicy()
	want := []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		d, ok := p.Next(i + 1)
		require.True(t, ok)
		assert.Equal(t, w, d, "attempt %d", i+1)
	}
	_, ok := p.Next(6)
	assert.False(t, ok)
}
