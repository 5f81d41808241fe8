package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestRound2(t *testing.T) {
	cases := map[string]string{
		"1.005":   "1.01",
		"1.004":   "1.00",
		"2.675":   "2.68",
		"-1.005":  "-1.01",
		"0.125":   "0.13",
		"33.3333": "33.33",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, MustParse(in).Round2().String())
		})
	}
}

func TestArithmetic(t *testing.T) {
	t.Run("card unit price times kids", func(t *testing.T) {
		got := FromInt(1000).DivInt(10).MulInt(3).Round2()
		assert.Equal(t, "300.00", got.String())
	})

	t.Run("thirds round back to total", func(t *testing.T) {
		third := FromInt(100).DivInt(3).Round2()
		assert.Equal(t, "33.33", third.String())
		assert.Equal(t, "0.01", FromInt(100).Sub(third.MulInt(3)).String())
	})

	t.Run("division by zero", func(t *testing.T) {
		assert.True(t, FromInt(5).Div(Zero).IsZero())
	})

	t.Run("min max", func(t *testing.T) {
		assert.Equal(t, "10.00", Min(New(10), New(50)).String())
		assert.Equal(t, "50.00", Max(New(10), New(50)).String())
	})

	t.Run("at least cent", func(t *testing.T) {
		assert.True(t, MustParse("0.01").AtLeastCent())
		assert.False(t, MustParse("0.009").AtLeastCent())
		assert.False(t, New(-3).AtLeastCent())
	})
}

func TestFen(t *testing.T) {
	assert.Equal(t, int64(1), MustParse("0.01").Fen())
	assert.Equal(t, int64(24800), New(248).Fen())
	assert.Equal(t, int64(1235), MustParse("12.345").Fen())
	assert.Equal(t, "12.34", FromFen(1234).String())
}

func TestJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Price Amount `json:"price"`
	}{Price: New(496)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":496.00}`, string(b))

	var in struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12.5,"b":"0.30"}`), &in))
	assert.Equal(t, "12.50", in.A.String())
	assert.Equal(t, "0.30", in.B.String())
}

func TestBSONDecodesLegacyNumbers(t *testing.T) {
	type doc struct {
		Amount Amount `bson:"amount"`
	}

	t.Run("decimal128", func(t *testing.T) {
		raw, err := bson.Marshal(doc{Amount: MustParse("80.10")})
		require.NoError(t, err)
		var out doc
		require.NoError(t, bson.Unmarshal(raw, &out))
		assert.Equal(t, "80.10", out.Amount.String())
	})

	t.Run("double", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"amount": 12.5})
		require.NoError(t, err)
		var out doc
		require.NoError(t, bson.Unmarshal(raw, &out))
		assert.Equal(t, "12.50", out.Amount.String())
	})

	t.Run("int", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"amount": int32(7)})
		require.NoError(t, err)
		var out doc
		require.NoError(t, bson.Unmarshal(raw, &out))
		assert.Equal(t, "7.00", out.Amount.String())
	})
}
