// Package money holds the currency arithmetic used by pricing and settlement.
// Intermediate results keep full precision; Round2 is the only rounding point.
package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Places is the number of decimal places a currency amount keeps.
const Places = 2

var (
	Zero = Amount{}
	// Cent is the smallest chargeable amount, 0.01.
	Cent = Amount{d: decimal.New(1, -Places)}
)

// Amount is a currency value. The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

func New(v float64) Amount {
	return Amount{d: decimal.NewFromFloat(v)}.Round2()
}

func FromInt(v int64) Amount {
	return Amount{d: decimal.NewFromInt(v)}
}

// FromFen converts an integer amount of cents.
func FromFen(v int64) Amount {
	return Amount{d: decimal.New(v, -Places)}
}

func FromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d}
}

// Parse reads a decimal string such as "12.30".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Round2 rounds half away from zero to two places.
func (a Amount) Round2() Amount {
	return Amount{d: a.d.Round(Places)}
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Mul(b Amount) Amount { return Amount{d: a.d.Mul(b.d)} }
func (a Amount) MulInt(n int) Amount { return Amount{d: a.d.Mul(decimal.NewFromInt(int64(n)))} }
func (a Amount) Neg() Amount { return Amount{d: a.d.Neg()} }
func (a Amount) Abs() Amount { return Amount{d: a.d.Abs()} }

// Div divides with 16 digits of intermediate precision. Division by zero yields zero.
func (a Amount) Div(b Amount) Amount {
	if b.d.IsZero() {
		return Zero
	}
	return Amount{d: a.d.DivRound(b.d, 16)}
}

func (a Amount) DivInt(n int) Amount {
	return a.Div(FromInt(int64(n)))
}

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }
func (a Amount) GreaterOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }
func (a Amount) IsZero() bool { return a.d.IsZero() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// AtLeastCent reports whether a is a chargeable amount (>= 0.01).
func (a Amount) AtLeastCent() bool {
	return a.d.GreaterThanOrEqual(Cent.d)
}

// Fen returns the amount in integer cents after rounding.
func (a Amount) Fen() int64 {
	return a.d.Shift(Places).Round(0).IntPart()
}

func (a Amount) Float64() float64 {
	f, _ := a.d.Float64()
	return f
}

func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) String() string {
	return a.d.StringFixed(Places)
}

func Min(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func Max(a, b Amount) Amount {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Sum adds amounts without intermediate rounding.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MarshalJSON writes a bare number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.StringFixed(Places)), nil
}

// UnmarshalJSON accepts both numbers and quoted numbers.
func (a *Amount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = Zero
		return nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	a.d = d
	return nil
}

// MarshalBSONValue stores the amount as Decimal128.
func (a Amount) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(a.d.String())
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode amount %s: %w", a.d.String(), err)
	}
	return bson.MarshalValue(d128)
}

// UnmarshalBSONValue reads Decimal128, double, int32/int64 or null.
func (a *Amount) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Decimal128:
		d128, ok := raw.Decimal128OK()
		if !ok {
			return fmt.Errorf("invalid decimal128 amount")
		}
		d, err := decimal.NewFromString(d128.String())
		if err != nil {
			return fmt.Errorf("invalid decimal128 amount: %w", err)
		}
		a.d = d
	case bsontype.Double:
		a.d = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		a.d = decimal.NewFromInt(int64(raw.Int32()))
	case bsontype.Int64:
		a.d = decimal.NewFromInt(raw.Int64())
	case bsontype.Null, bsontype.Undefined:
		a.d = decimal.Zero
	default:
		return fmt.Errorf("cannot decode %s into money.Amount", t)
	}
	return nil
}
