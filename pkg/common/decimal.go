package common

import (
	decimal2 "github.com/govalues/decimal"
)

type Decimal struct {
	decimal2.Decimal
}

func NewDecimal(whole, frac int64, scale int) Decimal {
	res, err := decimal2.NewFromInt64(whole, frac, scale)
	if err != nil {
		panic(err)
	}
	return Decimal{Decimal: res}
}

func ParseDecimal(s string) (Decimal, error) {
	res, err := decimal2.Parse(s)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Decimal: res}, nil
}

func (dec *Decimal) Equal(o *Decimal) bool {
	return dec.Decimal.Cmp(o.Decimal) == 0
}

func (dec *Decimal) Less(o *Decimal) bool {
	return dec.Decimal.Cmp(o.Decimal) < 0
}

func (dec *Decimal) Add(o *Decimal) {
	res, err := dec.Decimal.Add(o.Decimal)
	if err != nil {
		panic(err)
	}
	dec.Decimal = res
}

func (dec *Decimal) String() string {
	return dec.Decimal.String()
}

// Canonical drops trailing zeros, so values that compare equal render equal.
func (dec *Decimal) Canonical() string {
	return dec.Decimal.Trim(0).String()
}
