package xrpamount

import "fmt"

// Amount is an XRP value expressed in drops, the smallest unit of XRP.
type Amount int64

const DropsPerXRP Amount = 1_000_000

func FromDrops(drops int64) Amount {
	return Amount(drops)
}

func FromDecimalXRP(xrp float64) Amount {
	return Amount(xrp * float64(DropsPerXRP))
}

func (a Amount) Drops() int64 {
	return int64(a)
}

func (a Amount) DecimalXRP() float64 {
	return float64(a) / float64(DropsPerXRP)
}

func (a Amount) Add(other Amount) Amount {
	return a + other
}

func (a Amount) Sub(other Amount) Amount {
	return a - other
}

func (a Amount) IsPositive() bool {
	return a > 0
}

func (a Amount) IsNegative() bool {
	return a < 0
}

func (a Amount) IsZero() bool {
	return a == 0
}

func (a Amount) String() string {
	return fmt.Sprintf("%d", int64(a))
}

// FormatXRP renders the amount in decimal XRP for display,
// e.g. "100.500000 XRP".
func (a Amount) FormatXRP() string {
	return fmt.Sprintf("%.6f XRP", a.DecimalXRP())
}
