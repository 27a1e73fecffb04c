package scheduling

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Cents is a monetary amount in the minor currency unit. It is the only
// representation that is ever persisted.
type Cents int64

// MaxExactCents bounds the amounts for which a round trip through the display
// float is guaranteed lossless.
const MaxExactCents Cents = (1 << 53) / 100

// ToDisplay converts cents to the decimal amount shown in forms (cents / 100).
func ToDisplay(c Cents) float64 {
	return float64(c) / 100
}

// ToCents converts a display amount back to cents, rounding to the nearest
// cent. ToCents(ToDisplay(c)) == c for 0 <= c <= MaxExactCents.
func ToCents(display float64) Cents {
	return Cents(math.Round(display * 100))
}

// String renders the amount with exactly two decimals, without going through
// a float.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParsePrice parses a decimal amount such as "150", "150.5" or "150,50".
// Signs and amounts above MaxExactCents are rejected.
func ParsePrice(s string) (Cents, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || len(frac) > 2 || !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, invalidPrice()
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > int64(MaxExactCents)/100 {
		return 0, invalidPrice()
	}
	var f int64
	if frac != "" {
		if f, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return 0, invalidPrice()
		}
		if len(frac) == 1 {
			f *= 10
		}
	}
	c := Cents(w*100 + f)
	if c > MaxExactCents {
		return 0, invalidPrice()
	}
	return c, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func invalidPrice() error {
	return apperrors.NewFieldValidation("appointment_price", MsgPriceInvalid)
}

// Price is the doctor rate as exposed to clients.
type Price struct {
	Cents   Cents   `json:"cents"`
	Display float64 `json:"display"`
}

// NewPrice builds the client view of an amount.
func NewPrice(c Cents) Price {
	return Price{Cents: c, Display: ToDisplay(c)}
}

// MarshalJSON adds the formatted amount so clients never format floats.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Cents     Cents   `json:"cents"`
		Display   float64 `json:"display"`
		Formatted string  `json:"formatted"`
	}{p.Cents, p.Display, p.Cents.String()})
}
