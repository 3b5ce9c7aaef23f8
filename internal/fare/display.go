package fare

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidDisplay is returned when a display string has no parsable amount.
var ErrInvalidDisplay = errors.New("invalid fare display string")

const currencySymbol = "£"

// FormatMoney renders an amount in pounds with two decimals.
func FormatMoney(d decimal.Decimal) string {
	return currencySymbol + RoundMoney(d).StringFixed(2)
}

// Display renders the fare for the customer: "£64.01" for mileage-based
// services, "£85.00/h + £35.00" for As Directed with extras, "£85.00/h" without.
func Display(b *Breakdown) string {
	if !b.ServiceType.Hourly() {
		return FormatMoney(b.Total)
	}
	hourly := FormatMoney(b.HourlyRate) + "/h"
	if len(b.Items) == 0 {
		return hourly
	}
	return hourly + " + " + FormatMoney(b.ExtrasAmount())
}

// ParseDisplayAmount returns the first amount in a display string in pence.
func ParseDisplayAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, currencySymbol) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDisplay, s)
	}
	s = strings.TrimPrefix(s, currencySymbol)
	if i := strings.IndexAny(s, "/ "); i >= 0 {
		s = s[:i]
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDisplay, err)
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}
