package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencyPrefix is printed in front of every rendered amount.
const CurrencyPrefix = "Rs."

var printer = message.NewPrinter(language.MustParse("en-IN"))

// Format renders an amount with locale digit grouping, e.g. Rs.1,24,500.00.
// Only the whole rupees go through the printer; paise are appended exactly.
func Format(v decimal.Decimal) string {
	v = Round2(v)
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Neg()
	}
	whole := v.Truncate(0)
	paise := v.Sub(whole).Shift(2).IntPart()
	return sign + CurrencyPrefix + printer.Sprintf("%d", whole.IntPart()) + fmt.Sprintf(".%02d", paise)
}

// FormatPercent drops insignificant zeros: 18 -> "18%", 12.5 -> "12.5%".
func FormatPercent(p decimal.Decimal) string {
	return p.String() + "%"
}
