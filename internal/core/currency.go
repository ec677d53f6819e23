package core

import (
	"fmt"
	"math"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencyFormatter renders amounts as localized currency text with no
// fractional digits.
type CurrencyFormatter struct {
	printer *message.Printer
	unit    currency.Unit
	after   bool
}

// symbolAfterDigits lists languages that write the currency symbol after the
// amount, separated by a no-break space. x/text formats the digits per locale
// but leaves symbol placement to the caller.
var symbolAfterDigits = map[string]bool{
	"cs": true, "da": true, "de": true, "es": true, "fi": true, "fr": true, "it": true,
	"nb": true, "pl": true, "ru": true, "sk": true, "sv": true, "uk": true,
}

// German outside Germany keeps the symbol in front.
var symbolBeforeGermanRegions = map[string]bool{"AT": true, "CH": true, "LI": true}

func symbolFollows(tag language.Tag) bool {
	base, _ := tag.Base()
	if !symbolAfterDigits[base.String()] {
		return false
	}
	if base.String() == "de" {
		region, _ := tag.Region()
		return !symbolBeforeGermanRegions[region.String()]
	}
	return true
}

// NewCurrencyFormatter builds a formatter for a BCP-47 locale (e.g. "ja-JP")
// and an ISO-4217 currency code (e.g. "JPY").
func NewCurrencyFormatter(locale, code string) (*CurrencyFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", code, err)
	}
	return &CurrencyFormatter{printer: message.NewPrinter(tag), unit: unit, after: symbolFollows(tag)}, nil
}

// MustCurrencyFormatter is NewCurrencyFormatter for known-good constants.
func MustCurrencyFormatter(locale, code string) *CurrencyFormatter {
	f, err := NewCurrencyFormatter(locale, code)
	if err != nil {
		panic(err)
	}
	return f
}

// Format accepts anything CoerceAmount understands; nil, NaN and garbage
// render as zero.
func (f *CurrencyFormatter) Format(v any) string {
	amount := math.Round(CoerceAmount(v))
	symbol := f.printer.Sprint(currency.NarrowSymbol(f.unit))
	digits := f.printer.Sprintf("%v", number.Decimal(amount, number.MaxFractionDigits(0)))
	if f.after {
		return digits + "\u00a0" + symbol
	}
	return symbol + digits
}

// Code returns the ISO currency code.
func (f *CurrencyFormatter) Code() string {
	return f.unit.String()
}
