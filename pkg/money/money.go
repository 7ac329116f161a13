// Package money implements fixed-point currency amounts held as integer minor
// units. Amounts are never converted to floating point.
package money

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Currency describes how a currency is written in marketplace text.
type Currency struct {
	Code             string
	Symbol           rune
	DecimalSeparator rune
	GroupSeparator   rune
	MinorUnitDigits  uint8
}

var (
	GBP = &Currency{Code: "GBP", Symbol: '£', DecimalSeparator: '.', GroupSeparator: ',', MinorUnitDigits: 2}
	USD = &Currency{Code: "USD", Symbol: '$', DecimalSeparator: '.', GroupSeparator: ',', MinorUnitDigits: 2}
	EUR = &Currency{Code: "EUR", Symbol: '€', DecimalSeparator: ',', GroupSeparator: '.', MinorUnitDigits: 2}
)

// LookupCurrency returns the predefined currency for an ISO code.
func LookupCurrency(code string) (*Currency, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "GBP":
		return GBP, nil
	case "USD":
		return USD, nil
	case "EUR":
		return EUR, nil
	default:
		return nil, fmt.Errorf("unknown currency %q", code)
	}
}

// scale returns 10^MinorUnitDigits.
func (c *Currency) scale() int64 {
	s := int64(1)
	for i := uint8(0); i < c.MinorUnitDigits; i++ {
		s *= 10
	}
	return s
}

// ParseError reports marketplace price text that cannot be read as money.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse money %q: %s", e.Text, e.Reason)
}

// Money is an amount in minor units of a currency.
type Money struct {
	minor    int64
	currency *Currency
}

// New builds a Money from a minor-unit amount.
func New(minor int64, c *Currency) Money {
	return Money{minor: minor, currency: c}
}

// Parse reads free-form price text such as "£1,234.50".
func Parse(text string, c *Currency) (Money, error) {
	s := strings.TrimSpace(text)
	if r, size := utf8.DecodeRuneInString(s); r == c.Symbol {
		s = s[size:]
	}

	parts := strings.Split(s, string(c.DecimalSeparator))
	if len(parts) > 2 {
		return Money{}, &ParseError{Text: text, Reason: "more than one decimal separator"}
	}

	major := strings.ReplaceAll(parts[0], string(c.GroupSeparator), "")
	minor := ""
	if len(parts) == 2 {
		minor = parts[1]
	}
	if major == "" && minor == "" {
		return Money{}, &ParseError{Text: text, Reason: "no digits"}
	}
	if len(minor) > int(c.MinorUnitDigits) {
		return Money{}, &ParseError{Text: text, Reason: "too many fractional digits"}
	}
	minor += strings.Repeat("0", int(c.MinorUnitDigits)-len(minor))

	digits := major + minor
	total, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return Money{}, &ParseError{Text: text, Reason: "invalid digits"}
	}
	if total > math.MaxInt64 {
		return Money{}, &ParseError{Text: text, Reason: "amount out of range"}
	}

	return Money{minor: int64(total), currency: c}, nil
}

// Minor returns the amount in minor units.
func (m Money) Minor() int64 { return m.minor }

// Currency returns the currency descriptor.
func (m Money) Currency() *Currency { return m.currency }

// Add returns m+o. Both amounts must share a currency.
func (m Money) Add(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("add %s to %s: currency mismatch", o.currency.Code, m.currency.Code)
	}
	return Money{minor: m.minor + o.minor, currency: m.currency}, nil
}

// String formats the amount as symbol, major units, separator and
// zero-padded minor units. Group separators are not written.
func (m Money) String() string {
	c := m.currency
	if c == nil {
		return strconv.FormatInt(m.minor, 10)
	}

	var b strings.Builder
	amount := m.minor
	if amount < 0 {
		b.WriteByte('-')
		amount = -amount
	}
	b.WriteRune(c.Symbol)
	if c.MinorUnitDigits == 0 {
		b.WriteString(strconv.FormatInt(amount, 10))
		return b.String()
	}

	scale := c.scale()
	b.WriteString(strconv.FormatInt(amount/scale, 10))
	b.WriteRune(c.DecimalSeparator)
	frac := strconv.FormatInt(amount%scale, 10)
	b.WriteString(strings.Repeat("0", int(c.MinorUnitDigits)-len(frac)))
	b.WriteString(frac)
	return b.String()
}

type jsonMoney struct {
	Minor    int64  `json:"minor"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	code := ""
	if m.currency != nil {
		code = m.currency.Code
	}
	return json.Marshal(jsonMoney{Minor: m.minor, Currency: code, Display: m.String()})
}

// MeanMinor returns the truncated integer mean of minor-unit amounts. The
// second result is false when values is empty.
func MeanMinor(values []int64) (int64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum int64
	for _, v := range values {
		sum += v
	}
	return sum / int64(len(values)), true
}
