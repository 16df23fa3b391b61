// Package validation wires the shared validator instance and the
// normalization helpers applied before every write.
package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	emailRx     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRx     = regexp.MustCompile(`^\+?[0-9][0-9\s\-().]{5,19}$`)
	hhmmRx      = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	paymentIDRx = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	currencyRx  = regexp.MustCompile(`^[A-Z]{3}$`)
)

// New returns the registry's validator instance. Struct tags cover
// request shape; field grammar goes through the ValidX helpers so the
// managers control the violation messages.
func New() *validator.Validate {
	return validator.New()
}

// NormalizeEmail lower-cases and trims an address so uniqueness
// comparisons are case- and whitespace-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidEmail reports whether the address matches the accepted grammar.
func ValidEmail(email string) bool {
	return emailRx.MatchString(email)
}

// ValidPhone reports whether the number matches the accepted grammar.
func ValidPhone(phone string) bool {
	return phoneRx.MatchString(phone)
}

// ValidTimeHHMM reports whether v is a zero-padded 24-hour HH:mm time.
// Zero-padding makes lexicographic comparison equivalent to time order.
func ValidTimeHHMM(v string) bool {
	return hhmmRx.MatchString(v)
}

// ValidPaymentID reports whether v matches the payment reference grammar.
func ValidPaymentID(v string) bool {
	return paymentIDRx.MatchString(v)
}

// ValidCurrency reports whether v is a three-letter uppercase code.
func ValidCurrency(v string) bool {
	return currencyRx.MatchString(v)
}
