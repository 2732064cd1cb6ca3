package collector

import "strings"

const (
	cardNumberDigits = 16
	expiryDigits     = 4
)

// FormatCardNumber keeps at most 16 digits and groups them in blocks of four.
func FormatCardNumber(input string) string {
	digits := onlyDigits(input, cardNumberDigits)

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatExpiry keeps at most 4 digits and renders MM / YY once a third digit is typed.
func FormatExpiry(input string) string {
	digits := onlyDigits(input, expiryDigits)
	if len(digits) >= 3 {
		return digits[:2] + " / " + digits[2:]
	}
	return digits
}

func onlyDigits(s string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
