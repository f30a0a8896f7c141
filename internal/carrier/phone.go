package carrier

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDestination rejects numbers that cannot plausibly be dialed.
// Never retried.
var ErrInvalidDestination = errors.New("carrier: invalid destination number")

// NormalizePhone converts a destination to E.164.
//
// Accepted forms:
//   - 10 digits (assumed domestic): "5551234567" -> "+15551234567"
//   - "+"-prefixed international with at least 10 digits: kept as digits
//     behind the "+" ("+52 55 1234 5678" -> "+525512345678")
//
// Everything else is ErrInvalidDestination.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+")

	var b strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if hasPlus && len(digits) >= 10 {
		return "+" + digits, nil
	}
	if !hasPlus && len(digits) == 10 {
		return "+1" + digits, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDestination, raw)
}
