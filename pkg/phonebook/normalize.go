package phonebook

import "strings"

// Normalize strips everything but digits from a phone number, keeping a plus
// sign only when it leads the result.
func Normalize(phoneNumber string) string {
	var b strings.Builder
	b.Grow(len(phoneNumber))
	for _, r := range phoneNumber {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
