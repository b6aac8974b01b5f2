package pairing

import (
	"strings"
	"unicode"

	"github.com/satriahrh/lexlink/domain"
)

// phoneFromUser extracts the phone number from a WhatsApp user id such as
// "5511999999999:12@s.whatsapp.net". fallback is used when the id carries no
// digits.
func phoneFromUser(user *domain.LinkUser, fallback string) string {
	if user != nil {
		id := user.ID
		if i := strings.IndexAny(id, ":@"); i >= 0 {
			id = id[:i]
		}
		if phone := digits(id); phone != "" {
			return phone
		}
	}
	return digits(fallback)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
