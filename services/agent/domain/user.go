package domain

import (
	"strings"
	"time"
	"unicode"
)

// PlaceholderName is assigned to users created during booking before the
// caller has told us their name.
const PlaceholderName = "Guest"

type User struct {
	ID          int64     `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	FullName    string    `json:"full_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NormalizePhone strips every non-digit character from a phone number.
func NormalizePhone(phone string) string {
	var result strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
