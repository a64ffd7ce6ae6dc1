package whatsapp

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers written without a country code
const DefaultRegion = "ID"

// NormalizePhone converts a user-entered phone number into the digits-only
// E.164 form the Cloud API expects (no leading +)
func NormalizePhone(raw, region string) (string, error) {
	number := strings.TrimSpace(raw)
	if number == "" {
		return "", fmt.Errorf("phone number is empty")
	}
	if strings.HasPrefix(number, "00") {
		number = "+" + strings.TrimPrefix(number, "00")
	}
	if region == "" {
		region = DefaultRegion
	}

	parsed, err := phonenumbers.Parse(number, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("invalid phone number %q: %w", raw, err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number %q", raw)
	}

	return strings.TrimPrefix(phonenumbers.Format(parsed, phonenumbers.E164), "+"), nil
}
