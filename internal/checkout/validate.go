package checkout

import (
	"regexp"
	"strings"

	"shop-service/internal/models"
)

var (
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
)

// validateRequest checks the contact, shipping, and (for card payments)
// card fields. Runs before any gateway interaction, so a failure never
// consumes a payment intent.
func validateRequest(req *Request) *models.ValidationError {
	required := []struct {
		field string
		value string
	}{
		{"name", req.Name},
		{"email", req.Email},
		{"phone", req.Phone},
		{"address", req.Address},
		{"city", req.City},
		{"state", req.State},
		{"zip", req.Zip},
		{"payment_method_id", req.PaymentMethodID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &models.ValidationError{Field: r.field, Message: "is required"}
		}
	}

	if !emailPattern.MatchString(req.Email) {
		return &models.ValidationError{Field: "email", Message: "is not a valid email address"}
	}

	if req.PaymentMethodID == "pm-card" {
		number := strings.ReplaceAll(req.CardNumber, " ", "")
		if len(number) < 16 {
			return &models.ValidationError{Field: "card_number", Message: "must have at least 16 digits"}
		}
		if !expiryPattern.MatchString(req.CardExpiry) {
			return &models.ValidationError{Field: "card_expiry", Message: "must match MM/YY"}
		}
		if len(req.CardCVV) < 3 {
			return &models.ValidationError{Field: "card_cvv", Message: "must have at least 3 digits"}
		}
	}

	return nil
}
