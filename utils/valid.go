// utils/valid.go
package utils

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// noneSentinel is the magic string older dashboard builds sent for "no
// selection" on optional foreign keys and overrides. It is normalized to
// absent here at the edge and never reaches the data model.
const noneSentinel = "none"

// NormalizeOptionalID parses an optional ObjectID field, treating "" and
// the legacy "none" sentinel as absent.
func NormalizeOptionalID(s string) (*primitive.ObjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, noneSentinel) {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, errors.New("invalid id format")
	}
	return &id, nil
}

// NormalizeOptionalRate parses an optional commission percentage, treating
// "" and "none" as absent and enforcing the [0,100] bound.
func NormalizeOptionalRate(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, noneSentinel) {
		return nil, nil
	}
	rate, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("invalid commission rate")
	}
	if rate < 0 || rate > 100 {
		return nil, errors.New("commission rate must be between 0 and 100")
	}
	return &rate, nil
}

// SanitizeEmail sanitizes and validates an email address
func SanitizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	if !emailRegex.MatchString(email) {
		return "", errors.New("invalid email format")
	}

	return email, nil
}
