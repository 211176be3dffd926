// utils/reference.go
package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateReference produces a payment reference number for records that
// arrive without one, so every payout stays traceable.
func GenerateReference() string {
	return "REF-" + strings.ToUpper(uuid.NewString()[:13])
}
