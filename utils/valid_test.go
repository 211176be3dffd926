package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeOptionalID(t *testing.T) {
	valid := primitive.NewObjectID()

	tests := []struct {
		name    string
		input   string
		want    *primitive.ObjectID
		wantErr bool
	}{
		{"empty is absent", "", nil, false},
		{"none sentinel is absent", "none", nil, false},
		{"sentinel is case insensitive", "None", nil, false},
		{"surrounding whitespace", "  none  ", nil, false},
		{"valid hex id", valid.Hex(), &valid, false},
		{"garbage is an error", "not-an-id", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeOptionalID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeOptionalRate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *float64
		wantErr bool
	}{
		{"empty is absent", "", nil, false},
		{"none sentinel is absent", "none", nil, false},
		{"zero is a real rate", "0", floatPtr(0), false},
		{"fractional rate", "7.5", floatPtr(7.5), false},
		{"upper bound included", "100", floatPtr(100), false},
		{"negative rejected", "-1", nil, true},
		{"above 100 rejected", "100.5", nil, true},
		{"garbage rejected", "ten", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeOptionalRate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestSanitizeEmail(t *testing.T) {
	got, err := SanitizeEmail("  Agent@Example.COM ")
	assert.NoError(t, err)
	assert.Equal(t, "agent@example.com", got)

	_, err = SanitizeEmail("not-an-email")
	assert.Error(t, err)
}

func TestGenerateReference(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ref := GenerateReference()
		assert.True(t, strings.HasPrefix(ref, "REF-"))
		assert.Len(t, ref, 17)
		assert.Equal(t, ref, strings.ToUpper(ref))
		assert.False(t, seen[ref], "references must not repeat")
		seen[ref] = true
	}
}
