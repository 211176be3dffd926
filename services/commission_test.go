package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestResolveCommissionPrecedence(t *testing.T) {
	tests := []struct {
		name           string
		amount         float64
		txnOverride    *float64
		clientOverride *float64
		agentRate      *float64
		wantRate       float64
		wantCommission float64
	}{
		{
			name:           "transaction override wins over everything",
			amount:         1000,
			txnOverride:    ptr(12),
			clientOverride: ptr(8),
			agentRate:      ptr(5),
			wantRate:       12,
			wantCommission: 120,
		},
		{
			name:           "client override wins over agent rate",
			amount:         1000,
			clientOverride: ptr(8),
			agentRate:      ptr(5),
			wantRate:       8,
			wantCommission: 80,
		},
		{
			name:           "agent rate is the default",
			amount:         1000,
			agentRate:      ptr(5),
			wantRate:       5,
			wantCommission: 50,
		},
		{
			name:           "no source resolves to zero",
			amount:         1000,
			wantRate:       0,
			wantCommission: 0,
		},
		{
			name:           "zero override beats a nonzero agent rate",
			amount:         1000,
			txnOverride:    ptr(0),
			agentRate:      ptr(5),
			wantRate:       0,
			wantCommission: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, commission := ResolveCommission(tt.amount, tt.txnOverride, tt.clientOverride, tt.agentRate)
			assert.Equal(t, tt.wantRate, rate)
			assert.Equal(t, tt.wantCommission, commission)
		})
	}
}

func TestResolveCommissionRounding(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		rate   float64
		want   float64
	}{
		{"half rounds up", 333.33, 7.5, 25.00},
		{"exact two places", 100, 12.5, 12.50},
		{"tiny amount", 0.01, 50, 0.01},
		{"repeating fraction", 100, 33.33, 33.33},
		{"binary float trap", 0.1, 10, 0.01},
		{"midpoint rounds away from zero", 1.25, 10, 0.13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, commission := ResolveCommission(tt.amount, &tt.rate, nil, nil)
			assert.Equal(t, tt.want, commission)
		})
	}
}

func TestResolveCommissionIsStable(t *testing.T) {
	// Recomputing from the same inputs must always land on the same figure.
	rate := 7.25
	_, first := ResolveCommission(1234.56, nil, &rate, nil)
	for i := 0; i < 100; i++ {
		_, again := ResolveCommission(1234.56, nil, &rate, nil)
		assert.Equal(t, first, again)
	}
}

func TestValidRate(t *testing.T) {
	assert.True(t, ValidRate(0))
	assert.True(t, ValidRate(100))
	assert.True(t, ValidRate(7.5))
	assert.False(t, ValidRate(-0.01))
	assert.False(t, ValidRate(100.01))
}
