package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMCValue(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"500K", 500_000, false},
		{"500k", 500_000, false},
		{"50M", 50_000_000, false},
		{"1.5m", 1_500_000, false},
		{"1000000", 1_000_000, false},
		{" 300K ", 300_000, false},
		{"abc", 0, true},
		{"", 0, true},
		{"12KB", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMCValue(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "in=%q", tt.in)
			continue
		}
		require.NoError(t, err, "in=%q", tt.in)
		assert.Equal(t, tt.want, got, "in=%q", tt.in)
	}
}
