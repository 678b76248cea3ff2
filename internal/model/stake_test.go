package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeVipTier(t *testing.T) {
	tests := []struct {
		amount uint64
		want   uint8
	}{
		{0, 0},
		{1, 1},
		{999, 1},
		{1000, 2},
		{4999, 2},
		{5000, 3},
		{100000, 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeVipTier(tt.amount), "amount=%d", tt.amount)
	}
}
