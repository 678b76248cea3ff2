package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/otcl-exchange/otcl-settlement/pkg/crypto"
)

func TestOrderStatusString(t *testing.T) {
	assert.Equal(t, "OPEN", OrderStatusOpen.String())
	assert.Equal(t, "FILLED", OrderStatusFilled.String())
	assert.Equal(t, "CANCELLED", OrderStatusCancelled.String())
	assert.Equal(t, "EXPIRED", OrderStatusExpired.String())
	assert.Equal(t, "UNKNOWN", OrderStatus(99).String())
}

func TestOrderStatusIsTerminal(t *testing.T) {
	assert.False(t, OrderStatusOpen.IsTerminal())
	assert.True(t, OrderStatusFilled.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusExpired.IsTerminal())
}

func TestOrderCanTransitionTo(t *testing.T) {
	order := &Order{Status: OrderStatusOpen}
	assert.True(t, order.CanTransitionTo(OrderStatusFilled))
	assert.True(t, order.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, order.CanTransitionTo(OrderStatusExpired))
	assert.False(t, order.CanTransitionTo(OrderStatusOpen))

	// 终态封闭
	for _, s := range []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired} {
		order := &Order{Status: s}
		assert.False(t, order.CanTransitionTo(OrderStatusOpen))
		assert.False(t, order.CanTransitionTo(OrderStatusFilled))
		assert.False(t, order.CanTransitionTo(OrderStatusCancelled))
		assert.False(t, order.CanTransitionTo(OrderStatusExpired))
	}
}

func TestOrderIsExpired(t *testing.T) {
	order := &Order{ExpirationAt: 1000}
	assert.False(t, order.IsExpired(999))
	assert.True(t, order.IsExpired(1000))
	assert.True(t, order.IsExpired(1001))
}

func TestOrderCommitment(t *testing.T) {
	order := &Order{}
	assert.False(t, order.HasCommitment(), "nil hash means no commitment")

	order.CommitHash = make([]byte, crypto.CommitmentSize)
	assert.False(t, order.HasCommitment(), "all-zero hash means no commitment")

	h := crypto.HashOrderTerms(100, 500, 3600, false, 0)
	order.CommitHash = h[:]
	assert.True(t, order.HasCommitment())
	assert.Equal(t, h, order.Commitment())
}
