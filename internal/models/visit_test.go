package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderPending, OrderConfirmed, true},
		{OrderPending, OrderCancelled, true},
		{OrderPending, OrderShipped, false},
		{OrderPending, OrderDelivered, false},
		{OrderConfirmed, OrderShipped, true},
		{OrderConfirmed, OrderCancelled, true},
		{OrderConfirmed, OrderDelivered, false},
		{OrderConfirmed, OrderPending, false},
		{OrderShipped, OrderDelivered, true},
		{OrderShipped, OrderCancelled, false},
		{OrderShipped, OrderPending, false},
		{OrderDelivered, OrderCancelled, false},
		{OrderDelivered, OrderPending, false},
		{OrderCancelled, OrderPending, false},
		{OrderCancelled, OrderConfirmed, false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderDelivered.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderPending.Terminal())
	assert.False(t, OrderConfirmed.Terminal())
	assert.False(t, OrderShipped.Terminal())
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, OrderPending.Valid())
	assert.False(t, OrderStatus("Returned").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestVisitStatusSuccessful(t *testing.T) {
	assert.True(t, VisitCompleted.Successful())
	assert.True(t, VisitApproved.Successful())
	assert.False(t, VisitPending.Successful())
	assert.False(t, VisitRejected.Successful())
}
