package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingOrder() *Order {
	return &Order{
		Status: OrderStatusPending,
		Items: []OrderProduct{
			{ProductID: 1, VendorID: 10, Quantity: 2, UnitPrice: 100_000, Subtotal: 200_000},
			{ProductID: 2, VendorID: 11, Quantity: 1, UnitPrice: 5_000, Subtotal: 5_000},
		},
		History: []StatusChange{{Status: OrderStatusPending, Comment: "order created"}},
	}
}

func TestOrder_HappyPath(t *testing.T) {
	o := pendingOrder()

	require.NoError(t, o.Confirm("vendor accepted"))
	assert.Equal(t, OrderStatusConfirmed, o.Status)

	require.NoError(t, o.StartProcessing(""))
	assert.Equal(t, OrderStatusProcessing, o.Status)

	require.NoError(t, o.Ship("TRK-001", "servientrega", "left warehouse"))
	assert.Equal(t, OrderStatusShipped, o.Status)
	require.NotNil(t, o.Shipment)
	assert.Equal(t, "TRK-001", o.Shipment.TrackingNumber)
	assert.Equal(t, "servientrega", o.Shipment.Carrier)

	require.NoError(t, o.MarkDelivered("left at door"))
	assert.Equal(t, OrderStatusDelivered, o.Status)
	assert.False(t, o.ReviewEligible, "delivery alone does not unlock reviews")

	require.NoError(t, o.ConfirmDelivery(5, "all good"))
	assert.True(t, o.ReviewEligible)

	// One history entry per transition plus creation and attestation.
	require.Len(t, o.History, 6)
	statuses := make([]OrderStatus, len(o.History))
	for i, h := range o.History {
		statuses[i] = h.Status
	}
	assert.Equal(t, []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusDelivered,
	}, statuses)
}

func TestOrder_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		call func(*Order) error
	}{
		{"confirm from processing", OrderStatusProcessing, func(o *Order) error { return o.Confirm("") }},
		{"confirm from cancelled", OrderStatusCancelled, func(o *Order) error { return o.Confirm("") }},
		{"process from pending", OrderStatusPending, func(o *Order) error { return o.StartProcessing("") }},
		{"ship from confirmed", OrderStatusConfirmed, func(o *Order) error { return o.Ship("T", "C", "") }},
		{"ship from shipped", OrderStatusShipped, func(o *Order) error { return o.Ship("T", "C", "") }},
		{"deliver from processing", OrderStatusProcessing, func(o *Order) error { return o.MarkDelivered("") }},
		{"confirm delivery from shipped", OrderStatusShipped, func(o *Order) error { return o.ConfirmDelivery(5, "") }},
		{"dispute from pending", OrderStatusPending, func(o *Order) error {
			return o.DisputeDelivery("broken", []Problem{{Type: "damage", Description: "cracked"}})
		}},
		{"cancel from shipped", OrderStatusShipped, func(o *Order) error { return o.Cancel("") }},
		{"cancel from delivered", OrderStatusDelivered, func(o *Order) error { return o.Cancel("") }},
		{"cancel from cancelled", OrderStatusCancelled, func(o *Order) error { return o.Cancel("") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := pendingOrder()
			o.Status = tt.from
			historyLen := len(o.History)

			err := tt.call(o)

			assert.ErrorIs(t, err, ErrIllegalTransition)
			assert.Equal(t, tt.from, o.Status, "status must not change on a rejected transition")
			assert.Len(t, o.History, historyLen, "rejected transitions leave no audit entry")
		})
	}
}

func TestOrder_CancelFromEarlyStates(t *testing.T) {
	for _, from := range []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing} {
		o := pendingOrder()
		o.Status = from

		require.NoError(t, o.Cancel("changed my mind"))
		assert.Equal(t, OrderStatusCancelled, o.Status)
	}
}

func TestOrder_ShipRequiresTrackingData(t *testing.T) {
	o := pendingOrder()
	o.Status = OrderStatusProcessing

	assert.ErrorIs(t, o.Ship("", "servientrega", ""), ErrShipmentDataRequired)
	assert.ErrorIs(t, o.Ship("TRK-001", "", ""), ErrShipmentDataRequired)
	assert.Equal(t, OrderStatusProcessing, o.Status)
	assert.Nil(t, o.Shipment)
}

func TestOrder_AttestationIsOneTime(t *testing.T) {
	o := pendingOrder()
	o.Status = OrderStatusDelivered

	require.NoError(t, o.ConfirmDelivery(4, "thanks"))
	assert.ErrorIs(t, o.ConfirmDelivery(4, "again"), ErrDeliveryAlreadyAttested)
	assert.ErrorIs(t, o.DisputeDelivery("late", []Problem{{Type: "delay", Description: "2 weeks"}}), ErrDeliveryAlreadyAttested)
}

func TestOrder_ConfirmDeliveryRejectsBadRating(t *testing.T) {
	o := pendingOrder()
	o.Status = OrderStatusDelivered

	assert.ErrorIs(t, o.ConfirmDelivery(6, ""), ErrInvalidInput)
	assert.ErrorIs(t, o.ConfirmDelivery(-1, ""), ErrInvalidInput)
	assert.Nil(t, o.Delivery)
	assert.False(t, o.ReviewEligible)
}

func TestOrder_DisputeRequiresStructuredProblems(t *testing.T) {
	cases := []struct {
		name     string
		comment  string
		problems []Problem
	}{
		{"no comment", "", []Problem{{Type: "damage", Description: "cracked"}}},
		{"no problems", "arrived broken", nil},
		{"problem missing type", "arrived broken", []Problem{{Description: "cracked"}}},
		{"problem missing description", "arrived broken", []Problem{{Type: "damage"}}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			o := pendingOrder()
			o.Status = OrderStatusDelivered

			assert.ErrorIs(t, o.DisputeDelivery(tt.comment, tt.problems), ErrDisputeDataRequired)
			assert.Nil(t, o.Delivery)
		})
	}
}

func TestOrder_DisputeDoesNotUnlockReviews(t *testing.T) {
	o := pendingOrder()
	o.Status = OrderStatusDelivered

	err := o.DisputeDelivery("wrong item", []Problem{{Type: "mismatch", Description: "got a different color"}})
	require.NoError(t, err)

	require.NotNil(t, o.Delivery)
	assert.False(t, o.Delivery.Confirmed)
	assert.False(t, o.ReviewEligible)
	assert.Equal(t, OrderStatusDelivered, o.Status)
}
