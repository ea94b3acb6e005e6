package status_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/storefront-orders/internal/status"
)

func TestAvailablePaymentStatuses_Table(t *testing.T) {
	tests := []struct {
		orderStatus status.OrderStatus
		want        []status.PaymentStatus
	}{
		{status.OrderPending, []status.PaymentStatus{status.PaymentPending}},
		{status.OrderConfirmed, []status.PaymentStatus{status.PaymentPending}},
		{status.OrderShipped, []status.PaymentStatus{status.PaymentPending, status.PaymentCashOnDelivery}},
		{status.OrderDelivered, []status.PaymentStatus{status.PaymentCashOnDelivery, status.PaymentCollected}},
		{status.OrderReplacementRequested, []status.PaymentStatus{status.PaymentCashOnDelivery, status.PaymentCollected, status.PaymentRefundPending}},
		{status.OrderReplaced, []status.PaymentStatus{status.PaymentPending, status.PaymentCashOnDelivery}},
		{status.OrderReturned, []status.PaymentStatus{status.PaymentRefundPending, status.PaymentRefunded}},
		{status.OrderCancelled, []status.PaymentStatus{status.PaymentPending, status.PaymentRefunded}},
	}

	for _, tt := range tests {
		t.Run(tt.orderStatus.String(), func(t *testing.T) {
			got := status.AvailablePaymentStatuses(tt.orderStatus)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got, "every known order status must allow at least one payment status")
		})
	}
}

func TestAvailablePaymentStatuses_UnknownStatusIsRejected(t *testing.T) {
	got := status.AvailablePaymentStatuses(status.OrderStatus("archived"))
	assert.Empty(t, got)

	for _, p := range status.AllPaymentStatuses {
		assert.False(t, status.IsCompatible("archived", p))
	}
}

func TestIsCompatible_MatchesTable(t *testing.T) {
	for _, s := range status.AllOrderStatuses {
		allowed := make(map[status.PaymentStatus]bool)
		for _, p := range status.AvailablePaymentStatuses(s) {
			allowed[p] = true
		}

		for _, p := range status.AllPaymentStatuses {
			assert.Equal(t, allowed[p], status.IsCompatible(s, p),
				"IsCompatible(%s, %s) must agree with AvailablePaymentStatuses", s, p)
		}
	}
}

func TestAutoPaymentStatus(t *testing.T) {
	tests := []struct {
		name        string
		orderStatus status.OrderStatus
		current     status.PaymentStatus
		want        status.PaymentStatus
		wantOK      bool
	}{
		{"pending_resets_to_pending", status.OrderPending, status.PaymentCollected, status.PaymentPending, true},
		{"pending_noop_when_already_pending", status.OrderPending, status.PaymentPending, "", false},
		{"confirmed_resets_to_pending", status.OrderConfirmed, status.PaymentRefunded, status.PaymentPending, true},
		{"shipped_keeps_pending", status.OrderShipped, status.PaymentPending, status.PaymentPending, true},
		{"shipped_noop_for_cod", status.OrderShipped, status.PaymentCashOnDelivery, "", false},
		{"delivered_moves_pending_to_cod", status.OrderDelivered, status.PaymentPending, status.PaymentCashOnDelivery, true},
		{"delivered_noop_for_collected", status.OrderDelivered, status.PaymentCollected, "", false},
		{"replacement_requested_from_pending", status.OrderReplacementRequested, status.PaymentPending, status.PaymentRefundPending, true},
		{"replacement_requested_from_cod", status.OrderReplacementRequested, status.PaymentCashOnDelivery, status.PaymentRefundPending, true},
		{"replacement_requested_noop_for_collected", status.OrderReplacementRequested, status.PaymentCollected, "", false},
		{"replaced_always_pending", status.OrderReplaced, status.PaymentCollected, status.PaymentPending, true},
		{"returned_cod_to_refund_pending", status.OrderReturned, status.PaymentCashOnDelivery, status.PaymentRefundPending, true},
		{"returned_noop_for_refunded", status.OrderReturned, status.PaymentRefunded, "", false},
		{"cancelled_cod_to_refunded", status.OrderCancelled, status.PaymentCashOnDelivery, status.PaymentRefunded, true},
		{"cancelled_noop_for_pending", status.OrderCancelled, status.PaymentPending, "", false},
		{"unknown_status_suggests_nothing", status.OrderStatus("archived"), status.PaymentPending, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := status.AutoPaymentStatus(tt.orderStatus, tt.current)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Applying the suggestion and asking again must yield no further suggestion,
// for every status except replaced (which unconditionally suggests pending).
func TestAutoPaymentStatus_SecondApplicationIsNoop(t *testing.T) {
	for _, s := range status.AllOrderStatuses {
		for _, p := range status.AllPaymentStatuses {
			first, ok := status.AutoPaymentStatus(s, p)
			if !ok {
				continue
			}

			second, ok := status.AutoPaymentStatus(s, first)
			if s == status.OrderReplaced {
				assert.True(t, ok)
				assert.Equal(t, status.PaymentPending, second)
				continue
			}

			if ok {
				assert.Equal(t, first, second,
					"AutoPaymentStatus(%s, %s) must stabilise after one application", s, p)
			}
		}
	}
}
