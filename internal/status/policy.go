// Package status holds the order-status / payment-status coupling policy.
// Everything here is a pure lookup over two small enums: no I/O, no state.
package status

type OrderStatus string

const (
	OrderPending              OrderStatus = "pending"
	OrderConfirmed            OrderStatus = "confirmed"
	OrderShipped              OrderStatus = "shipped"
	OrderDelivered            OrderStatus = "delivered"
	OrderReplacementRequested OrderStatus = "replacement_requested"
	OrderReplaced             OrderStatus = "replaced"
	OrderReturned             OrderStatus = "returned"
	OrderCancelled            OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) Valid() bool {
	_, ok := paymentStatusesByOrderStatus[s]
	return ok
}

type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "pending"
	PaymentCashOnDelivery PaymentStatus = "cash_on_delivery"
	PaymentCollected      PaymentStatus = "collected"
	PaymentRefundPending  PaymentStatus = "refund_pending"
	PaymentRefunded       PaymentStatus = "refunded"
)

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentCashOnDelivery, PaymentCollected, PaymentRefundPending, PaymentRefunded:
		return true
	}
	return false
}

var AllOrderStatuses = []OrderStatus{
	OrderPending,
	OrderConfirmed,
	OrderShipped,
	OrderDelivered,
	OrderReplacementRequested,
	OrderReplaced,
	OrderReturned,
	OrderCancelled,
}

var AllPaymentStatuses = []PaymentStatus{
	PaymentPending,
	PaymentCashOnDelivery,
	PaymentCollected,
	PaymentRefundPending,
	PaymentRefunded,
}

// paymentStatusesByOrderStatus is the compatibility table: for each order
// status, the payment statuses staff are allowed to set. The slices are
// ordered the way they should appear in error remediation lists.
var paymentStatusesByOrderStatus = map[OrderStatus][]PaymentStatus{
	OrderPending:              {PaymentPending},
	OrderConfirmed:            {PaymentPending},
	OrderShipped:              {PaymentPending, PaymentCashOnDelivery},
	OrderDelivered:            {PaymentCashOnDelivery, PaymentCollected},
	OrderReplacementRequested: {PaymentCashOnDelivery, PaymentCollected, PaymentRefundPending},
	OrderReplaced:             {PaymentPending, PaymentCashOnDelivery},
	OrderReturned:             {PaymentRefundPending, PaymentRefunded},
	OrderCancelled:            {PaymentPending, PaymentRefunded},
}

// AvailablePaymentStatuses returns the payment statuses compatible with the
// given order status. An unknown order status yields an empty slice, so
// IsCompatible rejects it — silent permissiveness here would mask data-entry
// errors.
func AvailablePaymentStatuses(s OrderStatus) []PaymentStatus {
	allowed, ok := paymentStatusesByOrderStatus[s]
	if !ok {
		return nil
	}

	out := make([]PaymentStatus, len(allowed))
	copy(out, allowed)
	return out
}

func IsCompatible(s OrderStatus, p PaymentStatus) bool {
	for _, allowed := range paymentStatusesByOrderStatus[s] {
		if allowed == p {
			return true
		}
	}
	return false
}

// AutoPaymentStatus suggests a payment-status change triggered purely by an
// order-status change. Callers apply the suggestion only when the request did
// not carry an explicit payment status, and only when it differs from the
// current value. The second return value is false when no transition is
// suggested.
func AutoPaymentStatus(s OrderStatus, current PaymentStatus) (PaymentStatus, bool) {
	switch s {
	case OrderPending, OrderConfirmed:
		if current != PaymentPending {
			return PaymentPending, true
		}
	case OrderShipped:
		// Suggesting pending while already pending is a no-op by value; kept
		// as-is rather than inventing an "awaiting collection" state.
		if current == PaymentPending {
			return PaymentPending, true
		}
	case OrderDelivered:
		if current == PaymentPending {
			return PaymentCashOnDelivery, true
		}
	case OrderReplacementRequested:
		if current == PaymentPending || current == PaymentCashOnDelivery {
			return PaymentRefundPending, true
		}
	case OrderReplaced:
		return PaymentPending, true
	case OrderReturned:
		if current == PaymentCashOnDelivery {
			return PaymentRefundPending, true
		}
	case OrderCancelled:
		if current == PaymentCashOnDelivery {
			return PaymentRefunded, true
		}
	}
	return "", false
}
