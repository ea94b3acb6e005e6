package order

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-orders/internal/status"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrCodeConflict is returned when the generated order number collides
	// with an existing row. The service regenerates and retries.
	ErrCodeConflict = errors.New("order number already exists")
)

// ValidationError carries the field name so the HTTP layer can return a
// field-specific message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InsufficientStockError is raised when the conditional stock decrement
// affects zero rows: the product exists but cannot cover the ordered
// quantity.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d)", e.ProductID, e.Requested)
}

// IncompatiblePaymentStatusError rejects a payment status that the order's
// (possibly just-updated) status does not permit. Available lists the legal
// alternatives for the response body.
type IncompatiblePaymentStatusError struct {
	OrderStatus   status.OrderStatus
	PaymentStatus status.PaymentStatus
	Available     []status.PaymentStatus
}

func (e *IncompatiblePaymentStatusError) Error() string {
	return fmt.Sprintf("payment status %q is not allowed for order status %q", e.PaymentStatus, e.OrderStatus)
}
