package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-orders/internal/status"
)

type DeliveryMethod string

const (
	DeliveryShipping DeliveryMethod = "shipping"
	DeliveryPickup   DeliveryMethod = "pickup"
)

func (d DeliveryMethod) String() string {
	return string(d)
}

func (d DeliveryMethod) Valid() bool {
	return d == DeliveryShipping || d == DeliveryPickup
}

type Order struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OrderNumber string    `json:"order_number" db:"order_number"`

	CustomerName  string `json:"customer_name" db:"customer_name"`
	CustomerPhone string `json:"customer_phone" db:"customer_phone"`

	// Address+Governorate are set for shipping orders, BranchID for pickup
	// orders; the two groups are mutually exclusive by delivery method.
	DeliveryMethod DeliveryMethod `json:"delivery_method" db:"delivery_method"`
	Address        string         `json:"address,omitempty" db:"address"`
	Governorate    string         `json:"governorate,omitempty" db:"governorate"`
	BranchID       *uuid.UUID     `json:"branch_id,omitempty" db:"branch_id"`

	PaymentMethod string `json:"payment_method" db:"payment_method"`

	Status        status.OrderStatus   `json:"status" db:"status"`
	PaymentStatus status.PaymentStatus `json:"payment_status" db:"payment_status"`

	Total          float64 `json:"total" db:"total"`
	ShippingCost   float64 `json:"shipping_cost" db:"shipping_cost"`
	TaxAmount      float64 `json:"tax_amount" db:"tax_amount"`
	DiscountAmount float64 `json:"discount_amount" db:"discount_amount"`

	ShippingCompany    string     `json:"shipping_company,omitempty" db:"shipping_company"`
	ShippingMethod     string     `json:"shipping_method,omitempty" db:"shipping_method"`
	EstimatedDelivery  *time.Time `json:"estimated_delivery,omitempty" db:"estimated_delivery"`
	ActualDeliveryDate *time.Time `json:"actual_delivery_date,omitempty" db:"actual_delivery_date"`

	CustomerNotes string `json:"customer_notes,omitempty" db:"customer_notes"`
	AdminNotes    string `json:"admin_notes,omitempty" db:"admin_notes"`

	Items   []OrderItem     `json:"items" db:"-"`
	History []StatusHistory `json:"history,omitempty" db:"-"`

	// Degraded marks orders served from the file-backed fallback store while
	// the primary store was unreachable.
	Degraded bool `json:"degraded,omitempty" db:"-"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty" db:"shipped_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// OrderItem snapshots the product name and image at order time, so a later
// catalog edit or removal never rewrites history.
type OrderItem struct {
	ID           uuid.UUID `json:"id" db:"id"`
	OrderID      uuid.UUID `json:"order_id" db:"order_id"`
	ProductID    uuid.UUID `json:"product_id" db:"product_id"`
	ProductName  string    `json:"product_name" db:"product_name"`
	ProductImage string    `json:"product_image,omitempty" db:"product_image"`
	Quantity     int       `json:"quantity" db:"quantity"`
	UnitPrice    float64   `json:"unit_price" db:"unit_price"`
	TotalPrice   float64   `json:"total_price" db:"total_price"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// StatusHistory rows are append-only.
type StatusHistory struct {
	ID        uuid.UUID          `json:"id" db:"id"`
	OrderID   uuid.UUID          `json:"order_id" db:"order_id"`
	OldStatus status.OrderStatus `json:"old_status" db:"old_status"`
	NewStatus status.OrderStatus `json:"new_status" db:"new_status"`
	ChangedAt time.Time          `json:"changed_at" db:"changed_at"`
}

// CostSummary carries the derived money fields returned with a single-order
// fetch. NetTotal is what the store actually books for the order after
// header-level tax and discount adjustments.
type CostSummary struct {
	ItemsSubtotal  float64 `json:"items_subtotal"`
	ShippingCost   float64 `json:"shipping_cost"`
	TaxAmount      float64 `json:"tax_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	NetTotal       float64 `json:"net_total"`
}

// Summarize recomputes the cost breakdown from the order's items and header
// adjustments.
func (o *Order) Summarize() CostSummary {
	subtotal := 0.0
	for _, item := range o.Items {
		subtotal += item.TotalPrice
	}
	return CostSummary{
		ItemsSubtotal:  subtotal,
		ShippingCost:   o.ShippingCost,
		TaxAmount:      o.TaxAmount,
		DiscountAmount: o.DiscountAmount,
		NetTotal:       subtotal + o.ShippingCost + o.TaxAmount - o.DiscountAmount,
	}
}
