package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-orders/internal/notify"
	"github.com/vasiliy-maslov/storefront-orders/internal/ordercode"
	"github.com/vasiliy-maslov/storefront-orders/internal/settings"
	"github.com/vasiliy-maslov/storefront-orders/internal/status"
)

// maxCodeAttempts bounds order-number regeneration on insert conflicts. With
// a 33^8 code space more than one retry already means something is wrong.
const maxCodeAttempts = 5

type CodeGenerator interface {
	Generate() (string, error)
}

// FallbackStore captures orders while the primary store is unreachable.
// Implemented by the bbolt store in internal/fallback.
type FallbackStore interface {
	Save(ctx context.Context, o *Order) error
	List(ctx context.Context) ([]Order, error)
}

type CreateItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
}

type CreateOrderInput struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`

	DeliveryMethod DeliveryMethod `json:"delivery_method"`
	Address        string         `json:"address"`
	Governorate    string         `json:"governorate"`
	BranchID       *uuid.UUID     `json:"branch_id"`

	PaymentMethod string            `json:"payment_method"`
	Items         []CreateItemInput `json:"items"`

	// DeclaredTotal is what the client-side cart computed. The server always
	// recomputes; a mismatch is logged, never trusted.
	DeclaredTotal *float64 `json:"total"`
	ShippingCost  *float64 `json:"shipping_cost"`
	CustomerNotes string   `json:"customer_notes"`
}

type UpdateInput struct {
	Status        *status.OrderStatus   `json:"status"`
	PaymentStatus *status.PaymentStatus `json:"payment_status"`

	ShippingCompany    *string    `json:"shipping_company"`
	ShippingMethod     *string    `json:"shipping_method"`
	EstimatedDelivery  *time.Time `json:"estimated_delivery"`
	ActualDeliveryDate *time.Time `json:"actual_delivery_date"`
	ShippingCost       *float64   `json:"shipping_cost"`
	TaxAmount          *float64   `json:"tax_amount"`
	DiscountAmount     *float64   `json:"discount_amount"`
	AdminNotes         *string    `json:"admin_notes"`
}

type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, input UpdateInput) (*Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo     Repository
	codes    CodeGenerator
	settings settings.Service
	notifier notify.Notifier
	fallback FallbackStore // optional
}

func NewService(repo Repository, codes CodeGenerator, settingsSvc settings.Service, notifier notify.Notifier, fallbackStore FallbackStore) Service {
	return &service{
		repo:     repo,
		codes:    codes,
		settings: settingsSvc,
		notifier: notifier,
		fallback: fallbackStore,
	}
}

func validateCreateInput(input CreateOrderInput) error {
	if input.CustomerName == "" {
		return &ValidationError{Field: "customer_name", Message: "customer name is required"}
	}
	if input.CustomerPhone == "" {
		return &ValidationError{Field: "customer_phone", Message: "customer phone is required"}
	}
	if !input.DeliveryMethod.Valid() {
		return &ValidationError{Field: "delivery_method", Message: "delivery method must be shipping or pickup"}
	}
	switch input.DeliveryMethod {
	case DeliveryShipping:
		if input.Address == "" {
			return &ValidationError{Field: "address", Message: "address is required for shipping orders"}
		}
		if input.Governorate == "" {
			return &ValidationError{Field: "governorate", Message: "governorate is required for shipping orders"}
		}
	case DeliveryPickup:
		if input.BranchID == nil || *input.BranchID == uuid.Nil {
			return &ValidationError{Field: "branch_id", Message: "branch is required for pickup orders"}
		}
	}
	if input.PaymentMethod == "" {
		return &ValidationError{Field: "payment_method", Message: "payment method is required"}
	}
	if len(input.Items) == 0 {
		return &ValidationError{Field: "items", Message: "order must contain at least one item"}
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return &ValidationError{Field: "items", Message: "product id is required for every item"}
		}
		if item.Quantity < 1 {
			return &ValidationError{Field: "items", Message: fmt.Sprintf("quantity for product %s must be at least 1", item.ProductID)}
		}
		if item.Price < 0 || math.IsNaN(item.Price) {
			return &ValidationError{Field: "items", Message: fmt.Sprintf("price for product %s cannot be negative", item.ProductID)}
		}
	}
	return nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if err := validateCreateInput(input); err != nil {
		log.Warn().Err(err).Msg("service: rejected order creation input")
		return nil, err
	}

	shippingCost, shippingCompany, err := s.resolveShipping(ctx, input.ShippingCost)
	if err != nil {
		return nil, err
	}

	subtotal := 0.0
	items := make([]OrderItem, 0, len(input.Items))
	for _, in := range input.Items {
		lineTotal := in.Price * float64(in.Quantity)
		subtotal += lineTotal
		items = append(items, OrderItem{
			ProductID:  in.ProductID,
			Quantity:   in.Quantity,
			UnitPrice:  in.Price,
			TotalPrice: lineTotal,
		})
	}
	total := subtotal + shippingCost

	if input.DeclaredTotal != nil && math.Abs(*input.DeclaredTotal-total) > 0.01 {
		log.Warn().
			Float64("declared_total", *input.DeclaredTotal).
			Float64("computed_total", total).
			Msg("service: client-declared total differs from computed total, using computed")
	}

	o := &Order{
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		DeliveryMethod:  input.DeliveryMethod,
		Address:         input.Address,
		Governorate:     input.Governorate,
		BranchID:        input.BranchID,
		PaymentMethod:   input.PaymentMethod,
		Status:          status.OrderPending,
		PaymentStatus:   status.PaymentPending,
		Total:           total,
		ShippingCost:    shippingCost,
		ShippingCompany: shippingCompany,
		CustomerNotes:   input.CustomerNotes,
		Items:           items,
	}

	// Uniqueness of the order number is enforced by the store; on a conflict
	// we mint a fresh code and try again rather than pre-checking.
	for attempt := 1; ; attempt++ {
		code, genErr := s.codes.Generate()
		if genErr != nil {
			return nil, fmt.Errorf("service: failed to generate order code: %w", genErr)
		}
		o.OrderNumber = code

		err = s.repo.Create(ctx, o)
		if err == nil {
			break
		}
		if errors.Is(err, ErrCodeConflict) && attempt < maxCodeAttempts {
			log.Warn().Str("order_number", code).Int("attempt", attempt).Msg("service: order code collision, regenerating")
			continue
		}
		if failErr := s.handleCreateFailure(ctx, o, err); failErr != nil {
			return nil, failErr
		}
		// Captured by the fallback store.
		break
	}

	s.emitNewOrder(ctx, o)

	log.Info().Stringer("order_id", o.ID).Str("order_number", o.OrderNumber).Msg("service: order created")
	return o, nil
}

// handleCreateFailure classifies a failed Create. Validation-class outcomes
// (unknown product, insufficient stock) pass through; connectivity failures
// route the order to the fallback store when one is configured.
func (s *service) handleCreateFailure(ctx context.Context, o *Order, createErr error) error {
	var stockErr *InsufficientStockError
	if errors.As(createErr, &stockErr) || errors.Is(createErr, ErrProductNotFound) {
		log.Warn().Err(createErr).Msg("service: order creation rejected by store")
		return createErr
	}

	if s.fallback != nil && isStoreUnreachable(createErr) {
		log.Warn().Err(createErr).Msg("service: primary store unreachable, capturing order in fallback store")
		if err := s.captureFallback(ctx, o); err != nil {
			log.Error().Err(err).Msg("service: fallback capture failed")
			return fmt.Errorf("service: failed to create order: %w", createErr)
		}
		return nil
	}

	log.Error().Err(createErr).Msg("service: failed to create order in repository")
	return fmt.Errorf("service: failed to create order: %w", createErr)
}

func (s *service) captureFallback(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("service: failed to generate order ID: %w", err)
		}
		o.ID = id
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Degraded = true
	return s.fallback.Save(ctx, o)
}

func (s *service) resolveShipping(ctx context.Context, requested *float64) (float64, string, error) {
	defaults, err := s.settings.Shipping(ctx)
	if err != nil {
		if requested != nil && *requested >= 0 && !math.IsNaN(*requested) {
			// The caller supplied a usable cost; losing the company display
			// name is tolerable, blocking checkout is not.
			log.Warn().Err(err).Msg("service: settings lookup failed, proceeding without shipping company name")
			return *requested, "", nil
		}
		log.Error().Err(err).Msg("service: failed to resolve shipping defaults")
		return 0, "", fmt.Errorf("service: failed to resolve shipping defaults: %w", err)
	}

	cost := defaults.Cost
	if requested != nil && *requested >= 0 && !math.IsNaN(*requested) {
		cost = *requested
	}
	return cost, defaults.CompanyName, nil
}

func (s *service) emitNewOrder(ctx context.Context, o *Order) {
	event := notify.Event{
		Message: fmt.Sprintf("New order %s from %s", o.OrderNumber, o.CustomerName),
		Type:    "new_order",
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		// Fire-and-forget: the order is already persisted.
		log.Warn().Err(err).Stringer("order_id", o.ID).Msg("service: failed to emit new-order notification")
	}
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return o, nil
}

func (s *service) GetOrderByNumber(ctx context.Context, number string) (*Order, error) {
	// A malformed code cannot exist in the store, skip the round trip.
	if !ordercode.IsWellFormed(number) {
		return nil, ErrOrderNotFound
	}

	o, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("order_number", number).Msg("service: failed to fetch order by number")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		if s.fallback != nil && isStoreUnreachable(err) {
			log.Warn().Err(err).Msg("service: primary store unreachable, listing fallback orders only")
			captured, fbErr := s.listFallback(ctx, filter)
			if fbErr != nil {
				return nil, 0, fmt.Errorf("service: failed to list orders: %w", err)
			}
			return captured, len(captured), nil
		}
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, 0, fmt.Errorf("service: failed to list orders: %w", err)
	}

	if s.fallback != nil {
		captured, fbErr := s.listFallback(ctx, filter)
		if fbErr != nil {
			log.Warn().Err(fbErr).Msg("service: failed to merge fallback orders into listing")
		} else if len(captured) > 0 {
			orders = append(orders, captured...)
			total += len(captured)
		}
	}

	return orders, total, nil
}

func (s *service) listFallback(ctx context.Context, filter ListFilter) ([]Order, error) {
	captured, err := s.fallback.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := captured[:0]
	for _, o := range captured {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		if filter.PaymentStatus != nil && o.PaymentStatus != *filter.PaymentStatus {
			continue
		}
		matched = append(matched, o)
	}
	return matched, nil
}

func (s *service) UpdateOrder(ctx context.Context, id uuid.UUID, input UpdateInput) (*Order, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found, cannot update")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to load order for update")
		return nil, fmt.Errorf("service: failed to load order for update: %w", err)
	}

	patch := UpdatePatch{PrevStatus: current.Status}
	finalStatus := current.Status

	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown order status %q", *input.Status)}
		}
		finalStatus = *input.Status
		patch.Status = input.Status

		// A status change may drag the payment status along; an explicit
		// payment_status in the same request overrides this below.
		if auto, ok := status.AutoPaymentStatus(finalStatus, current.PaymentStatus); ok && auto != current.PaymentStatus {
			staged := auto
			patch.PaymentStatus = &staged
		}

		now := time.Now().UTC()
		if finalStatus == status.OrderShipped && current.ShippedAt == nil {
			patch.ShippedAt = &now
		}
		if finalStatus == status.OrderDelivered && current.CompletedAt == nil {
			patch.CompletedAt = &now
		}
	}

	if input.PaymentStatus != nil {
		if !input.PaymentStatus.Valid() {
			return nil, &ValidationError{Field: "payment_status", Message: fmt.Sprintf("unknown payment status %q", *input.PaymentStatus)}
		}
		if !status.IsCompatible(finalStatus, *input.PaymentStatus) {
			log.Warn().
				Stringer("order_id", id).
				Stringer("order_status", finalStatus).
				Stringer("payment_status", *input.PaymentStatus).
				Msg("service: incompatible payment status rejected")
			return nil, &IncompatiblePaymentStatusError{
				OrderStatus:   finalStatus,
				PaymentStatus: *input.PaymentStatus,
				Available:     status.AvailablePaymentStatuses(finalStatus),
			}
		}
		patch.PaymentStatus = input.PaymentStatus
	}

	patch.ShippingCompany = input.ShippingCompany
	patch.ShippingMethod = input.ShippingMethod
	patch.EstimatedDelivery = input.EstimatedDelivery
	patch.ActualDeliveryDate = input.ActualDeliveryDate
	patch.ShippingCost = input.ShippingCost
	patch.TaxAmount = input.TaxAmount
	patch.DiscountAmount = input.DiscountAmount
	patch.AdminNotes = input.AdminNotes

	if err := s.repo.Update(ctx, id, patch); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update order")
		return nil, fmt.Errorf("service: failed to update order: %w", err)
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to reload order after update")
		return nil, fmt.Errorf("service: failed to reload order after update: %w", err)
	}

	log.Info().
		Stringer("order_id", id).
		Stringer("old_status", current.Status).
		Stringer("new_status", updated.Status).
		Stringer("payment_status", updated.PaymentStatus).
		Msg("service: order updated")
	return updated, nil
}

func (s *service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found, cannot delete")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to delete order")
		return fmt.Errorf("service: failed to delete order: %w", err)
	}

	log.Info().Stringer("order_id", id).Msg("service: order deleted")
	return nil
}

// isStoreUnreachable distinguishes connectivity failures (candidates for the
// fallback store) from logical store errors.
func isStoreUnreachable(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
