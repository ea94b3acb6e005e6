package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-orders/internal/order"
	"github.com/vasiliy-maslov/storefront-orders/internal/status"
)

// CreateOrderRequest mirrors order.CreateOrderInput with validation tags; the
// service re-checks the semantic rules, this layer rejects malformed shapes
// with per-field messages before they reach it.
type CreateOrderRequest struct {
	CustomerName  string `json:"customer_name" validate:"required"`
	CustomerPhone string `json:"customer_phone" validate:"required"`

	DeliveryMethod string     `json:"delivery_method" validate:"required,oneof=shipping pickup"`
	Address        string     `json:"address" validate:"required_if=DeliveryMethod shipping"`
	Governorate    string     `json:"governorate" validate:"required_if=DeliveryMethod shipping"`
	BranchID       *uuid.UUID `json:"branch_id" validate:"required_if=DeliveryMethod pickup"`

	PaymentMethod string                   `json:"payment_method" validate:"required"`
	Items         []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`

	Total         *float64 `json:"total"`
	ShippingCost  *float64 `json:"shipping_cost"`
	CustomerNotes string   `json:"customer_notes"`
}

type CreateOrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
	Price     float64   `json:"price" validate:"min=0"`
}

type UpdateOrderRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`

	ShippingCompany    *string  `json:"shipping_company"`
	ShippingMethod     *string  `json:"shipping_method"`
	EstimatedDelivery  *string  `json:"estimated_delivery"`
	ActualDeliveryDate *string  `json:"actual_delivery_date"`
	ShippingCost       *float64 `json:"shipping_cost"`
	TaxAmount          *float64 `json:"tax_amount"`
	DiscountAmount     *float64 `json:"discount_amount"`
	AdminNotes         *string  `json:"admin_notes"`
}

type OrderResponse struct {
	*order.Order
	CostSummary *order.CostSummary `json:"cost_summary,omitempty"`
}

type ListOrdersResponse struct {
	Orders []order.Order `json:"orders"`
	Total  int           `json:"total"`
	Page   int           `json:"page"`
	Per    int           `json:"per_page"`
}

type OrderHandler struct {
	svc      order.Service
	validate *validator.Validate
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Patch("/orders/{id}", h.handleUpdateOrder)
	router.Delete("/orders/{id}", h.handleDeleteOrder)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode create-order body")
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
			return
		}
		log.Error().Err(err).Msg("Unexpected error type during validation")
		respondWithError(w, http.StatusInternalServerError, "internal validation error")
		return
	}

	input := order.CreateOrderInput{
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		DeliveryMethod: order.DeliveryMethod(req.DeliveryMethod),
		Address:        req.Address,
		Governorate:    req.Governorate,
		BranchID:       req.BranchID,
		PaymentMethod:  req.PaymentMethod,
		DeclaredTotal:  req.Total,
		ShippingCost:   req.ShippingCost,
		CustomerNotes:  req.CustomerNotes,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, order.CreateItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	created, err := h.svc.CreateOrder(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// ?order_number= short-circuits into a single lookup.
	if number := query.Get("order_number"); number != "" {
		o, err := h.svc.GetOrderByNumber(r.Context(), strings.ToUpper(number))
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, o)
		return
	}

	filter := order.ListFilter{Search: query.Get("q")}

	if raw := query.Get("status"); raw != "" {
		s := status.OrderStatus(raw)
		if !s.Valid() {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("unknown order status %q", raw))
			return
		}
		filter.Status = &s
	}
	if raw := query.Get("payment_status"); raw != "" {
		p := status.PaymentStatus(raw)
		if !p.Valid() {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("unknown payment status %q", raw))
			return
		}
		filter.PaymentStatus = &p
	}

	page := 1
	if raw := query.Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}
	per := 20
	if raw := query.Get("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			per = n
		}
	}
	filter.Limit = per
	filter.Offset = (page - 1) * per

	if raw := query.Get("sort"); raw != "" {
		filter.Sort = strings.TrimPrefix(raw, "-")
		filter.SortDesc = strings.HasPrefix(raw, "-")
	}

	orders, total, err := h.svc.ListOrders(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ListOrdersResponse{
		Orders: orders,
		Total:  total,
		Page:   page,
		Per:    per,
	})
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	o, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	summary := o.Summarize()
	respondWithJSON(w, http.StatusOK, OrderResponse{Order: o, CostSummary: &summary})
}

func (h *OrderHandler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode update-order body")
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input, err := req.toInput()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.svc.UpdateOrder(r.Context(), id, input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) respondServiceError(w http.ResponseWriter, err error) {
	code := mapErrorToStatusCode(err)

	var incompatibleErr *order.IncompatiblePaymentStatusError
	if errors.As(err, &incompatibleErr) {
		respondWithJSON(w, code, map[string]any{
			"error":                      incompatibleErr.Error(),
			"available_payment_statuses": incompatibleErr.Available,
		})
		return
	}

	var validationErr *order.ValidationError
	if errors.As(err, &validationErr) {
		respondWithJSON(w, code, map[string]string{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
		return
	}

	if code == http.StatusInternalServerError {
		// Store detail stays in the logs, not in the response.
		log.Error().Err(err).Msg("Request failed")
		respondWithError(w, code, "internal server error")
		return
	}

	respondWithError(w, code, err.Error())
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		respondWithError(w, http.StatusBadRequest, "id is required")
		return uuid.Nil, false
	}

	id, err := uuid.FromString(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (req UpdateOrderRequest) toInput() (order.UpdateInput, error) {
	input := order.UpdateInput{
		ShippingCompany: req.ShippingCompany,
		ShippingMethod:  req.ShippingMethod,
		ShippingCost:    req.ShippingCost,
		TaxAmount:       req.TaxAmount,
		DiscountAmount:  req.DiscountAmount,
		AdminNotes:      req.AdminNotes,
	}

	if req.Status != nil {
		s := status.OrderStatus(*req.Status)
		input.Status = &s
	}
	if req.PaymentStatus != nil {
		p := status.PaymentStatus(*req.PaymentStatus)
		input.PaymentStatus = &p
	}

	if req.EstimatedDelivery != nil {
		t, err := parseTimestamp(*req.EstimatedDelivery)
		if err != nil {
			return order.UpdateInput{}, fmt.Errorf("estimated_delivery: %w", err)
		}
		input.EstimatedDelivery = &t
	}
	if req.ActualDeliveryDate != nil {
		t, err := parseTimestamp(*req.ActualDeliveryDate)
		if err != nil {
			return order.UpdateInput{}, fmt.Errorf("actual_delivery_date: %w", err)
		}
		input.ActualDeliveryDate = &t
	}

	return input, nil
}
