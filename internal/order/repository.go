package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-orders/internal/status"
)

// ListFilter narrows and pages the admin order listing. Search matches the
// order number, customer name and phone.
type ListFilter struct {
	Status        *status.OrderStatus
	PaymentStatus *status.PaymentStatus
	Search        string
	Limit         int
	Offset        int
	Sort          string
	SortDesc      bool
}

// UpdatePatch is the set of staged fields the service resolved for a partial
// update. Nil pointers mean "leave unchanged". PrevStatus feeds the history
// row when Status is set.
type UpdatePatch struct {
	Status        *status.OrderStatus
	PaymentStatus *status.PaymentStatus
	PrevStatus    status.OrderStatus

	ShippingCompany    *string
	ShippingMethod     *string
	EstimatedDelivery  *time.Time
	ActualDeliveryDate *time.Time
	ShippingCost       *float64
	TaxAmount          *float64
	DiscountAmount     *float64
	AdminNotes         *string

	ShippedAt   *time.Time
	CompletedAt *time.Time
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) error
	Delete(ctx context.Context, id uuid.UUID) error
	ProductStock(ctx context.Context, productID uuid.UUID) (int, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const orderColumns = `id, order_number, customer_name, customer_phone, delivery_method, address, governorate,
	branch_id, payment_method, status, payment_status, total, shipping_cost, tax_amount, discount_amount,
	shipping_company, shipping_method, estimated_delivery, actual_delivery_date, customer_notes, admin_notes,
	created_at, updated_at, shipped_at, completed_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone, &o.DeliveryMethod, &o.Address, &o.Governorate,
		&o.BranchID, &o.PaymentMethod, &o.Status, &o.PaymentStatus, &o.Total, &o.ShippingCost, &o.TaxAmount,
		&o.DiscountAmount, &o.ShippingCompany, &o.ShippingMethod, &o.EstimatedDelivery, &o.ActualDeliveryDate,
		&o.CustomerNotes, &o.AdminNotes, &o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.CompletedAt,
	)
}

// Create inserts the header, its items, and decrements stock for every item
// in a single transaction. The stock decrement is conditional: zero affected
// rows means the product cannot cover the quantity and the whole transaction
// rolls back. A unique violation on order_number surfaces as ErrCodeConflict
// so the service can regenerate the code.
func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	if o.ID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		o.ID = genID
	}

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("repository: failed to rollback after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("repository: failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Stringer("order_id", o.ID).Msg("repository: failed to commit transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	insertOrder := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`
	_, err = tx.Exec(ctx, insertOrder,
		o.ID, o.OrderNumber, o.CustomerName, o.CustomerPhone, string(o.DeliveryMethod), o.Address, o.Governorate,
		o.BranchID, o.PaymentMethod, string(o.Status), string(o.PaymentStatus), o.Total, o.ShippingCost,
		o.TaxAmount, o.DiscountAmount, o.ShippingCompany, o.ShippingMethod, o.EstimatedDelivery,
		o.ActualDeliveryDate, o.CustomerNotes, o.AdminNotes, o.CreatedAt, o.UpdatedAt, o.ShippedAt, o.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return ErrCodeConflict
		}
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]

		// Snapshot the product name and image inside the same transaction
		// that decrements its stock.
		var productName, productImage string
		err = tx.QueryRow(ctx, `SELECT name, image_url FROM products WHERE id = $1`, item.ProductID).
			Scan(&productName, &productImage)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("repository: product %s: %w", item.ProductID, ErrProductNotFound)
			}
			return fmt.Errorf("repository: failed to load product %s: %w", item.ProductID, err)
		}
		item.ProductName = productName
		item.ProductImage = productImage

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
		}
		item.ID = itemID
		item.OrderID = o.ID
		item.CreatedAt = now

		insertItem := `
			INSERT INTO order_items (id, order_id, product_id, product_name, product_image, quantity, unit_price, total_price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err = tx.Exec(ctx, insertItem,
			item.ID, item.OrderID, item.ProductID, item.ProductName, item.ProductImage,
			item.Quantity, item.UnitPrice, item.TotalPrice, item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}

		// Decrement only if enough stock remains. Reading the quantity first
		// and writing the difference back would lose updates under
		// concurrent checkouts.
		tag, decErr := tx.Exec(ctx, `
			UPDATE products SET stock_quantity = stock_quantity - $1
			WHERE id = $2 AND stock_quantity >= $1
		`, item.Quantity, item.ProductID)
		if decErr != nil {
			err = fmt.Errorf("repository: failed to decrement stock for product %s: %w", item.ProductID, decErr)
			return err
		}
		if tag.RowsAffected() == 0 {
			err = &InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
			return err
		}
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var o Order
	if err := scanOrder(r.db.QueryRow(ctx, query, id), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	if err := r.loadHistory(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	var o Order
	if err := scanOrder(r.db.QueryRow(ctx, query, number), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by number %s: %w", number, err)
	}

	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	if err := r.loadHistory(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepository) loadItems(ctx context.Context, o *Order) error {
	query := `
		SELECT id, order_id, product_id, product_name, product_image, quantity, unit_price, total_price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, o.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items for order id %s: %w", o.ID, err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ProductImage,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.CreatedAt)
		if err != nil {
			return fmt.Errorf("repository: failed to scan order item for order id %s: %w", o.ID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating order items for order id %s: %w", o.ID, err)
	}

	o.Items = items
	return nil
}

func (r *postgresRepository) loadHistory(ctx context.Context, o *Order) error {
	query := `
		SELECT id, order_id, old_status, new_status, changed_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY changed_at
	`
	rows, err := r.db.Query(ctx, query, o.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to query status history for order id %s: %w", o.ID, err)
	}
	defer rows.Close()

	history := make([]StatusHistory, 0)
	for rows.Next() {
		var h StatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.OldStatus, &h.NewStatus, &h.ChangedAt); err != nil {
			return fmt.Errorf("repository: failed to scan status history for order id %s: %w", o.ID, err)
		}
		history = append(history, h)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating status history for order id %s: %w", o.ID, err)
	}

	o.History = history
	return nil
}

// sortColumns is the allow-list for List's sort parameter.
var sortColumns = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"total":        "total",
	"order_number": "order_number",
	"status":       "status",
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentStatus != nil {
		args = append(args, string(*filter.PaymentStatus))
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(order_number ILIKE $%d OR customer_name ILIKE $%d OR customer_phone ILIKE $%d)", n, n, n))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM orders` + whereClause
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	sortCol, ok := sortColumns[filter.Sort]
	if !ok {
		sortCol = "created_at"
		filter.SortDesc = true
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)
	listQuery := fmt.Sprintf(`SELECT `+orderColumns+` FROM orders%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		whereClause, sortCol, direction, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]OrderItem, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: failed iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, total, nil
	}

	itemsQuery := `
		SELECT id, order_id, product_id, product_name, product_image, quantity, unit_price, total_price, created_at
		FROM order_items
		WHERE order_id = ANY($1)
	`
	itemRows, err := r.db.Query(ctx, itemsQuery, orderIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item OrderItem
		err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ProductImage,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := ordersMap[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: failed iterating order items: %w", err)
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		if o, ok := ordersMap[id]; ok {
			result = append(result, *o)
		}
	}
	return result, total, nil
}

// Update applies the staged fields and, when the status changed, appends the
// history row in the same transaction. There is no database trigger doing
// this behind our back; the handler owns the audit trail.
func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) (err error) {
	set := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.PaymentStatus != nil {
		add("payment_status", string(*patch.PaymentStatus))
	}
	if patch.ShippingCompany != nil {
		add("shipping_company", *patch.ShippingCompany)
	}
	if patch.ShippingMethod != nil {
		add("shipping_method", *patch.ShippingMethod)
	}
	if patch.EstimatedDelivery != nil {
		add("estimated_delivery", *patch.EstimatedDelivery)
	}
	if patch.ActualDeliveryDate != nil {
		add("actual_delivery_date", *patch.ActualDeliveryDate)
	}
	if patch.ShippingCost != nil {
		add("shipping_cost", *patch.ShippingCost)
	}
	if patch.TaxAmount != nil {
		add("tax_amount", *patch.TaxAmount)
	}
	if patch.DiscountAmount != nil {
		add("discount_amount", *patch.DiscountAmount)
	}
	if patch.AdminNotes != nil {
		add("admin_notes", *patch.AdminNotes)
	}
	if patch.ShippedAt != nil {
		add("shipped_at", *patch.ShippedAt)
	}
	if patch.CompletedAt != nil {
		add("completed_at", *patch.CompletedAt)
	}

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", id).Msg("repository: failed to rollback after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", id).Msg("repository: failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d`, strings.Join(set, ", "), len(args))

	tag, execErr := tx.Exec(ctx, query, args...)
	if execErr != nil {
		err = fmt.Errorf("repository: failed to update order %s: %w", id, execErr)
		return err
	}
	if tag.RowsAffected() == 0 {
		err = ErrOrderNotFound
		return err
	}

	if patch.Status != nil && *patch.Status != patch.PrevStatus {
		historyID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate history ID: %w", genErr)
			return err
		}
		_, execErr = tx.Exec(ctx, `
			INSERT INTO order_status_history (id, order_id, old_status, new_status, changed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, historyID, id, string(patch.PrevStatus), string(*patch.Status), time.Now().UTC())
		if execErr != nil {
			err = fmt.Errorf("repository: failed to append status history for order %s: %w", id, execErr)
			return err
		}
	}

	return nil
}

// Delete removes history rows, item rows and the header in that order, inside
// one transaction. The child tables are not declared ON DELETE CASCADE, so
// ordering matters.
func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", id).Msg("repository: failed to rollback after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", id).Msg("repository: failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM order_status_history WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("repository: failed to delete status history for order %s: %w", id, err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("repository: failed to delete order items for order %s: %w", id, err)
	}

	tag, execErr := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if execErr != nil {
		err = fmt.Errorf("repository: failed to delete order %s: %w", id, execErr)
		return err
	}
	if tag.RowsAffected() == 0 {
		err = ErrOrderNotFound
		return err
	}
	return nil
}

func (r *postgresRepository) ProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var stock int
	err := r.db.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("repository: failed to select stock for product %s: %w", productID, err)
	}
	return stock, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == constraint
}
