package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/restaurant-pos/internal/model"
)

// OrderRepo provides persistence for orders and their line items.  Orders
// are never deleted.  Items are stored one row per entry in order_items
// with an explicit position so that reads return them in insertion order.
// All timestamp fields are assumed to be stored in UTC.
type OrderRepo struct {
    db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, table_id, customer_name, customer_phone, guests, status,
                      subtotal, tax, total_with_tax, tax_rate_percent, payment_method,
                      created_at, updated_at, completed_at`

func scanOrder(row interface{ Scan(...any) error }, o *model.Order) error {
    var completedAt sql.NullTime
    if err := row.Scan(
        &o.ID, &o.TableID, &o.Customer.Name, &o.Customer.Phone, &o.Customer.Guests, &o.Status,
        &o.Bill.Subtotal, &o.Bill.Tax, &o.Bill.TotalWithTax, &o.TaxRatePercent, &o.PaymentMethod,
        &o.CreatedAt, &o.UpdatedAt, &completedAt,
    ); err != nil {
        return err
    }
    if completedAt.Valid {
        t := completedAt.Time
        o.CompletedAt = &t
    }
    return nil
}

// Create inserts the order and its items within one transaction and
// populates the generated ID and timestamps on o.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const q = `INSERT INTO orders (table_id, customer_name, customer_phone, guests, status,
                                   subtotal, tax, total_with_tax, tax_rate_percent, payment_method)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q,
        o.TableID, o.Customer.Name, o.Customer.Phone, o.Customer.Guests, o.Status,
        o.Bill.Subtotal, o.Bill.Tax, o.Bill.TotalWithTax, o.TaxRatePercent, o.PaymentMethod,
    )
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    if err := insertItemsTx(ctx, tx, uint64(id), 0, o.Items); err != nil {
        return err
    }
    // Query back the row to populate timestamps and defaults
    items := o.Items
    if err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id), o); err != nil {
        return err
    }
    o.Items = items
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// insertItemsTx writes items with consecutive positions starting at
// startPos.  Passing an empty slice has no effect.
func insertItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64, startPos int, items []model.LineItem) error {
    if len(items) == 0 {
        return nil
    }
    query := `INSERT INTO order_items (order_id, position, dish_id, name, unit_price, quantity, line_total) VALUES `
    args := make([]interface{}, 0, len(items)*7)
    for i, it := range items {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, ?)"
        args = append(args, orderID, startPos+i, it.DishID, it.Name, it.UnitPrice, it.Quantity, it.LineTotal)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// GetByID loads an order with all of its items.  It returns
// ErrOrderNotFound when no row exists.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
    var o model.Order
    if err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id), &o); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrOrderNotFound
        }
        return nil, err
    }
    items, err := r.itemsFor(ctx, []uint64{o.ID})
    if err != nil {
        return nil, err
    }
    o.Items = items[o.ID]
    if o.Items == nil {
        o.Items = []model.LineItem{}
    }
    return &o, nil
}

// itemsFor loads the items of the given orders keyed by order id, each
// slice ordered by position.
func (r *OrderRepo) itemsFor(ctx context.Context, orderIDs []uint64) (map[uint64][]model.LineItem, error) {
    out := make(map[uint64][]model.LineItem, len(orderIDs))
    if len(orderIDs) == 0 {
        return out, nil
    }
    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
    args := make([]interface{}, len(orderIDs))
    for i, id := range orderIDs {
        args[i] = id
    }
    q := `SELECT order_id, dish_id, name, unit_price, quantity, line_total
          FROM order_items
          WHERE order_id IN (` + placeholders + `)
          ORDER BY order_id, position`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var orderID uint64
        var dish sql.NullInt64
        var it model.LineItem
        if err := rows.Scan(&orderID, &dish, &it.Name, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
            return nil, err
        }
        if dish.Valid {
            d := uint64(dish.Int64)
            it.DishID = &d
        }
        out[orderID] = append(out[orderID], it)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// List returns the most recent orders first, items included.
func (r *OrderRepo) List(ctx context.Context, limit int) ([]model.Order, error) {
    if limit <= 0 {
        limit = 100
    }
    rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    orders := make([]model.Order, 0)
    ids := make([]uint64, 0)
    for rows.Next() {
        var o model.Order
        if err := scanOrder(rows, &o); err != nil {
            return nil, err
        }
        orders = append(orders, o)
        ids = append(ids, o.ID)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    items, err := r.itemsFor(ctx, ids)
    if err != nil {
        return nil, err
    }
    for i := range orders {
        orders[i].Items = items[orders[i].ID]
        if orders[i].Items == nil {
            orders[i].Items = []model.LineItem{}
        }
    }
    return orders, nil
}

// AppendItems inserts newItems after the existing ones and stores the
// recomputed bill in the same transaction.  The update is conditional on
// the order still being In Progress; otherwise ErrOrderNotOpen is returned
// and nothing is written.
func (r *OrderRepo) AppendItems(ctx context.Context, o *model.Order, newItems []model.LineItem) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // lock the order row so positions stay consecutive
    var status string
    var count int
    if err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ? FOR UPDATE`, o.ID).Scan(&status); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return ErrOrderNotFound
        }
        return err
    }
    if status != model.OrderInProgress {
        return ErrOrderNotOpen
    }
    if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = ?`, o.ID).Scan(&count); err != nil {
        return err
    }
    if err := insertItemsTx(ctx, tx, o.ID, count, newItems); err != nil {
        return err
    }
    const upd = `UPDATE orders
                 SET subtotal = ?, tax = ?, total_with_tax = ?, tax_rate_percent = ?, updated_at = CURRENT_TIMESTAMP
                 WHERE id = ?`
    if _, err := tx.ExecContext(ctx, upd, o.Bill.Subtotal, o.Bill.Tax, o.Bill.TotalWithTax, o.TaxRatePercent, o.ID); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// Complete marks an In Progress order Completed with the given payment
// method.  It returns ErrOrderNotFound when the order is missing and
// ErrOrderNotOpen when it was already completed.
func (r *OrderRepo) Complete(ctx context.Context, id uint64, paymentMethod string, at time.Time) error {
    const q = `UPDATE orders
               SET status = ?, payment_method = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND status = ?`
    res, err := r.db.ExecContext(ctx, q, model.OrderCompleted, paymentMethod, at.UTC(), id, model.OrderInProgress)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n > 0 {
        return nil
    }
    var status string
    if err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&status); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return ErrOrderNotFound
        }
        return err
    }
    return ErrOrderNotOpen
}
