package repository // repository holds data access logic for domain entities

import (
	"context"      // context is used to manage deadlines and cancellation
	"database/sql" // sql provides DB primitives
	"errors"       // errors is used to compare driver sentinels

	"github.com/iliyamo/restaurant-pos/internal/model"
)

// TableRepo provides data access to the dining_tables table.  The
// active_order_id column is a plain nullable id; there is deliberately no
// foreign key so that the order row survives the table letting go of it.
type TableRepo struct {
	db *sql.DB // db is the underlying database connection
}

// NewTableRepo constructs a TableRepo with the given DB handle.
func NewTableRepo(db *sql.DB) *TableRepo {
	return &TableRepo{db: db}
}

const tableColumns = `id, table_number, seat_count, status, active_order_id, created_at, updated_at`

func scanTable(row interface{ Scan(...any) error }, t *model.Table) error {
	var active sql.NullInt64
	if err := row.Scan(&t.ID, &t.TableNumber, &t.SeatCount, &t.Status, &active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	t.ActiveOrderID = nil
	if active.Valid {
		id := uint64(active.Int64)
		t.ActiveOrderID = &id
	}
	return nil
}

// Create inserts a new table.  The ID and timestamps are populated by
// reading the row back.  A duplicate table_number yields
// ErrTableNumberExists.
func (r *TableRepo) Create(ctx context.Context, t *model.Table) error {
	const q = `INSERT INTO dining_tables (table_number, seat_count, status) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.TableNumber, t.SeatCount, t.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrTableNumberExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*t = *got
	return nil
}

// GetByID retrieves a table by its ID.  It returns ErrTableNotFound when
// no row is found.
func (r *TableRepo) GetByID(ctx context.Context, id uint64) (*model.Table, error) {
	q := `SELECT ` + tableColumns + ` FROM dining_tables WHERE id = ?`
	var t model.Table
	if err := scanTable(r.db.QueryRowContext(ctx, q, id), &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindByActiveOrder returns the table that currently links orderID, or
// ErrTableNotFound when no table does.
func (r *TableRepo) FindByActiveOrder(ctx context.Context, orderID uint64) (*model.Table, error) {
	q := `SELECT ` + tableColumns + ` FROM dining_tables WHERE active_order_id = ? LIMIT 1`
	var t model.Table
	if err := scanTable(r.db.QueryRowContext(ctx, q, orderID), &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List returns all tables ordered by table number together with the
// customer name of each linked order.
func (r *TableRepo) List(ctx context.Context) ([]model.TableView, error) {
	const q = `SELECT t.id, t.table_number, t.seat_count, t.status, t.active_order_id, t.created_at, t.updated_at,
	                  o.customer_name
	           FROM dining_tables t
	           LEFT JOIN orders o ON o.id = t.active_order_id
	           ORDER BY t.table_number`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.TableView, 0)
	for rows.Next() {
		var v model.TableView
		var active sql.NullInt64
		var customer sql.NullString
		if err := rows.Scan(&v.ID, &v.TableNumber, &v.SeatCount, &v.Status, &active, &v.CreatedAt, &v.UpdatedAt, &customer); err != nil {
			return nil, err
		}
		if active.Valid {
			id := uint64(active.Int64)
			v.ActiveOrderID = &id
		}
		if customer.Valid {
			name := customer.String
			v.ActiveOrderCustomer = &name
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateState writes the status and order link of a table in one
// statement.  A nil activeOrderID clears the link.  Returns
// ErrTableNotFound when the table does not exist.
func (r *TableRepo) UpdateState(ctx context.Context, id uint64, status string, activeOrderID *uint64) error {
	const q = `UPDATE dining_tables
	           SET status = ?, active_order_id = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, activeOrderID, id)
	if err != nil {
		return err
	}
	// clientFoundRows=true in the DSN makes this count matched rows
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTableNotFound
	}
	return nil
}
