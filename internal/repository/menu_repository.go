package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/restaurant-pos/internal/model"
)

// MenuRepo provides access to categories and dishes.  The order flow only
// reads from it to check that referenced dishes exist.
type MenuRepo struct {
	db *sql.DB
}

// NewMenuRepo constructs a MenuRepo with the given DB handle.
func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{db: db} }

// CreateCategory inserts a category.  Duplicate names yield ErrCategoryExists.
func (r *MenuRepo) CreateCategory(ctx context.Context, c *model.Category) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, c.Name)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrCategoryExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
}

// ListCategories returns all categories ordered by name.
func (r *MenuRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Category, 0)
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategoryByID returns ErrCategoryNotFound when no row matches.
func (r *MenuRepo) GetCategoryByID(ctx context.Context, id uint64) (*model.Category, error) {
	var c model.Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &c, nil
}

const dishSelect = `SELECT d.id, d.category_id, c.name, d.name, d.description, d.price, d.image_url, d.created_at
                    FROM dishes d
                    JOIN categories c ON c.id = d.category_id`

func scanDish(row interface{ Scan(...any) error }, d *model.Dish) error {
	var desc, img sql.NullString
	if err := row.Scan(&d.ID, &d.CategoryID, &d.Category, &d.Name, &desc, &d.Price, &img, &d.CreatedAt); err != nil {
		return err
	}
	if desc.Valid {
		s := desc.String
		d.Description = &s
	}
	if img.Valid {
		s := img.String
		d.ImageURL = &s
	}
	return nil
}

// CreateDish inserts a dish.  A dish with the same name in the same
// category yields ErrDishExists.
func (r *MenuRepo) CreateDish(ctx context.Context, d *model.Dish) error {
	const q = `INSERT INTO dishes (category_id, name, description, price, image_url) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, d.CategoryID, d.Name, d.Description, d.Price, d.ImageURL)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDishExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetDishByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*d = *got
	return nil
}

// GetDishByID returns ErrDishNotFound when no row matches.
func (r *MenuRepo) GetDishByID(ctx context.Context, id uint64) (*model.Dish, error) {
	var d model.Dish
	if err := scanDish(r.db.QueryRowContext(ctx, dishSelect+` WHERE d.id = ?`, id), &d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDishNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDishes returns dishes, optionally restricted to one category.
func (r *MenuRepo) ListDishes(ctx context.Context, categoryID *uint64) ([]model.Dish, error) {
	q := dishSelect
	args := []interface{}{}
	if categoryID != nil {
		q += ` WHERE d.category_id = ?`
		args = append(args, *categoryID)
	}
	q += ` ORDER BY c.name, d.name`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Dish, 0)
	for rows.Next() {
		var d model.Dish
		if err := scanDish(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
