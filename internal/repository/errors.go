// Package repository defines the persistence layer and the error values
// reused across its repositories.  These sentinel values allow higher
// layers such as the services to distinguish between failure scenarios
// without knowing which storage driver is in use.  For example,
// ErrTableNumberExists signals a duplicate table number while
// ErrOrderNotOpen signals that a conditional update on an order found the
// order already completed.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

var (
    ErrTableNotFound     = errors.New("table not found")
    ErrTableNumberExists = errors.New("table number already exists")
    ErrOrderNotFound     = errors.New("order not found")
    ErrOrderNotOpen      = errors.New("order is not in progress")
    ErrCategoryNotFound  = errors.New("category not found")
    ErrCategoryExists    = errors.New("category already exists")
    ErrDishNotFound      = errors.New("dish not found")
    ErrDishExists        = errors.New("dish already exists in category")
)

// isDuplicateKey reports whether err is a MySQL unique key violation (1062).
func isDuplicateKey(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == 1062
}
