package model

import "time"

// Table status values.  A table starts Available, becomes Occupied when an
// order is linked to it and returns to Available when it is closed.  Booked
// is only reached through a staff override.
const (
    TableAvailable = "Available"
    TableBooked    = "Booked"
    TableOccupied  = "Occupied"
)

// ValidTableStatus reports whether s is one of the known table statuses.
func ValidTableStatus(s string) bool {
    switch s {
    case TableAvailable, TableBooked, TableOccupied:
        return true
    }
    return false
}

// Table represents a physical seating unit in the restaurant.  This struct
// corresponds to a row in the `dining_tables` table.
//
// Fields:
//  ID            – primary key identifier.
//  TableNumber   – unique, human facing number printed on the table.
//  SeatCount     – number of seats.
//  Status        – occupancy status (Available, Booked, Occupied).
//  ActiveOrderID – weak reference to the order currently open on the
//                  table.  It is only an id: the order lives on after the
//                  link is cleared.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Table struct {
    ID            uint64    `json:"id"`              // dining_tables.id
    TableNumber   int       `json:"table_number"`    // dining_tables.table_number
    SeatCount     int       `json:"seat_count"`      // dining_tables.seat_count
    Status        string    `json:"status"`          // dining_tables.status
    ActiveOrderID *uint64   `json:"active_order_id"` // dining_tables.active_order_id (nullable)
    CreatedAt     time.Time `json:"created_at"`      // dining_tables.created_at
    UpdatedAt     time.Time `json:"updated_at"`      // dining_tables.updated_at
}

// HasActiveOrder reports whether the table currently links an order.
func (t *Table) HasActiveOrder() bool { return t.ActiveOrderID != nil }

// TableView is the listing shape of a table: the table itself plus the
// customer name of the linked order, read through a join.  The order fields
// are advisory; the order store is the authority on the order's state.
type TableView struct {
    Table
    ActiveOrderCustomer *string `json:"active_order_customer,omitempty"`
}
