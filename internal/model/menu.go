package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Category groups dishes on the menu.  Names are unique.
type Category struct {
    ID        uint64    `json:"id"`         // categories.id
    Name      string    `json:"name"`       // categories.name
    CreatedAt time.Time `json:"created_at"` // categories.created_at
}

// Dish is a menu entry.  A dish name is unique within its category.
type Dish struct {
    ID          uint64          `json:"id"`                  // dishes.id
    CategoryID  uint64          `json:"category_id"`         // dishes.category_id
    Category    string          `json:"category,omitempty"`  // categories.name (joined)
    Name        string          `json:"name"`                // dishes.name
    Description *string         `json:"description"`         // dishes.description (nullable)
    Price       decimal.Decimal `json:"price"`               // dishes.price
    ImageURL    *string         `json:"image_url,omitempty"` // dishes.image_url (nullable)
    CreatedAt   time.Time       `json:"created_at"`          // dishes.created_at
}
