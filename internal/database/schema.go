package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every table the repositories use.  Statements are
// idempotent; Migrate can run on each start.  Money columns are exact
// decimals.  dining_tables.active_order_id carries no foreign key: it is
// a weak reference and an order outlives the link.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('ADMIN','STAFF') NOT NULL DEFAULT 'STAFF',
		is_active     TINYINT(1) NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS dining_tables (
		id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		table_number    INT NOT NULL UNIQUE,
		seat_count      INT NOT NULL,
		status          ENUM('Available','Booked','Occupied') NOT NULL DEFAULT 'Available',
		active_order_id BIGINT UNSIGNED NULL,
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_tables_active_order (active_order_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS orders (
		id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		table_id         BIGINT UNSIGNED NOT NULL,
		customer_name    VARCHAR(255) NOT NULL,
		customer_phone   VARCHAR(64) NOT NULL,
		guests           INT NOT NULL DEFAULT 1,
		status           ENUM('In Progress','Completed') NOT NULL DEFAULT 'In Progress',
		subtotal         DECIMAL(18,6) NOT NULL DEFAULT 0,
		tax              DECIMAL(30,12) NOT NULL DEFAULT 0,
		total_with_tax   DECIMAL(30,12) NOT NULL DEFAULT 0,
		tax_rate_percent DECIMAL(9,4) NOT NULL,
		payment_method   VARCHAR(64) NOT NULL DEFAULT 'Pending',
		created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		completed_at     DATETIME NULL,
		KEY idx_orders_table (table_id),
		KEY idx_orders_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS order_items (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		order_id   BIGINT UNSIGNED NOT NULL,
		position   INT NOT NULL,
		dish_id    BIGINT UNSIGNED NULL,
		name       VARCHAR(255) NOT NULL,
		unit_price DECIMAL(18,6) NOT NULL,
		quantity   INT NOT NULL,
		line_total DECIMAL(18,6) NOT NULL,
		UNIQUE KEY uq_order_position (order_id, position),
		CONSTRAINT fk_items_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS categories (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(128) NOT NULL UNIQUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS dishes (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		category_id BIGINT UNSIGNED NOT NULL,
		name        VARCHAR(255) NOT NULL,
		description TEXT NULL,
		price       DECIMAL(18,6) NOT NULL,
		image_url   VARCHAR(512) NULL,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_dish_category_name (category_id, name),
		CONSTRAINT fk_dish_category FOREIGN KEY (category_id) REFERENCES categories(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
