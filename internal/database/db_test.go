package database

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/restaurant-pos/internal/billing"
)

func TestDSN(t *testing.T) {
	dsn := Options{User: "pos", Password: "p@ss", Host: "db", Port: "3306", Name: "restaurant"}.DSN()
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if cfg.User != "pos" || cfg.Passwd != "p@ss" || cfg.Addr != "db:3306" || cfg.DBName != "restaurant" {
		t.Fatalf("round trip mismatch: %+v", cfg)
	}
	if !cfg.ParseTime || !cfg.ClientFoundRows {
		t.Fatalf("flags not set: parseTime=%v clientFoundRows=%v", cfg.ParseTime, cfg.ClientFoundRows)
	}
}

func TestSchemaCoversRepositories(t *testing.T) {
	joined := strings.Join(schema, "\n")
	for _, table := range []string{"users", "refresh_tokens", "dining_tables", "orders", "order_items", "categories", "dishes"} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema has no %s table", table)
		}
	}
}

var decimalColumn = regexp.MustCompile(`(?m)^\s*(\w+)\s+DECIMAL\((\d+),(\d+)\)`)

// Every money column must hold the precision billing can produce, or MySQL
// rounds it silently on write.
func TestSchemaDecimalScales(t *testing.T) {
	want := map[string]int{
		"unit_price":       billing.MaxPriceScale,
		"line_total":       billing.MaxPriceScale,
		"price":            billing.MaxPriceScale,
		"subtotal":         billing.MaxPriceScale,
		"tax":              billing.MaxBillScale,
		"total_with_tax":   billing.MaxBillScale,
		"tax_rate_percent": billing.MaxRateScale,
	}
	seen := map[string]bool{}
	for _, m := range decimalColumn.FindAllStringSubmatch(strings.Join(schema, "\n"), -1) {
		col := m[1]
		scale, _ := strconv.Atoi(m[3])
		need, ok := want[col]
		if !ok {
			t.Errorf("unexpected DECIMAL column %s", col)
			continue
		}
		seen[col] = true
		if scale < need {
			t.Errorf("%s has scale %d, need %d", col, scale, need)
		}
	}
	for col := range want {
		if !seen[col] {
			t.Errorf("no DECIMAL column %s", col)
		}
	}
}
