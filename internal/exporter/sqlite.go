package exporter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"salescli/pkg/contracts/domain"
)

var sqliteSchema = []string{
	`CREATE TABLE summary (
		metric TEXT PRIMARY KEY,
		value REAL NOT NULL
	)`,
	`CREATE TABLE periods (
		period TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		granularity TEXT NOT NULL,
		total REAL NOT NULL,
		average REAL NOT NULL,
		orders INTEGER NOT NULL,
		quantity REAL NOT NULL,
		unique_customers INTEGER NOT NULL,
		growth REAL
	)`,
	`CREATE TABLE categories (
		category TEXT PRIMARY KEY,
		rank INTEGER NOT NULL,
		total REAL NOT NULL,
		average REAL NOT NULL,
		quantity REAL NOT NULL,
		orders INTEGER NOT NULL
	)`,
	`CREATE TABLE distribution (
		bin INTEGER PRIMARY KEY,
		lower REAL NOT NULL,
		upper REAL NOT NULL,
		count INTEGER NOT NULL
	)`,
}

// WriteSQLite stores the metric set in a fresh SQLite database at path
func WriteSQLite(ctx context.Context, path string, m *domain.MetricSet) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range sqliteSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	for name, value := range m.Values() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO summary (metric, value) VALUES (?, ?)`, name, value); err != nil {
			return fmt.Errorf("failed to insert summary %s: %w", name, err)
		}
	}

	for _, p := range m.Periods {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO periods (period, start_date, granularity, total, average, orders, quantity, unique_customers, growth)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Period.Label(), p.Period.Start.Format("2006-01-02"), string(p.Period.Granularity),
			p.Total, p.Average, p.Orders, p.Quantity, p.UniqueCustomers, p.Growth); err != nil {
			return fmt.Errorf("failed to insert period %s: %w", p.Period.Label(), err)
		}
	}

	for i, c := range m.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (category, rank, total, average, quantity, orders) VALUES (?, ?, ?, ?, ?, ?)`,
			c.Category, i+1, c.Total, c.Average, c.Quantity, c.Orders); err != nil {
			return fmt.Errorf("failed to insert category %s: %w", c.Category, err)
		}
	}

	for i, b := range m.Distribution {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO distribution (bin, lower, upper, count) VALUES (?, ?, ?, ?)`,
			i, b.Lower, b.Upper, b.Count); err != nil {
			return fmt.Errorf("failed to insert bin %d: %w", i, err)
		}
	}

	return tx.Commit()
}
