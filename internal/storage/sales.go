package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"salespipe/internal/pipeline"
)

// SalesStore persists clean sales records. It satisfies the
// loader's Store interface: each batch runs inside one SQL
// transaction, and re-loading an order id is a silent skip.
type SalesStore struct {
	db *DB
}

// NewSalesStore creates a new SalesStore.
func NewSalesStore(db *DB) *SalesStore {
	return &SalesStore{db: db}
}

// Begin opens a batch transaction.
func (s *SalesStore) Begin() (pipeline.BatchTx, error) {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &salesTx{tx: tx}, nil
}

// Count returns the number of loaded sales records.
func (s *SalesStore) Count() (int, error) {
	var n int
	err := s.db.conn.QueryRow(`SELECT COUNT(*) FROM clean_sales`).Scan(&n)
	return n, err
}

// Get fetches one loaded record by order id.
func (s *SalesStore) Get(orderID string) (*pipeline.CleanRecord, error) {
	rec := &pipeline.CleanRecord{}
	var flags string

	err := s.db.conn.QueryRow(
		`SELECT order_id, customer_name, email, product_id, product_name, category,
		 quantity, unit_price, total, order_date, payment_method, current_stock, anomaly_flags
		 FROM clean_sales WHERE order_id = ?`, orderID,
	).Scan(
		&rec.OrderID, &rec.CustomerName, &rec.Email, &rec.ProductID,
		&rec.ProductName, &rec.Category, &rec.Quantity, &rec.UnitPrice,
		&rec.Total, &rec.OrderDate, &rec.PaymentMethod, &rec.CurrentStock, &flags,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sale not found: %s", orderID)
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(flags), &rec.AnomalyFlags)
	return rec, nil
}

type salesTx struct {
	tx *sql.Tx
}

func (t *salesTx) InsertOrIgnore(rec pipeline.CleanRecord) (int64, error) {
	flags, _ := json.Marshal(rec.AnomalyFlags)

	res, err := t.tx.Exec(
		`INSERT OR IGNORE INTO clean_sales (order_id, customer_name, email, product_id,
		 product_name, category, quantity, unit_price, total, order_date,
		 payment_method, current_stock, anomaly_flags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OrderID, rec.CustomerName, rec.Email, rec.ProductID,
		rec.ProductName, rec.Category, rec.Quantity, rec.UnitPrice,
		rec.Total, rec.OrderDate, rec.PaymentMethod, rec.CurrentStock, string(flags),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *salesTx) Commit() error   { return t.tx.Commit() }
func (t *salesTx) Rollback() error { return t.tx.Rollback() }
