/*
Package sqlite provides a SQLite-backed pos.Gateway.

PURPOSE:
  Stores the shop aggregate as ordinary tables so the data can be inspected
  or queried with any SQLite tool. The engine still loads and saves the
  whole aggregate at once; tables are only the storage shape.

SAVE SEMANTICS:
  Save runs in one database transaction:
  - products, clients: upserted, rows no longer in the state are removed
  - sales, sale_items, payments: insert-or-ignore by id. The journals are
    append-only, so the stored ids must be a prefix of the state's; when
    they are not, the journal tables are cleared and rewritten first.
  - meta.saved_at is written last. Its presence is what distinguishes
    "never saved" from "saved an empty shop".

LOAD SEMANTICS:
  - no meta.saved_at row       -> pos.ErrNoSavedState
  - unparseable decimal, time,
    category, method or ids    -> *pos.MalformedStateError
  - anything else              -> returned as-is (I/O)

KEY TABLES:
  products:   catalog, ordered by position
  clients:    credit accounts, ordered by position
  sales:      sale journal, ordered by seq
  sale_items: line snapshots, keyed by (sale_id, line)
  payments:   payment journal, ordered by seq

MONEY:
  Stored as TEXT decimal strings, never REAL.

WAL MODE:
  Opened with WAL so a reader (sqlite3 CLI, backup) does not block saves.

USAGE:
  gw, err := sqlite.New("./data/tortipos.db")
  if err != nil {
      log.Fatal(err)
  }
  defer gw.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/tortipos/pos"
)

const source = "sqlite"

// Store implements pos.Gateway using SQLite.
type Store struct {
	db *sqlx.DB
}

var _ pos.Gateway = (*Store)(nil)

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		buy_price TEXT NOT NULL,
		sell_price TEXT NOT NULL,
		stock INTEGER NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		balance TEXT NOT NULL,
		opening_balance TEXT NOT NULL
	);

	-- Sale journal (append-only)
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		total TEXT NOT NULL,
		total_cost TEXT NOT NULL,
		method TEXT NOT NULL,
		client_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sales_seq ON sales(seq);
	CREATE INDEX IF NOT EXISTS idx_sales_client ON sales(client_id) WHERE client_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS sale_items (
		sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		line INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		cost TEXT NOT NULL,
		PRIMARY KEY (sale_id, line)
	);

	-- Payment journal (append-only)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		client_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_seq ON payments(seq);
	CREATE INDEX IF NOT EXISTS idx_payments_client ON payments(client_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROWS
// =============================================================================

type productRow struct {
	ID        string `db:"id"`
	Position  int    `db:"position"`
	Name      string `db:"name"`
	BuyPrice  string `db:"buy_price"`
	SellPrice string `db:"sell_price"`
	Stock     int    `db:"stock"`
	Category  string `db:"category"`
}

type clientRow struct {
	ID             string `db:"id"`
	Position       int    `db:"position"`
	Name           string `db:"name"`
	Address        string `db:"address"`
	Phone          string `db:"phone"`
	Balance        string `db:"balance"`
	OpeningBalance string `db:"opening_balance"`
}

type saleRow struct {
	ID        string         `db:"id"`
	Seq       int            `db:"seq"`
	Timestamp string         `db:"timestamp"`
	Total     string         `db:"total"`
	TotalCost string         `db:"total_cost"`
	Method    string         `db:"method"`
	ClientID  sql.NullString `db:"client_id"`
}

type saleItemRow struct {
	SaleID    string `db:"sale_id"`
	Line      int    `db:"line"`
	ProductID string `db:"product_id"`
	Name      string `db:"name"`
	Quantity  int    `db:"quantity"`
	Price     string `db:"price"`
	Cost      string `db:"cost"`
}

type paymentRow struct {
	ID        string `db:"id"`
	Seq       int    `db:"seq"`
	ClientID  string `db:"client_id"`
	Amount    string `db:"amount"`
	Timestamp string `db:"timestamp"`
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the complete state in one transaction.
func (s *Store) Save(ctx context.Context, state *pos.State) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveProducts(ctx, tx, state.Products); err != nil {
		return err
	}
	if err := saveClients(ctx, tx, state.Clients); err != nil {
		return err
	}
	if err := saveSales(ctx, tx, state.Sales); err != nil {
		return err
	}
	if err := savePayments(ctx, tx, state.Payments); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('saved_at', ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write save marker: %w", err)
	}

	return tx.Commit()
}

func saveProducts(ctx context.Context, tx *sqlx.Tx, products []pos.Product) error {
	query := `
		INSERT INTO products (id, position, name, buy_price, sell_price, stock, category)
		VALUES (:id, :position, :name, :buy_price, :sell_price, :stock, :category)
		ON CONFLICT (id) DO UPDATE SET
			position = excluded.position,
			name = excluded.name,
			buy_price = excluded.buy_price,
			sell_price = excluded.sell_price,
			stock = excluded.stock,
			category = excluded.category
	`
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = string(p.ID)
		row := productRow{
			ID:        string(p.ID),
			Position:  i,
			Name:      p.Name,
			BuyPrice:  p.BuyPrice.String(),
			SellPrice: p.SellPrice.String(),
			Stock:     p.Stock,
			Category:  string(p.Category),
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("failed to save product %s: %w", p.ID, err)
		}
	}
	return deleteMissing(ctx, tx, "products", ids)
}

func saveClients(ctx context.Context, tx *sqlx.Tx, clients []pos.Client) error {
	query := `
		INSERT INTO clients (id, position, name, address, phone, balance, opening_balance)
		VALUES (:id, :position, :name, :address, :phone, :balance, :opening_balance)
		ON CONFLICT (id) DO UPDATE SET
			position = excluded.position,
			name = excluded.name,
			address = excluded.address,
			phone = excluded.phone,
			balance = excluded.balance,
			opening_balance = excluded.opening_balance
	`
	ids := make([]string, len(clients))
	for i, c := range clients {
		ids[i] = string(c.ID)
		row := clientRow{
			ID:             string(c.ID),
			Position:       i,
			Name:           c.Name,
			Address:        c.Address,
			Phone:          c.Phone,
			Balance:        c.Balance.String(),
			OpeningBalance: c.OpeningBalance.String(),
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("failed to save client %s: %w", c.ID, err)
		}
	}
	return deleteMissing(ctx, tx, "clients", ids)
}

// deleteMissing removes rows of table whose id is not in keep.
func deleteMissing(ctx context.Context, tx *sqlx.Tx, table string, keep []string) error {
	if len(keep) == 0 {
		_, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		return err
	}
	query, args, err := sqlx.In("DELETE FROM "+table+" WHERE id NOT IN (?)", keep)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
	return err
}

// syncJournal keeps an append-only journal table in step with ids, the
// state's journal in order. Stored rows that are a prefix of ids only need
// the new tail inserted. Anything else means the journal was replaced, so the
// table and its dependents are cleared and rewritten.
func syncJournal(ctx context.Context, tx *sqlx.Tx, table string, ids []string, dependents ...string) error {
	var stored []string
	if err := tx.SelectContext(ctx, &stored, "SELECT id FROM "+table+" ORDER BY seq"); err != nil {
		return err
	}
	if isPrefix(stored, ids) {
		return nil
	}
	for _, t := range append(dependents, table) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return err
		}
	}
	return nil
}

func isPrefix(prefix, ids []string) bool {
	if len(prefix) > len(ids) {
		return false
	}
	for i := range prefix {
		if prefix[i] != ids[i] {
			return false
		}
	}
	return true
}

func saveSales(ctx context.Context, tx *sqlx.Tx, sales []pos.Sale) error {
	ids := make([]string, len(sales))
	for i, sale := range sales {
		ids[i] = string(sale.ID)
	}
	if err := syncJournal(ctx, tx, "sales", ids, "sale_items"); err != nil {
		return fmt.Errorf("failed to check sale journal: %w", err)
	}

	saleQuery := `
		INSERT OR IGNORE INTO sales (id, seq, timestamp, total, total_cost, method, client_id)
		VALUES (:id, :seq, :timestamp, :total, :total_cost, :method, :client_id)
	`
	itemQuery := `
		INSERT OR IGNORE INTO sale_items (sale_id, line, product_id, name, quantity, price, cost)
		VALUES (:sale_id, :line, :product_id, :name, :quantity, :price, :cost)
	`
	for i, sale := range sales {
		row := saleRow{
			ID:        string(sale.ID),
			Seq:       i,
			Timestamp: sale.Timestamp.UTC().Format(time.RFC3339Nano),
			Total:     sale.Total.String(),
			TotalCost: sale.TotalCost.String(),
			Method:    string(sale.Method),
			ClientID:  nullString(string(sale.ClientID)),
		}
		res, err := tx.NamedExecContext(ctx, saleQuery, row)
		if err != nil {
			return fmt.Errorf("failed to save sale %s: %w", sale.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue // already journaled
		}
		for line, item := range sale.Items {
			itemRow := saleItemRow{
				SaleID:    string(sale.ID),
				Line:      line,
				ProductID: string(item.ProductID),
				Name:      item.Name,
				Quantity:  item.Quantity,
				Price:     item.Price.String(),
				Cost:      item.Cost.String(),
			}
			if _, err := tx.NamedExecContext(ctx, itemQuery, itemRow); err != nil {
				return fmt.Errorf("failed to save sale %s line %d: %w", sale.ID, line, err)
			}
		}
	}
	return nil
}

func savePayments(ctx context.Context, tx *sqlx.Tx, payments []pos.CreditPayment) error {
	ids := make([]string, len(payments))
	for i, p := range payments {
		ids[i] = string(p.ID)
	}
	if err := syncJournal(ctx, tx, "payments", ids); err != nil {
		return fmt.Errorf("failed to check payment journal: %w", err)
	}

	query := `
		INSERT OR IGNORE INTO payments (id, seq, client_id, amount, timestamp)
		VALUES (:id, :seq, :client_id, :amount, :timestamp)
	`
	for i, p := range payments {
		row := paymentRow{
			ID:        string(p.ID),
			Seq:       i,
			ClientID:  string(p.ClientID),
			Amount:    p.Amount.String(),
			Timestamp: p.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("failed to save payment %s: %w", p.ID, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads the complete state.
func (s *Store) Load(ctx context.Context) (*pos.State, error) {
	var savedAt string
	err := s.db.GetContext(ctx, &savedAt, "SELECT value FROM meta WHERE key = 'saved_at'")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pos.ErrNoSavedState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read save marker: %w", err)
	}

	var (
		products []productRow
		clients  []clientRow
		sales    []saleRow
		items    []saleItemRow
		payments []paymentRow
	)
	if err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY position"); err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	if err := s.db.SelectContext(ctx, &clients, "SELECT * FROM clients ORDER BY position"); err != nil {
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}
	if err := s.db.SelectContext(ctx, &sales, "SELECT * FROM sales ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	if err := s.db.SelectContext(ctx, &items, "SELECT * FROM sale_items ORDER BY sale_id, line"); err != nil {
		return nil, fmt.Errorf("failed to load sale items: %w", err)
	}
	if err := s.db.SelectContext(ctx, &payments, "SELECT * FROM payments ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	state, err := assemble(products, clients, sales, items, payments)
	if err != nil {
		return nil, &pos.MalformedStateError{Source: source, Err: err}
	}
	if err := state.Validate(); err != nil {
		return nil, &pos.MalformedStateError{Source: source, Err: err}
	}
	return state, nil
}

func assemble(products []productRow, clients []clientRow, sales []saleRow, items []saleItemRow, payments []paymentRow) (*pos.State, error) {
	var p parser
	state := &pos.State{
		Products: make([]pos.Product, 0, len(products)),
		Clients:  make([]pos.Client, 0, len(clients)),
		Sales:    make([]pos.Sale, 0, len(sales)),
		Payments: make([]pos.CreditPayment, 0, len(payments)),
	}

	for _, r := range products {
		var category pos.Category
		if err := category.UnmarshalText([]byte(r.Category)); err != nil {
			return nil, fmt.Errorf("product %s: %w", r.ID, err)
		}
		state.Products = append(state.Products, pos.Product{
			ID:        pos.ProductID(r.ID),
			Name:      r.Name,
			BuyPrice:  p.money(r.BuyPrice),
			SellPrice: p.money(r.SellPrice),
			Stock:     r.Stock,
			Category:  category,
		})
	}

	for _, r := range clients {
		state.Clients = append(state.Clients, pos.Client{
			ID:             pos.ClientID(r.ID),
			Name:           r.Name,
			Address:        r.Address,
			Phone:          r.Phone,
			Balance:        p.money(r.Balance),
			OpeningBalance: p.money(r.OpeningBalance),
		})
	}

	lines := make(map[string][]pos.SaleItem, len(sales))
	for _, r := range items {
		lines[r.SaleID] = append(lines[r.SaleID], pos.SaleItem{
			ProductID: pos.ProductID(r.ProductID),
			Name:      r.Name,
			Quantity:  r.Quantity,
			Price:     p.money(r.Price),
			Cost:      p.money(r.Cost),
		})
	}

	for _, r := range sales {
		method, err := pos.ParsePaymentMethod(r.Method)
		if err != nil {
			return nil, fmt.Errorf("sale %s: %w", r.ID, err)
		}
		saleItems := lines[r.ID]
		if saleItems == nil {
			saleItems = []pos.SaleItem{}
		}
		state.Sales = append(state.Sales, pos.Sale{
			ID:        pos.SaleID(r.ID),
			Timestamp: p.timestamp(r.Timestamp),
			Items:     saleItems,
			Total:     p.money(r.Total),
			TotalCost: p.money(r.TotalCost),
			Method:    method,
			ClientID:  pos.ClientID(r.ClientID.String),
		})
	}

	for _, r := range payments {
		state.Payments = append(state.Payments, pos.CreditPayment{
			ID:        pos.PaymentID(r.ID),
			ClientID:  pos.ClientID(r.ClientID),
			Amount:    p.money(r.Amount),
			Timestamp: p.timestamp(r.Timestamp),
		})
	}

	if p.err != nil {
		return nil, p.err
	}
	return state, nil
}

// parser keeps the first conversion error so assemble can convert columns
// inline and check once.
type parser struct {
	err error
}

func (p *parser) money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d
}

func (p *parser) timestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data, including the save marker.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"sale_items", "sales", "payments", "clients", "products", "meta"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Exec runs a raw statement. Used by tests to damage stored data.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
