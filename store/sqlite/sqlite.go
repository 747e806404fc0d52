/*
Package sqlite provides the SQLite-backed implementation of every storage
interface in the system.

INTERFACES IMPLEMENTED:
  delivery.Store - customers, patterns, temporary changes, payments
  invoice.Store  - invoice records and payment rollups
  master.Store   - courses, staff, manufacturers, singletons
  undo.Ledger    - single-slot undo entries, keyed by scope

TRANSACTIONS:
  WithTx begins one database transaction and hands the callback a derived
  context carrying it; store calls made with that context join the
  transaction, while calls carrying any other context never do - a
  concurrent request on another goroutine cannot wander into a transaction
  it does not own. The guard-check-then-write sequences in the mutation
  paths rely on this: the confirmed-month read and the insert that follows
  are one unit, and an undo replay that fails midway rolls back completely.
  WithTx holds the store mutex for its duration, so one wrapping operation
  at a time is the lock boundary.

SINGLE-SLOT UNDO:
  undo_entries has scope as its PRIMARY KEY; Push is an upsert, so a new
  mutation replaces the scope's pending entry rather than stacking.

FOREIGN KEYS:
  Opened with _foreign_keys=on. Re-inserting a deleted temporary change
  whose product has since been removed fails the FK check, which is what
  turns a stale undo into an integrity failure instead of a dangling row.

STRING-OR-STRUCTURED FIELDS:
  weekdays_json and quantity_by_day_json columns hold either structured
  JSON or a string-encoded equivalent (legacy rows). Scanning funnels both
  through schedule.Normalize* so the engine only ever sees the canonical
  shape.

SEE ALSO:
  - delivery/store.go, master/types.go, invoice/invoice.go: contracts
  - undo/undo.go: entry shape and single-slot semantics
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/JETKIDS/trae-milk2-sub002/delivery"
	"github.com/JETKIDS/trae-milk2-sub002/invoice"
	"github.com/JETKIDS/trae-milk2-sub002/master"
	"github.com/JETKIDS/trae-milk2-sub002/schedule"
	"github.com/JETKIDS/trae-milk2-sub002/undo"
)

// Compile-time interface checks.
var (
	_ delivery.Store = (*Store)(nil)
	_ invoice.Store  = (*Store)(nil)
	_ master.Store   = (*Store)(nil)
	_ undo.Ledger    = (*Store)(nil)
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB

	mu sync.Mutex // serializes WithTx; the wrapping operation is the lock boundary
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One shared connection: a plain call issued while a transaction is
	// open waits for the commit instead of reading around it.
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
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		course_id TEXT,
		rounded INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		manufacturer_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS delivery_patterns (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		product_id TEXT NOT NULL REFERENCES products(id),
		weekdays_json TEXT,
		quantity INTEGER NOT NULL DEFAULT 0,
		quantity_by_day_json TEXT,
		unit_price TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_patterns_customer
		ON delivery_patterns(customer_id);

	CREATE TABLE IF NOT EXISTS temporary_changes (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		product_id TEXT REFERENCES products(id),
		date TEXT NOT NULL,
		change_type TEXT NOT NULL,
		quantity INTEGER,
		unit_price TEXT,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	-- Calendar resolution reads one customer-month at a time (hot path).
	CREATE INDEX IF NOT EXISTS idx_changes_customer_date
		ON temporary_changes(customer_id, date);

	CREATE TABLE IF NOT EXISTS invoices (
		customer_id TEXT NOT NULL REFERENCES customers(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		rounded INTEGER NOT NULL,
		status TEXT NOT NULL,
		confirmed_at TEXT,
		PRIMARY KEY (customer_id, year, month)
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		date TEXT NOT NULL,
		amount INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_customer_date
		ON payments(customer_id, date);

	-- Single-slot undo: scope is the primary key, push is an upsert.
	CREATE TABLE IF NOT EXISTS undo_entries (
		scope TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		code INTEGER NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT
	);

	CREATE TABLE IF NOT EXISTS manufacturers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT
	);

	-- Singletons: exactly one row each, seeded empty.
	CREATE TABLE IF NOT EXISTS company (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		name TEXT NOT NULL DEFAULT '',
		address TEXT,
		phone TEXT
	);

	CREATE TABLE IF NOT EXISTS institution (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		name TEXT NOT NULL DEFAULT '',
		address TEXT,
		phone TEXT
	);

	INSERT OR IGNORE INTO company (id, name) VALUES (1, '');
	INSERT OR IGNORE INTO institution (id, name) VALUES (1, '');
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txKey marks a context as descending from a WithTx callback. The open
// transaction rides on the context, never on the Store, so a call made
// with any other context can never join a transaction it does not own.
type txKey struct{}

func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx runs fn inside one database transaction. Store calls made with
// the context handed to fn join it; an error from fn rolls everything
// back. Calls carrying any other context go straight to the pool and
// wait for the transaction's connection instead.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) GetCustomer(ctx context.Context, id schedule.CustomerID) (*delivery.Customer, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, course_id, rounded, created_at
		FROM customers WHERE id = ?`, id)

	var (
		c         delivery.Customer
		courseID  sql.NullString
		createdAt string
	)
	err := row.Scan(&c.ID, &c.Name, &courseID, &c.Rounded, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	c.CourseID = courseID.String
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]delivery.Customer, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, name, course_id, rounded, created_at
		FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []delivery.Customer
	for rows.Next() {
		var (
			c         delivery.Customer
			courseID  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &courseID, &c.Rounded, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		c.CourseID = courseID.String
		c.CreatedAt = parseTime(createdAt)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) SaveCustomer(ctx context.Context, c delivery.Customer) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO customers (id, name, course_id, rounded, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			course_id = excluded.course_id,
			rounded = excluded.rounded`,
		c.ID, c.Name, nullString(c.CourseID), c.Rounded, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *Store) Products(ctx context.Context) (map[schedule.ProductID]schedule.ProductInfo, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT id, name, unit, price FROM products`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make(map[schedule.ProductID]schedule.ProductInfo)
	for rows.Next() {
		var (
			info  schedule.ProductInfo
			price string
		)
		if err := rows.Scan(&info.ID, &info.Name, &info.Unit, &price); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		info.Price = mustDecimal(price)
		products[info.ID] = info
	}
	return products, rows.Err()
}

func (s *Store) SaveProduct(ctx context.Context, info schedule.ProductInfo) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO products (id, name, unit, price, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			price = excluded.price`,
		info.ID, info.Name, info.Unit, info.Price.String(), formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// DeleteProduct exists for administrative cleanup. Patterns and changes
// referencing the product keep it alive via foreign keys.
func (s *Store) DeleteProduct(ctx context.Context, id schedule.ProductID) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// =============================================================================
// DELIVERY PATTERNS
// =============================================================================

func (s *Store) ListPatterns(ctx context.Context, id schedule.CustomerID) ([]schedule.Pattern, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, customer_id, product_id, weekdays_json, quantity,
		       quantity_by_day_json, unit_price, start_date, end_date, active
		FROM delivery_patterns
		WHERE customer_id = ?
		ORDER BY start_date ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []schedule.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func (s *Store) SavePattern(ctx context.Context, p schedule.Pattern) error {
	weekdays, err := json.Marshal(p.Weekdays)
	if err != nil {
		return fmt.Errorf("failed to encode weekday set: %w", err)
	}
	var quantityByDay sql.NullString
	if len(p.QuantityByDay) > 0 {
		byKey := make(map[string]int, len(p.QuantityByDay))
		for day, qty := range p.QuantityByDay {
			byKey[fmt.Sprintf("%d", day)] = qty
		}
		raw, err := json.Marshal(byKey)
		if err != nil {
			return fmt.Errorf("failed to encode quantity map: %w", err)
		}
		quantityByDay = sql.NullString{String: string(raw), Valid: true}
	}

	var endDate sql.NullString
	if p.EndDate != nil {
		endDate = sql.NullString{String: p.EndDate.String(), Valid: true}
	}

	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO delivery_patterns
		(id, customer_id, product_id, weekdays_json, quantity,
		 quantity_by_day_json, unit_price, start_date, end_date, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			weekdays_json = excluded.weekdays_json,
			quantity = excluded.quantity,
			quantity_by_day_json = excluded.quantity_by_day_json,
			unit_price = excluded.unit_price,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			active = excluded.active`,
		p.ID, p.CustomerID, p.ProductID, string(weekdays), p.Quantity,
		quantityByDay, p.UnitPrice.String(), p.StartDate.String(), endDate, p.Active)
	if err != nil {
		return fmt.Errorf("failed to save pattern: %w", err)
	}
	return nil
}

func scanPattern(rows *sql.Rows) (schedule.Pattern, error) {
	var (
		p             schedule.Pattern
		weekdaysJSON  sql.NullString
		quantityByDay sql.NullString
		unitPrice     string
		startDate     string
		endDate       sql.NullString
	)
	err := rows.Scan(&p.ID, &p.CustomerID, &p.ProductID, &weekdaysJSON, &p.Quantity,
		&quantityByDay, &unitPrice, &startDate, &endDate, &p.Active)
	if err != nil {
		return p, fmt.Errorf("failed to scan pattern: %w", err)
	}

	// Legacy rows may hold string-encoded JSON; normalize both forms here.
	if p.Weekdays, err = schedule.NormalizeWeekdays([]byte(weekdaysJSON.String)); err != nil {
		return p, fmt.Errorf("pattern %s: %w", p.ID, err)
	}
	if p.QuantityByDay, err = schedule.NormalizeQuantityMap([]byte(quantityByDay.String)); err != nil {
		return p, fmt.Errorf("pattern %s: %w", p.ID, err)
	}

	p.UnitPrice = mustDecimal(unitPrice)
	if p.StartDate, err = schedule.ParseDate(startDate); err != nil {
		return p, err
	}
	if endDate.Valid {
		d, err := schedule.ParseDate(endDate.String)
		if err != nil {
			return p, err
		}
		p.EndDate = &d
	}
	return p, nil
}

// =============================================================================
// TEMPORARY CHANGES
// =============================================================================

func (s *Store) ListChanges(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) ([]schedule.TemporaryChange, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, customer_id, product_id, date, change_type, quantity, unit_price, reason, created_at
		FROM temporary_changes
		WHERE customer_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, created_at ASC`,
		id, ym.First().String(), ym.Last().String())
	if err != nil {
		return nil, fmt.Errorf("failed to list temporary changes: %w", err)
	}
	defer rows.Close()

	var changes []schedule.TemporaryChange
	for rows.Next() {
		ch, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}
	return changes, rows.Err()
}

func (s *Store) GetChange(ctx context.Context, changeID string) (*schedule.TemporaryChange, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, customer_id, product_id, date, change_type, quantity, unit_price, reason, created_at
		FROM temporary_changes WHERE id = ?`, changeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get temporary change: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	ch, err := scanChange(rows)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// InsertChange writes the record verbatim, including id and creation
// timestamp, so undo can restore deleted rows exactly.
func (s *Store) InsertChange(ctx context.Context, ch schedule.TemporaryChange) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO temporary_changes
		(id, customer_id, product_id, date, change_type, quantity, unit_price, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.CustomerID, nullString(string(ch.ProductID)), ch.Date.String(), ch.Type,
		nullInt(ch.Quantity), nullDecimal(ch.UnitPrice), nullString(ch.Reason), formatTime(ch.CreatedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("temporary change %s references missing data: %w", ch.ID, err)
		}
		return fmt.Errorf("failed to insert temporary change: %w", err)
	}
	return nil
}

func (s *Store) UpdateChange(ctx context.Context, ch schedule.TemporaryChange) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE temporary_changes
		SET product_id = ?, date = ?, change_type = ?, quantity = ?, unit_price = ?, reason = ?
		WHERE id = ?`,
		nullString(string(ch.ProductID)), ch.Date.String(), ch.Type,
		nullInt(ch.Quantity), nullDecimal(ch.UnitPrice), nullString(ch.Reason), ch.ID)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("temporary change %s references missing data: %w", ch.ID, err)
		}
		return fmt.Errorf("failed to update temporary change: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("temporary change %s does not exist", ch.ID)
	}
	return nil
}

func (s *Store) DeleteChange(ctx context.Context, changeID string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM temporary_changes WHERE id = ?`, changeID)
	if err != nil {
		return fmt.Errorf("failed to delete temporary change: %w", err)
	}
	return nil
}

func scanChange(rows *sql.Rows) (schedule.TemporaryChange, error) {
	var (
		ch        schedule.TemporaryChange
		productID sql.NullString
		date      string
		quantity  sql.NullInt64
		unitPrice sql.NullString
		reason    sql.NullString
		createdAt string
	)
	err := rows.Scan(&ch.ID, &ch.CustomerID, &productID, &date, &ch.Type,
		&quantity, &unitPrice, &reason, &createdAt)
	if err != nil {
		return ch, fmt.Errorf("failed to scan temporary change: %w", err)
	}

	ch.ProductID = schedule.ProductID(productID.String)
	if ch.Date, err = schedule.ParseDate(date); err != nil {
		return ch, err
	}
	if quantity.Valid {
		q := int(quantity.Int64)
		ch.Quantity = &q
	}
	if unitPrice.Valid {
		d := mustDecimal(unitPrice.String)
		ch.UnitPrice = &d
	}
	ch.Reason = reason.String
	ch.CreatedAt = parseTime(createdAt)
	return ch, nil
}

// =============================================================================
// INVOICES & PAYMENTS
// =============================================================================

func (s *Store) GetInvoice(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) (*invoice.Invoice, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT amount, rounded, status, confirmed_at
		FROM invoices WHERE customer_id = ? AND year = ? AND month = ?`,
		id, ym.Year, int(ym.Month))

	inv := invoice.Invoice{CustomerID: id, Month: ym}
	var confirmedAt sql.NullString
	err := row.Scan(&inv.Amount, &inv.Rounded, &inv.Status, &confirmedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if confirmedAt.Valid {
		t := parseTime(confirmedAt.String)
		inv.ConfirmedAt = &t
	}
	return &inv, nil
}

func (s *Store) SaveInvoice(ctx context.Context, inv invoice.Invoice) error {
	var confirmedAt sql.NullString
	if inv.ConfirmedAt != nil {
		confirmedAt = sql.NullString{String: formatTime(*inv.ConfirmedAt), Valid: true}
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO invoices (customer_id, year, month, amount, rounded, status, confirmed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id, year, month) DO UPDATE SET
			amount = excluded.amount,
			rounded = excluded.rounded,
			status = excluded.status,
			confirmed_at = excluded.confirmed_at`,
		inv.CustomerID, inv.Month.Year, int(inv.Month.Month),
		inv.Amount, inv.Rounded, inv.Status, confirmedAt)
	if err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	return nil
}

func (s *Store) PaymentTotal(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) (int64, error) {
	var total sql.NullInt64
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT SUM(amount) FROM payments
		WHERE customer_id = ? AND date >= ? AND date <= ?`,
		id, ym.First().String(), ym.Last().String()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	return total.Int64, nil
}

func (s *Store) InsertPayment(ctx context.Context, p delivery.Payment) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO payments (id, customer_id, date, amount)
		VALUES (?, ?, ?, ?)`,
		p.ID, p.CustomerID, p.Date.String(), p.Amount)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// =============================================================================
// UNDO LEDGER
// =============================================================================

// Push replaces the scope's pending entry; one slot per scope.
func (s *Store) Push(ctx context.Context, entry undo.Entry) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO undo_entries (scope, action, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET
			action = excluded.action,
			payload = excluded.payload,
			created_at = excluded.created_at`,
		entry.Scope, entry.Action, string(entry.Payload), formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to push undo entry: %w", err)
	}
	return nil
}

// Pop removes and returns the scope's pending entry.
func (s *Store) Pop(ctx context.Context, scope undo.Scope) (*undo.Entry, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT action, payload, created_at FROM undo_entries WHERE scope = ?`, scope)

	entry := undo.Entry{Scope: scope}
	var payload, createdAt string
	err := row.Scan(&entry.Action, &payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, undo.ErrNothingToUndo
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop undo entry: %w", err)
	}
	entry.Payload = json.RawMessage(payload)
	entry.CreatedAt = parseTime(createdAt)

	if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM undo_entries WHERE scope = ?`, scope); err != nil {
		return nil, fmt.Errorf("failed to remove undo entry: %w", err)
	}
	return &entry, nil
}

// =============================================================================
// COURSES
// =============================================================================

func (s *Store) GetCourse(ctx context.Context, id string) (*master.Course, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, code, name, created_at FROM courses WHERE id = ?`, id)

	var (
		c         master.Course
		createdAt string
	)
	err := row.Scan(&c.ID, &c.Code, &c.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (s *Store) ListCourses(ctx context.Context) ([]master.Course, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, code, name, created_at FROM courses ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []master.Course
	for rows.Next() {
		var (
			c         master.Course
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (s *Store) InsertCourse(ctx context.Context, c master.Course) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO courses (id, code, name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Code, c.Name, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert course: %w", err)
	}
	return nil
}

func (s *Store) UpdateCourse(ctx context.Context, c master.Course) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE courses SET code = ?, name = ? WHERE id = ?`, c.Code, c.Name, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}
	return nil
}

func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	return nil
}

// RenumberCourses compacts display codes to 1..N. Order is by current
// code, with creation time breaking ties (a restored course and the row
// that compacted into its code momentarily share one).
func (s *Store) RenumberCourses(ctx context.Context) error {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id FROM courses ORDER BY code ASC, created_at ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("failed to order courses: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan course id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for i, id := range ids {
		if _, err := s.conn(ctx).ExecContext(ctx, `UPDATE courses SET code = ? WHERE id = ?`, i+1, id); err != nil {
			return fmt.Errorf("failed to renumber course %s: %w", id, err)
		}
	}
	return nil
}

// =============================================================================
// STAFF & MANUFACTURERS
// =============================================================================

func (s *Store) GetStaff(ctx context.Context, id string) (*master.Staff, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT id, name, phone FROM staff WHERE id = ?`, id)
	var (
		st    master.Staff
		phone sql.NullString
	)
	err := row.Scan(&st.ID, &st.Name, &phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	st.Phone = phone.String
	return &st, nil
}

func (s *Store) ListStaff(ctx context.Context) ([]master.Staff, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT id, name, phone FROM staff ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var members []master.Staff
	for rows.Next() {
		var (
			st    master.Staff
			phone sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.Name, &phone); err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		st.Phone = phone.String
		members = append(members, st)
	}
	return members, rows.Err()
}

func (s *Store) InsertStaff(ctx context.Context, st master.Staff) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO staff (id, name, phone) VALUES (?, ?, ?)`,
		st.ID, st.Name, nullString(st.Phone))
	if err != nil {
		return fmt.Errorf("failed to insert staff: %w", err)
	}
	return nil
}

func (s *Store) UpdateStaff(ctx context.Context, st master.Staff) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE staff SET name = ?, phone = ? WHERE id = ?`,
		st.Name, nullString(st.Phone), st.ID)
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("staff %s does not exist", st.ID)
	}
	return nil
}

func (s *Store) DeleteStaff(ctx context.Context, id string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM staff WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete staff: %w", err)
	}
	return nil
}

func (s *Store) GetManufacturer(ctx context.Context, id string) (*master.Manufacturer, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT id, name, phone FROM manufacturers WHERE id = ?`, id)
	var (
		m     master.Manufacturer
		phone sql.NullString
	)
	err := row.Scan(&m.ID, &m.Name, &phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manufacturer: %w", err)
	}
	m.Phone = phone.String
	return &m, nil
}

func (s *Store) ListManufacturers(ctx context.Context) ([]master.Manufacturer, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT id, name, phone FROM manufacturers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list manufacturers: %w", err)
	}
	defer rows.Close()

	var makers []master.Manufacturer
	for rows.Next() {
		var (
			m     master.Manufacturer
			phone sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Name, &phone); err != nil {
			return nil, fmt.Errorf("failed to scan manufacturer: %w", err)
		}
		m.Phone = phone.String
		makers = append(makers, m)
	}
	return makers, rows.Err()
}

func (s *Store) InsertManufacturer(ctx context.Context, m master.Manufacturer) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO manufacturers (id, name, phone) VALUES (?, ?, ?)`,
		m.ID, m.Name, nullString(m.Phone))
	if err != nil {
		return fmt.Errorf("failed to insert manufacturer: %w", err)
	}
	return nil
}

func (s *Store) UpdateManufacturer(ctx context.Context, m master.Manufacturer) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE manufacturers SET name = ?, phone = ? WHERE id = ?`,
		m.Name, nullString(m.Phone), m.ID)
	if err != nil {
		return fmt.Errorf("failed to update manufacturer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("manufacturer %s does not exist", m.ID)
	}
	return nil
}

func (s *Store) DeleteManufacturer(ctx context.Context, id string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM manufacturers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete manufacturer: %w", err)
	}
	return nil
}

// =============================================================================
// SINGLETONS
// =============================================================================

func (s *Store) GetCompany(ctx context.Context) (*master.Company, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT name, address, phone FROM company WHERE id = 1`)
	var (
		c              master.Company
		address, phone sql.NullString
	)
	if err := row.Scan(&c.Name, &address, &phone); err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	c.Address = address.String
	c.Phone = phone.String
	return &c, nil
}

func (s *Store) SaveCompany(ctx context.Context, c master.Company) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE company SET name = ?, address = ?, phone = ? WHERE id = 1`,
		c.Name, nullString(c.Address), nullString(c.Phone))
	if err != nil {
		return fmt.Errorf("failed to save company: %w", err)
	}
	return nil
}

func (s *Store) GetInstitution(ctx context.Context) (*master.Institution, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT name, address, phone FROM institution WHERE id = 1`)
	var (
		inst           master.Institution
		address, phone sql.NullString
	)
	if err := row.Scan(&inst.Name, &address, &phone); err != nil {
		return nil, fmt.Errorf("failed to get institution: %w", err)
	}
	inst.Address = address.String
	inst.Phone = phone.String
	return &inst, nil
}

func (s *Store) SaveInstitution(ctx context.Context, inst master.Institution) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE institution SET name = ?, address = ?, phone = ? WHERE id = 1`,
		inst.Name, nullString(inst.Address), nullString(inst.Phone))
	if err != nil {
		return fmt.Errorf("failed to save institution: %w", err)
	}
	return nil
}

// =============================================================================
// RESET - used by scenario loading
// =============================================================================

// Reset empties every table; the singletons revert to their seeded blanks.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"undo_entries", "temporary_changes", "delivery_patterns", "payments",
		"invoices", "customers", "products", "courses", "staff", "manufacturers",
	}
	for _, table := range tables {
		if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	if _, err := s.conn(ctx).ExecContext(ctx, `UPDATE company SET name = '', address = NULL, phone = NULL WHERE id = 1`); err != nil {
		return err
	}
	if _, err := s.conn(ctx).ExecContext(ctx, `UPDATE institution SET name = '', address = NULL, phone = NULL WHERE id = 1`); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
