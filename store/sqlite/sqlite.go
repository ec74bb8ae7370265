/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements both persistence contracts (ledger.TxStore, finance.Store)
  using SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.TxStore: classes, enrollments, payments, attendance, student debt
  finance.Store:  cash entries, teacher earnings/payouts, salaries,
                  frozen monthly summaries

INVARIANTS ENFORCED AT THE SCHEMA LEVEL:
  - idx_enrollments_active:    one active enrollment per (student, class)
  - idx_payments_idempotency:  one payment per (enrollment, idempotency key)
  - attendance UNIQUE:         one attendance mark per (enrollment, date)
  - monthly_summaries PK:      one frozen snapshot per (school, year, month)

ADDITIVE UPDATES:
  Balance, counters and debt move via "col = col + ?" executed in the
  database, never read-modify-write in Go. Concurrent payments and marks
  interleave without lost updates. Decimal deltas are applied through
  SQLite's numeric affinity; money-scale values round-trip exactly.

TENANT SCOPING:
  Every statement filters by school_id in the WHERE clause (or writes it on
  insert). No query can cross tenants.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. In production with
  PostgreSQL, database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/settlement.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface definitions and contracts
  - finance/store.go: the finance contract
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/classledger/settlement-engine/finance"
	"github.com/classledger/settlement-engine/ledger"
)

// Store implements ledger.TxStore and finance.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	q  queries
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every ledger statement, bound to either the pool or one
// transaction. Store and txStore both delegate here.
type queries struct {
	db dbtx
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, q: queries{db: db}}
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Classes (collaborator view: pricing + absence-billing rule)
	CREATE TABLE IF NOT EXISTS classes (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		name TEXT NOT NULL,
		teacher_id TEXT,
		pricing_model TEXT NOT NULL,
		session_price TEXT NOT NULL DEFAULT '0',
		cycle_size INTEGER NOT NULL DEFAULT 0,
		cycle_price TEXT NOT NULL DEFAULT '0',
		bills_absences BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_classes_school
		ON classes(school_id);

	-- Enrollments, with the pricing snapshot denormalized onto the row so a
	-- later class price edit can never reach it
	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		class_id TEXT NOT NULL,
		pricing_model TEXT NOT NULL,
		session_price TEXT NOT NULL DEFAULT '0',
		cycle_size INTEGER NOT NULL DEFAULT 0,
		cycle_price TEXT NOT NULL DEFAULT '0',
		balance TEXT NOT NULL DEFAULT '0',
		attended INTEGER NOT NULL DEFAULT 0,
		absent INTEGER NOT NULL DEFAULT 0,
		last_attendance_date TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one active enrollment per (student, class)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_active
		ON enrollments(school_id, student_id, class_id)
		WHERE status = 'active';

	CREATE INDEX IF NOT EXISTS idx_enrollments_class
		ON enrollments(school_id, class_id);

	-- Payments (immutable; deleted only on enrollment cascade)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		class_id TEXT,
		student_id TEXT NOT NULL,
		enrollment_id TEXT,
		kind TEXT NOT NULL,
		unit_type TEXT,
		units TEXT NOT NULL DEFAULT '0',
		amount TEXT NOT NULL,
		expected_price TEXT NOT NULL,
		taken TEXT NOT NULL,
		debt_delta TEXT NOT NULL,
		idempotency_key TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: per-enrollment idempotency for retried submissions
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_idempotency
		ON payments(enrollment_id, idempotency_key)
		WHERE idempotency_key IS NOT NULL AND idempotency_key != '';

	CREATE INDEX IF NOT EXISTS idx_payments_enrollment
		ON payments(school_id, enrollment_id);
	CREATE INDEX IF NOT EXISTS idx_payments_month
		ON payments(school_id, created_at);

	-- Attendance (one mark per enrollment per date)
	CREATE TABLE IF NOT EXISTS attendance (
		school_id TEXT NOT NULL,
		class_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		enrollment_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(enrollment_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_class_date
		ON attendance(school_id, class_id, date);

	-- Per-student aggregate debt, maintained by deltas
	CREATE TABLE IF NOT EXISTS student_financials (
		school_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		debt TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (school_id, student_id)
	);

	-- Manual income/expense entries
	CREATE TABLE IF NOT EXISTS cash_entries (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT,
		date TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cash_entries_month
		ON cash_entries(school_id, date);

	-- Teacher earnings (calculated shares) and payouts (cash handed over)
	CREATE TABLE IF NOT EXISTS teacher_earnings (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_teacher_earnings_teacher
		ON teacher_earnings(school_id, teacher_id);

	CREATE TABLE IF NOT EXISTS teacher_payouts (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		calculated TEXT NOT NULL,
		paid TEXT NOT NULL,
		date TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_teacher_payouts_teacher
		ON teacher_payouts(school_id, teacher_id);
	CREATE INDEX IF NOT EXISTS idx_teacher_payouts_month
		ON teacher_payouts(school_id, date);

	-- Employee salary installments
	CREATE TABLE IF NOT EXISTS salary_payments (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		employee TEXT NOT NULL,
		calculated TEXT NOT NULL,
		paid TEXT NOT NULL,
		date TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_salary_payments_month
		ON salary_payments(school_id, date);

	-- Frozen monthly summaries. Rows exist ONLY for frozen months; the PK
	-- makes a second freeze a constraint violation, not an overwrite.
	CREATE TABLE IF NOT EXISTS monthly_summaries (
		school_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		student_payments TEXT NOT NULL,
		manual_income TEXT NOT NULL,
		manual_expense TEXT NOT NULL,
		payouts_calculated TEXT NOT NULL,
		payouts_paid TEXT NOT NULL,
		salaries_calculated TEXT NOT NULL,
		salaries_paid TEXT NOT NULL,
		outstanding_debt TEXT NOT NULL,
		income TEXT NOT NULL,
		expenses TEXT NOT NULL,
		net_balance TEXT NOT NULL,
		frozen_at TEXT NOT NULL,
		frozen_by TEXT,
		PRIMARY KEY (school_id, year, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn against a Store view bound to one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries{db: sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the in-transaction view. It holds no lock of its own; WithTx
// holds the store mutex for the whole transaction.
type txStore struct {
	queries
}

// =============================================================================
// CLASSES
// =============================================================================

func (s *Store) SaveClass(ctx context.Context, c ledger.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.SaveClass(ctx, c)
}

func (s *Store) GetClass(ctx context.Context, school ledger.SchoolID, id ledger.ClassID) (*ledger.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetClass(ctx, school, id)
}

func (q queries) SaveClass(ctx context.Context, c ledger.Class) error {
	query := `
		INSERT INTO classes
		(id, school_id, name, teacher_id, pricing_model, session_price, cycle_size, cycle_price, bills_absences, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			teacher_id = excluded.teacher_id,
			pricing_model = excluded.pricing_model,
			session_price = excluded.session_price,
			cycle_size = excluded.cycle_size,
			cycle_price = excluded.cycle_price,
			bills_absences = excluded.bills_absences,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := now
	if !c.CreatedAt.IsZero() {
		createdAt = c.CreatedAt.UTC().Format(time.RFC3339)
	}
	_, err := q.db.ExecContext(ctx, query,
		c.ID, c.School, c.Name, c.Teacher,
		c.Pricing.Model, c.Pricing.SessionPrice.String(), c.Pricing.CycleSize, c.Pricing.CyclePrice.String(),
		c.BillsAbsences, createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save class: %w", err)
	}
	return nil
}

func (q queries) GetClass(ctx context.Context, school ledger.SchoolID, id ledger.ClassID) (*ledger.Class, error) {
	query := `
		SELECT id, school_id, name, teacher_id, pricing_model, session_price, cycle_size, cycle_price, bills_absences, created_at, updated_at
		FROM classes
		WHERE school_id = ? AND id = ?
	`
	var (
		c                          ledger.Class
		teacher                    sql.NullString
		sessionPrice, cyclePrice   string
		createdAt, updatedAt       string
	)
	err := q.db.QueryRowContext(ctx, query, school, id).Scan(
		&c.ID, &c.School, &c.Name, &teacher,
		&c.Pricing.Model, &sessionPrice, &c.Pricing.CycleSize, &cyclePrice,
		&c.BillsAbsences, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	c.Teacher = ledger.TeacherID(teacher.String)
	c.Pricing.SessionPrice = ledger.MustParseDecimal(sessionPrice)
	c.Pricing.CyclePrice = ledger.MustParseDecimal(cyclePrice)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

func (s *Store) CreateEnrollment(ctx context.Context, e ledger.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.CreateEnrollment(ctx, e)
}

func (s *Store) GetEnrollment(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID) (*ledger.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetEnrollment(ctx, school, id)
}

func (s *Store) ListEnrollmentsByClass(ctx context.Context, school ledger.SchoolID, class ledger.ClassID) ([]ledger.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListEnrollmentsByClass(ctx, school, class)
}

func (s *Store) AddToBalance(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.AddToBalance(ctx, school, id, delta)
}

func (s *Store) ApplyCounterDelta(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID, attended, absent int, seen ledger.DateKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.ApplyCounterDelta(ctx, school, id, attended, absent, seen)
}

func (s *Store) SetEnrollmentStatus(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID, status ledger.EnrollmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.SetEnrollmentStatus(ctx, school, id, status)
}

func (s *Store) DeleteEnrollment(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteEnrollment(ctx, school, id)
}

func (q queries) CreateEnrollment(ctx context.Context, e ledger.Enrollment) error {
	query := `
		INSERT INTO enrollments
		(id, school_id, student_id, class_id, pricing_model, session_price, cycle_size, cycle_price,
		 balance, attended, absent, last_attendance_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var lastDate any
	if e.Counters.LastAttendanceDate != nil {
		lastDate = e.Counters.LastAttendanceDate.String()
	}
	_, err := q.db.ExecContext(ctx, query,
		e.ID, e.School, e.Student, e.Class,
		e.Pricing.Model, e.Pricing.SessionPrice.String(), e.Pricing.CycleSize, e.Pricing.CyclePrice.String(),
		e.Balance.String(), e.Counters.Attended, e.Counters.Absent, lastDate,
		e.Status, e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateActiveEnrollment
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

const enrollmentColumns = `id, school_id, student_id, class_id, pricing_model, session_price, cycle_size, cycle_price,
	       balance, attended, absent, last_attendance_date, status, created_at`

func (q queries) GetEnrollment(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID) (*ledger.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE school_id = ? AND id = ?`
	row := q.db.QueryRowContext(ctx, query, school, id)
	e, err := scanEnrollmentRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

func (q queries) ListEnrollmentsByClass(ctx context.Context, school ledger.SchoolID, class ledger.ClassID) ([]ledger.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments
		WHERE school_id = ? AND class_id = ?
		ORDER BY created_at ASC, id ASC`
	rows, err := q.db.QueryContext(ctx, query, school, class)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []ledger.Enrollment
	for rows.Next() {
		e, err := scanEnrollmentRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, *e)
	}
	return enrollments, rows.Err()
}

func scanEnrollmentRow(scan func(dest ...any) error) (*ledger.Enrollment, error) {
	var (
		e                        ledger.Enrollment
		sessionPrice, cyclePrice string
		balance                  string
		lastDate                 sql.NullString
		createdAt                string
	)
	err := scan(
		&e.ID, &e.School, &e.Student, &e.Class,
		&e.Pricing.Model, &sessionPrice, &e.Pricing.CycleSize, &cyclePrice,
		&balance, &e.Counters.Attended, &e.Counters.Absent, &lastDate,
		&e.Status, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	e.Pricing.SessionPrice = ledger.MustParseDecimal(sessionPrice)
	e.Pricing.CyclePrice = ledger.MustParseDecimal(cyclePrice)
	e.Balance = ledger.MustParseDecimal(balance)
	if lastDate.Valid {
		if d, perr := ledger.ParseDateKey(lastDate.String); perr == nil {
			e.Counters.LastAttendanceDate = &d
		}
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

func (q queries) AddToBalance(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID, delta decimal.Decimal) error {
	// Additive in the database; concurrent increments never lose updates.
	query := `
		UPDATE enrollments
		SET balance = CAST(balance AS NUMERIC) + CAST(? AS NUMERIC)
		WHERE school_id = ? AND id = ?
	`
	res, err := q.db.ExecContext(ctx, query, delta.String(), school, id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrEnrollmentNotFound
	}
	return nil
}

func (q queries) ApplyCounterDelta(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID, attended, absent int, seen ledger.DateKey) error {
	// last_attendance_date only ever moves forward.
	query := `
		UPDATE enrollments
		SET attended = attended + ?,
		    absent = absent + ?,
		    last_attendance_date = CASE
		        WHEN last_attendance_date IS NULL OR last_attendance_date < ? THEN ?
		        ELSE last_attendance_date
		    END
		WHERE school_id = ? AND id = ?
	`
	d := seen.String()
	res, err := q.db.ExecContext(ctx, query, attended, absent, d, d, school, id)
	if err != nil {
		return fmt.Errorf("failed to update counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrEnrollmentNotFound
	}
	return nil
}

func (q queries) SetEnrollmentStatus(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID, status ledger.EnrollmentStatus) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE enrollments SET status = ? WHERE school_id = ? AND id = ?",
		status, school, id,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateActiveEnrollment
		}
		return fmt.Errorf("failed to set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrEnrollmentNotFound
	}
	return nil
}

func (q queries) DeleteEnrollment(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID) error {
	var dependents int
	err := q.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM payments WHERE school_id = ? AND enrollment_id = ?)
		     + (SELECT COUNT(*) FROM attendance WHERE school_id = ? AND enrollment_id = ?)
	`, school, id, school, id).Scan(&dependents)
	if err != nil {
		return fmt.Errorf("failed to count dependents: %w", err)
	}
	if dependents > 0 {
		return ledger.ErrEnrollmentHasDependents
	}

	res, err := q.db.ExecContext(ctx,
		"DELETE FROM enrollments WHERE school_id = ? AND id = ?", school, id)
	if err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrEnrollmentNotFound
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) InsertPayment(ctx context.Context, p ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.InsertPayment(ctx, p)
}

func (s *Store) GetPaymentByKey(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID, key string) (*ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetPaymentByKey(ctx, school, enrollment, key)
}

func (s *Store) ListPaymentsByEnrollment(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListPaymentsByEnrollment(ctx, school, enrollment)
}

func (s *Store) DeletePaymentsByEnrollment(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeletePaymentsByEnrollment(ctx, school, enrollment)
}

func (s *Store) SumPaymentsTaken(ctx context.Context, school ledger.SchoolID, year int, month time.Month) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.SumPaymentsTaken(ctx, school, year, month)
}

func (q queries) InsertPayment(ctx context.Context, p ledger.Payment) error {
	query := `
		INSERT INTO payments
		(id, school_id, class_id, student_id, enrollment_id, kind, unit_type, units,
		 amount, expected_price, taken, debt_delta, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.db.ExecContext(ctx, query,
		p.ID, p.School, nullString(string(p.Class)), p.Student, nullString(string(p.Enrollment)),
		p.Kind, nullString(string(p.UnitType)), p.Units.String(),
		p.Amount.String(), p.ExpectedPrice.String(), p.Taken.String(), p.DebtDelta.String(),
		nullString(p.IdempotencyKey), nullString(p.CreatedBy),
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicatePaymentKey
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

const paymentColumns = `id, school_id, class_id, student_id, enrollment_id, kind, unit_type, units,
	       amount, expected_price, taken, debt_delta, idempotency_key, created_by, created_at`

func (q queries) GetPaymentByKey(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID, key string) (*ledger.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE school_id = ? AND enrollment_id = ? AND idempotency_key = ?`
	row := q.db.QueryRowContext(ctx, query, school, enrollment, key)
	p, err := scanPaymentRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (q queries) ListPaymentsByEnrollment(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID) ([]ledger.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE school_id = ? AND enrollment_id = ?
		ORDER BY created_at ASC, id ASC`
	rows, err := q.db.QueryContext(ctx, query, school, enrollment)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []ledger.Payment
	for rows.Next() {
		p, err := scanPaymentRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanPaymentRow(scan func(dest ...any) error) (*ledger.Payment, error) {
	var (
		p                              ledger.Payment
		class, enrollment, unitType    sql.NullString
		units, amount, expected, taken string
		debtDelta                      string
		idemKey, createdBy             sql.NullString
		createdAt                      string
	)
	err := scan(
		&p.ID, &p.School, &class, &p.Student, &enrollment,
		&p.Kind, &unitType, &units,
		&amount, &expected, &taken, &debtDelta,
		&idemKey, &createdBy, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	p.Class = ledger.ClassID(class.String)
	p.Enrollment = ledger.EnrollmentID(enrollment.String)
	p.UnitType = ledger.UnitType(unitType.String)
	p.Units = ledger.MustParseDecimal(units)
	p.Amount = ledger.MustParseDecimal(amount)
	p.ExpectedPrice = ledger.MustParseDecimal(expected)
	p.Taken = ledger.MustParseDecimal(taken)
	p.DebtDelta = ledger.MustParseDecimal(debtDelta)
	p.IdempotencyKey = idemKey.String
	p.CreatedBy = createdBy.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (q queries) DeletePaymentsByEnrollment(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM payments WHERE school_id = ? AND enrollment_id = ?", school, enrollment)
	if err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}
	return nil
}

func (q queries) SumPaymentsTaken(ctx context.Context, school ledger.SchoolID, year int, month time.Month) (decimal.Decimal, error) {
	from, to := monthBounds(year, month)
	query := `
		SELECT COALESCE(SUM(CAST(taken AS NUMERIC)), 0)
		FROM payments
		WHERE school_id = ?
		  AND kind != 'debt_payment'
		  AND class_id IS NOT NULL
		  AND created_at >= ? AND created_at < ?
	`
	var total string
	err := q.db.QueryRowContext(ctx, query, school, from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	return ledger.MustParseDecimal(total), nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (s *Store) UpsertAttendance(ctx context.Context, a ledger.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.UpsertAttendance(ctx, a)
}

func (s *Store) GetAttendance(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID, date ledger.DateKey) (*ledger.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetAttendance(ctx, school, enrollment, date)
}

func (s *Store) DeleteAttendance(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID, date ledger.DateKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteAttendance(ctx, school, enrollment, date)
}

func (s *Store) ListAttendanceByClassDate(ctx context.Context, school ledger.SchoolID, class ledger.ClassID, date ledger.DateKey) ([]ledger.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListAttendanceByClassDate(ctx, school, class, date)
}

func (s *Store) DeleteAttendanceByEnrollment(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteAttendanceByEnrollment(ctx, school, enrollment)
}

func (q queries) UpsertAttendance(ctx context.Context, a ledger.Attendance) error {
	query := `
		INSERT INTO attendance
		(school_id, class_id, student_id, enrollment_id, date, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(enrollment_id, date) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	_, err := q.db.ExecContext(ctx, query,
		a.School, a.Class, a.Student, a.Enrollment, a.Date.String(), a.Status,
		nullString(a.CreatedBy),
		a.CreatedAt.UTC().Format(time.RFC3339),
		a.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance: %w", err)
	}
	return nil
}

const attendanceColumns = `school_id, class_id, student_id, enrollment_id, date, status, created_by, created_at, updated_at`

func (q queries) GetAttendance(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID, date ledger.DateKey) (*ledger.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance
		WHERE school_id = ? AND enrollment_id = ? AND date = ?`
	row := q.db.QueryRowContext(ctx, query, school, enrollment, date.String())
	a, err := scanAttendanceRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	return a, nil
}

func (q queries) DeleteAttendance(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID, date ledger.DateKey) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM attendance WHERE school_id = ? AND enrollment_id = ? AND date = ?",
		school, enrollment, date.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete attendance: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (q queries) ListAttendanceByClassDate(ctx context.Context, school ledger.SchoolID, class ledger.ClassID, date ledger.DateKey) ([]ledger.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance
		WHERE school_id = ? AND class_id = ? AND date = ?
		ORDER BY enrollment_id ASC`
	rows, err := q.db.QueryContext(ctx, query, school, class, date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var marks []ledger.Attendance
	for rows.Next() {
		a, err := scanAttendanceRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		marks = append(marks, *a)
	}
	return marks, rows.Err()
}

func scanAttendanceRow(scan func(dest ...any) error) (*ledger.Attendance, error) {
	var (
		a                    ledger.Attendance
		date                 string
		createdBy            sql.NullString
		createdAt, updatedAt string
	)
	err := scan(&a.School, &a.Class, &a.Student, &a.Enrollment, &date, &a.Status, &createdBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Date, err = ledger.ParseDateKey(date)
	if err != nil {
		return nil, fmt.Errorf("bad stored attendance date %q: %w", date, err)
	}
	a.CreatedBy = createdBy.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

func (q queries) DeleteAttendanceByEnrollment(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM attendance WHERE school_id = ? AND enrollment_id = ?", school, enrollment)
	if err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}
	return nil
}

// =============================================================================
// STUDENT FINANCIALS
// =============================================================================

func (s *Store) ApplyDebtDelta(ctx context.Context, school ledger.SchoolID, student ledger.StudentID, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.ApplyDebtDelta(ctx, school, student, delta)
}

func (s *Store) GetStudentFinancial(ctx context.Context, school ledger.SchoolID, student ledger.StudentID) (*ledger.StudentFinancial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetStudentFinancial(ctx, school, student)
}

func (s *Store) TotalStudentDebt(ctx context.Context, school ledger.SchoolID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.TotalStudentDebt(ctx, school)
}

func (q queries) ApplyDebtDelta(ctx context.Context, school ledger.SchoolID, student ledger.StudentID, delta decimal.Decimal) error {
	query := `
		INSERT INTO student_financials (school_id, student_id, debt, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(school_id, student_id) DO UPDATE SET
			debt = CAST(debt AS NUMERIC) + CAST(excluded.debt AS NUMERIC),
			updated_at = excluded.updated_at
	`
	_, err := q.db.ExecContext(ctx, query,
		school, student, delta.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to apply debt delta: %w", err)
	}
	return nil
}

func (q queries) GetStudentFinancial(ctx context.Context, school ledger.SchoolID, student ledger.StudentID) (*ledger.StudentFinancial, error) {
	var (
		f         ledger.StudentFinancial
		debt      string
		updatedAt string
	)
	err := q.db.QueryRowContext(ctx,
		"SELECT school_id, student_id, debt, updated_at FROM student_financials WHERE school_id = ? AND student_id = ?",
		school, student,
	).Scan(&f.School, &f.Student, &debt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student financial: %w", err)
	}
	f.Debt = ledger.MustParseDecimal(debt)
	f.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &f, nil
}

func (q queries) TotalStudentDebt(ctx context.Context, school ledger.SchoolID) (decimal.Decimal, error) {
	var total string
	err := q.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(CAST(debt AS NUMERIC)), 0) FROM student_financials WHERE school_id = ? AND CAST(debt AS NUMERIC) > 0",
		school,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to total debt: %w", err)
	}
	return ledger.MustParseDecimal(total), nil
}

// =============================================================================
// FINANCE STORE (finance.Store interface)
// =============================================================================

func (s *Store) InsertCashEntry(ctx context.Context, e finance.CashEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_entries (id, school_id, kind, amount, note, date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.School, e.Kind, e.Amount.String(), nullString(e.Note), e.Date.String(),
		nullString(e.CreatedBy), e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert cash entry: %w", err)
	}
	return nil
}

func (s *Store) SumCashEntries(ctx context.Context, school ledger.SchoolID, kind finance.EntryKind, year int, month time.Month) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to := monthBounds(year, month)
	var total string
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CAST(amount AS NUMERIC)), 0)
		FROM cash_entries
		WHERE school_id = ? AND kind = ? AND date >= ? AND date < ?
	`, school, kind, from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum cash entries: %w", err)
	}
	return ledger.MustParseDecimal(total), nil
}

func (s *Store) ListCashEntriesByMonth(ctx context.Context, school ledger.SchoolID, year int, month time.Month) ([]finance.CashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to := monthBounds(year, month)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, school_id, kind, amount, note, date, created_by, created_at
		FROM cash_entries
		WHERE school_id = ? AND date >= ? AND date < ?
		ORDER BY date ASC, created_at ASC
	`, school, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list cash entries: %w", err)
	}
	defer rows.Close()

	var entries []finance.CashEntry
	for rows.Next() {
		var (
			e               finance.CashEntry
			amount, date    string
			note, createdBy sql.NullString
			createdAt       string
		)
		if err := rows.Scan(&e.ID, &e.School, &e.Kind, &amount, &note, &date, &createdBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan cash entry: %w", err)
		}
		e.Amount = ledger.MustParseDecimal(amount)
		e.Note = note.String
		e.Date, _ = ledger.ParseDateKey(date)
		e.CreatedBy = createdBy.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) InsertTeacherEarning(ctx context.Context, e finance.TeacherEarning) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teacher_earnings (id, school_id, teacher_id, amount, note, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.School, e.Teacher, e.Amount.String(), nullString(e.Note), e.Date.String(),
		e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert earning: %w", err)
	}
	return nil
}

func (s *Store) InsertTeacherPayout(ctx context.Context, p finance.TeacherPayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teacher_payouts (id, school_id, teacher_id, calculated, paid, date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.School, p.Teacher, p.Calculated.String(), p.Paid.String(), p.Date.String(),
		nullString(p.CreatedBy), p.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert payout: %w", err)
	}
	return nil
}

func (s *Store) SumTeacherEarnings(ctx context.Context, school ledger.SchoolID, teacher ledger.TeacherID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total string
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(CAST(amount AS NUMERIC)), 0) FROM teacher_earnings WHERE school_id = ? AND teacher_id = ?",
		school, teacher,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum earnings: %w", err)
	}
	return ledger.MustParseDecimal(total), nil
}

func (s *Store) SumTeacherPayoutsPaid(ctx context.Context, school ledger.SchoolID, teacher ledger.TeacherID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total string
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(CAST(paid AS NUMERIC)), 0) FROM teacher_payouts WHERE school_id = ? AND teacher_id = ?",
		school, teacher,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payouts: %w", err)
	}
	return ledger.MustParseDecimal(total), nil
}

func (s *Store) SumPayoutsByMonth(ctx context.Context, school ledger.SchoolID, year int, month time.Month) (calculated, paid decimal.Decimal, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to := monthBounds(year, month)
	var calc, pd string
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CAST(calculated AS NUMERIC)), 0), COALESCE(SUM(CAST(paid AS NUMERIC)), 0)
		FROM teacher_payouts
		WHERE school_id = ? AND date >= ? AND date < ?
	`, school, from, to).Scan(&calc, &pd)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum payouts by month: %w", err)
	}
	return ledger.MustParseDecimal(calc), ledger.MustParseDecimal(pd), nil
}

func (s *Store) InsertSalaryPayment(ctx context.Context, sp finance.SalaryPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salary_payments (id, school_id, employee, calculated, paid, date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sp.ID, sp.School, sp.Employee, sp.Calculated.String(), sp.Paid.String(), sp.Date.String(),
		nullString(sp.CreatedBy), sp.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert salary payment: %w", err)
	}
	return nil
}

func (s *Store) SumSalariesByMonth(ctx context.Context, school ledger.SchoolID, year int, month time.Month) (calculated, paid decimal.Decimal, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to := monthBounds(year, month)
	var calc, pd string
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CAST(calculated AS NUMERIC)), 0), COALESCE(SUM(CAST(paid AS NUMERIC)), 0)
		FROM salary_payments
		WHERE school_id = ? AND date >= ? AND date < ?
	`, school, from, to).Scan(&calc, &pd)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum salaries by month: %w", err)
	}
	return ledger.MustParseDecimal(calc), ledger.MustParseDecimal(pd), nil
}

func (s *Store) GetFrozenSummary(ctx context.Context, school ledger.SchoolID, year int, month time.Month) (*finance.MonthlySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		m finance.MonthlySummary

		payments, income, expense            string
		payoutsCalc, payoutsPaid             string
		salariesCalc, salariesPaid           string
		debt, totalIncome, totalExpenses, net string
		frozenAt                             string
		frozenBy                             sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT school_id, year, month,
		       student_payments, manual_income, manual_expense,
		       payouts_calculated, payouts_paid, salaries_calculated, salaries_paid,
		       outstanding_debt, income, expenses, net_balance,
		       frozen_at, frozen_by
		FROM monthly_summaries
		WHERE school_id = ? AND year = ? AND month = ?
	`, school, year, int(month)).Scan(
		&m.School, &m.Year, &m.Month,
		&payments, &income, &expense,
		&payoutsCalc, &payoutsPaid, &salariesCalc, &salariesPaid,
		&debt, &totalIncome, &totalExpenses, &net,
		&frozenAt, &frozenBy,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get frozen summary: %w", err)
	}

	m.StudentPayments = ledger.MustParseDecimal(payments)
	m.ManualIncome = ledger.MustParseDecimal(income)
	m.ManualExpense = ledger.MustParseDecimal(expense)
	m.PayoutsCalculated = ledger.MustParseDecimal(payoutsCalc)
	m.PayoutsPaid = ledger.MustParseDecimal(payoutsPaid)
	m.SalariesCalculated = ledger.MustParseDecimal(salariesCalc)
	m.SalariesPaid = ledger.MustParseDecimal(salariesPaid)
	m.OutstandingDebt = ledger.MustParseDecimal(debt)
	m.Income = ledger.MustParseDecimal(totalIncome)
	m.Expenses = ledger.MustParseDecimal(totalExpenses)
	m.NetBalance = ledger.MustParseDecimal(net)
	m.Frozen = true
	if t, perr := time.Parse(time.RFC3339, frozenAt); perr == nil {
		m.FrozenAt = &t
	}
	m.FrozenBy = frozenBy.String
	return &m, nil
}

func (s *Store) InsertFrozenSummary(ctx context.Context, m finance.MonthlySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frozenAt := time.Now().UTC()
	if m.FrozenAt != nil {
		frozenAt = m.FrozenAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_summaries
		(school_id, year, month,
		 student_payments, manual_income, manual_expense,
		 payouts_calculated, payouts_paid, salaries_calculated, salaries_paid,
		 outstanding_debt, income, expenses, net_balance,
		 frozen_at, frozen_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.School, m.Year, int(m.Month),
		m.StudentPayments.String(), m.ManualIncome.String(), m.ManualExpense.String(),
		m.PayoutsCalculated.String(), m.PayoutsPaid.String(),
		m.SalariesCalculated.String(), m.SalariesPaid.String(),
		m.OutstandingDebt.String(), m.Income.String(), m.Expenses.String(), m.NetBalance.String(),
		frozenAt.Format(time.RFC3339), nullString(m.FrozenBy),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrMonthFrozen
		}
		return fmt.Errorf("failed to insert frozen summary: %w", err)
	}
	return nil
}

func (s *Store) ListActiveSchools(ctx context.Context, year int, month time.Month) ([]ledger.SchoolID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := monthBounds(year, month)
	rows, err := s.db.QueryContext(ctx, `
		SELECT school_id FROM payments WHERE created_at >= ? AND created_at < ?
		UNION
		SELECT school_id FROM cash_entries WHERE date >= ? AND date < ?
		UNION
		SELECT school_id FROM teacher_earnings WHERE date >= ? AND date < ?
		UNION
		SELECT school_id FROM teacher_payouts WHERE date >= ? AND date < ?
		UNION
		SELECT school_id FROM salary_payments WHERE date >= ? AND date < ?
	`, lo, hi, lo, hi, lo, hi, lo, hi, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to list active schools: %w", err)
	}
	defer rows.Close()

	var schools []ledger.SchoolID
	for rows.Next() {
		var id ledger.SchoolID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan school id: %w", err)
		}
		schools = append(schools, id)
	}
	return schools, rows.Err()
}

// Helper functions

// monthBounds returns [first day, first day of next month) as date strings.
// Both payment created_at (RFC3339) and finance date columns ("2006-01-02")
// compare lexicographically against them.
func monthBounds(year int, month time.Month) (string, string) {
	start, _ := ledger.MonthRange(year, month)
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return start.String(), next.Format("2006-01-02")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
