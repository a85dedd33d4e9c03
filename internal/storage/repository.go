package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists templates, transactions, goals and buckets.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// dsn enables foreign keys and makes concurrent writers wait for the lock
// instead of failing with SQLITE_BUSY.
func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const templateColumns = `id, owner_id, title, amount_cents, type, frequency, day_of_month, day_of_week,
	start_date, end_date, next_occurrence, last_processed, is_active, category_id, financial_priority`

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t core.RecurringTemplate) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO recurring_templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Title, t.Amount.Cents, string(t.Type), string(t.Frequency),
		nullInt(t.DayOfMonth), nullWeekday(t.DayOfWeek),
		t.StartDate.String(), nullDate(t.EndDate), nullDate(t.NextOccurrence), nullDate(t.LastProcessed),
		t.IsActive, nullString(t.CategoryID), nullString(string(t.FinancialPriority)))
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}

	slog.InfoContext(ctx, "Recurring template saved to SQLite",
		"id", t.ID,
		"owner_id", t.OwnerID,
		"frequency", t.Frequency,
		"next_occurrence", t.NextOccurrence.String())
	return nil
}

func (r *SQLiteRepository) UpdateTemplate(ctx context.Context, t core.RecurringTemplate) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recurring_templates SET
		title = ?, amount_cents = ?, type = ?, frequency = ?, day_of_month = ?, day_of_week = ?,
		start_date = ?, end_date = ?, next_occurrence = ?, last_processed = ?, is_active = ?,
		category_id = ?, financial_priority = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		t.Title, t.Amount.Cents, string(t.Type), string(t.Frequency),
		nullInt(t.DayOfMonth), nullWeekday(t.DayOfWeek),
		t.StartDate.String(), nullDate(t.EndDate), nullDate(t.NextOccurrence), nullDate(t.LastProcessed),
		t.IsActive, nullString(t.CategoryID), nullString(string(t.FinancialPriority)), t.ID)
	if err != nil {
		return fmt.Errorf("update template %s: %w", t.ID, err)
	}
	return expectOneRow(res, "update template "+t.ID)
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTemplate{}, fmt.Errorf("get template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("get template %s: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTemplates(ctx context.Context, ownerID string) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM recurring_templates
		WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return collectTemplates(rows)
}

func (r *SQLiteRepository) ListDueTemplates(ctx context.Context, asOf core.Date) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM recurring_templates
		WHERE is_active = 1 AND next_occurrence IS NOT NULL AND next_occurrence <= ?
		ORDER BY next_occurrence, id`, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list due templates: %w", err)
	}
	return collectTemplates(rows)
}

func (r *SQLiteRepository) AdvanceTemplate(ctx context.Context, id string, lastProcessed, next core.Date) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recurring_templates
		SET last_processed = ?, next_occurrence = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, nullDate(lastProcessed), nullDate(next), id)
	if err != nil {
		return fmt.Errorf("advance template %s: %w", id, err)
	}
	return expectOneRow(res, "advance template "+id)
}

func (r *SQLiteRepository) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM recurring_templates
		WHERE is_active = 1 ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.RealizedTransaction) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO transactions
		(id, owner_id, recurring_template_id, type, amount_cents, date, is_paid, budget_bucket_id, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OwnerID, nullString(tx.RecurringTemplateID), string(tx.Type), tx.Amount.Cents,
		tx.Date.String(), tx.IsPaid, nullString(tx.BudgetBucketID), tx.Description)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"template_id", tx.RecurringTemplateID,
		"amount_cents", tx.Amount.Cents,
		"date", tx.Date.String())
	return nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string, from, to core.Date) ([]core.RealizedTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, owner_id, recurring_template_id, type, amount_cents,
		date, is_paid, budget_bucket_id, description
		FROM transactions WHERE owner_id = ? AND date >= ? AND date <= ?
		ORDER BY date, created_at, id`, ownerID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.RealizedTransaction
	for rows.Next() {
		var (
			tx                 core.RealizedTransaction
			templateID, bucket sql.NullString
			typ, date          string
		)
		if err := rows.Scan(&tx.ID, &tx.OwnerID, &templateID, &typ, &tx.Amount.Cents,
			&date, &tx.IsPaid, &bucket, &tx.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.RecurringTemplateID = templateID.String
		tx.BudgetBucketID = bucket.String
		tx.Type = core.TransactionType(typ)
		if tx.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s date: %w", tx.ID, err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveGoal(ctx context.Context, g core.BudgetGoal) error {
	var pct any
	if g.Percentage != nil {
		pct = *g.Percentage
	}
	var target any
	if g.TargetAmount != nil {
		target = g.TargetAmount.Cents
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO budget_goals (id, owner_id, bucket_type, percentage, target_amount_cents)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, bucket_type) DO UPDATE SET
			percentage = excluded.percentage,
			target_amount_cents = excluded.target_amount_cents`,
		g.ID, g.OwnerID, string(g.BucketType), pct, target)
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, ownerID string) ([]core.BudgetGoal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, owner_id, bucket_type, percentage, target_amount_cents
		FROM budget_goals WHERE owner_id = ? ORDER BY bucket_type`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetGoal
	for rows.Next() {
		var (
			g      core.BudgetGoal
			bt     string
			pct    sql.NullFloat64
			target sql.NullInt64
		)
		if err := rows.Scan(&g.ID, &g.OwnerID, &bt, &pct, &target); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.BucketType = core.BucketType(bt)
		if pct.Valid {
			v := pct.Float64
			g.Percentage = &v
		}
		if target.Valid {
			g.TargetAmount = &core.Money{Cents: target.Int64}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// FindBucket implements budget.BucketStore.
func (r *SQLiteRepository) FindBucket(ctx context.Context, key core.BucketKey) (*core.BudgetBucket, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, owner_id, period_start, period_end, bucket_type, amount_cents
		FROM budget_buckets
		WHERE owner_id = ? AND period_start = ? AND period_end = ? AND bucket_type = ?`,
		key.OwnerID, key.PeriodStart.String(), key.PeriodEnd.String(), string(key.BucketType))
	b, err := scanBucket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find bucket: %w", err)
	}
	return &b, nil
}

// CreateBucket implements budget.BucketStore. The unique key is the final
// arbiter between processes: a losing insert is ignored and the winner's row
// is returned.
func (r *SQLiteRepository) CreateBucket(ctx context.Context, b core.BudgetBucket) (core.BudgetBucket, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO budget_buckets
		(id, owner_id, period_start, period_end, bucket_type, amount_cents)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, period_start, period_end, bucket_type) DO NOTHING`,
		b.ID, b.OwnerID, b.PeriodStart.String(), b.PeriodEnd.String(), string(b.BucketType), b.Amount.Cents)
	if err != nil {
		return core.BudgetBucket{}, fmt.Errorf("create bucket: %w", err)
	}

	stored, err := r.FindBucket(ctx, b.Key())
	if err != nil {
		return core.BudgetBucket{}, err
	}
	if stored == nil {
		return core.BudgetBucket{}, fmt.Errorf("create bucket %s: row vanished after insert", b.Key())
	}
	return *stored, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (core.RecurringTemplate, error) {
	var (
		t                              core.RecurringTemplate
		typ, freq, start               string
		dom, dow                       sql.NullInt64
		end, next, last, cat, priority sql.NullString
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Amount.Cents, &typ, &freq, &dom, &dow,
		&start, &end, &next, &last, &t.IsActive, &cat, &priority); err != nil {
		return t, err
	}

	t.Type = core.TransactionType(typ)
	t.Frequency = core.Frequency(freq)
	t.CategoryID = cat.String
	t.FinancialPriority = core.BucketType(priority.String)
	if dom.Valid {
		v := int(dom.Int64)
		t.DayOfMonth = &v
	}
	if dow.Valid {
		v := time.Weekday(dow.Int64)
		t.DayOfWeek = &v
	}

	var err error
	if t.StartDate, err = core.ParseDate(start); err != nil {
		return t, fmt.Errorf("template %s start date: %w", t.ID, err)
	}
	for _, f := range []struct {
		src sql.NullString
		dst *core.Date
	}{{end, &t.EndDate}, {next, &t.NextOccurrence}, {last, &t.LastProcessed}} {
		if !f.src.Valid || f.src.String == "" {
			continue
		}
		if *f.dst, err = core.ParseDate(f.src.String); err != nil {
			return t, fmt.Errorf("template %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func collectTemplates(rows *sql.Rows) ([]core.RecurringTemplate, error) {
	defer rows.Close()
	var out []core.RecurringTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanBucket(row rowScanner) (core.BudgetBucket, error) {
	var (
		b          core.BudgetBucket
		start, end string
		bt         string
	)
	if err := row.Scan(&b.ID, &b.OwnerID, &start, &end, &bt, &b.Amount.Cents); err != nil {
		return b, err
	}
	b.BucketType = core.BucketType(bt)
	var err error
	if b.PeriodStart, err = core.ParseDate(start); err != nil {
		return b, err
	}
	if b.PeriodEnd, err = core.ParseDate(end); err != nil {
		return b, err
	}
	return b, nil
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullWeekday(p *time.Weekday) any {
	if p == nil {
		return nil
	}
	return int(*p)
}
