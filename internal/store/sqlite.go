package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dvloznov/finance-agent/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	description TEXT NOT NULL,
	amount REAL NOT NULL,
	category TEXT NOT NULL,
	date TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category);
CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type);

CREATE TABLE IF NOT EXISTS chat_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_created_at ON chat_messages(created_at);

CREATE TABLE IF NOT EXISTS budgets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL,
	amount REAL NOT NULL,
	period TEXT NOT NULL CHECK (period IN ('monthly', 'weekly', 'yearly')),
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_budgets_category ON budgets(category);

CREATE TABLE IF NOT EXISTS user_preferences (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT NOT NULL UNIQUE,
	value TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS spending_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL UNIQUE,
	average_amount REAL NOT NULL,
	frequency REAL NOT NULL,
	last_updated DATETIME NOT NULL
);
`

// SQLite is the sqlite-backed implementation of Store.
type SQLite struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the sqlite database at path.
// Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*SQLite, error) {
	dsn := path + "?_journal=WAL&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = path
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) InsertTransaction(ctx context.Context, t *domain.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("store: insert transaction: %w", err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (description, amount, category, date, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.Description, t.Amount, t.Category, t.Date, string(t.Direction), t.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("store: insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert transaction: last insert id: %w", err)
	}
	t.ID = id
	return id, nil
}

func (s *SQLite) RecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT id, description, amount, category, date, type, created_at
		FROM transactions
		ORDER BY date DESC, created_at DESC, id DESC
		LIMIT ?`, limit)
}

func (s *SQLite) TransactionsByCategory(ctx context.Context, category string) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT id, description, amount, category, date, type, created_at
		FROM transactions
		WHERE category = ?
		ORDER BY date DESC, created_at DESC, id DESC`, category)
}

func (s *SQLite) TransactionsByDateRange(ctx context.Context, start, end string) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT id, description, amount, category, date, type, created_at
		FROM transactions
		WHERE date BETWEEN ? AND ?
		ORDER BY date DESC, created_at DESC, id DESC`, start, end)
}

func (s *SQLite) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var direction string
		if err := rows.Scan(&t.ID, &t.Description, &t.Amount, &t.Category, &t.Date, &direction, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan transaction: %w", err)
		}
		t.Direction = domain.Direction(direction)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate transactions: %w", err)
	}
	return out, nil
}

func (s *SQLite) TotalByDirection(ctx context.Context, d domain.Direction) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = ?`,
		string(d)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("store: total by direction %s: %w", d, err)
	}
	return total, nil
}

func (s *SQLite) MonthlySummary(ctx context.Context, year int, month time.Month) (domain.MonthlySummary, error) {
	start, end := monthRange(year, month)

	var m domain.MonthlySummary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount END), 0),
			COUNT(*)
		FROM transactions
		WHERE date BETWEEN ? AND ?`,
		start, end).Scan(&m.Income, &m.Expenses, &m.TransactionCount)
	if err != nil {
		return domain.MonthlySummary{}, fmt.Errorf("store: monthly summary %d-%02d: %w", year, month, err)
	}
	return m, nil
}

func (s *SQLite) CategorySummary(ctx context.Context) ([]domain.CategorySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COALESCE(SUM(amount), 0), COUNT(*)
		FROM transactions
		WHERE type = 'expense'
		GROUP BY category
		ORDER BY SUM(amount) DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: category summary: %w", err)
	}
	defer rows.Close()

	var out []domain.CategorySummary
	for rows.Next() {
		var c domain.CategorySummary
		if err := rows.Scan(&c.Category, &c.Total, &c.Count); err != nil {
			return nil, fmt.Errorf("store: scan category summary: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate category summary: %w", err)
	}
	return out, nil
}

func (s *SQLite) CurrentMonthSpending(ctx context.Context, category string) (float64, error) {
	now := time.Now()
	start, end := monthRange(now.Year(), now.Month())

	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = 'expense' AND date BETWEEN ? AND ?`
	args := []any{start, end}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("store: current month spending: %w", err)
	}
	return total, nil
}

func (s *SQLite) InsertChatMessage(ctx context.Context, m *domain.ChatMessage) (int64, error) {
	if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
		return 0, fmt.Errorf("store: insert chat message: invalid role %q", m.Role)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (role, content, context, created_at)
		VALUES (?, ?, ?, ?)`,
		string(m.Role), m.Content, m.Context, m.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("store: insert chat message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert chat message: last insert id: %w", err)
	}
	m.ID = id
	return id, nil
}

func (s *SQLite) RecentChatMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, context, created_at
		FROM chat_messages
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent chat messages: %w", err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var role string
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Context, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan chat message: %w", err)
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate chat messages: %w", err)
	}
	return out, nil
}

func (s *SQLite) ActiveBudgets(ctx context.Context) ([]domain.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, amount, period, is_active, created_at
		FROM budgets
		WHERE is_active = 1
		ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: active budgets: %w", err)
	}
	defer rows.Close()

	var out []domain.Budget
	for rows.Next() {
		var b domain.Budget
		if err := rows.Scan(&b.ID, &b.Category, &b.Amount, &b.Period, &b.Active, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan budget: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate budgets: %w", err)
	}
	return out, nil
}

func (s *SQLite) BudgetForCategory(ctx context.Context, category string) (*domain.Budget, error) {
	var b domain.Budget
	err := s.db.QueryRowContext(ctx, `
		SELECT id, category, amount, period, is_active, created_at
		FROM budgets
		WHERE category = ? AND is_active = 1
		LIMIT 1`, category).Scan(&b.ID, &b.Category, &b.Amount, &b.Period, &b.Active, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: budget for category %s: %w", category, err)
	}
	return &b, nil
}

func (s *SQLite) SetBudget(ctx context.Context, category string, amount float64, period string) (*domain.Budget, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("store: set budget: amount must be positive, got %v", amount)
	}
	if period == "" {
		period = "monthly"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: set budget: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE budgets SET is_active = 0 WHERE category = ?`, category); err != nil {
		return nil, fmt.Errorf("store: set budget: deactivate prior: %w", err)
	}

	createdAt := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO budgets (category, amount, period, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)`,
		category, amount, period, createdAt)
	if err != nil {
		return nil, fmt.Errorf("store: set budget: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: set budget: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: set budget: commit: %w", err)
	}

	return &domain.Budget{
		ID:        id,
		Category:  category,
		Amount:    amount,
		Period:    period,
		Active:    true,
		CreatedAt: createdAt,
	}, nil
}

func (s *SQLite) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM user_preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get preference %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLite) SetPreference(ctx context.Context, key, value string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now)
	if err != nil {
		return fmt.Errorf("store: set preference %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) SpendingPatterns(ctx context.Context) ([]domain.SpendingPattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, average_amount, frequency, last_updated
		FROM spending_patterns
		ORDER BY frequency DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: spending patterns: %w", err)
	}
	defer rows.Close()

	var out []domain.SpendingPattern
	for rows.Next() {
		var p domain.SpendingPattern
		if err := rows.Scan(&p.Category, &p.AverageAmount, &p.Frequency, &p.LastUpdated); err != nil {
			return nil, fmt.Errorf("store: scan spending pattern: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate spending patterns: %w", err)
	}
	return out, nil
}

func (s *SQLite) SpendingPatternForCategory(ctx context.Context, category string) (*domain.SpendingPattern, error) {
	var p domain.SpendingPattern
	err := s.db.QueryRowContext(ctx, `
		SELECT category, average_amount, frequency, last_updated
		FROM spending_patterns
		WHERE category = ?`, category).Scan(&p.Category, &p.AverageAmount, &p.Frequency, &p.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: spending pattern for %s: %w", category, err)
	}
	return &p, nil
}

func (s *SQLite) RecomputeSpendingPattern(ctx context.Context, category string) error {
	var (
		count            int
		avg              float64
		minDate, maxDate string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(amount), 0), COALESCE(MIN(date), ''), COALESCE(MAX(date), '')
		FROM transactions
		WHERE category = ? AND type = 'expense'`, category).Scan(&count, &avg, &minDate, &maxDate)
	if err != nil {
		return fmt.Errorf("store: recompute pattern %s: stats: %w", category, err)
	}
	if count == 0 {
		return nil
	}

	// Frequency is transactions per month over the observed span, with a
	// floor of one month so a single burst never divides by a tiny span.
	months := 1.0
	first, err1 := time.Parse("2006-01-02", minDate)
	last, err2 := time.Parse("2006-01-02", maxDate)
	if err1 == nil && err2 == nil {
		months = math.Max(1, last.Sub(first).Hours()/(24*30))
	}
	frequency := float64(count) / months

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO spending_patterns (category, average_amount, frequency, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			average_amount = excluded.average_amount,
			frequency = excluded.frequency,
			last_updated = excluded.last_updated`,
		category, avg, frequency, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: recompute pattern %s: upsert: %w", category, err)
	}
	return nil
}

func (s *SQLite) UnusualSpending(ctx context.Context, thresholdPct float64) ([]domain.UnusualSpending, error) {
	now := time.Now()
	start, end := monthRange(now.Year(), now.Month())

	// Current-month totals are compared against the expected monthly spend
	// derived from the lifetime pattern (average amount x monthly frequency).
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.category,
			p.average_amount * p.frequency,
			COALESCE((SELECT SUM(t.amount) FROM transactions t
				WHERE t.category = p.category AND t.type = 'expense'
				AND t.date BETWEEN ? AND ?), 0)
		FROM spending_patterns p`, start, end)
	if err != nil {
		return nil, fmt.Errorf("store: unusual spending: %w", err)
	}
	defer rows.Close()

	var out []domain.UnusualSpending
	for rows.Next() {
		var (
			category            string
			expected, monthSpend float64
		)
		if err := rows.Scan(&category, &expected, &monthSpend); err != nil {
			return nil, fmt.Errorf("store: scan unusual spending: %w", err)
		}
		if expected <= 0 {
			continue
		}
		deviation := (monthSpend - expected) / expected * 100
		if math.Abs(deviation) > thresholdPct {
			out = append(out, domain.UnusualSpending{Category: category, DeviationPct: deviation})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate unusual spending: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].DeviationPct) > math.Abs(out[j].DeviationPct)
	})
	return out, nil
}

func (s *SQLite) ClearAll(ctx context.Context) error {
	for _, table := range []string{"spending_patterns", "budgets", "user_preferences", "chat_messages", "transactions"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("store: clear %s: %w", table, err)
		}
	}
	return nil
}

// monthRange returns the first and last day of the month as ISO date strings.
func monthRange(year int, month time.Month) (string, string) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start.Format("2006-01-02"), end.Format("2006-01-02")
}

var _ Store = (*SQLite)(nil)
