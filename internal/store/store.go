package store

import (
	"context"
	"time"

	"github.com/dvloznov/finance-agent/internal/domain"
)

// Store is the full datastore surface consumed by the API layer. The agent
// core depends on a narrower read-mostly subset of these methods.
type Store interface {
	// Transactions
	InsertTransaction(ctx context.Context, t *domain.Transaction) (int64, error)
	RecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
	TransactionsByCategory(ctx context.Context, category string) ([]domain.Transaction, error)
	TransactionsByDateRange(ctx context.Context, start, end string) ([]domain.Transaction, error)

	// Aggregates
	TotalByDirection(ctx context.Context, d domain.Direction) (float64, error)
	MonthlySummary(ctx context.Context, year int, month time.Month) (domain.MonthlySummary, error)
	CategorySummary(ctx context.Context) ([]domain.CategorySummary, error)
	// CurrentMonthSpending sums this month's expenses; an empty category
	// means all categories.
	CurrentMonthSpending(ctx context.Context, category string) (float64, error)

	// Chat
	InsertChatMessage(ctx context.Context, m *domain.ChatMessage) (int64, error)
	RecentChatMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error)

	// Budgets
	ActiveBudgets(ctx context.Context) ([]domain.Budget, error)
	// BudgetForCategory returns (nil, nil) when the category has no active budget.
	BudgetForCategory(ctx context.Context, category string) (*domain.Budget, error)
	// SetBudget deactivates any prior budget for the category and inserts a
	// new active one (supersession, not deletion).
	SetBudget(ctx context.Context, category string, amount float64, period string) (*domain.Budget, error)

	// Preferences
	// GetPreference returns ("", nil) when the key is unset.
	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error

	// Spending patterns
	SpendingPatterns(ctx context.Context) ([]domain.SpendingPattern, error)
	SpendingPatternForCategory(ctx context.Context, category string) (*domain.SpendingPattern, error)
	// RecomputeSpendingPattern rebuilds the derived statistics for one
	// category from its expense transactions. A no-op if the category has
	// no expenses yet.
	RecomputeSpendingPattern(ctx context.Context, category string) error
	// UnusualSpending returns categories whose current-month expense total
	// deviates from the expected monthly spend (average x frequency) by
	// more than thresholdPct percent, largest deviation first.
	UnusualSpending(ctx context.Context, thresholdPct float64) ([]domain.UnusualSpending, error)

	// Admin
	ClearAll(ctx context.Context) error
	Close() error
}
