package domain

import "time"

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of the conversation. The assistant's turn carries
// serialized response metadata in Context for later inspection.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Context   string    `json:"context,omitempty"` // JSON-encoded response metadata
	CreatedAt time.Time `json:"created_at"`
}

// Budget is a spending ceiling for a category. At most one budget per
// category is active; setting a new one deactivates its predecessors.
type Budget struct {
	ID        int64     `json:"id"`
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	Period    string    `json:"period"` // monthly | weekly | yearly
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// SpendingPattern holds derived per-category statistics over expense
// transactions. One row per category, recomputed after each new expense.
type SpendingPattern struct {
	Category      string    `json:"category"`
	AverageAmount float64   `json:"average_amount"`
	Frequency     float64   `json:"frequency"` // transactions per month
	LastUpdated   time.Time `json:"last_updated"`
}

// UnusualSpending flags a category whose current-month total deviates from
// its expected monthly spend by more than a threshold percentage.
type UnusualSpending struct {
	Category     string  `json:"category"`
	DeviationPct float64 `json:"deviation_percentage"` // positive = above usual
}

// FinancialSummary bundles lifetime and current-month totals. Computed on
// demand from transaction aggregates, never persisted.
type FinancialSummary struct {
	TotalIncome      float64 `json:"totalIncome"`
	TotalExpenses    float64 `json:"totalExpenses"`
	CurrentBalance   float64 `json:"currentBalance"`
	MonthlyIncome    float64 `json:"monthlyIncome"`
	MonthlyExpenses  float64 `json:"monthlyExpenses"`
	MonthlyBalance   float64 `json:"monthlyBalance"`
	TransactionCount int     `json:"transactionCount"`
}

// MonthlySummary is the aggregate for a single calendar month.
type MonthlySummary struct {
	Income           float64 `json:"income"`
	Expenses         float64 `json:"expenses"`
	TransactionCount int     `json:"transactionCount"`
}

// CategorySummary is the lifetime expense aggregate for one category.
type CategorySummary struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}
