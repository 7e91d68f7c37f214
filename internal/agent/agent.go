package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/domain"
)

// Store is the narrow datastore surface the agent core reads from. The
// sqlite store implements it; tests substitute a mock.
type Store interface {
	RecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
	RecentChatMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error)
	ActiveBudgets(ctx context.Context) ([]domain.Budget, error)
	SpendingPatterns(ctx context.Context) ([]domain.SpendingPattern, error)
	UnusualSpending(ctx context.Context, thresholdPct float64) ([]domain.UnusualSpending, error)
	CurrentMonthSpending(ctx context.Context, category string) (float64, error)
	TotalByDirection(ctx context.Context, d domain.Direction) (float64, error)
	MonthlySummary(ctx context.Context, year int, month time.Month) (domain.MonthlySummary, error)
	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
}

// Agent is the conversational intent router and financial-insight engine.
// It holds no per-request state, so one instance can be shared freely.
type Agent struct {
	store Store
	gen   Generator
	log   zerolog.Logger
}

// New creates an agent over the given store and text generator.
func New(store Store, gen Generator, log zerolog.Logger) *Agent {
	return &Agent{store: store, gen: gen, log: log}
}

// ProcessMessage classifies one inbound chat message and produces a
// response. Only a failed context assembly (a datastore error) surfaces as
// an error; every other outcome, including model failures, resolves to a
// well-formed response.
func (a *Agent) ProcessMessage(ctx context.Context, message string) (*Response, error) {
	ac, err := a.assembleContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	intent := classifyIntent(message)
	a.log.Debug().Str("intent", intent.String()).Msg("Classified message")

	switch intent {
	case IntentBalance:
		return balanceResponse(ac.Summary), nil
	case IntentHelp:
		return helpResponse(message), nil
	case IntentTransaction:
		return extractTransaction(message, time.Now()), nil
	case IntentInsight:
		insights, err := a.generateInsights(ctx, ac)
		if err != nil {
			return nil, fmt.Errorf("agent: %w", err)
		}
		return insightResponse(insights), nil
	default:
		return a.respondWithModel(ctx, message, ac), nil
	}
}

// GenerateProactiveInsights derives observations from a fresh context,
// ordered from balance health down to spending-pattern commentary.
func (a *Agent) GenerateProactiveInsights(ctx context.Context) ([]string, error) {
	ac, err := a.assembleContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	insights, err := a.generateInsights(ctx, ac)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	return insights, nil
}

// SuggestBudgets proposes budgets for categories with recurring spending and
// no active budget. Purely advisory; nothing is persisted.
func (a *Agent) SuggestBudgets(ctx context.Context) ([]BudgetSuggestion, error) {
	ac, err := a.assembleContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	return suggestBudgets(ac), nil
}

// GetFinancialOverview returns the lifetime and current-month totals.
func (a *Agent) GetFinancialOverview(ctx context.Context) (*domain.FinancialSummary, error) {
	summary, err := a.financialSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	return &summary, nil
}

func balanceResponse(s domain.FinancialSummary) *Response {
	health := "🔴 Your expenses exceed your income. Consider reviewing your spending."
	if s.CurrentBalance > 0 {
		health = "🟢 You have a positive balance!"
	}

	message := fmt.Sprintf(`Here's your financial overview:

💰 **Current Balance: $%.2f**

📊 **Overall Summary:**
• Total Income: $%.2f
• Total Expenses: $%.2f

📅 **This Month:**
• Income: $%.2f
• Expenses: $%.2f
• Net: $%.2f
• Transactions: %d

%s`,
		s.CurrentBalance, s.TotalIncome, s.TotalExpenses,
		s.MonthlyIncome, s.MonthlyExpenses, s.MonthlyBalance, s.TransactionCount,
		health)

	return &Response{
		Type:    ResponseBalance,
		Message: message,
		Context: map[string]any{
			"type":    "balance",
			"balance": s.CurrentBalance,
		},
	}
}

func insightResponse(insights []string) *Response {
	message := "No specific insights available at the moment. Keep tracking your expenses for better analysis!"
	if len(insights) > 0 {
		message = strings.Join(insights, "\n\n")
	}

	return &Response{
		Type:    ResponseInsight,
		Message: message,
		Suggestions: []string{
			"Try asking 'What's my balance?' for financial overview",
			"Record more transactions for better insights",
			"Ask 'Should I set a budget?' for budget recommendations",
		},
		Context: map[string]any{"type": "insight"},
	}
}
