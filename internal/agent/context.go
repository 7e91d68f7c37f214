package agent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/finance-agent/internal/domain"
)

const (
	recentTransactionLimit = 10
	recentChatLimit        = 10

	// unusualSpendingThresholdPct is the minimum deviation from the expected
	// monthly spend for a category to be flagged at all. The insight rules
	// apply their own, stricter 50% cut on top of this.
	unusualSpendingThresholdPct = 30.0
)

// preferenceKeys are the named user-preference keys loaded into every context.
var preferenceKeys = []string{
	"preferred_currency",
	"budget_alerts",
	"spending_insights",
	"default_categories",
}

// Context is the bounded snapshot of recent data assembled fresh for each
// message. It lives for one request and is the agent's only memory.
type Context struct {
	RecentTransactions   []domain.Transaction
	ChatHistory          []domain.ChatMessage
	SpendingPatterns     []domain.SpendingPattern
	Budgets              []domain.Budget
	UnusualSpending      []domain.UnusualSpending
	CurrentMonthSpending float64
	Preferences          map[string]string
	Summary              domain.FinancialSummary
}

// assembleContext issues the fixed set of reads concurrently and waits for
// all of them. All-or-nothing: if any read fails the whole assembly fails,
// so callers never see a degraded partial context.
func (a *Agent) assembleContext(ctx context.Context) (*Context, error) {
	ac := &Context{Preferences: make(map[string]string)}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		txs, err := a.store.RecentTransactions(gctx, recentTransactionLimit)
		if err != nil {
			return fmt.Errorf("recent transactions: %w", err)
		}
		ac.RecentTransactions = txs
		return nil
	})
	g.Go(func() error {
		msgs, err := a.store.RecentChatMessages(gctx, recentChatLimit)
		if err != nil {
			return fmt.Errorf("chat history: %w", err)
		}
		ac.ChatHistory = msgs
		return nil
	})
	g.Go(func() error {
		patterns, err := a.store.SpendingPatterns(gctx)
		if err != nil {
			return fmt.Errorf("spending patterns: %w", err)
		}
		ac.SpendingPatterns = patterns
		return nil
	})
	g.Go(func() error {
		budgets, err := a.store.ActiveBudgets(gctx)
		if err != nil {
			return fmt.Errorf("active budgets: %w", err)
		}
		ac.Budgets = budgets
		return nil
	})
	g.Go(func() error {
		unusual, err := a.store.UnusualSpending(gctx, unusualSpendingThresholdPct)
		if err != nil {
			return fmt.Errorf("unusual spending: %w", err)
		}
		ac.UnusualSpending = unusual
		return nil
	})
	g.Go(func() error {
		total, err := a.store.CurrentMonthSpending(gctx, "")
		if err != nil {
			return fmt.Errorf("current month spending: %w", err)
		}
		ac.CurrentMonthSpending = total
		return nil
	})
	g.Go(func() error {
		summary, err := a.financialSummary(gctx)
		if err != nil {
			return err
		}
		ac.Summary = summary
		return nil
	})
	g.Go(func() error {
		prefs := make(map[string]string, len(preferenceKeys))
		for _, key := range preferenceKeys {
			value, err := a.store.GetPreference(gctx, key)
			if err != nil {
				return fmt.Errorf("preference %s: %w", key, err)
			}
			if value != "" {
				prefs[key] = value
			}
		}
		ac.Preferences = prefs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}
	return ac, nil
}

// financialSummary computes lifetime and current-month totals from the
// store's aggregate queries. Datastore errors propagate; it never papers
// over a failed read with zeros.
func (a *Agent) financialSummary(ctx context.Context) (domain.FinancialSummary, error) {
	totalIncome, err := a.store.TotalByDirection(ctx, domain.Income)
	if err != nil {
		return domain.FinancialSummary{}, fmt.Errorf("total income: %w", err)
	}
	totalExpenses, err := a.store.TotalByDirection(ctx, domain.Expense)
	if err != nil {
		return domain.FinancialSummary{}, fmt.Errorf("total expenses: %w", err)
	}

	now := time.Now()
	monthly, err := a.store.MonthlySummary(ctx, now.Year(), now.Month())
	if err != nil {
		return domain.FinancialSummary{}, fmt.Errorf("monthly summary: %w", err)
	}

	return domain.FinancialSummary{
		TotalIncome:      totalIncome,
		TotalExpenses:    totalExpenses,
		CurrentBalance:   totalIncome - totalExpenses,
		MonthlyIncome:    monthly.Income,
		MonthlyExpenses:  monthly.Expenses,
		MonthlyBalance:   monthly.Income - monthly.Expenses,
		TransactionCount: monthly.TransactionCount,
	}, nil
}
