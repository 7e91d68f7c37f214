package agent

import (
	"context"
	"fmt"
	"math"

	"github.com/dvloznov/finance-agent/internal/domain"
)

// Budget thresholds are exclusive lower bounds: exactly 90.0% is still a
// warning, not an alert, and exactly 75.0% draws no warning at all.
const (
	budgetAlertPct   = 90.0
	budgetWarningPct = 75.0

	// insightDeviationPct is the minimum magnitude an unusual-spending entry
	// needs before the insight rules mention it.
	insightDeviationPct = 50.0
)

// generateInsights derives short observations from the context, in a fixed
// rule order so output is reproducible. Percentages are rounded to one
// decimal for display only; the comparisons use the unrounded values.
func (a *Agent) generateInsights(ctx context.Context, ac *Context) ([]string, error) {
	var insights []string
	s := ac.Summary

	if s.CurrentBalance < 0 {
		insights = append(insights, fmt.Sprintf(
			"🔴 Your current balance is negative ($%.2f). Consider reducing expenses or increasing income.",
			s.CurrentBalance))
	} else if s.CurrentBalance > 1000 {
		insights = append(insights, fmt.Sprintf(
			"🟢 Great job! You have a healthy balance of $%.2f.", s.CurrentBalance))
	}

	if s.MonthlyBalance < 0 {
		insights = append(insights, fmt.Sprintf(
			"📉 This month you've spent $%.2f more than you've earned.",
			math.Abs(s.MonthlyBalance)))
	} else if s.MonthlyBalance > 0 {
		insights = append(insights, fmt.Sprintf(
			"📈 This month you've saved $%.2f! Keep it up!", s.MonthlyBalance))
	}

	for _, budget := range ac.Budgets {
		spent, err := a.store.CurrentMonthSpending(ctx, budget.Category)
		if err != nil {
			return nil, fmt.Errorf("insights: spending for %s: %w", budget.Category, err)
		}
		if budget.Amount <= 0 {
			continue
		}
		pct := spent / budget.Amount * 100

		if pct > budgetAlertPct {
			insights = append(insights, fmt.Sprintf(
				"⚠️ You've spent %.1f%% of your %s budget this month!", pct, budget.Category))
		} else if pct > budgetWarningPct {
			insights = append(insights, fmt.Sprintf(
				"📊 You're at %.1f%% of your %s budget. Consider monitoring closely.", pct, budget.Category))
		}
	}

	for i, unusual := range ac.UnusualSpending {
		if i >= 2 {
			break
		}
		if unusual.DeviationPct > insightDeviationPct {
			insights = append(insights, fmt.Sprintf(
				"📈 Your %s spending is %.1f%% higher than usual this month.",
				unusual.Category, unusual.DeviationPct))
		} else if unusual.DeviationPct < -insightDeviationPct {
			insights = append(insights, fmt.Sprintf(
				"📉 Your %s spending is %.1f%% lower than usual this month.",
				unusual.Category, -unusual.DeviationPct))
		}
	}

	if top := highestFrequencyPattern(ac); top != nil {
		insights = append(insights, fmt.Sprintf(
			"💡 Your most frequent expense category is %s (avg $%.2f per transaction).",
			top.Category, top.AverageAmount))
	}

	return insights, nil
}

func highestFrequencyPattern(ac *Context) *domain.SpendingPattern {
	var top *domain.SpendingPattern
	for i := range ac.SpendingPatterns {
		p := &ac.SpendingPatterns[i]
		if top == nil || p.Frequency > top.Frequency {
			top = p
		}
	}
	return top
}
