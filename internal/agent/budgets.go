package agent

import (
	"fmt"
	"math"
)

const (
	// minSuggestionFrequency is the monthly transaction frequency a category
	// needs before a budget is worth proposing (exclusive bound).
	minSuggestionFrequency = 0.5

	// suggestionBuffer pads the expected monthly spend by 20%.
	suggestionBuffer = 1.2

	maxBudgetSuggestions = 3
)

// BudgetSuggestion proposes a monthly budget for a category that has none.
type BudgetSuggestion struct {
	Category  string  `json:"category"`
	Amount    float64 `json:"amount"`
	Reasoning string  `json:"reasoning"`
}

// suggestBudgets proposes budgets for spending patterns whose category has
// no active budget and recurs often enough to matter. Amounts are the
// expected monthly spend plus a buffer, rounded up to a whole dollar.
// At most three suggestions, in the order the patterns were supplied; it is
// the caller's job to pre-sort patterns if a ranking is wanted. Advisory
// only: budgets are never written here.
func suggestBudgets(ac *Context) []BudgetSuggestion {
	budgeted := make(map[string]bool, len(ac.Budgets))
	for _, b := range ac.Budgets {
		budgeted[b.Category] = true
	}

	var suggestions []BudgetSuggestion
	for _, pattern := range ac.SpendingPatterns {
		if budgeted[pattern.Category] || pattern.Frequency <= minSuggestionFrequency {
			continue
		}

		amount := math.Ceil(pattern.AverageAmount * pattern.Frequency * suggestionBuffer)
		suggestions = append(suggestions, BudgetSuggestion{
			Category: pattern.Category,
			Amount:   amount,
			Reasoning: fmt.Sprintf(
				"Based on your average spending of $%.2f per transaction, %.1f times per month.",
				pattern.AverageAmount, pattern.Frequency),
		})
		if len(suggestions) == maxBudgetSuggestions {
			break
		}
	}
	return suggestions
}
