package agent

import (
	"testing"

	"github.com/dvloznov/finance-agent/internal/domain"
)

func TestSuggestBudgets(t *testing.T) {
	ac := &Context{
		SpendingPatterns: []domain.SpendingPattern{
			{Category: "food", AverageAmount: 50, Frequency: 2.0},
		},
	}

	suggestions := suggestBudgets(ac)
	if len(suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(suggestions))
	}

	s := suggestions[0]
	if s.Category != "food" {
		t.Errorf("Category = %q, want food", s.Category)
	}
	// ceil(50 * 2.0 * 1.2) = 120
	if s.Amount != 120 {
		t.Errorf("Amount = %v, want 120", s.Amount)
	}
	if s.Reasoning != "Based on your average spending of $50.00 per transaction, 2.0 times per month." {
		t.Errorf("Reasoning = %q", s.Reasoning)
	}
}

func TestSuggestBudgets_RoundsUp(t *testing.T) {
	ac := &Context{
		SpendingPatterns: []domain.SpendingPattern{
			{Category: "gas", AverageAmount: 33.33, Frequency: 1.1},
		},
	}

	suggestions := suggestBudgets(ac)
	if len(suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(suggestions))
	}
	// 33.33 * 1.1 * 1.2 = 43.9956, rounded up to 44
	if suggestions[0].Amount != 44 {
		t.Errorf("Amount = %v, want 44", suggestions[0].Amount)
	}
}

func TestSuggestBudgets_SkipsBudgetedCategories(t *testing.T) {
	ac := &Context{
		SpendingPatterns: []domain.SpendingPattern{
			{Category: "food", AverageAmount: 50, Frequency: 2.0},
			{Category: "gas", AverageAmount: 40, Frequency: 1.5},
		},
		Budgets: []domain.Budget{
			{Category: "food", Amount: 200, Period: "monthly", Active: true},
		},
	}

	suggestions := suggestBudgets(ac)
	if len(suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(suggestions))
	}
	if suggestions[0].Category != "gas" {
		t.Errorf("Category = %q, want gas", suggestions[0].Category)
	}
}

func TestSuggestBudgets_FrequencyCutoff(t *testing.T) {
	ac := &Context{
		SpendingPatterns: []domain.SpendingPattern{
			{Category: "rare", AverageAmount: 100, Frequency: 0.5}, // exactly at the bound
			{Category: "rarer", AverageAmount: 100, Frequency: 0.2},
		},
	}

	if suggestions := suggestBudgets(ac); len(suggestions) != 0 {
		t.Errorf("got %v, want none", suggestions)
	}
}

func TestSuggestBudgets_CapsAtThree(t *testing.T) {
	ac := &Context{
		SpendingPatterns: []domain.SpendingPattern{
			{Category: "food", AverageAmount: 20, Frequency: 5},
			{Category: "gas", AverageAmount: 40, Frequency: 2},
			{Category: "transport", AverageAmount: 10, Frequency: 3},
			{Category: "entertainment", AverageAmount: 25, Frequency: 1},
		},
	}

	suggestions := suggestBudgets(ac)
	if len(suggestions) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(suggestions))
	}
	// Supplied order is preserved; the fourth pattern is dropped.
	if suggestions[0].Category != "food" || suggestions[2].Category != "transport" {
		t.Errorf("unexpected order: %v", suggestions)
	}
}

func TestSuggestBudgets_NoPatterns(t *testing.T) {
	if suggestions := suggestBudgets(&Context{}); len(suggestions) != 0 {
		t.Errorf("got %v, want none", suggestions)
	}
}
