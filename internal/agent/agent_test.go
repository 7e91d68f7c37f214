package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/domain"
)

// mockStore is an in-memory Store for agent tests. When err is set, every
// method fails with it.
type mockStore struct {
	transactions  []domain.Transaction
	messages      []domain.ChatMessage
	budgets       []domain.Budget
	patterns      []domain.SpendingPattern
	unusual       []domain.UnusualSpending
	monthSpending map[string]float64
	totals        map[domain.Direction]float64
	monthly       domain.MonthlySummary
	prefs         map[string]string
	err           error
}

func newMockStore() *mockStore {
	return &mockStore{
		monthSpending: make(map[string]float64),
		totals:        make(map[domain.Direction]float64),
		prefs:         make(map[string]string),
	}
}

func (m *mockStore) RecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return m.transactions, m.err
}

func (m *mockStore) RecentChatMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	return m.messages, m.err
}

func (m *mockStore) ActiveBudgets(ctx context.Context) ([]domain.Budget, error) {
	return m.budgets, m.err
}

func (m *mockStore) SpendingPatterns(ctx context.Context) ([]domain.SpendingPattern, error) {
	return m.patterns, m.err
}

func (m *mockStore) UnusualSpending(ctx context.Context, thresholdPct float64) ([]domain.UnusualSpending, error) {
	return m.unusual, m.err
}

func (m *mockStore) CurrentMonthSpending(ctx context.Context, category string) (float64, error) {
	return m.monthSpending[category], m.err
}

func (m *mockStore) TotalByDirection(ctx context.Context, d domain.Direction) (float64, error) {
	return m.totals[d], m.err
}

func (m *mockStore) MonthlySummary(ctx context.Context, year int, month time.Month) (domain.MonthlySummary, error) {
	return m.monthly, m.err
}

func (m *mockStore) GetPreference(ctx context.Context, key string) (string, error) {
	return m.prefs[key], m.err
}

func (m *mockStore) SetPreference(ctx context.Context, key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.prefs[key] = value
	return nil
}

// fakeGenerator returns a canned model output or error.
type fakeGenerator struct {
	output string
	err    error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.output, g.err
}

func newTestAgent(store Store, gen Generator) *Agent {
	return New(store, gen, zerolog.Nop())
}

func TestProcessMessage_Balance(t *testing.T) {
	store := newMockStore()
	store.totals[domain.Income] = 3000
	store.totals[domain.Expense] = 1200

	a := newTestAgent(store, &fakeGenerator{})

	resp, err := a.ProcessMessage(context.Background(), "What's my balance?")
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	if resp.Type != ResponseBalance {
		t.Errorf("Type = %q, want %q", resp.Type, ResponseBalance)
	}
	if !strings.Contains(resp.Message, "$1800.00") {
		t.Errorf("Message missing balance:\n%s", resp.Message)
	}
	if !strings.Contains(resp.Message, "🟢") {
		t.Errorf("Message missing positive-balance indicator:\n%s", resp.Message)
	}
}

func TestProcessMessage_NegativeBalance(t *testing.T) {
	store := newMockStore()
	store.totals[domain.Income] = 100
	store.totals[domain.Expense] = 250

	a := newTestAgent(store, &fakeGenerator{})

	resp, err := a.ProcessMessage(context.Background(), "how much money do I have?")
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	if resp.Type != ResponseBalance {
		t.Errorf("Type = %q, want %q", resp.Type, ResponseBalance)
	}
	if !strings.Contains(resp.Message, "🔴") {
		t.Errorf("Message missing negative-balance indicator:\n%s", resp.Message)
	}
}

func TestProcessMessage_BalanceBeatsInsight(t *testing.T) {
	// "balance" and "budget" both appear; balance is checked first.
	store := newMockStore()
	a := newTestAgent(store, &fakeGenerator{err: fmt.Errorf("model must not be called")})

	resp, err := a.ProcessMessage(context.Background(), "What's my balance and should I set a budget?")
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if resp.Type != ResponseBalance {
		t.Errorf("Type = %q, want %q", resp.Type, ResponseBalance)
	}
}

func TestProcessMessage_Transaction(t *testing.T) {
	store := newMockStore()
	a := newTestAgent(store, &fakeGenerator{err: fmt.Errorf("model must not be called")})

	resp, err := a.ProcessMessage(context.Background(), "I spent $15 on lunch")
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	if resp.Type != ResponseTransaction {
		t.Fatalf("Type = %q, want %q", resp.Type, ResponseTransaction)
	}
	if resp.Transaction == nil {
		t.Fatal("Transaction payload missing")
	}
	if resp.Transaction.Amount != 15 {
		t.Errorf("Amount = %v, want 15", resp.Transaction.Amount)
	}
	if resp.Transaction.Category != "food" {
		t.Errorf("Category = %q, want food", resp.Transaction.Category)
	}
	if resp.Transaction.Type != "expense" {
		t.Errorf("Type = %q, want expense", resp.Transaction.Type)
	}
}

func TestProcessMessage_Help(t *testing.T) {
	store := newMockStore()
	a := newTestAgent(store, &fakeGenerator{err: fmt.Errorf("model must not be called")})

	resp, err := a.ProcessMessage(context.Background(), "What can you do?")
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if resp.Type != ResponseHelp {
		t.Errorf("Type = %q, want %q", resp.Type, ResponseHelp)
	}
	if len(resp.Suggestions) == 0 {
		t.Error("Help response has no suggestions")
	}
}

func TestProcessMessage_Insight(t *testing.T) {
	store := newMockStore()
	store.totals[domain.Income] = 5000
	store.totals[domain.Expense] = 1000

	a := newTestAgent(store, &fakeGenerator{err: fmt.Errorf("model must not be called")})

	resp, err := a.ProcessMessage(context.Background(), "Show me my spending patterns")
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if resp.Type != ResponseInsight {
		t.Errorf("Type = %q, want %q", resp.Type, ResponseInsight)
	}
	if !strings.Contains(resp.Message, "healthy balance of $4000.00") {
		t.Errorf("Message missing balance insight:\n%s", resp.Message)
	}
}

func TestProcessMessage_UnclassifiedFallsBackOnModelError(t *testing.T) {
	store := newMockStore()
	a := newTestAgent(store, &fakeGenerator{err: fmt.Errorf("model unavailable")})

	resp, err := a.ProcessMessage(context.Background(), "Tell me a story about my finances")
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	if resp.Type != ResponseQuestion {
		t.Errorf("Type = %q, want %q", resp.Type, ResponseQuestion)
	}
	if !resp.RequiresClarification {
		t.Error("Fallback response should require clarification")
	}
	if resp.ClarificationQuestion == "" {
		t.Error("Fallback response missing clarification question")
	}
}

func TestProcessMessage_StoreErrorPropagates(t *testing.T) {
	store := newMockStore()
	store.err = fmt.Errorf("database locked")

	a := newTestAgent(store, &fakeGenerator{})

	_, err := a.ProcessMessage(context.Background(), "What's my balance?")
	if err == nil {
		t.Fatal("expected error when context assembly fails")
	}
	if !strings.Contains(err.Error(), "assemble context") {
		t.Errorf("error = %v, want context assembly failure", err)
	}
}

func TestGetFinancialOverview(t *testing.T) {
	store := newMockStore()
	store.totals[domain.Income] = 2500
	store.totals[domain.Expense] = 900
	store.monthly = domain.MonthlySummary{Income: 2500, Expenses: 900, TransactionCount: 7}

	a := newTestAgent(store, &fakeGenerator{})

	overview, err := a.GetFinancialOverview(context.Background())
	if err != nil {
		t.Fatalf("GetFinancialOverview failed: %v", err)
	}

	if overview.CurrentBalance != 1600 {
		t.Errorf("CurrentBalance = %v, want 1600", overview.CurrentBalance)
	}
	if overview.MonthlyBalance != 1600 {
		t.Errorf("MonthlyBalance = %v, want 1600", overview.MonthlyBalance)
	}
	if overview.TransactionCount != 7 {
		t.Errorf("TransactionCount = %v, want 7", overview.TransactionCount)
	}
}
