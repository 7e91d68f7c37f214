package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/agent"
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/jobs"
	"github.com/dvloznov/finance-agent/internal/store"
)

// stubAgent returns canned values for every agent call.
type stubAgent struct {
	response    *agent.Response
	err         error
	insights    []string
	suggestions []agent.BudgetSuggestion
	overview    *domain.FinancialSummary
}

func (s *stubAgent) ProcessMessage(ctx context.Context, message string) (*agent.Response, error) {
	return s.response, s.err
}

func (s *stubAgent) GenerateProactiveInsights(ctx context.Context) ([]string, error) {
	return s.insights, nil
}

func (s *stubAgent) SuggestBudgets(ctx context.Context) ([]agent.BudgetSuggestion, error) {
	return s.suggestions, nil
}

func (s *stubAgent) GetFinancialOverview(ctx context.Context) (*domain.FinancialSummary, error) {
	return s.overview, nil
}

// stubPublisher records published jobs.
type stubPublisher struct {
	jobs []*jobs.RecomputePatternJob
	err  error
}

func (p *stubPublisher) PublishRecompute(ctx context.Context, job *jobs.RecomputePatternJob) error {
	if p.err != nil {
		return p.err
	}
	job.JobID = fmt.Sprintf("job-%d", len(p.jobs)+1)
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func openTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func postChat(t *testing.T, h *ChatHandler, message string) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"message": %q}`, message)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)
	return rec
}

func TestChat_TransactionFlow(t *testing.T) {
	st := openTestStore(t)
	pub := &stubPublisher{}
	ag := &stubAgent{
		response: &agent.Response{
			Type: agent.ResponseTransaction,
			Transaction: &agent.ExtractedTransaction{
				Description: "lunch",
				Amount:      15,
				Category:    "Food",
				Type:        "expense",
				Date:        "2024-06-15",
			},
			Message: "✅ Transaction recorded: -$15.00 for lunch (food)",
			Context: map[string]any{"type": "transaction"},
		},
		insights: []string{"insight one", "insight two", "insight three"},
	}

	h := NewChatHandler(st, ag, pub, zerolog.Nop())
	rec := postChat(t, h, "I spent $15 on lunch")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success     bool   `json:"success"`
		Message     string `json:"message"`
		AgentType   string `json:"agentType"`
		Transaction struct {
			ID       int64  `json:"id"`
			Category string `json:"category"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Success || resp.AgentType != "transaction" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Transaction.ID == 0 {
		t.Error("transaction not persisted")
	}

	// Only the first two insights are appended.
	if !strings.Contains(resp.Message, "insight two") || strings.Contains(resp.Message, "insight three") {
		t.Errorf("message = %q", resp.Message)
	}

	// The stored transaction category is lowercased.
	txs, err := st.RecentTransactions(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentTransactions failed: %v", err)
	}
	if len(txs) != 1 || txs[0].Category != "food" {
		t.Errorf("stored transactions = %+v", txs)
	}

	// An expense triggers a pattern recompute job.
	if len(pub.jobs) != 1 || pub.jobs[0].Category != "food" {
		t.Errorf("published jobs = %+v", pub.jobs)
	}

	// Both conversation turns were recorded.
	msgs, err := st.RecentChatMessages(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentChatMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d chat messages, want 2", len(msgs))
	}
	if msgs[0].Role != domain.RoleAssistant || msgs[0].Context == "" {
		t.Errorf("assistant message = %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleUser || msgs[1].Content != "I spent $15 on lunch" {
		t.Errorf("user message = %+v", msgs[1])
	}
}

func TestChat_IncomeDoesNotTriggerRecompute(t *testing.T) {
	st := openTestStore(t)
	pub := &stubPublisher{}
	ag := &stubAgent{
		response: &agent.Response{
			Type: agent.ResponseTransaction,
			Transaction: &agent.ExtractedTransaction{
				Description: "salary",
				Amount:      2000,
				Category:    "salary",
				Type:        "income",
				Date:        "2024-06-15",
			},
			Message: "✅ Transaction recorded: +$2000.00 for salary (salary)",
		},
	}

	h := NewChatHandler(st, ag, pub, zerolog.Nop())
	rec := postChat(t, h, "Received $2000 salary")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(pub.jobs) != 0 {
		t.Errorf("published jobs = %+v, want none", pub.jobs)
	}
}

func TestChat_ClarificationSubstitution(t *testing.T) {
	st := openTestStore(t)
	ag := &stubAgent{
		response: &agent.Response{
			Type:                  agent.ResponseQuestion,
			Message:               "I couldn't find an amount in your message.",
			RequiresClarification: true,
			ClarificationQuestion: "How much was the transaction for?",
		},
	}

	h := NewChatHandler(st, ag, &stubPublisher{}, zerolog.Nop())
	rec := postChat(t, h, "I bought some stuff")

	var resp struct {
		Message               string `json:"message"`
		RequiresClarification bool   `json:"requiresClarification"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Message != "How much was the transaction for?" {
		t.Errorf("message = %q", resp.Message)
	}
	if !resp.RequiresClarification {
		t.Error("requiresClarification = false, want true")
	}
}

func TestChat_BudgetAlertAppendsSuggestions(t *testing.T) {
	st := openTestStore(t)
	ag := &stubAgent{
		response: &agent.Response{
			Type:    agent.ResponseBudgetAlert,
			Message: "You're close to your food budget.",
		},
		suggestions: []agent.BudgetSuggestion{
			{Category: "food", Amount: 120, Reasoning: "Based on your average spending of $50.00 per transaction, 2.0 times per month."},
		},
	}

	h := NewChatHandler(st, ag, &stubPublisher{}, zerolog.Nop())
	rec := postChat(t, h, "budget status")

	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !strings.Contains(resp.Message, "Budget suggestions:") || !strings.Contains(resp.Message, "food: $120/month") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestChat_MissingMessage(t *testing.T) {
	st := openTestStore(t)
	h := NewChatHandler(st, &stubAgent{}, &stubPublisher{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChat_AgentErrorIsOpaque(t *testing.T) {
	st := openTestStore(t)
	ag := &stubAgent{err: fmt.Errorf("agent: assemble context: database locked")}

	h := NewChatHandler(st, ag, &stubPublisher{}, zerolog.Nop())
	rec := postChat(t, h, "what's up")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "database locked") {
		t.Error("internal error detail leaked to the client")
	}

	// The canned failure reply is still recorded in chat history.
	msgs, err := st.RecentChatMessages(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentChatMessages failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != domain.RoleAssistant {
		t.Fatalf("chat messages = %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "rephrasing") {
		t.Errorf("assistant message = %q", msgs[0].Content)
	}
}

func TestChatHistory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if _, err := st.InsertChatMessage(ctx, &domain.ChatMessage{Role: domain.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("InsertChatMessage failed: %v", err)
	}
	if _, err := st.InsertChatMessage(ctx, &domain.ChatMessage{Role: domain.RoleAssistant, Content: "hello"}); err != nil {
		t.Fatalf("InsertChatMessage failed: %v", err)
	}

	h := NewChatHandler(st, &stubAgent{}, &stubPublisher{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)

	var resp struct {
		Success  bool                 `json:"success"`
		Messages []domain.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Success || len(resp.Messages) != 2 {
		t.Errorf("response = %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat/history?type=user", nil)
	rec = httptest.NewRecorder()
	h.History(rec, req)

	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Role != domain.RoleUser {
		t.Errorf("filtered messages = %+v", resp.Messages)
	}
}
