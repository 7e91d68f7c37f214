package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/agent"
	"github.com/dvloznov/finance-agent/internal/api/middleware"
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/jobs"
	"github.com/dvloznov/finance-agent/internal/store"
)

// processingErrorMessage is what the user sees when message handling fails.
// The underlying error is logged, never returned to the client.
const processingErrorMessage = "I encountered an error processing your message. Could you please try rephrasing it?"

// FinanceAgent is the agent surface the chat handler depends on. *agent.Agent
// implements it; tests substitute a stub.
type FinanceAgent interface {
	ProcessMessage(ctx context.Context, message string) (*agent.Response, error)
	GenerateProactiveInsights(ctx context.Context) ([]string, error)
	SuggestBudgets(ctx context.Context) ([]agent.BudgetSuggestion, error)
	GetFinancialOverview(ctx context.Context) (*domain.FinancialSummary, error)
}

// ChatHandler handles conversational endpoints.
type ChatHandler struct {
	store     store.Store
	agent     FinanceAgent
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(st store.Store, ag FinanceAgent, publisher jobs.Publisher, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		store:     st,
		agent:     ag,
		publisher: publisher,
		log:       log,
	}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Message == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Message is required")
		return
	}

	ctx := r.Context()

	if _, err := h.store.InsertChatMessage(ctx, &domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: req.Message,
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to save user message")
		h.writeProcessingError(ctx, w)
		return
	}

	resp, err := h.agent.ProcessMessage(ctx, req.Message)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to process message")
		h.writeProcessingError(ctx, w)
		return
	}

	responseMessage := resp.Message
	var transactionResult *transactionResult

	switch resp.Type {
	case agent.ResponseTransaction:
		if resp.Transaction != nil {
			transactionResult, err = h.recordTransaction(ctx, resp.Transaction)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to record transaction")
				h.writeProcessingError(ctx, w)
				return
			}

			if insights, err := h.agent.GenerateProactiveInsights(ctx); err != nil {
				h.log.Warn().Err(err).Msg("Failed to generate insights for transaction response")
			} else if len(insights) > 0 {
				if len(insights) > 2 {
					insights = insights[:2]
				}
				responseMessage += "\n\n" + strings.Join(insights, "\n")
			}
		}

	case agent.ResponseQuestion:
		if resp.RequiresClarification && resp.ClarificationQuestion != "" {
			responseMessage = resp.ClarificationQuestion
		}

	case agent.ResponseInsight:
		if insights, err := h.agent.GenerateProactiveInsights(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Failed to generate insights for insight response")
		} else if len(insights) > 0 {
			responseMessage += "\n\n" + strings.Join(insights, "\n")
		}

	case agent.ResponseBudgetAlert:
		if suggestions, err := h.agent.SuggestBudgets(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Failed to suggest budgets for budget alert response")
		} else if len(suggestions) > 0 {
			responseMessage += "\n\nBudget suggestions:\n"
			for _, s := range suggestions {
				responseMessage += fmt.Sprintf("• %s: $%v/month - %s\n", s.Category, s.Amount, s.Reasoning)
			}
		}

	case agent.ResponseSuggestion:
		if len(resp.Suggestions) > 0 {
			responseMessage += "\n\nSuggestions:\n"
			for _, s := range resp.Suggestions {
				responseMessage += fmt.Sprintf("• %s\n", s)
			}
		}
	}

	assistantMsg := &domain.ChatMessage{
		Role:    domain.RoleAssistant,
		Content: responseMessage,
	}
	if resp.Context != nil {
		if b, err := json.Marshal(resp.Context); err == nil {
			assistantMsg.Context = string(b)
		}
	}
	if _, err := h.store.InsertChatMessage(ctx, assistantMsg); err != nil {
		h.log.Error().Err(err).Msg("Failed to save assistant message")
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":               true,
		"transaction":           transactionResult,
		"message":               responseMessage,
		"agentType":             resp.Type,
		"suggestions":           resp.Suggestions,
		"requiresClarification": resp.RequiresClarification,
		"clarificationQuestion": resp.ClarificationQuestion,
	})
}

// History handles GET /api/chat/history
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := queryInt(r, "limit", 100)

	messages, err := h.store.RecentChatMessages(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to retrieve chat history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to retrieve chat history")
		return
	}

	if r.URL.Query().Get("type") == "user" {
		filtered := messages[:0]
		for _, m := range messages {
			if m.Role == domain.RoleUser {
				filtered = append(filtered, m)
			}
		}
		messages = filtered
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": messages,
	})
}

// transactionResult is the transaction echo in the chat reply: the row ID
// plus the extracted payload, flattened.
type transactionResult struct {
	ID int64 `json:"id"`
	*agent.ExtractedTransaction
}

func (h *ChatHandler) recordTransaction(ctx context.Context, et *agent.ExtractedTransaction) (*transactionResult, error) {
	t := &domain.Transaction{
		Description: et.Description,
		Amount:      et.Amount,
		Category:    strings.ToLower(et.Category),
		Direction:   domain.Direction(et.Type),
		Date:        et.Date,
	}

	id, err := h.store.InsertTransaction(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("recordTransaction: %w", err)
	}

	// Spending patterns only track expenses; income never changes them.
	if t.Direction == domain.Expense && h.publisher != nil {
		job := &jobs.RecomputePatternJob{Category: t.Category}
		if err := h.publisher.PublishRecompute(ctx, job); err != nil {
			h.log.Warn().Err(err).Str("category", t.Category).Msg("Failed to enqueue pattern recompute")
		} else {
			h.log.Debug().Str("job_id", job.JobID).Str("category", t.Category).Msg("Pattern recompute enqueued")
		}
	}

	return &transactionResult{ID: id, ExtractedTransaction: et}, nil
}

// writeProcessingError records the canned failure reply in chat history and
// returns a generic 500. Internal error detail stays in the logs.
func (h *ChatHandler) writeProcessingError(ctx context.Context, w http.ResponseWriter) {
	if _, err := h.store.InsertChatMessage(ctx, &domain.ChatMessage{
		Role:    domain.RoleAssistant,
		Content: processingErrorMessage,
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to save error message")
	}

	middleware.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error":   "Failed to process message",
		"message": processingErrorMessage,
	})
}
