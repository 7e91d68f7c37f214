package agent

import (
	"fmt"
	"time"
)

// ResponseType discriminates the tagged union returned by the agent.
type ResponseType string

const (
	ResponseTransaction ResponseType = "transaction"
	ResponseQuestion    ResponseType = "question"
	ResponseInsight     ResponseType = "insight"
	ResponseBudgetAlert ResponseType = "budget_alert"
	ResponseSuggestion  ResponseType = "suggestion"
	ResponseBalance     ResponseType = "balance"
	ResponseHelp        ResponseType = "help"
)

var validResponseTypes = map[ResponseType]bool{
	ResponseTransaction: true,
	ResponseQuestion:    true,
	ResponseInsight:     true,
	ResponseBudgetAlert: true,
	ResponseSuggestion:  true,
	ResponseBalance:     true,
	ResponseHelp:        true,
}

// ExtractedTransaction is the transaction payload carried by a
// transaction-type response. The caller is responsible for persisting it.
type ExtractedTransaction struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Type        string  `json:"type"` // income | expense
	Date        string  `json:"date"` // YYYY-MM-DD
}

// Response is the agent's output contract: a type discriminant, a
// human-readable message, and type-dependent optional fields.
type Response struct {
	Type                  ResponseType          `json:"type"`
	Transaction           *ExtractedTransaction `json:"transaction,omitempty"`
	Message               string                `json:"message"`
	Suggestions           []string              `json:"suggestions,omitempty"`
	RequiresClarification bool                  `json:"requires_clarification"`
	ClarificationQuestion string                `json:"clarification_question,omitempty"`
	Context               map[string]any        `json:"context,omitempty"`
}

// Validate enforces the response schema. It is run on every response parsed
// from model output; any violation sends the responder to its fixed fallback.
func (r *Response) Validate() error {
	if !validResponseTypes[r.Type] {
		return fmt.Errorf("response: unknown type %q", r.Type)
	}
	if r.Message == "" {
		return fmt.Errorf("response: message is required")
	}
	if r.Transaction != nil && r.Type != ResponseTransaction {
		return fmt.Errorf("response: transaction payload on type %q", r.Type)
	}
	if r.Transaction != nil {
		if err := r.Transaction.validate(); err != nil {
			return fmt.Errorf("response: %w", err)
		}
	}
	if r.RequiresClarification && r.ClarificationQuestion == "" {
		return fmt.Errorf("response: clarification required but no question given")
	}
	return nil
}

func (t *ExtractedTransaction) validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("transaction: amount must be positive, got %v", t.Amount)
	}
	if t.Type != "income" && t.Type != "expense" {
		return fmt.Errorf("transaction: invalid type %q", t.Type)
	}
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return fmt.Errorf("transaction: invalid date %q", t.Date)
	}
	if t.Description == "" {
		return fmt.Errorf("transaction: description is required")
	}
	return nil
}
