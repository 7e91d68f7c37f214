package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// amountPattern captures an optional dollar sign followed by digits and
	// an optional two-decimal fraction. The first match wins.
	amountPattern = regexp.MustCompile(`\$?(\d+(?:\.\d{2})?)`)

	// leadingAmountPattern strips an amount from the start of a description.
	leadingAmountPattern = regexp.MustCompile(`^\$?\d+(?:\.\d{2})?\s*`)
)

// incomeKeywords flip the inferred direction from the default expense.
var incomeKeywords = []string{
	"received",
	"earned",
	"got",
	"income",
	"salary",
	"paid me",
	"refund",
}

type categoryRule struct {
	category string
	keywords []string
}

// categoryRules are evaluated in source order and the first match wins, so
// words that could fall under several categories classify stably.
var categoryRules = []categoryRule{
	{"food", []string{"food", "lunch", "dinner", "breakfast", "restaurant"}},
	{"groceries", []string{"groceries", "grocery"}},
	{"gas", []string{"gas", "fuel", "petrol"}},
	{"rent", []string{"rent", "housing"}},
	{"transport", []string{"transport", "bus", "train", "uber", "taxi"}},
	{"entertainment", []string{"entertainment", "movie", "game"}},
	{"utilities", []string{"utilities", "electricity", "water", "internet"}},
	{"shopping", []string{"shopping", "clothes", "clothing"}},
	{"health", []string{"health", "medical", "doctor"}},
	{"salary", []string{"salary", "paycheck"}},
	{"freelance", []string{"freelance", "contract"}},
}

const maxDescriptionLen = 100

// extractTransaction pulls an amount, direction, category, and cleaned
// description out of a message already classified as a transaction report.
// It never calls the model and never touches the datastore; recording the
// transaction is the caller's responsibility.
//
// The date is always "today": the extractor does not interpret phrases like
// "yesterday". Known limitation carried over from the rule-based design.
func extractTransaction(message string, now time.Time) *Response {
	match := amountPattern.FindStringSubmatch(message)
	if match == nil {
		return &Response{
			Type:                  ResponseQuestion,
			Message:               "I couldn't find an amount in your message. Could you please specify how much you spent or received?",
			RequiresClarification: true,
			ClarificationQuestion: "How much was the transaction for?",
		}
	}

	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil || amount <= 0 {
		return &Response{
			Type:                  ResponseQuestion,
			Message:               "I couldn't make sense of the amount in your message. Could you restate it?",
			RequiresClarification: true,
			ClarificationQuestion: "How much was the transaction for?",
		}
	}

	lower := strings.ToLower(message)

	direction := "expense"
	for _, kw := range incomeKeywords {
		if strings.Contains(lower, kw) {
			direction = "income"
			break
		}
	}

	category := inferCategory(lower)

	description := strings.TrimSpace(message)
	// Truncate by runes, not bytes, so multi-byte characters never get split.
	if runes := []rune(description); len(runes) > maxDescriptionLen {
		description = string(runes[:maxDescriptionLen-3]) + "..."
	}
	description = strings.TrimSpace(leadingAmountPattern.ReplaceAllString(description, ""))
	if description == "" {
		label := "Expense"
		if direction == "income" {
			label = "Income"
		}
		description = fmt.Sprintf("%s - $%v", label, amount)
	}

	sign := "-"
	if direction == "income" {
		sign = "+"
	}

	return &Response{
		Type: ResponseTransaction,
		Transaction: &ExtractedTransaction{
			Description: description,
			Amount:      amount,
			Category:    category,
			Type:        direction,
			Date:        now.Format("2006-01-02"),
		},
		Message: fmt.Sprintf("✅ Transaction recorded: %s$%.2f for %s (%s)", sign, amount, description, category),
		Context: map[string]any{
			"type":      "transaction",
			"amount":    amount,
			"category":  category,
			"direction": direction,
		},
	}
}

func inferCategory(lowerMessage string) string {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowerMessage, kw) {
				return rule.category
			}
		}
	}
	return "other"
}
