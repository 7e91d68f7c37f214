package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Generator is the narrow interface over the text-generation backend. The
// model's output carries no structural guarantee; everything downstream of
// Generate is defensive.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// modelCallTimeout bounds a single Generate call. Overridable in tests.
var modelCallTimeout = 30 * time.Second

// GeminiGenerator calls Gemini through the genai client.
type GeminiGenerator struct {
	model string
}

// NewGeminiGenerator creates a generator for the given model name, falling
// back to DefaultModelName when empty. The API key is read from the
// environment by the genai client (GEMINI_API_KEY).
func NewGeminiGenerator(model string) *GeminiGenerator {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiGenerator{model: model}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("generate: create genai client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("generate: empty response from model")
	}
	return rawText, nil
}

// respondWithModel handles messages the rule-based classifier could not.
// It builds a context-grounded prompt, invokes the model, and parses and
// validates the JSON it returns. Every failure in that pipeline resolves to
// the fixed rephrase fallback; no error ever reaches the caller from here.
func (a *Agent) respondWithModel(ctx context.Context, message string, ac *Context) *Response {
	prompt := buildPrompt(message, ac)

	// A wedged model backend must degrade to the fallback, not hang the
	// request until the caller's connection drops.
	mctx, cancel := context.WithTimeout(ctx, modelCallTimeout)
	defer cancel()

	raw, err := a.gen.Generate(mctx, prompt)
	if err != nil {
		a.log.Warn().Err(err).Msg("Model call failed, using fallback response")
		return fallbackResponse()
	}

	jsonStr, err := extractJSONObject(raw)
	if err != nil {
		a.log.Warn().Err(err).Msg("No JSON object in model output, using fallback response")
		return fallbackResponse()
	}

	var resp Response
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		a.log.Warn().Err(err).Msg("Unparsable model output, using fallback response")
		return fallbackResponse()
	}
	if err := resp.Validate(); err != nil {
		a.log.Warn().Err(err).Msg("Model output failed schema validation, using fallback response")
		return fallbackResponse()
	}

	// The model can persist observations by putting string values in the
	// response context; failures here only lose a preference, never the
	// response itself.
	for key, value := range resp.Context {
		if s, ok := value.(string); ok {
			if err := a.store.SetPreference(ctx, key, s); err != nil {
				a.log.Warn().Err(err).Str("key", key).Msg("Failed to persist preference from model response")
			}
		}
	}

	return &resp
}

func fallbackResponse() *Response {
	return &Response{
		Type:    ResponseQuestion,
		Message: "I'm not sure I understand. Could you please rephrase your question? You can ask about your balance, record a transaction, or ask for help.",
		Suggestions: []string{
			"Try: 'What's my balance?'",
			"Try: 'I spent $X on [item]'",
			"Try: 'What can you do?'",
		},
		RequiresClarification: true,
		ClarificationQuestion: "What would you like to know about your finances?",
	}
}

// buildPrompt embeds a condensed context summary (counts and dollar figures,
// not raw records) plus the user's message and strict output instructions.
func buildPrompt(message string, ac *Context) string {
	var b strings.Builder

	b.WriteString("You are an intelligent financial assistant agent. You can record transactions\n")
	b.WriteString("from natural language, report balances, monitor budgets and spending patterns,\n")
	b.WriteString("and ask clarifying questions when needed.\n\n")

	b.WriteString("Context:\n")
	fmt.Fprintf(&b, "Recent Transactions: %d transactions\n", len(ac.RecentTransactions))
	fmt.Fprintf(&b, "Current Balance: $%.2f\n", ac.Summary.CurrentBalance)
	fmt.Fprintf(&b, "Monthly Income: $%.2f\n", ac.Summary.MonthlyIncome)
	fmt.Fprintf(&b, "Monthly Expenses: $%.2f\n", ac.Summary.MonthlyExpenses)
	fmt.Fprintf(&b, "Active Budgets: %d\n", len(ac.Budgets))
	fmt.Fprintf(&b, "Spending Patterns: %d categories tracked\n", len(ac.SpendingPatterns))
	fmt.Fprintf(&b, "Unusual Spending: %d anomalies detected\n\n", len(ac.UnusualSpending))

	fmt.Fprintf(&b, "User message: %q\n\n", message)

	b.WriteString("IMPORTANT RULES:\n")
	b.WriteString("1. If the user asks about balance, money, or financial overview, respond with type \"balance\"\n")
	b.WriteString("2. If the user is clearly recording a transaction (spent, paid, received, bought), respond with type \"transaction\"\n")
	b.WriteString("3. If the user asks for help or capabilities, respond with type \"help\"\n")
	b.WriteString("4. If the user asks about spending patterns or insights, respond with type \"insight\"\n")
	b.WriteString("5. Only extract a transaction when the user clearly states they made a purchase or received money\n\n")

	b.WriteString("RESPONSE FORMAT - Respond with ONLY a valid JSON object:\n")
	b.WriteString(`{
  "type": "transaction" | "question" | "insight" | "budget_alert" | "suggestion" | "balance" | "help",
  "transaction": {
    "description": "string",
    "amount": number,
    "category": "string",
    "type": "income" | "expense",
    "date": "YYYY-MM-DD"
  } (only if type is "transaction"),
  "message": "Your response message to the user",
  "suggestions": ["array of helpful suggestions"] (optional),
  "requires_clarification": boolean,
  "clarification_question": "string" (if requires_clarification is true),
  "context": {} (optional metadata)
}` + "\n\n")

	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n\n")

	b.WriteString("Valid categories: food, transport, entertainment, utilities, shopping, health, ")
	b.WriteString("salary, freelance, rent, insurance, gas, clothing, education, gifts, medical, ")
	b.WriteString("bills, groceries, dining, travel, hobbies, other\n")

	return b.String()
}

// extractJSONObject returns the first balanced {...} substring of raw,
// tolerating markdown fences and leading or trailing commentary the model
// may add despite instructions.
func extractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	// Drop ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in model output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in model output")
}
