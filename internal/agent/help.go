package agent

import "strings"

// helpResponse returns canned capability help. Topic-specific help is
// checked before the general overview so "help with budgets" lands on the
// budgets topic rather than the catch-all.
func helpResponse(message string) *Response {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "transaction", "record", "add"):
		return &Response{
			Type: ResponseHelp,
			Message: `📝 **Recording Transactions**

I can record both income and expenses from natural language:

**Expense examples:**
• "I spent $15 on lunch today"
• "Paid $120 for electricity bill"
• "Bought groceries for $85"

**Income examples:**
• "Received $2000 salary"
• "Freelance payment $800"

I automatically detect the amount, category, type (income vs expense),
and description. The date defaults to today.`,
			Suggestions: []string{
				"Try: 'I spent $12 on lunch'",
				"Try: 'Received $1500 salary today'",
				"Try: 'Paid $80 for phone bill'",
			},
			Context: map[string]any{"type": "help", "category": "transactions"},
		}

	case containsAny(lower, "balance", "money", "financial overview"):
		return &Response{
			Type: ResponseHelp,
			Message: `💰 **Balance & Financial Overview**

Ask things like:
• "What's my current balance?"
• "How much money do I have?"
• "Show my financial overview"

I'll show your current balance (total income minus total expenses),
lifetime totals, this month's income and expenses, monthly net, and
the month's transaction count.`,
			Suggestions: []string{
				"Ask: 'What's my current balance?'",
				"Try: 'How am I doing financially?'",
			},
			Context: map[string]any{"type": "help", "category": "balance"},
		}

	case containsAny(lower, "budget", "spending", "limit"):
		return &Response{
			Type: ResponseHelp,
			Message: `🎯 **Budget Management & Spending Analysis**

I suggest budgets from your spending patterns, track category budgets,
and alert you as you approach limits:

• Warnings above 75% of a budget, alerts above 90%
• Unusual spending detection against your usual monthly pattern
• Category spending breakdowns and frequency analysis

Ask "Should I set a budget?" for personalized recommendations.`,
			Suggestions: []string{
				"Ask: 'Should I set a budget?'",
				"Say: 'What are my spending patterns?'",
			},
			Context: map[string]any{"type": "help", "category": "budgets"},
		}

	case containsAny(lower, "insight", "analysis", "pattern"):
		return &Response{
			Type: ResponseHelp,
			Message: `📈 **Financial Insights & Analysis**

I analyze your transaction history for:
• Most frequent expense categories and average amounts
• Spending spikes compared to your usual pattern
• Monthly financial health summaries and budget performance

Ask "How am I doing this month?" or "What are my spending patterns?"`,
			Suggestions: []string{
				"Ask: 'What are my spending patterns?'",
				"Say: 'Any unusual spending this month?'",
			},
			Context: map[string]any{"type": "help", "category": "insights"},
		}
	}

	return &Response{
		Type: ResponseHelp,
		Message: `🤖 **AI Financial Assistant Capabilities**

**💰 Balance & Overview:** "What's my balance?" for a full financial summary.

**📊 Transactions:** "I spent $25 on groceries" or "Received $2000 salary" -
I extract the amount, category, and type automatically.

**📈 Insights:** "How am I doing this month?" for spending analysis,
anomaly detection, and monthly performance.

**🎯 Budgets:** "Should I set a budget?" for recommendations based on your
spending patterns, plus alerts when you approach limits.

I understand natural language, so feel free to ask in your own words!`,
		Suggestions: []string{
			"Try asking 'What's my balance?' to see your financial overview",
			"Say 'I spent $X on [item]' to record a transaction",
			"Ask 'How am I doing this month?' for insights",
			"Request 'Budget suggestions' for personalized recommendations",
		},
		Context: map[string]any{"type": "help", "category": "general"},
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
