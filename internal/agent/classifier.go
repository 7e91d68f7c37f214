package agent

import (
	"regexp"
	"strings"
)

// Intent is the classifier's verdict for an incoming message.
type Intent int

const (
	// IntentUnclassified defers the message to the language model.
	IntentUnclassified Intent = iota
	IntentBalance
	IntentHelp
	IntentTransaction
	IntentInsight
)

func (i Intent) String() string {
	switch i {
	case IntentBalance:
		return "balance"
	case IntentHelp:
		return "help"
	case IntentTransaction:
		return "transaction-fallback"
	case IntentInsight:
		return "insight"
	default:
		return "unclassified"
	}
}

// dollarAmountPattern is an additional transaction signal: a dollar sign
// followed by digits anywhere in the message.
var dollarAmountPattern = regexp.MustCompile(`\$\d+`)

type intentRule struct {
	intent   Intent
	keywords []string
	pattern  *regexp.Regexp
}

// intentRules are evaluated top to bottom; the first matching rule wins.
// The order is load-bearing: "What's my balance and should I set a budget?"
// must classify as balance, never insight, because balance is checked first.
var intentRules = []intentRule{
	{
		intent: IntentBalance,
		keywords: []string{
			"balance",
			"how much money",
			"financial overview",
			"how much do i have",
			"what do i have",
		},
	},
	{
		intent: IntentHelp,
		keywords: []string{
			"help",
			"what can you do",
			"capabilities",
			"commands",
		},
	},
	{
		intent: IntentTransaction,
		keywords: []string{
			"spent",
			"paid",
			"bought",
			"received",
			"earned",
			"got",
			"purchase",
			"income",
			"salary",
		},
		pattern: dollarAmountPattern,
	},
	{
		intent: IntentInsight,
		keywords: []string{
			"how am i doing",
			"spending patterns",
			"insights",
			"analysis",
		},
	},
}

// classifyIntent runs ordered substring matching over a case-normalized copy
// of the message. Deterministic and cheap: the high-frequency unambiguous
// messages never reach the model.
func classifyIntent(message string) Intent {
	lower := strings.ToLower(message)

	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
		if rule.pattern != nil && rule.pattern.MatchString(message) {
			return rule.intent
		}
	}
	return IntentUnclassified
}
