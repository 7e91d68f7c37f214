package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/agent"
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/logger"
	"github.com/dvloznov/finance-agent/internal/store"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		runChat(log)
	case "insights":
		runInsights(log)
	case "overview":
		runOverview(log)
	case "recompute":
		runRecompute(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Agent CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  chat       Interactive chat with the finance agent")
	fmt.Println("  insights   Print proactive insights and budget suggestions")
	fmt.Println("  overview   Print the financial overview")
	fmt.Println("  recompute  Rebuild the spending pattern for a category")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openAgent(fs *flag.FlagSet, log zerolog.Logger, args []string) (*store.SQLite, *agent.Agent) {
	dbPath := fs.String("db", envOr("FINANCE_DB", "finance.db"), "SQLite database path")
	model := fs.String("model", envOr("GEMINI_MODEL", agent.DefaultModelName), "Gemini model name")
	fs.Parse(args)

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbPath).Msg("Failed to open database")
	}

	return db, agent.New(db, agent.NewGeminiGenerator(*model), log)
}

func runChat(log zerolog.Logger) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	db, ag := openAgent(fs, log, os.Args[2:])
	defer db.Close()

	ctx := logger.WithContext(context.Background(), log)

	fmt.Println("Finance agent ready. Type a message, or 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "quit" || message == "exit" {
			break
		}

		if _, err := db.InsertChatMessage(ctx, &domain.ChatMessage{
			Role:    domain.RoleUser,
			Content: message,
		}); err != nil {
			log.Error().Err(err).Msg("Failed to save message")
		}

		msgCtx, cancel := context.WithTimeout(ctx, time.Minute)
		resp, err := ag.ProcessMessage(msgCtx, message)
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("Failed to process message")
			continue
		}

		reply := resp.Message
		if resp.Type == agent.ResponseQuestion && resp.RequiresClarification && resp.ClarificationQuestion != "" {
			reply = resp.ClarificationQuestion
		}

		if resp.Type == agent.ResponseTransaction && resp.Transaction != nil {
			t := &domain.Transaction{
				Description: resp.Transaction.Description,
				Amount:      resp.Transaction.Amount,
				Category:    strings.ToLower(resp.Transaction.Category),
				Direction:   domain.Direction(resp.Transaction.Type),
				Date:        resp.Transaction.Date,
			}
			if _, err := db.InsertTransaction(ctx, t); err != nil {
				log.Error().Err(err).Msg("Failed to record transaction")
			} else if t.Direction == domain.Expense {
				// The CLI has no worker pool; recompute inline.
				if err := db.RecomputeSpendingPattern(ctx, t.Category); err != nil {
					log.Warn().Err(err).Str("category", t.Category).Msg("Pattern recompute failed")
				}
			}
		}

		fmt.Println("\n" + reply)

		if _, err := db.InsertChatMessage(ctx, &domain.ChatMessage{
			Role:    domain.RoleAssistant,
			Content: reply,
		}); err != nil {
			log.Error().Err(err).Msg("Failed to save message")
		}
		fmt.Println()
	}
}

func runInsights(log zerolog.Logger) {
	fs := flag.NewFlagSet("insights", flag.ExitOnError)
	db, ag := openAgent(fs, log, os.Args[2:])
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	insights, err := ag.GenerateProactiveInsights(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate insights")
	}

	fmt.Printf("\n=== Insights (%d) ===\n", len(insights))
	for _, insight := range insights {
		fmt.Println("\n" + insight)
	}

	suggestions, err := ag.SuggestBudgets(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to suggest budgets")
	}

	fmt.Printf("\n=== Budget suggestions (%d) ===\n", len(suggestions))
	for _, s := range suggestions {
		fmt.Printf("\n%s: $%.0f/month\n  %s\n", s.Category, s.Amount, s.Reasoning)
	}
	fmt.Println()
}

func runOverview(log zerolog.Logger) {
	fs := flag.NewFlagSet("overview", flag.ExitOnError)
	db, ag := openAgent(fs, log, os.Args[2:])
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	overview, err := ag.GetFinancialOverview(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get financial overview")
	}

	fmt.Println("\n=== Financial Overview ===")
	fmt.Printf("Balance:          $%.2f\n", overview.CurrentBalance)
	fmt.Printf("Total income:     $%.2f\n", overview.TotalIncome)
	fmt.Printf("Total expenses:   $%.2f\n", overview.TotalExpenses)
	fmt.Printf("Monthly income:   $%.2f\n", overview.MonthlyIncome)
	fmt.Printf("Monthly expenses: $%.2f\n", overview.MonthlyExpenses)
	fmt.Printf("Monthly net:      $%.2f\n", overview.MonthlyBalance)
	fmt.Printf("Transactions:     %d (this month)\n", overview.TransactionCount)
	fmt.Println()
}

func runRecompute(log zerolog.Logger) {
	fs := flag.NewFlagSet("recompute", flag.ExitOnError)
	category := fs.String("category", "", "Category to recompute ('all' for every category)")
	dbPath := fs.String("db", envOr("FINANCE_DB", "finance.db"), "SQLite database path")
	fs.Parse(os.Args[2:])

	if *category == "" {
		log.Fatal().Msg("Error: --category is required")
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbPath).Msg("Failed to open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	categories := []string{*category}
	if *category == "all" {
		summaries, err := db.CategorySummary(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list categories")
		}
		categories = categories[:0]
		for _, s := range summaries {
			categories = append(categories, s.Category)
		}
	}

	for _, c := range categories {
		if err := db.RecomputeSpendingPattern(ctx, c); err != nil {
			log.Fatal().Err(err).Str("category", c).Msg("Recompute failed")
		}
		fmt.Printf("Recomputed spending pattern for %s\n", c)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
