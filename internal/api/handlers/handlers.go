package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/api/middleware"
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/jobs"
	"github.com/dvloznov/finance-agent/internal/store"
)

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	store     store.Store
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(st store.Store, publisher jobs.Publisher, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store:     st,
		publisher: publisher,
		log:       log,
	}
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := queryInt(r, "limit", 50)

	transactions, err := h.store.RecentTransactions(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transactions")
		return
	}

	totalIncome, err := h.store.TotalByDirection(ctx, domain.Income)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to total income")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transactions")
		return
	}
	totalExpense, err := h.store.TotalByDirection(ctx, domain.Expense)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to total expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transactions")
		return
	}

	if transactions == nil {
		transactions = []domain.Transaction{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": transactions,
		"summary": map[string]interface{}{
			"totalIncome":  totalIncome,
			"totalExpense": totalExpense,
			"balance":      totalIncome - totalExpense,
		},
	})
}

// Create handles POST /api/transactions
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var t domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t.Category = strings.ToLower(t.Category)
	if err := t.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.store.InsertTransaction(ctx, &t)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to insert transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}
	t.ID = id

	if t.Direction == domain.Expense && h.publisher != nil {
		job := &jobs.RecomputePatternJob{Category: t.Category}
		if err := h.publisher.PublishRecompute(ctx, job); err != nil {
			h.log.Warn().Err(err).Str("category", t.Category).Msg("Failed to enqueue pattern recompute")
		}
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"transaction": t,
	})
}

// ListFiltered handles GET /api/transactions/filtered
func (h *TransactionsHandler) ListFiltered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	startDate := query.Get("startDate")
	endDate := query.Get("endDate")
	category := query.Get("category")
	direction := query.Get("type")
	limit := queryInt(r, "limit", 100)

	var (
		transactions []domain.Transaction
		err          error
	)

	switch {
	case startDate != "" && endDate != "":
		transactions, err = h.store.TransactionsByDateRange(ctx, startDate, endDate)
	case category != "":
		transactions, err = h.store.TransactionsByCategory(ctx, category)
	default:
		transactions, err = h.store.RecentTransactions(ctx, limit)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get filtered transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get filtered transactions")
		return
	}

	filtered := transactions[:0]
	minAmount, hasMin := queryFloat(r, "minAmount")
	maxAmount, hasMax := queryFloat(r, "maxAmount")
	for _, t := range transactions {
		if direction != "" && string(t.Direction) != direction {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(t.Category), strings.ToLower(category)) {
			continue
		}
		if hasMin && t.Amount < minAmount {
			continue
		}
		if hasMax && t.Amount > maxAmount {
			continue
		}
		filtered = append(filtered, t)
	}

	var totalIncome, totalExpense float64
	for _, t := range filtered {
		switch t.Direction {
		case domain.Income:
			totalIncome += t.Amount
		case domain.Expense:
			totalExpense += t.Amount
		}
	}

	count := len(filtered)
	if count > limit {
		filtered = filtered[:limit]
	}
	if filtered == nil {
		filtered = []domain.Transaction{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": filtered,
		"summary": map[string]interface{}{
			"totalIncome":  totalIncome,
			"totalExpense": totalExpense,
			"balance":      totalIncome - totalExpense,
			"count":        count,
		},
		"filters": map[string]interface{}{
			"startDate": startDate,
			"endDate":   endDate,
			"category":  category,
			"type":      direction,
		},
	})
}

// InsightsHandler handles insight and overview endpoints backed by the agent.
type InsightsHandler struct {
	agent FinanceAgent
	log   zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(ag FinanceAgent, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		agent: ag,
		log:   log,
	}
}

// Insights handles GET /api/insights
func (h *InsightsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	insights, err := h.agent.GenerateProactiveInsights(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to generate insights")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate insights")
		return
	}

	suggestions, err := h.agent.SuggestBudgets(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to suggest budgets")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate insights")
		return
	}

	if insights == nil {
		insights = []string{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"insights":          insights,
		"budgetSuggestions": suggestions,
	})
}

// FinancialOverview handles GET /api/financial-overview
func (h *InsightsHandler) FinancialOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	overview, err := h.agent.GetFinancialOverview(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get financial overview")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get financial overview")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, overview)
}

// BudgetsHandler handles budget endpoints.
type BudgetsHandler struct {
	store store.Store
	log   zerolog.Logger
}

// NewBudgetsHandler creates a new budgets handler.
func NewBudgetsHandler(st store.Store, log zerolog.Logger) *BudgetsHandler {
	return &BudgetsHandler{
		store: st,
		log:   log,
	}
}

// budgetStatus classifies current spending against the budget amount.
func budgetStatus(percentage float64) string {
	switch {
	case percentage > 90:
		return "over_budget"
	case percentage > 75:
		return "warning"
	default:
		return "on_track"
	}
}

// List handles GET /api/budgets
func (h *BudgetsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	budgets, err := h.store.ActiveBudgets(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get budgets")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get budgets")
		return
	}

	withSpending := make([]map[string]interface{}, 0, len(budgets))
	for _, b := range budgets {
		spent, err := h.store.CurrentMonthSpending(ctx, b.Category)
		if err != nil {
			h.log.Error().Err(err).Str("category", b.Category).Msg("Failed to get current spending")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to get budgets")
			return
		}

		percentage := 0.0
		if b.Amount > 0 {
			percentage = spent / b.Amount * 100
		}

		withSpending = append(withSpending, map[string]interface{}{
			"id":              b.ID,
			"category":        b.Category,
			"amount":          b.Amount,
			"period":          b.Period,
			"is_active":       b.Active,
			"created_at":      b.CreatedAt,
			"currentSpending": spent,
			"percentage":      math.Round(percentage*100) / 100,
			"remaining":       b.Amount - spent,
			"status":          budgetStatus(percentage),
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"budgets": withSpending,
	})
}

// Set handles POST /api/budgets
func (h *BudgetsHandler) Set(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
		Period   string  `json:"period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Category == "" || req.Amount <= 0 || req.Period == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Category, amount, and period are required")
		return
	}
	switch req.Period {
	case "monthly", "weekly", "yearly":
	default:
		middleware.WriteError(w, http.StatusBadRequest, "Period must be monthly, weekly, or yearly")
		return
	}

	budget, err := h.store.SetBudget(ctx, strings.ToLower(req.Category), req.Amount, req.Period)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to set budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to set budget")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"budget":  budget,
	})
}

// AnalyticsHandler handles GET /api/analytics
type AnalyticsHandler struct {
	store store.Store
	log   zerolog.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(st store.Store, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		store: st,
		log:   log,
	}
}

// Analytics handles GET /api/analytics
func (h *AnalyticsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.store.CategorySummary(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get analytics data")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get analytics data")
		return
	}

	var totalSpent float64
	var totalTransactions int
	for _, c := range categories {
		totalSpent += c.Total
		totalTransactions += c.Count
	}

	if categories == nil {
		categories = []domain.CategorySummary{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"summary": map[string]interface{}{
			"totalCategories":   len(categories),
			"totalSpent":        totalSpent,
			"totalTransactions": totalTransactions,
		},
	})
}

// AdminHandler handles maintenance endpoints.
type AdminHandler struct {
	store store.Store
	log   zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(st store.Store, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		store: st,
		log:   log,
	}
}

// ClearDatabase handles POST /api/database/clear
func (h *AdminHandler) ClearDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.log.Warn().Msg("Database clear request received")

	if err := h.store.ClearAll(ctx); err != nil {
		h.log.Error().Err(err).Msg("Failed to clear database")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to clear database")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Database cleared successfully",
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(st jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: st,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Category: query.Get("category"),
		Status:   jobs.JobStatus(query.Get("status")),
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

func queryInt(r *http.Request, key string, def int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func queryFloat(r *http.Request, key string) (float64, bool) {
	if s := r.URL.Query().Get(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
