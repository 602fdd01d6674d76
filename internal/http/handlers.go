package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/drufino/personal-finance-app/internal/core"
	"github.com/drufino/personal-finance-app/internal/service"
)

// maxBodyBytes caps request bodies; statement uploads are the largest payload.
const maxBodyBytes = 4 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.ErrorContext(r.Context(), "Parse JSON body error", "error", err, "method", r.Method, "url", r.URL.Path)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type accountView struct {
	Name           string           `json:"name"`
	Kind           core.AccountKind `json:"account_type"`
	InitialBalance float64          `json:"initial_balance"`
	Balance        float64          `json:"balance"`
	ExcludedCount  int              `json:"excluded_count"`
}

func (s *Server) accountView(name string) (accountView, bool) {
	info, ok := s.ledger.FindAccount(name)
	if !ok {
		return accountView{}, false
	}
	return accountView{
		Name:           info.Name,
		Kind:           info.Kind,
		InitialBalance: info.InitialBalance,
		Balance:        s.ledger.CurrentBalance(name),
		ExcludedCount:  s.ledger.ExcludedCount(name),
	}, true
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		infos := s.ledger.Accounts()
		views := make([]accountView, 0, len(infos))
		for _, info := range infos {
			if v, ok := s.accountView(info.Name); ok {
				views = append(views, v)
			}
		}
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if !readJSON(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "account name is required")
			return
		}
		s.ledger.AddAccount(r.Context(), req.Name)
		v, _ := s.accountView(req.Name)
		writeJSON(w, http.StatusCreated, v)

	case http.MethodDelete:
		name := r.URL.Query().Get("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, "account name is required")
			return
		}
		if _, ok := s.ledger.FindAccount(name); !ok {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.ledger.RemoveAccount(r.Context(), name)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) handleAccountKind(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req struct {
		Name string           `json:"name"`
		Kind core.AccountKind `json:"account_type"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Kind != core.Cash && req.Kind != core.Credit {
		writeError(w, http.StatusBadRequest, "account_type must be Cash or Credit")
		return
	}
	if _, ok := s.ledger.FindAccount(req.Name); !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	s.ledger.SetAccountKind(r.Context(), req.Name, req.Kind)
	v, _ := s.accountView(req.Name)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req struct {
		Name           string  `json:"name"`
		InitialBalance float64 `json:"initial_balance"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if _, ok := s.ledger.FindAccount(req.Name); !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	s.ledger.SetInitialBalance(r.Context(), req.Name, req.InitialBalance)
	v, _ := s.accountView(req.Name)
	writeJSON(w, http.StatusOK, v)
}

type uploadView struct {
	Index      int              `json:"index"`
	UploadedAt time.Time        `json:"uploaded_at"`
	Format     core.DateFormat  `json:"date_format"`
	Records    []core.RawRecord `json:"records"`
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		account := r.URL.Query().Get("account")
		if _, ok := s.ledger.FindAccount(account); !ok {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		batches := s.ledger.Uploads(account)
		views := make([]uploadView, 0, len(batches))
		for i, b := range batches {
			views = append(views, uploadView{Index: i, UploadedAt: b.UploadedAt, Format: b.Format, Records: b.Records})
		}
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var req struct {
			Account string           `json:"account"`
			Format  core.DateFormat  `json:"date_format"`
			Records []core.RawRecord `json:"records"`
		}
		if !readJSON(w, r, &req) {
			return
		}
		if _, ok := s.ledger.FindAccount(req.Account); !ok {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		if !req.Format.Valid() {
			writeError(w, http.StatusBadRequest, "unknown date format")
			return
		}
		if len(req.Records) == 0 {
			writeError(w, http.StatusBadRequest, "records are required")
			return
		}
		duplicates := s.ledger.AppendUpload(r.Context(), req.Account, req.Format, req.Records)
		writeJSON(w, http.StatusCreated, map[string]int{"records": len(req.Records), "duplicates": duplicates})

	case http.MethodDelete:
		account := r.URL.Query().Get("account")
		if _, ok := s.ledger.FindAccount(account); !ok {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil || index < 0 || index >= len(s.ledger.Uploads(account)) {
			writeError(w, http.StatusBadRequest, "invalid upload index")
			return
		}
		s.ledger.RemoveUpload(r.Context(), account, index)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) handleUploadFormat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req struct {
		Account string          `json:"account"`
		Index   int             `json:"index"`
		Format  core.DateFormat `json:"date_format"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if _, ok := s.ledger.FindAccount(req.Account); !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if !req.Format.Valid() {
		writeError(w, http.StatusBadRequest, "unknown date format")
		return
	}
	if req.Index < 0 || req.Index >= len(s.ledger.Uploads(req.Account)) {
		writeError(w, http.StatusBadRequest, "invalid upload index")
		return
	}
	s.ledger.SetUploadFormat(r.Context(), req.Account, req.Index, req.Format)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if account := r.URL.Query().Get("account"); account != "" {
		if _, ok := s.ledger.FindAccount(account); !ok {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"transactions": s.ledger.TransactionsFor(account),
			"excluded":     s.ledger.ExcludedCount(account),
		})
		return
	}
	cashOnly := r.URL.Query().Get("cash_only") == "true"
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": s.ledger.AllTransactions(cashOnly),
	})
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Transfers())
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if account := r.URL.Query().Get("account"); account != "" {
		if _, ok := s.ledger.FindAccount(account); !ok {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeJSON(w, http.StatusOK, s.ledger.CategoriesFor(account))
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.AllCategories())
}

func (s *Server) handleIncomeCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	inferred, candidates := s.ledger.IncomeCategories()
	writeJSON(w, http.StatusOK, map[string][]string{
		"inferred":   inferred,
		"candidates": candidates,
	})
}

type ruleView struct {
	Pattern  string `json:"pattern"`
	Category string `json:"category"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		account := r.URL.Query().Get("account")
		if _, ok := s.ledger.FindAccount(account); !ok {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		rules := s.ledger.Rules(account)
		views := make([]ruleView, 0, len(rules))
		for _, rule := range rules {
			views = append(views, ruleView{Pattern: rule.Pattern, Category: rule.Category})
		}
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var req struct {
			Account  string `json:"account"`
			Pattern  string `json:"pattern"`
			Category string `json:"category"`
		}
		if !readJSON(w, r, &req) {
			return
		}
		if req.Pattern == "" || req.Category == "" {
			writeError(w, http.StatusBadRequest, "pattern and category are required")
			return
		}
		if _, ok := s.ledger.FindAccount(req.Account); !ok {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.ledger.SetRule(r.Context(), req.Account, req.Pattern, req.Category)
		writeJSON(w, http.StatusCreated, ruleView{Pattern: req.Pattern, Category: req.Category})

	case http.MethodDelete:
		account := r.URL.Query().Get("account")
		pattern := r.URL.Query().Get("pattern")
		if _, ok := s.ledger.FindAccount(account); !ok {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		if pattern == "" {
			writeError(w, http.StatusBadRequest, "pattern is required")
			return
		}
		s.ledger.RemoveRule(r.Context(), account, pattern)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req struct {
		Account  string    `json:"account"`
		Date     time.Time `json:"date"`
		Payee    string    `json:"who"`
		Amount   float64   `json:"amount"`
		Category string    `json:"category"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if _, ok := s.ledger.FindAccount(req.Account); !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	// The store compares the transaction's current category against the
	// requested one, so the request must carry what the feed shows now.
	// An empty requested category removes the override.
	txn := core.Transaction{Date: req.Date, Payee: req.Payee, Amount: req.Amount}
	for _, existing := range s.ledger.TransactionsFor(req.Account) {
		if existing.Date.Equal(txn.Date) && existing.Payee == txn.Payee && existing.Amount == txn.Amount {
			txn.Category = existing.Category
			break
		}
	}
	s.ledger.Categorize(r.Context(), req.Account, txn, req.Category)
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": s.ledger.TransactionsFor(req.Account),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.ledger.EffectiveSummaryView())

	case http.MethodPost:
		var patch service.SummaryPatch
		if !readJSON(w, r, &patch) {
			return
		}
		s.ledger.UpdateSummaryView(r.Context(), patch)
		writeJSON(w, http.StatusOK, s.ledger.EffectiveSummaryView())

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}
