package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drufino/personal-finance-app/internal/core"
	"github.com/drufino/personal-finance-app/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc := service.NewLedgerService(nil, nil, nil)
	srv := NewServer(":0", svc)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestAccountLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodPost, "/accounts", `{"name":"Current"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(srv, http.MethodPost, "/accounts/balance", `{"name":"Current","initial_balance":100}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(srv, http.MethodPost, "/accounts/kind", `{"name":"Current","account_type":"Credit"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(srv, http.MethodGet, "/accounts", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var accounts []accountView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "Current", accounts[0].Name)
	assert.Equal(t, core.Credit, accounts[0].Kind)
	assert.Equal(t, 100.0, accounts[0].Balance)

	rr = do(srv, http.MethodDelete, "/accounts?name=Current", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(srv, http.MethodDelete, "/accounts?name=Current", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAccountValidation(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodPost, "/accounts", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(srv, http.MethodPost, "/accounts", `{bad json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(srv, http.MethodPost, "/accounts/kind", `{"name":"Missing","account_type":"Credit"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(srv, http.MethodPost, "/accounts/kind", `{"name":"Missing","account_type":"Savings"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(srv, http.MethodPut, "/accounts", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Contains(t, rr.Header().Get("Allow"), http.MethodGet)
}

func TestUploadAndTransactionFlow(t *testing.T) {
	srv := newTestServer(t)
	do(srv, http.MethodPost, "/accounts", `{"name":"Current"}`)

	body := `{"account":"Current","date_format":"DD/MM/YYYY","records":[
		{"date":"02/03/2024","amount":-20,"who":"TESCO  STORES","address":[""]},
		{"date":"01/03/2024","amount":-5,"who":"COSTA","address":[""]}]}`
	rr := do(srv, http.MethodPost, "/uploads", body)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, 2, created["records"])
	assert.Equal(t, 0, created["duplicates"])

	// Same batch again: every record is now a duplicate.
	rr = do(srv, http.MethodPost, "/uploads", body)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, 2, created["duplicates"])

	rr = do(srv, http.MethodGet, "/transactions?account=Current", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var feed struct {
		Transactions []core.Transaction `json:"transactions"`
		Excluded     int                `json:"excluded"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &feed))
	require.Len(t, feed.Transactions, 4)
	assert.Equal(t, "TESCO STORES", feed.Transactions[0].Payee)
	assert.Equal(t, 0, feed.Excluded)

	rr = do(srv, http.MethodGet, "/uploads?account=Current", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var uploads []uploadView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &uploads))
	require.Len(t, uploads, 2)
	assert.Equal(t, "TESCO  STORES", uploads[0].Records[0].Payee)

	rr = do(srv, http.MethodDelete, "/uploads?account=Current&index=1", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(srv, http.MethodDelete, "/uploads?account=Current&index=5", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadValidation(t *testing.T) {
	srv := newTestServer(t)
	do(srv, http.MethodPost, "/accounts", `{"name":"Current"}`)

	rr := do(srv, http.MethodPost, "/uploads", `{"account":"Missing","date_format":"DD/MM/YYYY","records":[{"date":"01/03/2024","amount":-5,"who":"X","address":[""]}]}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(srv, http.MethodPost, "/uploads", `{"account":"Current","date_format":"YYYY-MM-DD","records":[{"date":"01/03/2024","amount":-5,"who":"X","address":[""]}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(srv, http.MethodPost, "/uploads", `{"account":"Current","date_format":"DD/MM/YYYY","records":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadFormatCorrection(t *testing.T) {
	srv := newTestServer(t)
	do(srv, http.MethodPost, "/accounts", `{"name":"Current"}`)
	do(srv, http.MethodPost, "/uploads", `{"account":"Current","date_format":"Unknown","records":[{"date":"01/03/2024","amount":-5,"who":"COSTA","address":[""]}]}`)

	// Unknown format keeps the record out of the feed.
	rr := do(srv, http.MethodGet, "/transactions?account=Current", "")
	var feed struct {
		Transactions []core.Transaction `json:"transactions"`
		Excluded     int                `json:"excluded"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &feed))
	assert.Empty(t, feed.Transactions)
	assert.Equal(t, 1, feed.Excluded)

	rr = do(srv, http.MethodPost, "/uploads/format", `{"account":"Current","index":0,"date_format":"DD/MM/YYYY"}`)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(srv, http.MethodGet, "/transactions?account=Current", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &feed))
	assert.Len(t, feed.Transactions, 1)
	assert.Equal(t, 0, feed.Excluded)
}

func TestRulesAndCategorize(t *testing.T) {
	srv := newTestServer(t)
	do(srv, http.MethodPost, "/accounts", `{"name":"Current"}`)
	do(srv, http.MethodPost, "/uploads", `{"account":"Current","date_format":"DD/MM/YYYY","records":[
		{"date":"01/03/2024","amount":-20,"who":"TESCO STORES","address":[""]},
		{"date":"02/03/2024","amount":-5,"who":"COSTA","address":[""]}]}`)

	rr := do(srv, http.MethodPost, "/rules", `{"account":"Current","pattern":"TESCO","category":"Groceries"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(srv, http.MethodGet, "/rules?account=Current", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var rules []ruleView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "Groceries", rules[0].Category)

	// Override the COSTA transaction directly.
	rr = do(srv, http.MethodGet, "/transactions?account=Current", "")
	var feed struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &feed))
	var costa core.Transaction
	for _, txn := range feed.Transactions {
		if txn.Payee == "COSTA" {
			costa = txn
		}
	}
	require.NotZero(t, costa.Date)

	payload, err := json.Marshal(map[string]any{
		"account":  "Current",
		"date":     costa.Date,
		"who":      costa.Payee,
		"amount":   costa.Amount,
		"category": "Eating Out",
	})
	require.NoError(t, err)
	rr = do(srv, http.MethodPost, "/categorize", string(payload))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(srv, http.MethodGet, "/categories", "")
	var categories []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &categories))
	assert.Equal(t, []string{"Eating Out", "Groceries"}, categories)

	rr = do(srv, http.MethodDelete, "/rules?account=Current&pattern=TESCO", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(srv, http.MethodGet, "/rules?account=Current", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rules))
	assert.Empty(t, rules)
}

func accountFeed(t *testing.T, srv *Server, account string) []core.Transaction {
	t.Helper()
	rr := do(srv, http.MethodGet, "/transactions?account="+account, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var feed struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &feed))
	return feed.Transactions
}

func categorize(t *testing.T, srv *Server, account string, txn core.Transaction, category string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"account":  account,
		"date":     txn.Date,
		"who":      txn.Payee,
		"amount":   txn.Amount,
		"category": category,
	})
	require.NoError(t, err)
	rr := do(srv, http.MethodPost, "/categorize", string(payload))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCategorizeEmptyCategoryRemovesOverride(t *testing.T) {
	srv := newTestServer(t)
	do(srv, http.MethodPost, "/accounts", `{"name":"Current"}`)
	do(srv, http.MethodPost, "/uploads", `{"account":"Current","date_format":"DD/MM/YYYY","records":[{"date":"01/03/2024","amount":-5,"who":"COSTA","address":[""]}]}`)

	feed := accountFeed(t, srv, "Current")
	require.Len(t, feed, 1)
	categorize(t, srv, "Current", feed[0], "Dining")

	feed = accountFeed(t, srv, "Current")
	require.Equal(t, "Dining", feed[0].Category)

	// Empty category removes the override through the API.
	categorize(t, srv, "Current", feed[0], "")

	feed = accountFeed(t, srv, "Current")
	assert.Equal(t, "", feed[0].Category)
}

func TestCategorizeSameCategoryAddsNoOverride(t *testing.T) {
	srv := newTestServer(t)
	do(srv, http.MethodPost, "/accounts", `{"name":"Current"}`)
	do(srv, http.MethodPost, "/uploads", `{"account":"Current","date_format":"DD/MM/YYYY","records":[{"date":"01/03/2024","amount":-20,"who":"TESCO","address":[""]}]}`)
	do(srv, http.MethodPost, "/rules", `{"account":"Current","pattern":"TESCO","category":"Groceries"}`)

	feed := accountFeed(t, srv, "Current")
	require.Equal(t, "Groceries", feed[0].Category)

	// Re-asserting the category the rule already produces must not pin the
	// transaction with an override.
	categorize(t, srv, "Current", feed[0], "Groceries")

	do(srv, http.MethodPost, "/rules", `{"account":"Current","pattern":"TESCO","category":"Shopping"}`)
	feed = accountFeed(t, srv, "Current")
	assert.Equal(t, "Shopping", feed[0].Category)
}

func TestTransfersEndpoint(t *testing.T) {
	srv := newTestServer(t)
	do(srv, http.MethodPost, "/accounts", `{"name":"Current"}`)
	do(srv, http.MethodPost, "/accounts", `{"name":"Savings"}`)
	do(srv, http.MethodPost, "/uploads", `{"account":"Current","date_format":"DD/MM/YYYY","records":[{"date":"01/03/2024","amount":-50,"who":"TO SAVINGS","address":[""]}]}`)
	do(srv, http.MethodPost, "/uploads", `{"account":"Savings","date_format":"DD/MM/YYYY","records":[{"date":"02/03/2024","amount":50,"who":"FROM CURRENT","address":[""]}]}`)
	do(srv, http.MethodPost, "/rules", `{"account":"Current","pattern":"SAVINGS","category":"Transfer"}`)
	do(srv, http.MethodPost, "/rules", `{"account":"Savings","pattern":"CURRENT","category":"Transfer"}`)

	rr := do(srv, http.MethodGet, "/transfers", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var pairs []struct {
		FromAccount string `json:"from_account"`
		ToAccount   string `json:"to_account"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pairs))
	require.Len(t, pairs, 1)
	assert.Equal(t, "Current", pairs[0].FromAccount)
	assert.Equal(t, "Savings", pairs[0].ToAccount)
}

func TestSummaryView(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodPost, "/summary", `{"excluded_categories":["Transfer"],"cash_only":true}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(srv, http.MethodGet, "/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var view core.SummaryView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, []string{"Transfer"}, view.ExcludedCategories)
	assert.True(t, view.CashOnly)
}

func TestIncomeCategoriesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	do(srv, http.MethodPost, "/accounts", `{"name":"Current"}`)
	do(srv, http.MethodPost, "/uploads", `{"account":"Current","date_format":"DD/MM/YYYY","records":[
		{"date":"01/03/2024","amount":2000,"who":"ACME PAYROLL","address":[""]},
		{"date":"02/03/2024","amount":-20,"who":"TESCO","address":[""]}]}`)
	do(srv, http.MethodPost, "/rules", `{"account":"Current","pattern":"PAYROLL","category":"Salary"}`)
	do(srv, http.MethodPost, "/rules", `{"account":"Current","pattern":"TESCO","category":"Groceries"}`)

	rr := do(srv, http.MethodGet, "/categories/income", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp["inferred"], "Salary")
	assert.NotContains(t, resp["inferred"], "Groceries")
}
