package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/reserve"
)

const dateLayout = "2006-01-02"

type createAccountRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	Subtype  string `json:"subtype"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

type entryRequest struct {
	AccountID   string `json:"account_id" validate:"required"`
	DebitCents  int64  `json:"debit_cents"`
	CreditCents int64  `json:"credit_cents"`
}

type postTransactionRequest struct {
	Date        string         `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description string         `json:"description"`
	Reference   string         `json:"reference"`
	Entries     []entryRequest `json:"entries" validate:"required,dive"`
}

type reverseRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type matchRequest struct {
	AccountID string `json:"account_id" validate:"required"`
}

type verifyResponse struct {
	OK    bool           `json:"ok"`
	Drift []ledger.Drift `json:"drift"`
}

type suggestResponse struct {
	Line      model.BankStatementLine `json:"line"`
	Suggested bool                    `json:"suggested"`
}

func tenantID(r *http.Request) string { return chi.URLParam(r, "tenantID") }

// parseDate returns the zero time for "", which the ledger reads as today.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, s)
	return t
}

func (s *Server) listTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.app.Store.ListTenants(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []model.Tenant{}
	}
	writeJSON(w, http.StatusOK, tenants)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := s.app.Accounts.List(r.Context(), tenantID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accts)
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !s.decode(w, r, &req) {
		return
	}
	tid := tenantID(r)
	acct, err := s.app.Accounts.Create(r.Context(), model.Account{
		TenantID: tid,
		Code:     req.Code,
		Name:     req.Name,
		Type:     model.AccountType(req.Type),
		Subtype:  req.Subtype,
		Currency: req.Currency,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.app.RefreshSuggestRules(r.Context(), tid); err != nil {
		s.log.Warn("refreshing suggest rules", "tenant", tid, "error", err)
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.app.Ledger.Transactions(r.Context(), tenantID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := s.app.Ledger.Transaction(r.Context(), tenantID(r), chi.URLParam(r, "txnID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	var req postTransactionRequest
	if !s.decode(w, r, &req) {
		return
	}
	entries := make([]model.JournalEntry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = model.JournalEntry{AccountID: e.AccountID, DebitCents: e.DebitCents, CreditCents: e.CreditCents}
	}
	txn, err := s.app.Ledger.PostTransaction(r.Context(), tenantID(r), model.Transaction{
		Date:        parseDate(req.Date),
		Description: req.Description,
		Reference:   req.Reference,
		Source:      model.SourceManual,
		Entries:     entries,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) reverseTransaction(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	date := parseDate(req.Date)
	if date.IsZero() {
		date = time.Now()
	}
	txn, err := s.app.Ledger.Reverse(r.Context(), tenantID(r), chi.URLParam(r, "txnID"), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) listBankLines(w http.ResponseWriter, r *http.Request) {
	var (
		lines []model.BankStatementLine
		err   error
	)
	switch r.URL.Query().Get("status") {
	case "unmatched":
		lines, err = s.app.Reconcile.ListUnmatched(r.Context(), tenantID(r))
	case "", "all":
		lines, err = s.app.Reconcile.Lines(r.Context(), tenantID(r))
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "status must be unmatched or all"})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if lines == nil {
		lines = []model.BankStatementLine{}
	}
	writeJSON(w, http.StatusOK, lines)
}

// importBankLines takes a raw CSV body; ?format= names the parser (default chase).
func (s *Server) importBankLines(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "chase"
	}
	res, err := s.app.Importer.Import(r.Context(), tenantID(r), format, r.Body)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) matchBankLine(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !s.decode(w, r, &req) {
		return
	}
	txn, err := s.app.Reconcile.Match(r.Context(), tenantID(r), chi.URLParam(r, "lineID"), req.AccountID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) suggestBankLine(w http.ResponseWriter, r *http.Request) {
	line, ok, err := s.app.Reconcile.Suggest(r.Context(), tenantID(r), chi.URLParam(r, "lineID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestResponse{Line: line, Suggested: ok})
}

func (s *Server) listReserveRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.app.Reserve.Rules(r.Context(), tenantID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rules == nil {
		rules = []model.ReserveRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) evaluateReserve(w http.ResponseWriter, r *http.Request) {
	txns, err := s.app.Reserve.EvaluateReserveRules(r.Context(), tenantID(r))
	if err != nil && len(txns) == 0 {
		s.fail(w, r, err)
		return
	}
	if err != nil {
		s.log.Warn("reserve evaluation incomplete", "tenant", tenantID(r), "error", err)
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) previewReserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txn, err := s.app.Ledger.Transaction(ctx, tenantID(r), chi.URLParam(r, "txnID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	allocs, err := s.app.Reserve.Preview(ctx, tenantID(r), txn)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if allocs == nil {
		allocs = []reserve.Allocation{}
	}
	writeJSON(w, http.StatusOK, allocs)
}

func (s *Server) runWatchdog(w http.ResponseWriter, r *http.Request) {
	findings, err := s.app.Watchdog.Run(r.Context(), tenantID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if findings == nil {
		findings = []model.Finding{}
	}
	writeJSON(w, http.StatusOK, findings)
}

func (s *Server) verifyBalances(w http.ResponseWriter, r *http.Request) {
	drift, err := s.app.Ledger.Verify(r.Context(), tenantID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if drift == nil {
		drift = []ledger.Drift{}
	}
	writeJSON(w, http.StatusOK, verifyResponse{OK: len(drift) == 0, Drift: drift})
}
